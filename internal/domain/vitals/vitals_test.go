package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBMI(t *testing.T) {
	bmi, err := BMI(70, 175)
	require.NoError(t, err)
	assert.Equal(t, 22.9, bmi)

	bmi, err = BMI(95, 160)
	require.NoError(t, err)
	assert.Equal(t, 37.1, bmi)

	_, err = BMI(0, 175)
	assert.ErrorIs(t, err, ErrInvalidWeight)
	_, err = BMI(70, -1)
	assert.ErrorIs(t, err, ErrInvalidHeight)
}

func TestClassifyBMI(t *testing.T) {
	tests := []struct {
		bmi  float64
		want BMICategory
	}{
		{16.0, BMIUnderweight},
		{18.4, BMIUnderweight},
		{18.5, BMINormal},
		{24.9, BMINormal},
		{25.0, BMIOverweight},
		{29.9, BMIOverweight},
		{30.0, BMIObesity1},
		{35.0, BMIObesity2},
		{39.9, BMIObesity2},
		{40.0, BMIObesity3},
		{52.3, BMIObesity3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyBMI(tt.bmi), "bmi %.1f", tt.bmi)
	}
}

func TestClassifyBloodPressure(t *testing.T) {
	tests := []struct {
		name     string
		sys, dia int
		want     BPCategory
	}{
		{"normal", 115, 75, BPNormal},
		{"elevated", 125, 75, BPElevated},
		{"stage 1 by systolic", 132, 70, BPStage1},
		{"stage 1 by diastolic", 118, 84, BPStage1},
		{"stage 2 by systolic", 145, 85, BPStage2},
		{"stage 2 by diastolic", 128, 92, BPStage2},
		{"crisis by systolic", 185, 100, BPHypertensiveCrisis},
		{"crisis by diastolic", 170, 125, BPHypertensiveCrisis},
		{"boundary 180 is stage 2", 180, 110, BPStage2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyBloodPressure(tt.sys, tt.dia)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyBloodPressure_Invalid(t *testing.T) {
	for _, p := range [][2]int{{0, 80}, {120, 0}, {80, 120}, {90, 90}} {
		_, err := ClassifyBloodPressure(p[0], p[1])
		assert.ErrorIs(t, err, ErrInvalidBloodPressure, "%v", p)
	}
}

func TestAssess(t *testing.T) {
	a, err := Assess(Measurement{WeightKg: 70, HeightCm: 175, Systolic: 135, Diastolic: 85})
	require.NoError(t, err)
	require.NotNil(t, a.BMI)
	assert.Equal(t, 22.9, *a.BMI)
	assert.Equal(t, BMINormal, *a.BMICategory)
	assert.Equal(t, BPStage1, *a.BloodPressure)
}

func TestAssess_PartialReadings(t *testing.T) {
	a, err := Assess(Measurement{Systolic: 110, Diastolic: 70})
	require.NoError(t, err)
	assert.Nil(t, a.BMI)
	assert.Nil(t, a.BMICategory)
	assert.Equal(t, BPNormal, *a.BloodPressure)

	a, err = Assess(Measurement{})
	require.NoError(t, err)
	assert.Nil(t, a.BMI)
	assert.Nil(t, a.BloodPressure)

	_, err = Assess(Measurement{WeightKg: 70})
	assert.ErrorIs(t, err, ErrInvalidHeight)

	_, err = Assess(Measurement{Systolic: 120})
	assert.ErrorIs(t, err, ErrInvalidBloodPressure)
}
