// Package vitals classifies body mass index and blood pressure readings
// taken during a consultation. All functions are pure.
package vitals

import (
	"errors"
	"math"
)

var (
	ErrInvalidWeight        = errors.New("weight_kg must be greater than zero")
	ErrInvalidHeight        = errors.New("height_cm must be greater than zero")
	ErrInvalidBloodPressure = errors.New("systolic and diastolic must be positive and systolic above diastolic")
)

// BMICategory is the WHO adult band for a BMI value.
type BMICategory string

const (
	BMIUnderweight BMICategory = "underweight"
	BMINormal      BMICategory = "normal"
	BMIOverweight  BMICategory = "overweight"
	BMIObesity1    BMICategory = "obesity_1"
	BMIObesity2    BMICategory = "obesity_2"
	BMIObesity3    BMICategory = "obesity_3"
)

// BPCategory follows the ACC/AHA 2017 adult blood pressure guideline.
type BPCategory string

const (
	BPNormal             BPCategory = "normal"
	BPElevated           BPCategory = "elevated"
	BPStage1             BPCategory = "stage_1"
	BPStage2             BPCategory = "stage_2"
	BPHypertensiveCrisis BPCategory = "hypertensive_crisis"
)

// BMI returns weight / height² (height in metres) rounded to one decimal.
func BMI(weightKg, heightCm float64) (float64, error) {
	if weightKg <= 0 {
		return 0, ErrInvalidWeight
	}
	if heightCm <= 0 {
		return 0, ErrInvalidHeight
	}
	m := heightCm / 100
	return math.Round(weightKg/(m*m)*10) / 10, nil
}

func ClassifyBMI(bmi float64) BMICategory {
	switch {
	case bmi < 18.5:
		return BMIUnderweight
	case bmi < 25:
		return BMINormal
	case bmi < 30:
		return BMIOverweight
	case bmi < 35:
		return BMIObesity1
	case bmi < 40:
		return BMIObesity2
	default:
		return BMIObesity3
	}
}

// ClassifyBloodPressure picks the highest category either reading falls in.
func ClassifyBloodPressure(systolic, diastolic int) (BPCategory, error) {
	if systolic <= 0 || diastolic <= 0 || diastolic >= systolic {
		return "", ErrInvalidBloodPressure
	}
	switch {
	case systolic > 180 || diastolic > 120:
		return BPHypertensiveCrisis, nil
	case systolic >= 140 || diastolic >= 90:
		return BPStage2, nil
	case systolic >= 130 || diastolic >= 80:
		return BPStage1, nil
	case systolic >= 120:
		return BPElevated, nil
	default:
		return BPNormal, nil
	}
}

// Measurement is a set of readings. Zero fields are treated as not taken.
type Measurement struct {
	WeightKg  float64 `json:"weight_kg"`
	HeightCm  float64 `json:"height_cm"`
	Systolic  int     `json:"systolic"`
	Diastolic int     `json:"diastolic"`
}

// Assessment holds whatever could be derived from a Measurement.
type Assessment struct {
	BMI           *float64     `json:"bmi,omitempty"`
	BMICategory   *BMICategory `json:"bmi_category,omitempty"`
	BloodPressure *BPCategory  `json:"blood_pressure_category,omitempty"`
}

// Assess derives BMI when weight and height are both present and the blood
// pressure category when both readings are present. A half-supplied pair is
// an error.
func Assess(m Measurement) (*Assessment, error) {
	a := &Assessment{}

	if m.WeightKg != 0 || m.HeightCm != 0 {
		bmi, err := BMI(m.WeightKg, m.HeightCm)
		if err != nil {
			return nil, err
		}
		cat := ClassifyBMI(bmi)
		a.BMI = &bmi
		a.BMICategory = &cat
	}

	if m.Systolic != 0 || m.Diastolic != 0 {
		cat, err := ClassifyBloodPressure(m.Systolic, m.Diastolic)
		if err != nil {
			return nil, err
		}
		a.BloodPressure = &cat
	}

	return a, nil
}
