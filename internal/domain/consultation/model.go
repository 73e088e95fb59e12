package consultation

import (
	"time"

	"github.com/google/uuid"

	"github.com/medrec/medrec/internal/domain/vitals"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Consultation maps to the consultation table. The BMI and category columns
// are derived from the readings by the service and ignored on input.
type Consultation struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	PatientID             uuid.UUID `db:"patient_id" json:"patient_id" validate:"required"`
	DoctorID              uuid.UUID `db:"doctor_id" json:"doctor_id" validate:"required"`
	ScheduledAt           time.Time `db:"scheduled_at" json:"scheduled_at" validate:"required"`
	Reason                string    `db:"reason" json:"reason" validate:"required,max=500"`
	Diagnosis             *string   `db:"diagnosis" json:"diagnosis,omitempty" validate:"omitempty,max=2000"`
	Notes                 *string   `db:"notes" json:"notes,omitempty" validate:"omitempty,max=4000"`
	Status                string    `db:"status" json:"status" validate:"required,oneof=scheduled completed cancelled"`
	WeightKg              *float64  `db:"weight_kg" json:"weight_kg,omitempty" validate:"omitempty,gt=0,lte=500"`
	HeightCm              *float64  `db:"height_cm" json:"height_cm,omitempty" validate:"omitempty,gt=0,lte=300"`
	Systolic              *int      `db:"systolic" json:"systolic,omitempty" validate:"omitempty,gt=0,lte=300"`
	Diastolic             *int      `db:"diastolic" json:"diastolic,omitempty" validate:"omitempty,gt=0,lte=200"`
	BMI                   *float64  `db:"bmi" json:"bmi,omitempty"`
	BMICategory           *string   `db:"bmi_category" json:"bmi_category,omitempty"`
	BloodPressureCategory *string   `db:"bp_category" json:"blood_pressure_category,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// Measurement collects the readings that were taken. Missing readings are
// zero, which vitals.Assess treats as not taken.
func (c *Consultation) Measurement() vitals.Measurement {
	var m vitals.Measurement
	if c.WeightKg != nil {
		m.WeightKg = *c.WeightKg
	}
	if c.HeightCm != nil {
		m.HeightCm = *c.HeightCm
	}
	if c.Systolic != nil {
		m.Systolic = *c.Systolic
	}
	if c.Diastolic != nil {
		m.Diastolic = *c.Diastolic
	}
	return m
}

// Terminal reports whether the consultation can no longer change status.
func (c *Consultation) Terminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusCancelled
}
