package medication

import (
	"time"

	"github.com/google/uuid"
)

// Medication maps to the medication table (the clinic's drug catalog).
type Medication struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Name             string    `db:"name" json:"name" validate:"required,max=200"`
	ActiveIngredient string    `db:"active_ingredient" json:"active_ingredient" validate:"required,max=200"`
	Presentation     *string   `db:"presentation" json:"presentation,omitempty" validate:"omitempty,oneof=tablet capsule syrup suspension injection cream ointment drops inhaler patch other"`
	Concentration    *string   `db:"concentration" json:"concentration,omitempty" validate:"omitempty,max=100"`
	Route            *string   `db:"route" json:"route,omitempty" validate:"omitempty,oneof=oral intravenous intramuscular subcutaneous topical inhalation sublingual rectal ophthalmic otic nasal other"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PrescriptionActive    = "active"
	PrescriptionCompleted = "completed"
	PrescriptionCancelled = "cancelled"
)

// Prescription maps to the prescription table. Items live in
// prescription_item and are always written together with their header.
type Prescription struct {
	ID             uuid.UUID          `db:"id" json:"id"`
	PatientID      uuid.UUID          `db:"patient_id" json:"patient_id" validate:"required"`
	DoctorID       uuid.UUID          `db:"doctor_id" json:"doctor_id" validate:"required"`
	ConsultationID *uuid.UUID         `db:"consultation_id" json:"consultation_id,omitempty"`
	IssuedAt       time.Time          `db:"issued_at" json:"issued_at" validate:"notfuture"`
	Status         string             `db:"status" json:"status" validate:"required,oneof=active completed cancelled"`
	Notes          *string            `db:"notes" json:"notes,omitempty" validate:"omitempty,max=4000"`
	Items          []PrescriptionItem `json:"items" validate:"required,min=1,dive"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// PrescriptionItem maps to the prescription_item table.
type PrescriptionItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	MedicationID   uuid.UUID `db:"medication_id" json:"medication_id" validate:"required"`
	Dose           string    `db:"dose" json:"dose" validate:"required,max=100"`
	Frequency      string    `db:"frequency" json:"frequency" validate:"required,max=100"`
	DurationDays   *int      `db:"duration_days" json:"duration_days,omitempty" validate:"omitempty,gt=0,lte=365"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty" validate:"omitempty,max=1000"`
}

// EndsAt returns when the longest item runs out, or nil when some item has
// no fixed duration.
func (p *Prescription) EndsAt() *time.Time {
	longest := 0
	for _, it := range p.Items {
		if it.DurationDays == nil {
			return nil
		}
		if *it.DurationDays > longest {
			longest = *it.DurationDays
		}
	}
	if len(p.Items) == 0 {
		return nil
	}
	end := p.IssuedAt.AddDate(0, 0, longest)
	return &end
}
