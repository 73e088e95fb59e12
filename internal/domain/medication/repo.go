package medication

import (
	"context"

	"github.com/google/uuid"
)

type MedicationRepository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Medication, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Medication, int, error)
}

// PrescriptionRepository reads prescriptions with their items. Create and
// Update write the header only; ReplaceItems rewrites the item rows.
type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	Delete(ctx context.Context, id uuid.UUID) error
	ReplaceItems(ctx context.Context, prescriptionID uuid.UUID, items []PrescriptionItem) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error)
}
