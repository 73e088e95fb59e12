package medication

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/events"
	"github.com/medrec/medrec/internal/platform/validation"
)

type Service struct {
	medications   MedicationRepository
	prescriptions PrescriptionRepository
	tx            db.TxBeginner
	validate      *validation.Validator
	events        *events.Emitter
	now           func() time.Time
}

// NewService wires the repositories. tx opens the transaction a prescription
// and its items are written in; with a nil tx (in-memory repositories) the
// writes run directly. emitter may be nil.
func NewService(meds MedicationRepository, rxs PrescriptionRepository, tx db.TxBeginner, emitter *events.Emitter) *Service {
	return &Service{
		medications:   meds,
		prescriptions: rxs,
		tx:            tx,
		validate:      validation.New(),
		events:        emitter,
		now:           time.Now,
	}
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return db.RunInTx(ctx, s.tx, fn)
}

// -- Medication --

func (s *Service) prepareMedication(m *Medication) error {
	m.Name = strings.TrimSpace(m.Name)
	m.ActiveIngredient = strings.TrimSpace(m.ActiveIngredient)
	return s.validate.Struct(m)
}

func (s *Service) CreateMedication(ctx context.Context, m *Medication) error {
	if err := s.prepareMedication(m); err != nil {
		return err
	}
	m.Active = true
	if err := s.medications.Create(ctx, m); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicMedications, events.ActionCreated, m.ID.String(), m)
	return nil
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.medications.GetByID(ctx, id)
}

func (s *Service) UpdateMedication(ctx context.Context, m *Medication) error {
	if err := s.prepareMedication(m); err != nil {
		return err
	}
	if err := s.medications.Update(ctx, m); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicMedications, events.ActionUpdated, m.ID.String(), m)
	return nil
}

func (s *Service) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	if err := s.medications.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicMedications, events.ActionDeleted, id.String(), nil)
	return nil
}

func (s *Service) ListMedications(ctx context.Context, limit, offset int) ([]*Medication, int, error) {
	return s.medications.List(ctx, limit, offset)
}

func (s *Service) SearchMedications(ctx context.Context, params map[string]string, limit, offset int) ([]*Medication, int, error) {
	return s.medications.Search(ctx, params, limit, offset)
}

// -- Prescription --

// preparePrescription applies defaults and rules shared by create and update.
// Writes always leave the prescription active; closing it goes through
// SetPrescriptionStatus.
func (s *Service) preparePrescription(ctx context.Context, p *Prescription) error {
	switch p.Status {
	case "":
		p.Status = PrescriptionActive
	case PrescriptionActive:
	default:
		return validation.Invalid("status", "use the complete or cancel operation to close a prescription")
	}
	if p.IssuedAt.IsZero() {
		p.IssuedAt = s.now().UTC()
	}
	for i := range p.Items {
		p.Items[i].Dose = strings.TrimSpace(p.Items[i].Dose)
		p.Items[i].Frequency = strings.TrimSpace(p.Items[i].Frequency)
	}
	if err := s.validate.Struct(p); err != nil {
		return err
	}
	return s.checkMedications(ctx, p.Items)
}

// checkMedications rejects items naming a medication that is missing from
// the catalog or no longer active.
func (s *Service) checkMedications(ctx context.Context, items []PrescriptionItem) error {
	var out validation.FieldErrors
	for i, it := range items {
		field := fmt.Sprintf("items[%d].medication_id", i)
		m, err := s.medications.GetByID(ctx, it.MedicationID)
		switch {
		case errors.Is(err, db.ErrNotFound):
			out = append(out, validation.FieldError{Field: field, Message: "unknown medication"})
		case err != nil:
			return err
		case !m.Active:
			out = append(out, validation.FieldError{Field: field, Message: "medication is not active"})
		}
	}
	if len(out) > 0 {
		return out
	}
	return nil
}

func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if err := s.preparePrescription(ctx, p); err != nil {
		return err
	}
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.prescriptions.Create(ctx, p); err != nil {
			return err
		}
		return s.prescriptions.ReplaceItems(ctx, p.ID, p.Items)
	})
	if err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicPrescriptions, events.ActionCreated, p.ID.String(), p)
	return nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

// UpdatePrescription replaces the header and items. Only active
// prescriptions may be edited; completing or cancelling is final.
func (s *Service) UpdatePrescription(ctx context.Context, p *Prescription) error {
	existing, err := s.prescriptions.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if existing.Status != PrescriptionActive {
		return validation.Invalid("status", "a "+existing.Status+" prescription cannot be modified")
	}
	if p.IssuedAt.IsZero() {
		p.IssuedAt = existing.IssuedAt
	}
	if err := s.preparePrescription(ctx, p); err != nil {
		return err
	}
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.prescriptions.Update(ctx, p); err != nil {
			return err
		}
		return s.prescriptions.ReplaceItems(ctx, p.ID, p.Items)
	})
	if err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicPrescriptions, events.ActionUpdated, p.ID.String(), p)
	return nil
}

// SetPrescriptionStatus moves an active prescription to completed or
// cancelled without touching its items.
func (s *Service) SetPrescriptionStatus(ctx context.Context, id uuid.UUID, status string) (*Prescription, error) {
	if status != PrescriptionCompleted && status != PrescriptionCancelled {
		return nil, validation.Invalid("status", "must be one of: completed, cancelled")
	}
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != PrescriptionActive {
		return nil, validation.Invalid("status", "a "+p.Status+" prescription cannot be modified")
	}
	p.Status = status
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.TopicPrescriptions, events.ActionUpdated, p.ID.String(), p)
	return p, nil
}

func (s *Service) DeletePrescription(ctx context.Context, id uuid.UUID) error {
	if err := s.prescriptions.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicPrescriptions, events.ActionDeleted, id.String(), nil)
	return nil
}

func (s *Service) ListPrescriptionsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.prescriptions.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) SearchPrescriptions(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error) {
	return s.prescriptions.Search(ctx, params, limit, offset)
}
