package consultation

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/medrec/medrec/internal/domain/vitals"
	"github.com/medrec/medrec/internal/platform/events"
	"github.com/medrec/medrec/internal/platform/validation"
)

type Service struct {
	repo     Repository
	validate *validation.Validator
	events   *events.Emitter
}

// NewService wires the repository. emitter may be nil.
func NewService(repo Repository, emitter *events.Emitter) *Service {
	return &Service{repo: repo, validate: validation.New(), events: emitter}
}

func (s *Service) prepare(c *Consultation) error {
	c.Reason = strings.TrimSpace(c.Reason)
	if c.Status == "" {
		c.Status = StatusScheduled
	}
	if err := s.validate.Struct(c); err != nil {
		return err
	}
	if c.Status == StatusCompleted && (c.Diagnosis == nil || strings.TrimSpace(*c.Diagnosis) == "") {
		return validation.Invalid("diagnosis", "is required to complete a consultation")
	}
	return applyVitals(c)
}

// applyVitals recomputes the derived columns from the readings, clearing
// them when no readings were taken.
func applyVitals(c *Consultation) error {
	a, err := vitals.Assess(c.Measurement())
	if err != nil {
		return validation.Invalid("vitals", err.Error())
	}
	c.BMI, c.BMICategory, c.BloodPressureCategory = a.BMI, nil, nil
	if a.BMICategory != nil {
		cat := string(*a.BMICategory)
		c.BMICategory = &cat
	}
	if a.BloodPressure != nil {
		cat := string(*a.BloodPressure)
		c.BloodPressureCategory = &cat
	}
	return nil
}

func (s *Service) CreateConsultation(ctx context.Context, c *Consultation) error {
	if err := s.prepare(c); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicConsultations, events.ActionCreated, c.ID.String(), c)
	return nil
}

func (s *Service) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateConsultation replaces the record. Completed and cancelled
// consultations keep their status.
func (s *Service) UpdateConsultation(ctx context.Context, c *Consultation) error {
	existing, err := s.repo.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := s.prepare(c); err != nil {
		return err
	}
	if existing.Terminal() && c.Status != existing.Status {
		return validation.Invalid("status", "cannot change the status of a "+existing.Status+" consultation")
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicConsultations, events.ActionUpdated, c.ID.String(), c)
	return nil
}

func (s *Service) DeleteConsultation(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicConsultations, events.ActionDeleted, id.String(), nil)
	return nil
}

func (s *Service) ListConsultations(ctx context.Context, limit, offset int) ([]*Consultation, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) SearchConsultations(ctx context.Context, params map[string]string, limit, offset int) ([]*Consultation, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
