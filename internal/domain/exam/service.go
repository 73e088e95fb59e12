package exam

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medrec/medrec/internal/platform/events"
	"github.com/medrec/medrec/internal/platform/validation"
)

type Service struct {
	repo     Repository
	validate *validation.Validator
	events   *events.Emitter
	now      func() time.Time
}

// NewService wires the repository. emitter may be nil.
func NewService(repo Repository, emitter *events.Emitter) *Service {
	return &Service{repo: repo, validate: validation.New(), events: emitter, now: time.Now}
}

func (s *Service) prepare(e *Exam) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Status == "" {
		e.Status = StatusRequested
	}
	if e.RequestedAt.IsZero() {
		e.RequestedAt = s.now().UTC()
	}
	if err := s.validate.Struct(e); err != nil {
		return err
	}
	if e.Status == StatusCompleted {
		if e.Result == nil || strings.TrimSpace(*e.Result) == "" {
			return validation.Invalid("result", "is required to complete an exam")
		}
		if e.ResultDate == nil {
			at := s.now().UTC()
			e.ResultDate = &at
		}
	}
	return nil
}

// CreateExam records a new exam order. It starts out requested, or
// in_progress when the sample is taken on the spot.
func (s *Service) CreateExam(ctx context.Context, e *Exam) error {
	if e.Status != "" && e.Status != StatusRequested && e.Status != StatusInProgress {
		return validation.Invalid("status", "a new exam must be requested or in_progress")
	}
	if err := s.prepare(e); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicExams, events.ActionCreated, e.ID.String(), e)
	return nil
}

func (s *Service) GetExam(ctx context.Context, id uuid.UUID) (*Exam, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateExam replaces the record, enforcing the status workflow
// requested -> in_progress -> completed, with cancellation allowed until
// the exam is completed. Completed and cancelled exams are read-only.
func (s *Service) UpdateExam(ctx context.Context, e *Exam) error {
	existing, err := s.repo.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	if existing.Terminal() {
		return validation.Invalid("status", "exam is "+existing.Status+" and can no longer be changed")
	}
	if e.RequestedAt.IsZero() {
		e.RequestedAt = existing.RequestedAt
	}
	if err := s.prepare(e); err != nil {
		return err
	}
	if !CanTransition(existing.Status, e.Status) {
		return validation.Invalid("status", "cannot change from "+existing.Status+" to "+e.Status)
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicExams, events.ActionUpdated, e.ID.String(), e)
	return nil
}

// StartExam moves a requested exam to in_progress.
func (s *Service) StartExam(ctx context.Context, id uuid.UUID) (*Exam, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusRequested {
		return nil, validation.Invalid("status", "only a requested exam can be started, exam is "+e.Status)
	}
	e.Status = StatusInProgress
	if err := s.UpdateExam(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CompleteExam records the result of an in_progress exam and marks it
// completed.
func (s *Service) CompleteExam(ctx context.Context, id uuid.UUID, result string) (*Exam, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result = strings.TrimSpace(result)
	e.Result = &result
	e.ResultDate = nil
	e.Status = StatusCompleted
	if err := s.UpdateExam(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) DeleteExam(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicExams, events.ActionDeleted, id.String(), nil)
	return nil
}

func (s *Service) ListExams(ctx context.Context, limit, offset int) ([]*Exam, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Exam, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) SearchExams(ctx context.Context, params map[string]string, limit, offset int) ([]*Exam, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
