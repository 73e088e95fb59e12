package consultation

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/events"
	"github.com/medrec/medrec/internal/platform/validation"
)

type mockRepo struct {
	items map[uuid.UUID]*Consultation
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Consultation)}
}

func (m *mockRepo) Create(_ context.Context, c *Consultation) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	stored := *c
	m.items[c.ID] = &stored
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Consultation, error) {
	c, ok := m.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockRepo) Update(_ context.Context, c *Consultation) error {
	if _, ok := m.items[c.ID]; !ok {
		return db.ErrNotFound
	}
	stored := *c
	m.items[c.ID] = &stored
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Consultation, int, error) {
	return m.Search(ctx, nil, limit, offset)
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	return m.Search(ctx, map[string]string{"patient_id": patientID.String()}, limit, offset)
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Consultation, int, error) {
	var result []*Consultation
	for _, c := range m.items {
		if pid, ok := params["patient_id"]; ok && c.PatientID.String() != pid {
			continue
		}
		if st, ok := params["status"]; ok && c.Status != st {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledAt.After(result[j].ScheduledAt) })
	return result, len(result), nil
}

type recorder struct {
	types []string
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.types = append(r.types, ev.Type)
	return nil
}

func newTestService() *Service {
	return NewService(newMockRepo(), nil)
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }
func strp(s string) *string  { return &s }

func newConsultation(patientID uuid.UUID) *Consultation {
	return &Consultation{
		PatientID:   patientID,
		DoctorID:    uuid.New(),
		ScheduledAt: time.Date(2024, time.March, 4, 10, 30, 0, 0, time.UTC),
		Reason:      " control anual ",
	}
}

func firstField(err error) string {
	var fe validation.FieldErrors
	if !errors.As(err, &fe) || len(fe) == 0 {
		return ""
	}
	return fe[0].Field
}

func TestService_CreateConsultation_Defaults(t *testing.T) {
	svc := newTestService()
	c := newConsultation(uuid.New())

	if err := svc.CreateConsultation(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusScheduled {
		t.Errorf("expected status scheduled, got %s", c.Status)
	}
	if c.Reason != "control anual" {
		t.Errorf("expected trimmed reason, got %q", c.Reason)
	}
	if c.BMI != nil || c.BloodPressureCategory != nil {
		t.Error("expected no derived vitals without readings")
	}
}

func TestService_CreateConsultation_ComputesVitals(t *testing.T) {
	svc := newTestService()
	c := newConsultation(uuid.New())
	c.WeightKg, c.HeightCm = f64(95), f64(170)
	c.Systolic, c.Diastolic = intp(142), intp(88)

	if err := svc.CreateConsultation(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.BMI == nil || *c.BMI != 32.9 {
		t.Errorf("expected BMI 32.9, got %v", c.BMI)
	}
	if c.BMICategory == nil || *c.BMICategory != "obesity_1" {
		t.Errorf("expected obesity_1, got %v", c.BMICategory)
	}
	if c.BloodPressureCategory == nil || *c.BloodPressureCategory != "stage_2" {
		t.Errorf("expected stage_2, got %v", c.BloodPressureCategory)
	}
}

func TestService_CreateConsultation_HalfVitals(t *testing.T) {
	svc := newTestService()
	c := newConsultation(uuid.New())
	c.WeightKg = f64(70)

	err := svc.CreateConsultation(context.Background(), c)
	if got := firstField(err); got != "vitals" {
		t.Errorf("expected vitals error, got %v", err)
	}
}

func TestService_CreateConsultation_DiastolicAboveSystolic(t *testing.T) {
	svc := newTestService()
	c := newConsultation(uuid.New())
	c.Systolic, c.Diastolic = intp(80), intp(120)

	if got := firstField(svc.CreateConsultation(context.Background(), c)); got != "vitals" {
		t.Errorf("expected vitals error, got %q", got)
	}
}

func TestService_CreateConsultation_Validation(t *testing.T) {
	svc := newTestService()

	err := svc.CreateConsultation(context.Background(), &Consultation{Status: "pending"})
	var fe validation.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	want := map[string]bool{"patient_id": true, "doctor_id": true, "scheduled_at": true, "reason": true, "status": true}
	if len(fe) != len(want) {
		t.Errorf("expected %d field errors, got %v", len(want), fe)
	}
	for _, f := range fe {
		if !want[f.Field] {
			t.Errorf("unexpected field %s", f.Field)
		}
	}
}

func TestService_CreateConsultation_CompletedNeedsDiagnosis(t *testing.T) {
	svc := newTestService()
	c := newConsultation(uuid.New())
	c.Status = StatusCompleted

	if got := firstField(svc.CreateConsultation(context.Background(), c)); got != "diagnosis" {
		t.Errorf("expected diagnosis error, got %q", got)
	}

	c.Diagnosis = strp("Hipertensión arterial")
	if err := svc.CreateConsultation(context.Background(), c); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestService_UpdateConsultation_Complete(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c := newConsultation(uuid.New())
	svc.CreateConsultation(ctx, c)

	upd := *c
	upd.Status = StatusCompleted
	upd.Diagnosis = strp("Resfrío común")
	if err := svc.UpdateConsultation(ctx, &upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.GetConsultation(ctx, c.ID)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
}

func TestService_UpdateConsultation_TerminalStatus(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c := newConsultation(uuid.New())
	c.Status = StatusCancelled
	svc.CreateConsultation(ctx, c)

	upd := *c
	upd.Status = StatusScheduled
	if got := firstField(svc.UpdateConsultation(ctx, &upd)); got != "status" {
		t.Errorf("expected status error, got %q", got)
	}

	upd.Status = StatusCancelled
	upd.Notes = strp("paciente no asistió")
	if err := svc.UpdateConsultation(ctx, &upd); err != nil {
		t.Errorf("editing a cancelled consultation without changing status should work: %v", err)
	}
}

func TestService_UpdateConsultation_NotFound(t *testing.T) {
	svc := newTestService()
	c := newConsultation(uuid.New())
	c.ID = uuid.New()
	if err := svc.UpdateConsultation(context.Background(), c); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ListByPatient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	patientID := uuid.New()

	first := newConsultation(patientID)
	second := newConsultation(patientID)
	second.ScheduledAt = first.ScheduledAt.Add(24 * time.Hour)
	svc.CreateConsultation(ctx, first)
	svc.CreateConsultation(ctx, second)
	svc.CreateConsultation(ctx, newConsultation(uuid.New()))

	items, total, err := svc.ListByPatient(ctx, patientID, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 consultations, got %d", total)
	}
	if items[0].ID != second.ID {
		t.Error("expected most recent consultation first")
	}
}

func TestService_DeleteConsultation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c := newConsultation(uuid.New())
	svc.CreateConsultation(ctx, c)

	if err := svc.DeleteConsultation(ctx, c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.DeleteConsultation(ctx, c.ID); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestService_Events(t *testing.T) {
	rec := &recorder{}
	svc := NewService(newMockRepo(), events.NewEmitter(rec, zerolog.Nop()))
	ctx := context.Background()

	c := newConsultation(uuid.New())
	svc.CreateConsultation(ctx, c)
	svc.UpdateConsultation(ctx, c)
	svc.DeleteConsultation(ctx, c.ID)

	want := []string{"consultations.created", "consultations.updated", "consultations.deleted"}
	if len(rec.types) != len(want) {
		t.Fatalf("events = %v, want %v", rec.types, want)
	}
	for i := range want {
		if rec.types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, rec.types[i], want[i])
		}
	}
}
