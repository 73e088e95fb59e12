package medication

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/events"
	"github.com/medrec/medrec/internal/platform/validation"
)

// -- Mock Medication Repository --

type mockMedRepo struct {
	meds map[uuid.UUID]Medication
}

func newMockMedRepo() *mockMedRepo {
	return &mockMedRepo{meds: make(map[uuid.UUID]Medication)}
}

func (m *mockMedRepo) Create(_ context.Context, med *Medication) error {
	med.ID = uuid.New()
	med.CreatedAt = time.Now()
	m.meds[med.ID] = *med
	return nil
}

func (m *mockMedRepo) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	med, ok := m.meds[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &med, nil
}

func (m *mockMedRepo) Update(_ context.Context, med *Medication) error {
	if _, ok := m.meds[med.ID]; !ok {
		return db.ErrNotFound
	}
	m.meds[med.ID] = *med
	return nil
}

func (m *mockMedRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.meds[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.meds, id)
	return nil
}

func (m *mockMedRepo) List(ctx context.Context, limit, offset int) ([]*Medication, int, error) {
	return m.Search(ctx, nil, limit, offset)
}

func (m *mockMedRepo) Search(_ context.Context, _ map[string]string, limit, offset int) ([]*Medication, int, error) {
	var result []*Medication
	for _, med := range m.meds {
		med := med
		result = append(result, &med)
	}
	return result, len(result), nil
}

// -- Mock Prescription Repository --

type mockRxRepo struct {
	rxs      map[uuid.UUID]Prescription
	items    map[uuid.UUID][]PrescriptionItem
	itemsErr error
}

func newMockRxRepo() *mockRxRepo {
	return &mockRxRepo{rxs: make(map[uuid.UUID]Prescription), items: make(map[uuid.UUID][]PrescriptionItem)}
}

func (m *mockRxRepo) Create(_ context.Context, p *Prescription) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	header := *p
	header.Items = nil
	m.rxs[p.ID] = header
	return nil
}

func (m *mockRxRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.rxs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	p.Items = append([]PrescriptionItem{}, m.items[id]...)
	return &p, nil
}

func (m *mockRxRepo) Update(_ context.Context, p *Prescription) error {
	if _, ok := m.rxs[p.ID]; !ok {
		return db.ErrNotFound
	}
	header := *p
	header.Items = nil
	m.rxs[p.ID] = header
	return nil
}

func (m *mockRxRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.rxs[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.rxs, id)
	delete(m.items, id)
	return nil
}

func (m *mockRxRepo) ReplaceItems(_ context.Context, prescriptionID uuid.UUID, items []PrescriptionItem) error {
	if m.itemsErr != nil {
		return m.itemsErr
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].PrescriptionID = prescriptionID
	}
	m.items[prescriptionID] = append([]PrescriptionItem{}, items...)
	return nil
}

func (m *mockRxRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return m.Search(ctx, map[string]string{"patient_id": patientID.String()}, limit, offset)
}

func (m *mockRxRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error) {
	var result []*Prescription
	for id, p := range m.rxs {
		if pid, ok := params["patient_id"]; ok && p.PatientID.String() != pid {
			continue
		}
		full, _ := m.GetByID(ctx, id)
		result = append(result, full)
	}
	return result, len(result), nil
}

// -- Fake transaction --

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	tx *fakeTx
}

func (f *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	return f.tx, nil
}

// -- Helpers --

type fixture struct {
	svc  *Service
	meds *mockMedRepo
	rxs  *mockRxRepo
	tx   *fakeTx
}

func newFixture() *fixture {
	f := &fixture{meds: newMockMedRepo(), rxs: newMockRxRepo(), tx: &fakeTx{}}
	f.svc = NewService(f.meds, f.rxs, &fakeBeginner{tx: f.tx}, nil)
	return f
}

func newTestService() *Service {
	return NewService(newMockMedRepo(), newMockRxRepo(), nil, nil)
}

func strp(s string) *string { return &s }

func (f *fixture) addMedication(t *testing.T, name string) *Medication {
	t.Helper()
	m := &Medication{Name: name, ActiveIngredient: name, Presentation: strp("tablet"), Route: strp("oral")}
	if err := f.svc.CreateMedication(context.Background(), m); err != nil {
		t.Fatalf("create medication: %v", err)
	}
	return m
}

func newPrescription(items ...PrescriptionItem) *Prescription {
	return &Prescription{PatientID: uuid.New(), DoctorID: uuid.New(), Items: items}
}

func item(medID uuid.UUID) PrescriptionItem {
	return PrescriptionItem{MedicationID: medID, Dose: " 500 mg ", Frequency: "cada 8 horas", DurationDays: days(7)}
}

func fieldNames(err error) []string {
	var fe validation.FieldErrors
	if !errors.As(err, &fe) {
		return nil
	}
	out := make([]string, len(fe))
	for i, f := range fe {
		out[i] = f.Field
	}
	return out
}

// -- Medication Tests --

func TestService_CreateMedication(t *testing.T) {
	svc := newTestService()
	m := &Medication{Name: " Paracetamol ", ActiveIngredient: "paracetamol", Concentration: strp("500 mg")}

	if err := svc.CreateMedication(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name != "Paracetamol" || !m.Active {
		t.Errorf("unexpected medication %+v", m)
	}
}

func TestService_CreateMedication_Invalid(t *testing.T) {
	svc := newTestService()
	m := &Medication{Name: "Ibuprofeno", Route: strp("telepathic")}

	got := fieldNames(svc.CreateMedication(context.Background(), m))
	if len(got) != 2 || got[0] != "active_ingredient" || got[1] != "route" {
		t.Errorf("unexpected field errors %v", got)
	}
}

func TestService_DeleteMedication_NotFound(t *testing.T) {
	svc := newTestService()
	if err := svc.DeleteMedication(context.Background(), uuid.New()); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// -- Prescription Tests --

func TestService_CreatePrescription(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	amox := f.addMedication(t, "Amoxicilina")
	para := f.addMedication(t, "Paracetamol")

	p := newPrescription(item(amox.ID), item(para.ID))
	if err := f.svc.CreatePrescription(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != PrescriptionActive || p.IssuedAt.IsZero() {
		t.Errorf("expected defaults, got status=%s issued_at=%v", p.Status, p.IssuedAt)
	}
	if !f.tx.committed {
		t.Error("expected the transaction to be committed")
	}

	got, err := f.svc.GetPrescription(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].Dose != "500 mg" || got.Items[0].PrescriptionID != p.ID {
		t.Errorf("unexpected items %+v", got.Items)
	}
}

func TestService_CreatePrescription_ItemsFailureRollsBack(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, "Losartán")
	f.rxs.itemsErr = db.ErrInvalidReference

	err := f.svc.CreatePrescription(context.Background(), newPrescription(item(med.ID)))
	if !errors.Is(err, db.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if f.tx.committed || !f.tx.rolledBack {
		t.Error("expected the transaction to be rolled back")
	}
}

func TestService_CreatePrescription_NoItems(t *testing.T) {
	svc := newTestService()
	got := fieldNames(svc.CreatePrescription(context.Background(), newPrescription()))
	if len(got) != 1 || got[0] != "items" {
		t.Errorf("expected items error, got %v", got)
	}
}

func TestService_CreatePrescription_InvalidItem(t *testing.T) {
	svc := newTestService()
	p := newPrescription(PrescriptionItem{MedicationID: uuid.New(), Dose: "1 comprimido", DurationDays: days(0)})
	p.Items[0].DurationDays = days(400)

	got := fieldNames(svc.CreatePrescription(context.Background(), p))
	if len(got) != 2 || got[0] != "items[0].frequency" || got[1] != "items[0].duration_days" {
		t.Errorf("unexpected field errors %v", got)
	}
}

func TestService_CreatePrescription_UnknownOrInactiveMedication(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	retired := f.addMedication(t, "Metamizol")
	retired.Active = false
	f.svc.UpdateMedication(ctx, retired)

	p := newPrescription(item(uuid.New()), item(retired.ID))
	err := f.svc.CreatePrescription(ctx, p)

	var fe validation.FieldErrors
	if !errors.As(err, &fe) || len(fe) != 2 {
		t.Fatalf("expected 2 field errors, got %v", err)
	}
	if fe[0].Field != "items[0].medication_id" || fe[0].Message != "unknown medication" {
		t.Errorf("unexpected first error %+v", fe[0])
	}
	if fe[1].Field != "items[1].medication_id" || fe[1].Message != "medication is not active" {
		t.Errorf("unexpected second error %+v", fe[1])
	}
}

func TestService_CreatePrescription_FutureIssuedAt(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, "Omeprazol")
	p := newPrescription(item(med.ID))
	p.IssuedAt = time.Now().Add(72 * time.Hour)

	if got := fieldNames(f.svc.CreatePrescription(context.Background(), p)); len(got) != 1 || got[0] != "issued_at" {
		t.Errorf("expected issued_at error, got %v", got)
	}
}

func TestService_UpdatePrescription_ReplacesItems(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.addMedication(t, "Atorvastatina")
	b := f.addMedication(t, "Aspirina")

	p := newPrescription(item(a.ID))
	f.svc.CreatePrescription(ctx, p)
	issued := p.IssuedAt

	upd := &Prescription{ID: p.ID, PatientID: p.PatientID, DoctorID: p.DoctorID, Items: []PrescriptionItem{item(b.ID), item(a.ID)}}
	if err := f.svc.UpdatePrescription(ctx, upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.svc.GetPrescription(ctx, p.ID)
	if len(got.Items) != 2 || got.Items[0].MedicationID != b.ID {
		t.Errorf("expected replaced items, got %+v", got.Items)
	}
	if !got.IssuedAt.Equal(issued) {
		t.Errorf("expected issued_at to be kept, got %v", got.IssuedAt)
	}
}

func TestService_UpdatePrescription_CannotCloseThroughUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	med := f.addMedication(t, "Losartán")
	p := newPrescription(item(med.ID))
	f.svc.CreatePrescription(ctx, p)

	upd := &Prescription{ID: p.ID, PatientID: p.PatientID, DoctorID: p.DoctorID, Status: PrescriptionCancelled, Items: []PrescriptionItem{item(med.ID)}}
	names := fieldNames(f.svc.UpdatePrescription(ctx, upd))
	if len(names) != 1 || names[0] != "status" {
		t.Fatalf("expected status error, got %v", names)
	}
	got, _ := f.svc.GetPrescription(ctx, p.ID)
	if got.Status != PrescriptionActive {
		t.Errorf("expected prescription to stay active, got %s", got.Status)
	}
}

func TestService_CreatePrescription_MustStartActive(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, "Metformina")
	p := newPrescription(item(med.ID))
	p.Status = PrescriptionCompleted

	names := fieldNames(f.svc.CreatePrescription(context.Background(), p))
	if len(names) != 1 || names[0] != "status" {
		t.Errorf("expected status error, got %v", names)
	}
}

func TestService_SetPrescriptionStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	med := f.addMedication(t, "Salbutamol")
	p := newPrescription(item(med.ID))
	f.svc.CreatePrescription(ctx, p)

	done, err := f.svc.SetPrescriptionStatus(ctx, p.ID, PrescriptionCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Status != PrescriptionCompleted || len(done.Items) != 1 {
		t.Errorf("unexpected prescription %+v", done)
	}

	if _, err := f.svc.SetPrescriptionStatus(ctx, p.ID, PrescriptionCancelled); fieldNames(err) == nil {
		t.Error("expected a completed prescription to be final")
	}
	upd := &Prescription{ID: p.ID, PatientID: p.PatientID, DoctorID: p.DoctorID, Items: []PrescriptionItem{item(med.ID)}}
	if err := f.svc.UpdatePrescription(ctx, upd); fieldNames(err) == nil {
		t.Error("expected editing a completed prescription to fail")
	}
}

func TestService_SetPrescriptionStatus_Invalid(t *testing.T) {
	svc := newTestService()
	if _, err := svc.SetPrescriptionStatus(context.Background(), uuid.New(), PrescriptionActive); fieldNames(err) == nil {
		t.Errorf("expected status error, got %v", err)
	}
	if _, err := svc.SetPrescriptionStatus(context.Background(), uuid.New(), PrescriptionCancelled); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ListPrescriptionsByPatient(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	med := f.addMedication(t, "Loratadina")

	p1 := newPrescription(item(med.ID))
	p2 := newPrescription(item(med.ID))
	p2.PatientID = p1.PatientID
	f.svc.CreatePrescription(ctx, p1)
	f.svc.CreatePrescription(ctx, p2)
	f.svc.CreatePrescription(ctx, newPrescription(item(med.ID)))

	items, total, err := f.svc.ListPrescriptionsByPatient(ctx, p1.PatientID, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items[0].Items) != 1 {
		t.Errorf("expected 2 prescriptions with items, got %d", total)
	}
}

func TestService_PrescriptionEvents(t *testing.T) {
	var got []string
	pub := events.PublisherFunc(func(_ context.Context, ev events.Event) error {
		got = append(got, ev.Type)
		return nil
	})
	meds := newMockMedRepo()
	svc := NewService(meds, newMockRxRepo(), nil, events.NewEmitter(pub, zerolog.Nop()))
	ctx := context.Background()

	med := &Medication{Name: "Enalapril", ActiveIngredient: "enalapril"}
	svc.CreateMedication(ctx, med)
	p := newPrescription(item(med.ID))
	svc.CreatePrescription(ctx, p)
	svc.SetPrescriptionStatus(ctx, p.ID, PrescriptionCancelled)
	svc.DeletePrescription(ctx, p.ID)

	want := []string{"medications.created", "prescriptions.created", "prescriptions.updated", "prescriptions.deleted"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}
