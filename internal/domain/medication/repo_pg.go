package medication

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrec/medrec/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func connFor(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// -- Medication Repository --

type medicationRepoPG struct {
	pool *pgxpool.Pool
}

func NewMedicationRepo(pool *pgxpool.Pool) MedicationRepository {
	return &medicationRepoPG{pool: pool}
}

func (r *medicationRepoPG) conn(ctx context.Context) querier {
	return connFor(ctx, r.pool)
}

const medCols = `id, name, active_ingredient, presentation, concentration, route, active,
	created_at, updated_at`

var medicationFilters = map[string]db.Filter{
	"name":              {Kind: db.FilterContains, Column: "name"},
	"active_ingredient": {Kind: db.FilterContains, Column: "active_ingredient"},
	"presentation":      {Kind: db.FilterExact, Column: "presentation"},
	"route":             {Kind: db.FilterExact, Column: "route"},
	"active":            {Kind: db.FilterBool, Column: "active"},
}

func (r *medicationRepoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medication (id, name, active_ingredient, presentation, concentration, route, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		m.ID, m.Name, m.ActiveIngredient, m.Presentation, m.Concentration, m.Route, m.Active,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("medication create: %w", db.MapError(err))
	}
	return nil
}

func (r *medicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := scanMedication(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medication WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("medication get by id: %w", db.MapError(err))
	}
	return m, nil
}

func (r *medicationRepoPG) Update(ctx context.Context, m *Medication) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medication SET
			name=$2, active_ingredient=$3, presentation=$4, concentration=$5, route=$6,
			active=$7, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		m.ID, m.Name, m.ActiveIngredient, m.Presentation, m.Concentration, m.Route, m.Active,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("medication update: %w", db.MapError(err))
	}
	return nil
}

// Delete fails with db.ErrInvalidReference while prescriptions still name
// the medication.
func (r *medicationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medication WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("medication delete: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("medication delete: %w", db.ErrNotFound)
	}
	return nil
}

func (r *medicationRepoPG) List(ctx context.Context, limit, offset int) ([]*Medication, int, error) {
	return r.Search(ctx, nil, limit, offset)
}

func (r *medicationRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Medication, int, error) {
	q := db.NewQuery("medication", medCols)
	if err := q.Apply(params, medicationFilters); err != nil {
		return nil, 0, err
	}
	q.OrderBy("name")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("medication count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("medication search: %w", err)
	}
	defer rows.Close()

	var items []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("medication scan: %w", err)
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.Name, &m.ActiveIngredient, &m.Presentation, &m.Concentration, &m.Route,
		&m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// -- Prescription Repository --

type prescriptionRepoPG struct {
	pool *pgxpool.Pool
}

func NewPrescriptionRepo(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) querier {
	return connFor(ctx, r.pool)
}

const rxCols = `id, patient_id, doctor_id, consultation_id, issued_at, status, notes,
	created_at, updated_at`

const itemCols = `id, prescription_id, medication_id, dose, frequency, duration_days, instructions`

var prescriptionFilters = map[string]db.Filter{
	"patient_id":      {Kind: db.FilterUUID, Column: "patient_id"},
	"doctor_id":       {Kind: db.FilterUUID, Column: "doctor_id"},
	"consultation_id": {Kind: db.FilterUUID, Column: "consultation_id"},
	"status":          {Kind: db.FilterExact, Column: "status"},
	"issued_from":     {Kind: db.FilterFrom, Column: "issued_at"},
	"issued_to":       {Kind: db.FilterTo, Column: "issued_at"},
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription (id, patient_id, doctor_id, consultation_id, issued_at, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.DoctorID, p.ConsultationID, p.IssuedAt, p.Status, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("prescription create: %w", db.MapError(err))
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescription WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("prescription get by id: %w", db.MapError(err))
	}
	if err := r.loadItems(ctx, []*Prescription{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE prescription SET
			patient_id=$2, doctor_id=$3, consultation_id=$4, issued_at=$5, status=$6, notes=$7,
			updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.DoctorID, p.ConsultationID, p.IssuedAt, p.Status, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("prescription update: %w", db.MapError(err))
	}
	return nil
}

// Delete removes the prescription; items go with it through ON DELETE CASCADE.
func (r *prescriptionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescription WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("prescription delete: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("prescription delete: %w", db.ErrNotFound)
	}
	return nil
}

func (r *prescriptionRepoPG) ReplaceItems(ctx context.Context, prescriptionID uuid.UUID, items []PrescriptionItem) error {
	c := r.conn(ctx)
	if _, err := c.Exec(ctx, `DELETE FROM prescription_item WHERE prescription_id = $1`, prescriptionID); err != nil {
		return fmt.Errorf("prescription items delete: %w", db.MapError(err))
	}
	for i := range items {
		it := &items[i]
		it.ID = uuid.New()
		it.PrescriptionID = prescriptionID
		_, err := c.Exec(ctx, `
			INSERT INTO prescription_item (`+itemCols+`, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			it.ID, it.PrescriptionID, it.MedicationID, it.Dose, it.Frequency, it.DurationDays, it.Instructions, i,
		)
		if err != nil {
			return fmt.Errorf("prescription item insert: %w", db.MapError(err))
		}
	}
	return nil
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.Search(ctx, map[string]string{"patient_id": patientID.String()}, limit, offset)
}

func (r *prescriptionRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error) {
	q := db.NewQuery("prescription", rxCols)
	if err := q.Apply(params, prescriptionFilters); err != nil {
		return nil, 0, err
	}
	q.OrderBy("issued_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("prescription count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("prescription search: %w", err)
	}
	defer rows.Close()

	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("prescription scan: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadItems(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// loadItems fills Items for every prescription in one query.
func (r *prescriptionRepoPG) loadItems(ctx context.Context, rxs []*Prescription) error {
	if len(rxs) == 0 {
		return nil
	}
	ids := make([]string, len(rxs))
	byID := make(map[uuid.UUID]*Prescription, len(rxs))
	for i, p := range rxs {
		ids[i] = p.ID.String()
		p.Items = []PrescriptionItem{}
		byID[p.ID] = p
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+itemCols+` FROM prescription_item
		WHERE prescription_id = ANY($1::uuid[])
		ORDER BY prescription_id, position`, ids)
	if err != nil {
		return fmt.Errorf("prescription items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it PrescriptionItem
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.MedicationID, &it.Dose, &it.Frequency,
			&it.DurationDays, &it.Instructions); err != nil {
			return fmt.Errorf("prescription item scan: %w", err)
		}
		if p, ok := byID[it.PrescriptionID]; ok {
			p.Items = append(p.Items, it)
		}
	}
	return rows.Err()
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.ConsultationID, &p.IssuedAt, &p.Status, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
