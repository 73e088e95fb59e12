package consultation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrec/medrec/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const consultationCols = `id, patient_id, doctor_id, scheduled_at, reason, diagnosis, notes, status,
	weight_kg, height_cm, systolic, diastolic, bmi, bmi_category, bp_category,
	created_at, updated_at`

var searchFilters = map[string]db.Filter{
	"patient_id": {Kind: db.FilterUUID, Column: "patient_id"},
	"doctor_id":  {Kind: db.FilterUUID, Column: "doctor_id"},
	"status":     {Kind: db.FilterExact, Column: "status"},
	"reason":     {Kind: db.FilterContains, Column: "reason"},
	"diagnosis":  {Kind: db.FilterContains, Column: "diagnosis"},
	"from":       {Kind: db.FilterFrom, Column: "scheduled_at"},
	"to":         {Kind: db.FilterTo, Column: "scheduled_at"},
}

var sortColumns = map[string]string{
	"scheduled_at": "scheduled_at",
	"created_at":   "created_at",
}

func (r *repoPG) Create(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultation (
			id, patient_id, doctor_id, scheduled_at, reason, diagnosis, notes, status,
			weight_kg, height_cm, systolic, diastolic, bmi, bmi_category, bp_category
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.DoctorID, c.ScheduledAt, c.Reason, c.Diagnosis, c.Notes, c.Status,
		c.WeightKg, c.HeightCm, c.Systolic, c.Diastolic, c.BMI, c.BMICategory, c.BloodPressureCategory,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("consultation create: %w", db.MapError(err))
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx, `SELECT `+consultationCols+` FROM consultation WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("consultation get by id: %w", db.MapError(err))
	}
	return c, nil
}

func (r *repoPG) Update(ctx context.Context, c *Consultation) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE consultation SET
			patient_id=$2, doctor_id=$3, scheduled_at=$4, reason=$5, diagnosis=$6, notes=$7, status=$8,
			weight_kg=$9, height_cm=$10, systolic=$11, diastolic=$12, bmi=$13, bmi_category=$14,
			bp_category=$15, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.DoctorID, c.ScheduledAt, c.Reason, c.Diagnosis, c.Notes, c.Status,
		c.WeightKg, c.HeightCm, c.Systolic, c.Diastolic, c.BMI, c.BMICategory, c.BloodPressureCategory,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("consultation update: %w", db.MapError(err))
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM consultation WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("consultation delete: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("consultation delete: %w", db.ErrNotFound)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Consultation, int, error) {
	return r.Search(ctx, nil, limit, offset)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	return r.Search(ctx, map[string]string{"patient_id": patientID.String()}, limit, offset)
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Consultation, int, error) {
	q := db.NewQuery("consultation", consultationCols)
	if err := q.Apply(params, searchFilters); err != nil {
		return nil, 0, err
	}
	q.Sort(params["_sort"], "scheduled_at DESC", sortColumns)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("consultation count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("consultation search: %w", err)
	}
	defer rows.Close()

	var items []*Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("consultation scan: %w", err)
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(
		&c.ID, &c.PatientID, &c.DoctorID, &c.ScheduledAt, &c.Reason, &c.Diagnosis, &c.Notes, &c.Status,
		&c.WeightKg, &c.HeightCm, &c.Systolic, &c.Diastolic, &c.BMI, &c.BMICategory, &c.BloodPressureCategory,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
