package exam

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

const examCols = `id, patient_id, consultation_id, doctor_id, category, name, status,
	requested_at, result, result_date, notes, created_at, updated_at`

var searchFilters = map[string]db.Filter{
	"patient_id":      {Kind: db.FilterUUID, Column: "patient_id"},
	"consultation_id": {Kind: db.FilterUUID, Column: "consultation_id"},
	"doctor_id":       {Kind: db.FilterUUID, Column: "doctor_id"},
	"category":        {Kind: db.FilterExact, Column: "category"},
	"status":          {Kind: db.FilterExact, Column: "status"},
	"name":            {Kind: db.FilterContains, Column: "name"},
	"requested_from":  {Kind: db.FilterFrom, Column: "requested_at"},
	"requested_to":    {Kind: db.FilterTo, Column: "requested_at"},
}

var sortColumns = map[string]string{
	"requested_at": "requested_at",
	"result_date":  "result_date",
	"name":         "name",
}

func (r *repoPG) Create(ctx context.Context, e *Exam) error {
	e.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO exam (
			id, patient_id, consultation_id, doctor_id, category, name, status,
			requested_at, result, result_date, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		e.ID, e.PatientID, e.ConsultationID, e.DoctorID, e.Category, e.Name, e.Status,
		e.RequestedAt, e.Result, e.ResultDate, e.Notes,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("exam create: %w", db.MapError(err))
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Exam, error) {
	e, err := scanExam(r.conn(ctx).QueryRow(ctx, `SELECT `+examCols+` FROM exam WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("exam get by id: %w", db.MapError(err))
	}
	return e, nil
}

func (r *repoPG) Update(ctx context.Context, e *Exam) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE exam SET
			patient_id=$2, consultation_id=$3, doctor_id=$4, category=$5, name=$6, status=$7,
			requested_at=$8, result=$9, result_date=$10, notes=$11, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		e.ID, e.PatientID, e.ConsultationID, e.DoctorID, e.Category, e.Name, e.Status,
		e.RequestedAt, e.Result, e.ResultDate, e.Notes,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("exam update: %w", db.MapError(err))
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM exam WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("exam delete: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("exam delete: %w", db.ErrNotFound)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Exam, int, error) {
	return r.Search(ctx, nil, limit, offset)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Exam, int, error) {
	return r.Search(ctx, map[string]string{"patient_id": patientID.String()}, limit, offset)
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Exam, int, error) {
	q := db.NewQuery("exam", examCols)
	if err := q.Apply(params, searchFilters); err != nil {
		return nil, 0, err
	}
	q.Sort(params["_sort"], "requested_at DESC", sortColumns)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("exam count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("exam search: %w", err)
	}
	defer rows.Close()

	var items []*Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("exam scan: %w", err)
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func scanExam(row pgx.Row) (*Exam, error) {
	var e Exam
	err := row.Scan(
		&e.ID, &e.PatientID, &e.ConsultationID, &e.DoctorID, &e.Category, &e.Name, &e.Status,
		&e.RequestedAt, &e.Result, &e.ResultDate, &e.Notes, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
