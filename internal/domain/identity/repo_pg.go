package identity

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

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) querier {
	return connFor(ctx, r.pool)
}

const patientCols = `id, rut, first_name, last_name, birth_date, sex, blood_type,
	phone, email, address, allergies, active, created_at, updated_at`

var patientSearchFilters = map[string]db.Filter{
	"rut":        {Kind: db.FilterExact, Column: "rut"},
	"first_name": {Kind: db.FilterContains, Column: "first_name"},
	"last_name":  {Kind: db.FilterContains, Column: "last_name"},
	"sex":        {Kind: db.FilterExact, Column: "sex"},
	"blood_type": {Kind: db.FilterExact, Column: "blood_type"},
	"active":     {Kind: db.FilterBool, Column: "active"},
	"born_from":  {Kind: db.FilterFrom, Column: "birth_date"},
	"born_to":    {Kind: db.FilterTo, Column: "birth_date"},
}

var patientSort = map[string]string{
	"name":       "last_name",
	"birth_date": "birth_date",
	"created_at": "created_at",
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			id, rut, first_name, last_name, birth_date, sex, blood_type,
			phone, email, address, allergies, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		p.ID, p.RUT, p.FirstName, p.LastName, p.BirthDate, p.Sex, p.BloodType,
		p.Phone, p.Email, p.Address, p.Allergies, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patient create: %w", db.MapError(err))
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("patient get by id: %w", db.MapError(err))
	}
	return p, nil
}

func (r *patientRepoPG) GetByRUT(ctx context.Context, rut string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE rut = $1`, rut))
	if err != nil {
		return nil, fmt.Errorf("patient get by rut: %w", db.MapError(err))
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET
			rut=$2, first_name=$3, last_name=$4, birth_date=$5, sex=$6, blood_type=$7,
			phone=$8, email=$9, address=$10, allergies=$11, active=$12, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.RUT, p.FirstName, p.LastName, p.BirthDate, p.Sex, p.BloodType,
		p.Phone, p.Email, p.Address, p.Allergies, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patient update: %w", db.MapError(err))
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("patient delete: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patient delete: %w", db.ErrNotFound)
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.Search(ctx, nil, limit, offset)
}

func (r *patientRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	q := db.NewQuery("patient", patientCols)
	if name := params["name"]; name != "" {
		pattern := "%" + name + "%"
		q.Where("(first_name ILIKE ? OR last_name ILIKE ?)", pattern, pattern)
	}
	if err := q.Apply(params, patientSearchFilters); err != nil {
		return nil, 0, err
	}
	q.Sort(params["_sort"], "last_name, first_name", patientSort)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patient count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("patient search: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("patient scan: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

// pgx.Rows satisfies pgx.Row, so one scanner serves QueryRow and Query.
func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.RUT, &p.FirstName, &p.LastName, &p.BirthDate, &p.Sex, &p.BloodType,
		&p.Phone, &p.Email, &p.Address, &p.Allergies, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) querier {
	return connFor(ctx, r.pool)
}

const doctorCols = `id, rut, first_name, last_name, specialty, license_number,
	phone, email, active, created_at, updated_at`

var doctorSearchFilters = map[string]db.Filter{
	"rut":       {Kind: db.FilterExact, Column: "rut"},
	"specialty": {Kind: db.FilterContains, Column: "specialty"},
	"active":    {Kind: db.FilterBool, Column: "active"},
}

var doctorSort = map[string]string{
	"name":       "last_name",
	"specialty":  "specialty",
	"created_at": "created_at",
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (
			id, rut, first_name, last_name, specialty, license_number, phone, email, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		d.ID, d.RUT, d.FirstName, d.LastName, d.Specialty, d.LicenseNumber, d.Phone, d.Email, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("doctor create: %w", db.MapError(err))
	}
	return nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("doctor get by id: %w", db.MapError(err))
	}
	return d, nil
}

func (r *doctorRepoPG) GetByRUT(ctx context.Context, rut string) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE rut = $1`, rut))
	if err != nil {
		return nil, fmt.Errorf("doctor get by rut: %w", db.MapError(err))
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor SET
			rut=$2, first_name=$3, last_name=$4, specialty=$5, license_number=$6,
			phone=$7, email=$8, active=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.RUT, d.FirstName, d.LastName, d.Specialty, d.LicenseNumber, d.Phone, d.Email, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("doctor update: %w", db.MapError(err))
	}
	return nil
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("doctor delete: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("doctor delete: %w", db.ErrNotFound)
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return r.Search(ctx, nil, limit, offset)
}

func (r *doctorRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	q := db.NewQuery("doctor", doctorCols)
	if name := params["name"]; name != "" {
		pattern := "%" + name + "%"
		q.Where("(first_name ILIKE ? OR last_name ILIKE ?)", pattern, pattern)
	}
	if err := q.Apply(params, doctorSearchFilters); err != nil {
		return nil, 0, err
	}
	q.Sort(params["_sort"], "last_name, first_name", doctorSort)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("doctor count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("doctor search: %w", err)
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("doctor scan: %w", err)
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID, &d.RUT, &d.FirstName, &d.LastName, &d.Specialty, &d.LicenseNumber,
		&d.Phone, &d.Email, &d.Active, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
