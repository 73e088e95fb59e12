package identity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. RUT is stored in canonical form
// (12.345.678-5) and is unique.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	RUT       string     `db:"rut" json:"rut" validate:"required,rut"`
	FirstName string     `db:"first_name" json:"first_name" validate:"required,max=100"`
	LastName  string     `db:"last_name" json:"last_name" validate:"required,max=100"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty" validate:"omitempty,notfuture"`
	Sex       *string    `db:"sex" json:"sex,omitempty" validate:"omitempty,oneof=female male other"`
	BloodType *string    `db:"blood_type" json:"blood_type,omitempty" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Phone     *string    `db:"phone" json:"phone,omitempty" validate:"omitempty,max=30"`
	Email     *string    `db:"email" json:"email,omitempty" validate:"omitempty,email,max=255"`
	Address   *string    `db:"address" json:"address,omitempty" validate:"omitempty,max=255"`
	Allergies []string   `db:"allergies" json:"allergies" validate:"omitempty,dive,required,max=100"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// MarshalJSON adds the derived full_name and age (omitted when the birth date
// is unknown).
func (p Patient) MarshalJSON() ([]byte, error) {
	type patient Patient
	out := struct {
		patient
		FullName string `json:"full_name"`
		Age      *int   `json:"age,omitempty"`
	}{patient: patient(p), FullName: p.FullName()}
	if age := p.Age(time.Now()); age >= 0 {
		out.Age = &age
	}
	return json.Marshal(out)
}

// Age returns the patient's age in whole years at now, or -1 when the birth
// date is unknown.
func (p *Patient) Age(now time.Time) int {
	if p.BirthDate == nil {
		return -1
	}
	return yearsBetween(*p.BirthDate, now)
}

// Doctor maps to the doctor table.
type Doctor struct {
	ID            uuid.UUID `db:"id" json:"id"`
	RUT           string    `db:"rut" json:"rut" validate:"required,rut"`
	FirstName     string    `db:"first_name" json:"first_name" validate:"required,max=100"`
	LastName      string    `db:"last_name" json:"last_name" validate:"required,max=100"`
	Specialty     string    `db:"specialty" json:"specialty" validate:"required,max=100"`
	LicenseNumber *string   `db:"license_number" json:"license_number,omitempty" validate:"omitempty,max=50"`
	Phone         *string   `db:"phone" json:"phone,omitempty" validate:"omitempty,max=30"`
	Email         *string   `db:"email" json:"email,omitempty" validate:"omitempty,email,max=255"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

func (d *Doctor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// MarshalJSON adds the derived full_name.
func (d Doctor) MarshalJSON() ([]byte, error) {
	type doctor Doctor
	return json.Marshal(struct {
		doctor
		FullName string `json:"full_name"`
	}{doctor: doctor(d), FullName: d.FullName()})
}

func yearsBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	return years
}
