package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/medrec/medrec/internal/platform/events"
	"github.com/medrec/medrec/internal/platform/validation"
	"github.com/medrec/medrec/pkg/rut"
)

type Service struct {
	patients PatientRepository
	doctors  DoctorRepository
	validate *validation.Validator
	events   *events.Emitter
}

// NewService wires the repositories. emitter may be nil.
func NewService(patients PatientRepository, doctors DoctorRepository, emitter *events.Emitter) *Service {
	return &Service{
		patients: patients,
		doctors:  doctors,
		validate: validation.New(),
		events:   emitter,
	}
}

// canonicalRUT validates raw and returns its canonical rendering, or the
// validation failure as a field error.
func canonicalRUT(raw string) (string, error) {
	res := rut.Validate(raw)
	if !res.Valid {
		return "", validation.Invalid("rut", res.Err.Error())
	}
	return res.Formatted, nil
}

// rutFilter canonicalizes the rut search parameter in place. A blank value
// means no filter, as with every other search parameter.
func rutFilter(params map[string]string) error {
	raw, ok := params["rut"]
	if !ok {
		return nil
	}
	if strings.TrimSpace(raw) == "" {
		delete(params, "rut")
		return nil
	}
	canonical, err := canonicalRUT(raw)
	if err != nil {
		return err
	}
	params["rut"] = canonical
	return nil
}

// -- Patient --

func (s *Service) preparePatient(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if err := s.validate.Struct(p); err != nil {
		return err
	}
	p.RUT = rut.Format(p.RUT)
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.preparePatient(p); err != nil {
		return err
	}
	p.Active = true
	if err := s.patients.Create(ctx, p); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicPatients, events.ActionCreated, p.ID.String(), p)
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// GetPatientByRUT accepts the RUT in any spelling (with or without dots and
// hyphen, lower case k).
func (s *Service) GetPatientByRUT(ctx context.Context, raw string) (*Patient, error) {
	canonical, err := canonicalRUT(raw)
	if err != nil {
		return nil, err
	}
	return s.patients.GetByRUT(ctx, canonical)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := s.preparePatient(p); err != nil {
		return err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicPatients, events.ActionUpdated, p.ID.String(), p)
	return nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.patients.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicPatients, events.ActionDeleted, id.String(), nil)
	return nil
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) SearchPatients(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	if err := rutFilter(params); err != nil {
		return nil, 0, err
	}
	return s.patients.Search(ctx, params, limit, offset)
}

// -- Doctor --

func (s *Service) prepareDoctor(d *Doctor) error {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Specialty = strings.TrimSpace(d.Specialty)
	if err := s.validate.Struct(d); err != nil {
		return err
	}
	d.RUT = rut.Format(d.RUT)
	return nil
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := s.prepareDoctor(d); err != nil {
		return err
	}
	d.Active = true
	if err := s.doctors.Create(ctx, d); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicDoctors, events.ActionCreated, d.ID.String(), d)
	return nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) GetDoctorByRUT(ctx context.Context, raw string) (*Doctor, error) {
	canonical, err := canonicalRUT(raw)
	if err != nil {
		return nil, err
	}
	return s.doctors.GetByRUT(ctx, canonical)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if err := s.prepareDoctor(d); err != nil {
		return err
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicDoctors, events.ActionUpdated, d.ID.String(), d)
	return nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if err := s.doctors.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Emit(ctx, events.TopicDoctors, events.ActionDeleted, id.String(), nil)
	return nil
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

func (s *Service) SearchDoctors(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	if err := rutFilter(params); err != nil {
		return nil, 0, err
	}
	return s.doctors.Search(ctx, params, limit, offset)
}
