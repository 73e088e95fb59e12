// Package validation evaluates the declarative field rules attached to record
// structs through `validate` tags before they are persisted.
//
// Besides the stock validator tags it registers:
//
//	rut        the field is a RUT whose check digit matches its body
//	notfuture  a time.Time (or *time.Time) that is not after now
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/medrec/medrec/pkg/rut"
)

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is returned by Struct when one or more rules fail.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Field + " " + e.Message
	}
	return strings.Join(parts, "; ")
}

// Invalid builds a single-field failure for rules that cannot be expressed as
// tags, such as state transitions.
func Invalid(field, message string) FieldErrors {
	return FieldErrors{{Field: field, Message: message}}
}

// Validator wraps a configured validator.Validate. It satisfies echo.Validator.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

func New() *Validator {
	val := &Validator{v: validator.New(validator.WithRequiredStructEnabled()), now: time.Now}

	val.v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// Registration only fails on empty tag names or nil funcs.
	_ = val.v.RegisterValidation("rut", func(fl validator.FieldLevel) bool {
		return rut.Validate(fl.Field().String()).Valid
	})
	_ = val.v.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return !t.After(val.now())
	})

	return val
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i interface{}) error {
	return v.Struct(i)
}

// Struct runs every rule on s and collects failures into FieldErrors.
func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return out
}

// fieldPath drops the root struct name: "Prescription.items[0].dose" -> "items[0].dose".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " element(s) or character(s)"
	case "max":
		return "must have at most " + fe.Param() + " element(s) or character(s)"
	case "email":
		return "must be a valid email address"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "notfuture":
		return "must not be in the future"
	case "rut":
		var s string
		switch val := fe.Value().(type) {
		case string:
			s = val
		case *string:
			if val != nil {
				s = *val
			}
		}
		if err := rut.Validate(s).Err; err != nil {
			return err.Error()
		}
		return "must be a valid RUT"
	default:
		return fmt.Sprintf("failed %q rule", fe.Tag())
	}
}
