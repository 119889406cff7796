// Package validation adapts go-playground/validator struct tags to apperr.ValidationError.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/harmony-hq/harmony/platform/go/apperr"
)

var (
	monthPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
	yearPattern  = regexp.MustCompile(`^[0-9]{4}$`)
	clockPattern = regexp.MustCompile(`^$|^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// Validator validates request and domain structs.
type Validator struct {
	validate *validator.Validate
}

// New returns a Validator that reports fields by their json names and knows the
// Harmony-specific tags: month ("01".."12"), year ("YYYY"), clock ("HH:MM" or empty).
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	mustRegister(v, "month", monthPattern)
	mustRegister(v, "year", yearPattern)
	mustRegister(v, "clock", clockPattern)
	return &Validator{validate: v}
}

// Struct validates s and returns *apperr.ValidationError on failure.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := apperr.FieldErrors{}
	for _, fe := range verrs {
		fields.Add(fieldPath(fe), message(fe))
	}
	return &apperr.ValidationError{Fields: fields}
}

func mustRegister(v *validator.Validate, tag string, pattern *regexp.Regexp) {
	if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// fieldPath drops the root struct name: "CreateInput.workers[0].name" -> "workers[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "email":
		return "must be a valid email"
	case "uuid", "uuid4":
		return "must be a valid uuid"
	case "month":
		return "must be a zero padded month (01-12)"
	case "year":
		return "must be a four digit year"
	case "clock":
		return "must be HH:MM"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
