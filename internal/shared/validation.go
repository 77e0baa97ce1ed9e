package shared

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
)

// NewValidator returns a validator reporting fields by their json names, with the
// strongpassword rule registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// StrongPassword reports whether p contains an upper-case ASCII letter, a digit and a
// character that is neither.
func StrongPassword(p string) bool {
	var upper, digit, special bool
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
		default:
			special = true
		}
	}
	return upper && digit && special
}

// ValidateStruct runs v over s and converts failures into an *httpx.ValidationError.
func ValidateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &httpx.ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "eqfield":
		return "does not match"
	case "strongpassword":
		return "must contain an upper-case letter, a digit and a special character"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt", "gte":
		return "must be greater than " + fe.Param()
	case "isodate":
		return "must be a date formatted as YYYY-MM-DD"
	case "hexcolor":
		return "must be a hex color"
	default:
		return "is invalid"
	}
}
