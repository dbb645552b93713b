// Package validation checks request structs against their validate tags and
// turns the first failure into a CodeValidation domain error.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "usersapi/pkg/domain-errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// notblank rejects whitespace-only values, which required lets through.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate returns nil or a CodeValidation error describing the first failed field.
func Validate(req any) error {
	if err := validate.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, message(err))
	}
	return nil
}

func message(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request body"
	}

	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.ActualTag() {
	case "required":
		return field + " is required"
	case "notblank":
		return field + " must not be blank"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
