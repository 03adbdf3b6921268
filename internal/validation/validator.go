// Package validation checks search and claim requests with validator/v10 and
// converts failures to VALIDATION domain errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the pipeline's custom tags registered:
// doctype (a known domain.DocumentType) and langtag (a 2 or 3 letter code).
// It panics if a tag cannot be registered.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	tags := map[string]validator.Func{
		"doctype": func(fl validator.FieldLevel) bool {
			return domain.DocumentType(fl.Field().String()).IsValid()
		},
		"langtag": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if len(s) != 2 && len(s) != 3 {
				return false
			}
			for _, r := range s {
				if r < 'a' || r > 'z' {
					return false
				}
			}
			return true
		},
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", tag, err))
		}
	}

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to a VALIDATION error whose details
// map field names to messages.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors[e.Namespace()[strings.IndexByte(e.Namespace(), '.')+1:]] = friendlyMessage(e)
	}

	fields := make([]string, 0, len(fieldErrors))
	for f := range fieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + " " + fieldErrors[f]
	}

	return domainerrors.ValidationWithDetails("invalid request: "+strings.Join(parts, "; "), fieldErrors)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	case "gtefield":
		return "must be greater than or equal to " + e.Param()
	case "ltefield":
		return "must be less than or equal to " + e.Param()
	case "doctype":
		return "must be a known document type"
	case "langtag":
		return "must be a 2 or 3 letter language code"
	default:
		return "is invalid"
	}
}
