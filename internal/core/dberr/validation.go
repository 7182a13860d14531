package dberr

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FromValidation converts validator errors into a KindValidation error naming
// the first offending field. Other errors are wrapped as validation failures
// without a field.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Kind: KindValidation, Message: "invalid input", Err: err}
	}

	fe := verrs[0]
	return &Error{
		Kind:    KindValidation,
		Field:   fe.Field(),
		Message: describe(fe),
		Err:     err,
	}
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "slug":
		return fmt.Sprintf("%s must contain only lowercase letters, numbers and hyphens", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
