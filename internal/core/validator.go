package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cardsignup/internal/types"
)

// Validator wraps go-playground/validator and maps field failures onto
// validation error codes.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator. Field names in errors use the JSON tag.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// ValidateSignup checks a decoded SignupRequest. The first failing field
// decides the error code; all failing fields are listed in Details.
func (v *Validator) ValidateSignup(req *types.SignupRequest) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request could not be validated", err)
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s:%s", fe.Namespace(), fe.Tag()))
	}

	first := fieldErrs[0]
	return types.NewAppErrorWithDetails(
		codeForField(first),
		fmt.Sprintf("field %s failed %q validation", first.Namespace(), first.Tag()),
		nil,
		map[string]any{"fields": strings.Join(fields, ",")},
	)
}

func codeForField(fe validator.FieldError) types.ErrorCode {
	switch {
	case fe.Tag() == "required":
		return types.ErrCodeValidationMissingField
	case fe.Field() == "email":
		return types.ErrCodeValidationInvalidEmail
	default:
		return types.ErrCodeValidationInvalidCard
	}
}
