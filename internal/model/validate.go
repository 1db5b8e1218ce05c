package model

import (
	"github.com/go-playground/validator/v10"
)

var requestValidator = validator.New()

// ValidateRequest checks the `validate` tags of an engine request and
// reports a violation as ErrValidation.
func ValidateRequest(req interface{}) error {
	if err := requestValidator.Struct(req); err != nil {
		return Validationf("%v", err)
	}
	return nil
}
