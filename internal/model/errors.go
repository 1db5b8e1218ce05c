package model

import (
	"github.com/pkg/errors"
)

// Error taxonomy shared by every state machine. Callers match with errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrExternalVerification = errors.New("external verification failure")
	ErrAlreadyTerminal      = errors.New("already terminal")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyDisputed      = errors.New("already disputed")
)

func Validationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

func InvalidTransitionf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidTransition, format, args...)
}
