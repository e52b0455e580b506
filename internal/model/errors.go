package model

import "errors"

// Error taxonomy shared by the store, the oracle client and the round controller.
// Callers wrap these with fmt.Errorf("...: %w") and the HTTP layer maps them
// to status codes with errors.Is.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrConflict             = errors.New("conflict")
	ErrOracleUnavailable    = errors.New("oracle unavailable")
	ErrOracleTimeout        = errors.New("oracle timeout")
	ErrUnparsableEvaluation = errors.New("unparsable evaluation")
)
