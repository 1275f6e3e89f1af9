package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Error kinds for the resolution engine. Callers classify failures with
// errors.Is against these sentinels; construction goes through the helpers
// below so every error carries an eris stack.
var (
	// ErrValidation marks malformed input: bad identifiers, out-of-range
	// confidence, empty merge/split selections. Rejected synchronously,
	// never partially applied.
	ErrValidation = errors.New("validation error")

	// ErrConflict marks states that require human adjudication: identifier
	// collisions across ACTIVE entities, concurrent mutation races.
	ErrConflict = errors.New("conflict error")

	// ErrIntegrity marks tamper or corruption evidence: provenance hash
	// mismatch, fact without provenance. Fatal for the affected item.
	ErrIntegrity = errors.New("integrity error")

	// ErrCompliance marks review-gating failures: rejected justification,
	// unmet tier requirement. Blocks the action without corrupting state.
	ErrCompliance = errors.New("compliance error")

	// ErrNotFound marks a missing mention or entity.
	ErrNotFound = errors.New("not found")
)

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...any) error {
	return eris.Wrapf(ErrValidation, format, args...)
}

// Conflictf builds a conflict error with a formatted message.
func Conflictf(format string, args ...any) error {
	return eris.Wrapf(ErrConflict, format, args...)
}

// Integrityf builds an integrity error with a formatted message.
func Integrityf(format string, args ...any) error {
	return eris.Wrapf(ErrIntegrity, format, args...)
}

// NotFoundf builds a not-found error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return eris.Wrapf(ErrNotFound, format, args...)
}

// Compliancef builds a compliance error with a formatted message.
func Compliancef(format string, args ...any) error {
	return eris.Wrapf(ErrCompliance, format, args...)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsIntegrity reports whether err is an integrity error.
func IsIntegrity(err error) bool { return errors.Is(err, ErrIntegrity) }

// IsCompliance reports whether err is a compliance error.
func IsCompliance(err error) bool { return errors.Is(err, ErrCompliance) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
