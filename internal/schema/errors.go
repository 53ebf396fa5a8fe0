package schema

import (
	"fmt"
	"strings"

	"interaction-gateway/internal/model"
)

// Validation failure reasons.
const (
	ReasonMissing      = "missing"
	ReasonWrongType    = "wrong_type"
	ReasonOutOfRange   = "out_of_range"
	ReasonInvalidValue = "invalid_value"
	ReasonKindMismatch = "kind_mismatch"
	ReasonMalformed    = "malformed"
)

// ValidationError represents one or more invalid fields in a payload.
type ValidationError struct {
	Fields []model.FieldError
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: []model.FieldError{{Field: field, Reason: reason}}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "invalid event: " + strings.Join(parts, ", ")
}

// Has reports whether field failed with reason.
func (e *ValidationError) Has(field, reason string) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Reason == reason {
			return true
		}
	}
	return false
}

// UnknownEventKindError is returned for an unsupported discriminator.
type UnknownEventKindError struct {
	Kind string
}

func (e *UnknownEventKindError) Error() string {
	return fmt.Sprintf("unknown event type: %q", e.Kind)
}
