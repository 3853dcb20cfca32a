package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateDataset checks the trip list of an initial dataset.
// Events are not validated here: malformed events are skipped during replay.
func ValidateDataset(d *Dataset) error {
	var ve ValidationError
	seen := make(map[string]struct{}, len(d.Trips))

	for i, t := range d.Trips {
		field := fmt.Sprintf("trips[%d]", i)

		id := strings.TrimSpace(t.ID)
		if id == "" {
			ve.Errors = append(ve.Errors, FieldError{Field: field + ".id", Message: "is required"})
		} else if _, dup := seen[id]; dup {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate trip id %q", id),
			})
		} else {
			seen[id] = struct{}{}
		}

		if t.TotalDistance <= 0 {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   field + ".total_distance",
				Message: fmt.Sprintf("must be positive, got %v", t.TotalDistance),
			})
		}

		if t.Status != "" && !t.Status.IsValid() {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   field + ".status",
				Message: fmt.Sprintf("invalid value %q", t.Status),
			})
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// NormalizeTrips fills defaults on freshly loaded trips: a missing status
// becomes scheduled and a nil alert list becomes empty.
func NormalizeTrips(trips []Trip) []Trip {
	out := make([]Trip, len(trips))
	for i, t := range trips {
		c := t.Clone()
		if c.Status == "" {
			c.Status = StatusScheduled
		}
		out[i] = c
	}
	return out
}
