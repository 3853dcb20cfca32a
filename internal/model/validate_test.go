package model

import (
	"strings"
	"testing"
)

// validDataset returns a Dataset that passes all validation rules.
func validDataset() Dataset {
	return Dataset{
		Trips: []Trip{
			{ID: "trip-1", TotalDistance: 120, Status: StatusScheduled},
			{ID: "trip-2", TotalDistance: 80},
		},
	}
}

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidateDataset_Valid(t *testing.T) {
	d := validDataset()
	if err := ValidateDataset(&d); err != nil {
		t.Fatalf("expected valid dataset, got %v", err)
	}
}

func TestValidateDataset_IDRequired(t *testing.T) {
	d := validDataset()
	d.Trips[0].ID = "  "
	errs := fieldErrors(t, ValidateDataset(&d))
	if !hasFieldError(errs, "trips[0].id") {
		t.Errorf("expected error on trips[0].id, got %+v", errs)
	}
}

func TestValidateDataset_DuplicateID(t *testing.T) {
	d := validDataset()
	d.Trips[1].ID = "trip-1"
	errs := fieldErrors(t, ValidateDataset(&d))
	if !hasFieldError(errs, "trips[1].id") {
		t.Errorf("expected duplicate error on trips[1].id, got %+v", errs)
	}
}

func TestValidateDataset_TotalDistancePositive(t *testing.T) {
	for _, dist := range []float64{0, -5} {
		d := validDataset()
		d.Trips[1].TotalDistance = dist
		errs := fieldErrors(t, ValidateDataset(&d))
		if !hasFieldError(errs, "trips[1].total_distance") {
			t.Errorf("total_distance=%v: expected error, got %+v", dist, errs)
		}
	}
}

func TestValidateDataset_InvalidStatus(t *testing.T) {
	d := validDataset()
	d.Trips[0].Status = "parked"
	errs := fieldErrors(t, ValidateDataset(&d))
	if !hasFieldError(errs, "trips[0].status") {
		t.Errorf("expected error on trips[0].status, got %+v", errs)
	}
}

func TestValidationError_Message(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{
		{Field: "trips[0].id", Message: "is required"},
		{Field: "trips[1].total_distance", Message: "must be positive, got 0"},
	}}
	msg := ve.Error()
	if !strings.HasPrefix(msg, "validation failed: ") {
		t.Fatalf("unexpected prefix: %q", msg)
	}
	if !strings.Contains(msg, "trips[0].id: is required; trips[1].total_distance") {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestNormalizeTrips(t *testing.T) {
	trips := NormalizeTrips([]Trip{{ID: "a", TotalDistance: 10}, {ID: "b", TotalDistance: 10, Status: StatusInProgress}})
	if trips[0].Status != StatusScheduled {
		t.Errorf("expected default status scheduled, got %q", trips[0].Status)
	}
	if trips[1].Status != StatusInProgress {
		t.Errorf("expected status preserved, got %q", trips[1].Status)
	}
	if trips[0].Alerts == nil {
		t.Error("expected non-nil alert list")
	}
}
