package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	ve := &ValidationError{}
	if ve.OrNil() != nil {
		t.Fatal("empty validation error should be nil")
	}

	ve.Add("fluoride", "must be >= 0")
	ve.Add("humidity", "must be <= 100")
	err := ve.OrNil()
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "validation failed: fluoride: must be >= 0; humidity: must be <= 100" {
		t.Fatalf("Error() = %q", got)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("validation error should match ErrInvalidInput")
	}

	wrapped := fmt.Errorf("ingest: %w", err)
	got, ok := AsValidation(wrapped)
	if !ok || len(got.Fields) != 2 {
		t.Fatalf("AsValidation = %+v, %v", got, ok)
	}
}

func TestUnavailable(t *testing.T) {
	if Unavailable("op", nil) != nil {
		t.Fatal("nil error should stay nil")
	}

	cause := errors.New("connection refused")
	err := Unavailable("list devices", cause)
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("unexpected chain: %v", err)
	}
	if err.Error() != "store unavailable during list devices: connection refused" {
		t.Fatalf("Error() = %q", err.Error())
	}

	if again := Unavailable("ingest", err); again != err {
		t.Fatal("already wrapped error should be returned as is")
	}
	if _, ok := AsValidation(err); ok {
		t.Fatal("store error is not a validation error")
	}
}

func TestAppError(t *testing.T) {
	err := NewAppError(CodeNotFound, "device not found", ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("AppError should unwrap to its cause")
	}
	if err.Error() != "device not found: resource not found" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
