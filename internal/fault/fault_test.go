package fault

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{StorageUnavailable, "Storage Unavailable"},
		{NoCredentials, "No Credentials"},
		{ConnectionTimeout, "Connection Timeout"},
		{AllCredentialsExhausted, "All Credentials Exhausted"},
		{InvalidInput, "Invalid Input"},
		{PersistenceFailure, "Persistence Failure"},
		{Unknown, "Unknown Error"},
		{Kind(99), "Kind(99)"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(PersistenceFailure, "credentials.save", errors.New("disk full"))
	msg := err.Error()

	for _, part := range []string{"credentials.save", "Persistence Failure", "disk full"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, should contain %q", msg, part)
		}
	}

	plain := New(InvalidInput, "", "ssid cannot be empty")
	if plain.Error() != "Invalid Input: ssid cannot be empty" {
		t.Errorf("Error() = %q", plain.Error())
	}
}

func TestKindOfWrapped(t *testing.T) {
	cause := errors.New("mount failed")
	err := fmt.Errorf("begin: %w", Wrap(StorageUnavailable, "storage.mount", cause))

	if KindOf(err) != StorageUnavailable {
		t.Errorf("KindOf() = %v, want StorageUnavailable", KindOf(err))
	}
	if !Is(err, StorageUnavailable) {
		t.Error("Is(err, StorageUnavailable) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the underlying cause")
	}
	if Is(nil, Unknown) {
		t.Error("Is(nil, Unknown) should be false")
	}
	if KindOf(errors.New("plain")) != Unknown {
		t.Error("KindOf(plain error) should be Unknown")
	}
}
