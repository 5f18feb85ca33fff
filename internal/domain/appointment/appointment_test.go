package appointment

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusScheduled, StatusScheduled, true},
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusCanceled, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusCanceled, StatusCanceled, true},
		{StatusCompleted, StatusScheduled, false},
		{StatusCanceled, StatusScheduled, false},
		{StatusCanceled, StatusCompleted, false},
	}
	for _, tt := range tests {
		a := &Appointment{Status: tt.from}
		if got := a.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatus(t *testing.T) {
	if Status("pending").IsValid() {
		t.Error("unknown status must be invalid")
	}
	if StatusCanceled.IsActive() {
		t.Error("canceled must not be active")
	}
	if !StatusCompleted.IsActive() {
		t.Error("completed keeps occupying its slot")
	}
}

func TestConflictError_MatchesSentinel(t *testing.T) {
	var err error = &ConflictError{Subject: SubjectPatient, SubjectID: uuid.New(), AppointmentID: uuid.New()}
	if !errors.Is(err, ErrAppointmentConflict) {
		t.Fatal("ConflictError must match ErrAppointmentConflict")
	}
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Subject != SubjectPatient {
		t.Fatalf("expected patient conflict, got %v", err)
	}
}

func TestPersistenceError_KeepsChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := PersistenceError("saving appointment", cause)
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, cause) {
		t.Fatalf("expected both sentinel and cause in chain: %v", err)
	}
}
