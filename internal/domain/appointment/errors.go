package appointment

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrAppointmentConflict     = errors.New("appointment time slot is already booked")
	ErrInvalidInterval         = errors.New("invalid appointment interval")
	ErrInvalidStatus           = errors.New("invalid appointment status")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrPersistence             = errors.New("appointment store failure")
)

type Subject string

const (
	SubjectDoctor  Subject = "doctor"
	SubjectPatient Subject = "patient"
)

// ConflictError names the subject that is double-booked and the appointment
// already holding the slot. It matches ErrAppointmentConflict with errors.Is.
type ConflictError struct {
	Subject       Subject
	SubjectID     uuid.UUID
	AppointmentID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already has an appointment in this time slot (appointment %s)", e.Subject, e.AppointmentID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrAppointmentConflict
}

// PersistenceError wraps a store failure so callers can match ErrPersistence
// while keeping the driver error in the chain.
func PersistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
