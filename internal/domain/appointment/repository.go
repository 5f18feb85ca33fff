package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OverlapQuery selects appointments of one subject whose interval overlaps
// Interval, minus ExcludeIDs.
type OverlapQuery struct {
	Subject    Subject
	SubjectID  uuid.UUID
	Interval   Interval
	ExcludeIDs []uuid.UUID
	OnlyActive bool
}

type Repository interface {
	// Transaction runs fn against a repository bound to a single transaction.
	// Returning an error from fn rolls back every write made through tx.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	// LockSubjects serializes writers on the given keys until the enclosing
	// transaction ends. Stores without such a facility treat it as a no-op.
	LockSubjects(ctx context.Context, keys ...string) error

	Create(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, a *Appointment) error

	// UpdateBatch saves all rows or none.
	UpdateBatch(ctx context.Context, batch []*Appointment) error

	// Delete returns ErrAppointmentNotFound when no row was removed.
	Delete(ctx context.Context, id uuid.UUID) error

	// GetByID returns ErrAppointmentNotFound if the id does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// FindOverlapping returns the earliest matching appointment, or nil.
	FindOverlapping(ctx context.Context, q OverlapQuery) (*Appointment, error)

	// FindFollowing returns active appointments inside w ordered by start.
	FindFollowing(ctx context.Context, w CascadeWindow) ([]*Appointment, error)

	// List returns appointments starting in [from, to) ordered by start. Nil
	// bounds are open.
	List(ctx context.Context, from, to *time.Time) ([]*Appointment, error)
}

// SubjectKey is the lock key for a doctor or patient.
func SubjectKey(s Subject, id uuid.UUID) string {
	return string(s) + ":" + id.String()
}

// Key is the lock key for a single appointment row.
func Key(id uuid.UUID) string {
	return "appointment:" + id.String()
}
