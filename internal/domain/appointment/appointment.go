package appointment

import (
	"time"

	"github.com/google/uuid"
)

// State transitions possibilities:
//
//	scheduled → scheduled (reschedule / reassign)
//	scheduled → completed
//	scheduled → canceled
//
// Canceled appointments never block a slot. Completed ones keep occupying
// their historical slot.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// IsActive reports whether an appointment in this status takes part in
// conflict and cascade computations.
func (s Status) IsActive() bool {
	return s != StatusCanceled
}

type Appointment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	DoctorID  uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index"`
	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`

	ScheduledAt    time.Time `gorm:"column:scheduled_at;not null;index"`
	EstimatedEndAt time.Time `gorm:"column:estimated_end_at;not null"`
	Status         Status    `gorm:"column:status;type:varchar(20);not null;default:'scheduled';index"`

	Notes string `gorm:"column:notes;type:text"`
}

func (Appointment) TableName() string {
	return "appointments"
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.ScheduledAt, End: a.EstimatedEndAt}
}

func (a *Appointment) SetInterval(iv Interval) {
	a.ScheduledAt = iv.Start
	a.EstimatedEndAt = iv.End
}

func (a *Appointment) CanTransitionTo(next Status) bool {
	if a.Status == next {
		return true
	}
	allowed := map[Status][]Status{
		StatusScheduled: {StatusCompleted, StatusCanceled},
		StatusCompleted: {},
		StatusCanceled:  {},
	}

	for _, s := range allowed[a.Status] {
		if s == next {
			return true
		}
	}
	return false
}

type CreateAppointmentCommand struct {
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	ScheduledAt    time.Time
	EstimatedEndAt *time.Time
	Status         *Status
	Notes          string
}

// UpdateAppointmentCommand overlays the non-nil fields on the stored row.
type UpdateAppointmentCommand struct {
	DoctorID       *uuid.UUID
	PatientID      *uuid.UUID
	ScheduledAt    *time.Time
	EstimatedEndAt *time.Time
	Status         *Status
	Notes          *string
}

// UpdateResult is the edited appointment plus every appointment moved by the
// cascade, in ascending start order.
type UpdateResult struct {
	Appointment *Appointment
	Shifted     []*Appointment
}
