package appointment

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// CascadeWindow describes which appointments move in lockstep when the
// edited appointment's end changes from OldEnd.
type CascadeWindow struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	ExcludeID uuid.UUID
	From      time.Time
	To        time.Time
}

// NewCascadeWindow covers same doctor and patient appointments starting
// between oldEnd and the end of the edited appointment's calendar day.
func NewCascadeWindow(edited *Appointment, oldEnd time.Time, loc *time.Location) CascadeWindow {
	return CascadeWindow{
		DoctorID:  edited.DoctorID,
		PatientID: edited.PatientID,
		ExcludeID: edited.ID,
		From:      oldEnd,
		To:        EndOfDay(edited.ScheduledAt, loc),
	}
}

// Contains reports whether a belongs to the window.
func (w CascadeWindow) Contains(a *Appointment) bool {
	if a.ID == w.ExcludeID || !a.Status.IsActive() {
		return false
	}
	if a.DoctorID != w.DoctorID || a.PatientID != w.PatientID {
		return false
	}
	return !a.ScheduledAt.Before(w.From) && !a.ScheduledAt.After(w.To)
}

type Shift struct {
	Appointment *Appointment
	From        Interval
	To          Interval
}

// PlanCascade computes the shifted intervals for following without touching
// them. The result is ordered by original start; a zero delta yields nothing.
func PlanCascade(following []*Appointment, delta time.Duration) ([]Shift, error) {
	if delta == 0 || len(following) == 0 {
		return nil, nil
	}

	ordered := make([]*Appointment, len(following))
	copy(ordered, following)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ScheduledAt.Before(ordered[j].ScheduledAt)
	})

	shifts := make([]Shift, 0, len(ordered))
	for _, a := range ordered {
		from := a.Interval()
		to := from.Shift(delta)
		if err := to.Validate(); err != nil {
			return nil, fmt.Errorf("shifting appointment %s: %w", a.ID, err)
		}
		shifts = append(shifts, Shift{Appointment: a, From: from, To: to})
	}
	return shifts, nil
}

// ShiftIDs returns the ids of the appointments in the batch.
func ShiftIDs(shifts []Shift) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(shifts))
	for _, s := range shifts {
		ids = append(ids, s.Appointment.ID)
	}
	return ids
}
