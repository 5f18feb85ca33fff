package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/google/uuid"
)

// CascadeShifter moves the appointments that follow an edited one in the same
// doctor and patient sequence when its end time changes. Planning, validation
// and the write are separate steps so the caller can check everything before
// the first row is touched.
type CascadeShifter struct {
	loc *time.Location
	// checkDoctor also re-validates shifted rows against the doctor's other
	// patients. Patient conflicts are always checked.
	checkDoctor bool
}

func NewCascadeShifter(loc *time.Location, checkDoctor bool) *CascadeShifter {
	if loc == nil {
		loc = time.UTC
	}
	return &CascadeShifter{loc: loc, checkDoctor: checkDoctor}
}

// Plan loads the appointments following edited, whose end used to be oldEnd,
// and computes their shifted intervals. Nothing is written.
func (s *CascadeShifter) Plan(ctx context.Context, tx appointment.Repository, edited *appointment.Appointment, oldEnd time.Time) ([]appointment.Shift, error) {
	delta := edited.EstimatedEndAt.Sub(oldEnd)
	if delta == 0 {
		return nil, nil
	}

	following, err := tx.FindFollowing(ctx, appointment.NewCascadeWindow(edited, oldEnd, s.loc))
	if err != nil {
		return nil, err
	}
	return appointment.PlanCascade(following, delta)
}

// Validate checks every shifted interval. The edited appointment and the
// batch itself are excluded since they move together.
func (s *CascadeShifter) Validate(ctx context.Context, detector *ConflictDetector, editedID uuid.UUID, shifts []appointment.Shift) error {
	if len(shifts) == 0 {
		return nil
	}
	exclude := append([]uuid.UUID{editedID}, appointment.ShiftIDs(shifts)...)

	for _, sh := range shifts {
		a := sh.Appointment
		if err := detector.CheckPatientConflict(ctx, a.PatientID, sh.To, exclude); err != nil {
			return fmt.Errorf("shifting appointment %s: %w", a.ID, err)
		}
		if s.checkDoctor {
			if err := detector.CheckDoctorConflict(ctx, a.DoctorID, sh.To, exclude); err != nil {
				return fmt.Errorf("shifting appointment %s: %w", a.ID, err)
			}
		}
	}
	return nil
}

// Apply writes the whole batch or nothing and returns the moved rows.
func (s *CascadeShifter) Apply(ctx context.Context, tx appointment.Repository, shifts []appointment.Shift) ([]*appointment.Appointment, error) {
	if len(shifts) == 0 {
		return nil, nil
	}

	batch := make([]*appointment.Appointment, 0, len(shifts))
	for _, sh := range shifts {
		moved := *sh.Appointment
		moved.SetInterval(sh.To)
		batch = append(batch, &moved)
	}
	if err := tx.UpdateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("applying cascade: %w", err)
	}
	return batch, nil
}
