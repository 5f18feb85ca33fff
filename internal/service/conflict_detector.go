package service

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
	"github.com/google/uuid"
)

// ConflictDetector answers whether an interval is free for a doctor or a
// patient. Only active appointments block; ids in exclude are ignored.
type ConflictDetector struct {
	repo    appointment.Repository
	metrics *metrics.Collector
}

func NewConflictDetector(repo appointment.Repository, m *metrics.Collector) *ConflictDetector {
	return &ConflictDetector{repo: repo, metrics: m}
}

// within returns a detector reading through tx.
func (d *ConflictDetector) within(tx appointment.Repository) *ConflictDetector {
	return &ConflictDetector{repo: tx, metrics: d.metrics}
}

func (d *ConflictDetector) CheckDoctorConflict(ctx context.Context, doctorID uuid.UUID, iv appointment.Interval, exclude []uuid.UUID) error {
	return d.check(ctx, appointment.SubjectDoctor, doctorID, iv, exclude)
}

func (d *ConflictDetector) CheckPatientConflict(ctx context.Context, patientID uuid.UUID, iv appointment.Interval, exclude []uuid.UUID) error {
	return d.check(ctx, appointment.SubjectPatient, patientID, iv, exclude)
}

// Check runs the doctor check first so the reported subject is stable.
func (d *ConflictDetector) Check(ctx context.Context, doctorID, patientID uuid.UUID, iv appointment.Interval, exclude []uuid.UUID) error {
	if err := d.CheckDoctorConflict(ctx, doctorID, iv, exclude); err != nil {
		return err
	}
	return d.CheckPatientConflict(ctx, patientID, iv, exclude)
}

func (d *ConflictDetector) check(ctx context.Context, subject appointment.Subject, subjectID uuid.UUID, iv appointment.Interval, exclude []uuid.UUID) error {
	hit, err := d.repo.FindOverlapping(ctx, appointment.OverlapQuery{
		Subject:    subject,
		SubjectID:  subjectID,
		Interval:   iv,
		ExcludeIDs: exclude,
		OnlyActive: true,
	})
	if err != nil {
		return err
	}
	if hit == nil {
		return nil
	}

	d.metrics.SchedulingConflicts.WithLabelValues(string(subject)).Inc()
	return &appointment.ConflictError{
		Subject:       subject,
		SubjectID:     subjectID,
		AppointmentID: hit.ID,
	}
}
