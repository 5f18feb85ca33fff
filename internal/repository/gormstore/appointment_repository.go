package gormstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errRowVanished = errors.New("row was removed concurrently")

var updatableColumns = []string{
	"doctor_id", "patient_id", "scheduled_at", "estimated_end_at", "status", "notes", "updated_at",
}

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Transaction(ctx context.Context, fn func(tx appointment.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AppointmentRepository{db: tx})
	})
}

// LockSubjects takes transaction-scoped advisory locks on postgres so that
// writers on other instances queue behind this one until commit.
func (r *AppointmentRepository) LockSubjects(ctx context.Context, keys ...string) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for _, k := range sorted {
		if err := r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", k).Error; err != nil {
			return appointment.PersistenceError("locking "+k, err)
		}
	}
	return nil
}

func (r *AppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	normalize(a)
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return appointment.PersistenceError("inserting appointment", err)
	}
	return nil
}

func (r *AppointmentRepository) Update(ctx context.Context, a *appointment.Appointment) error {
	normalize(a)
	res := r.db.WithContext(ctx).Model(a).Select(updatableColumns).Updates(a)
	if res.Error != nil {
		return appointment.PersistenceError("updating appointment", res.Error)
	}
	if res.RowsAffected == 0 {
		return appointment.ErrAppointmentNotFound
	}
	return nil
}

func (r *AppointmentRepository) UpdateBatch(ctx context.Context, batch []*appointment.Appointment) error {
	if len(batch) == 0 {
		return nil
	}
	return r.Transaction(ctx, func(tx appointment.Repository) error {
		for _, a := range batch {
			err := tx.Update(ctx, a)
			if errors.Is(err, appointment.ErrAppointmentNotFound) {
				// The caller planned this row, so a miss means a concurrent delete.
				return appointment.PersistenceError(fmt.Sprintf("shifting appointment %s", a.ID), errRowVanished)
			}
			if err != nil {
				return fmt.Errorf("appointment %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

func (r *AppointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&appointment.Appointment{})
	if res.Error != nil {
		return appointment.PersistenceError("deleting appointment", res.Error)
	}
	if res.RowsAffected == 0 {
		return appointment.ErrAppointmentNotFound
	}
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appointment.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, appointment.PersistenceError("loading appointment", err)
	}
	return &a, nil
}

func (r *AppointmentRepository) FindOverlapping(ctx context.Context, q appointment.OverlapQuery) (*appointment.Appointment, error) {
	column, err := subjectColumn(q.Subject)
	if err != nil {
		return nil, err
	}

	tx := r.db.WithContext(ctx).
		Where(column+" = ?", q.SubjectID).
		Where("scheduled_at < ?", q.Interval.End.UTC()).
		Where("estimated_end_at > ?", q.Interval.Start.UTC())
	if q.OnlyActive {
		tx = tx.Where("status <> ?", appointment.StatusCanceled)
	}
	if len(q.ExcludeIDs) > 0 {
		tx = tx.Where("id NOT IN ?", q.ExcludeIDs)
	}

	var rows []*appointment.Appointment
	if err := tx.Order("scheduled_at ASC").Limit(1).Find(&rows).Error; err != nil {
		return nil, appointment.PersistenceError("querying overlapping appointments", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *AppointmentRepository) FindFollowing(ctx context.Context, w appointment.CascadeWindow) ([]*appointment.Appointment, error) {
	var rows []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", w.DoctorID).
		Where("patient_id = ?", w.PatientID).
		Where("status <> ?", appointment.StatusCanceled).
		Where("id <> ?", w.ExcludeID).
		Where("scheduled_at >= ?", w.From.UTC()).
		Where("scheduled_at <= ?", w.To.UTC()).
		Order("scheduled_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, appointment.PersistenceError("querying following appointments", err)
	}
	return rows, nil
}

func (r *AppointmentRepository) List(ctx context.Context, from, to *time.Time) ([]*appointment.Appointment, error) {
	tx := r.db.WithContext(ctx)
	if from != nil {
		tx = tx.Where("scheduled_at >= ?", from.UTC())
	}
	if to != nil {
		tx = tx.Where("scheduled_at < ?", to.UTC())
	}

	var rows []*appointment.Appointment
	if err := tx.Order("scheduled_at ASC").Find(&rows).Error; err != nil {
		return nil, appointment.PersistenceError("listing appointments", err)
	}
	return rows, nil
}

func subjectColumn(s appointment.Subject) (string, error) {
	switch s {
	case appointment.SubjectDoctor:
		return "doctor_id", nil
	case appointment.SubjectPatient:
		return "patient_id", nil
	}
	return "", fmt.Errorf("unknown conflict subject %q", s)
}

// normalize stores instants in UTC so range predicates compare consistently
// on every dialect.
func normalize(a *appointment.Appointment) {
	a.ScheduledAt = a.ScheduledAt.UTC()
	a.EstimatedEndAt = a.EstimatedEndAt.UTC()
}
