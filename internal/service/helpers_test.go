package service

import (
	"context"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/repository/gormstore"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	repo    *gormstore.AppointmentRepository
	svc     *AppointmentService
	audit   *AuditService
	metrics *metrics.Collector
	locker  *lock.Memory
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("connecting to sqlite: %v", err)
	}
	if err := database.Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T, cascadeCheckDoctor bool) *fixture {
	t.Helper()
	db := openTestDB(t)
	m := metrics.NewCollector("clinicflow_test", prometheus.NewRegistry())
	log := zap.NewNop()

	audit := NewAuditService(gormstore.NewAuditRepository(db), m, log)
	t.Cleanup(func() { audit.Shutdown(2 * time.Second) })

	repo := gormstore.NewAppointmentRepository(db)
	locker := lock.NewMemory()
	svc, err := NewAppointmentService(
		repo,
		gormstore.NewDoctorRepository(db),
		gormstore.NewPatientRepository(db),
		locker,
		audit,
		m,
		log,
		config.ScheduleConfig{
			TimeZone:           "UTC",
			DefaultDuration:    30 * time.Minute,
			CascadeCheckDoctor: cascadeCheckDoctor,
		},
	)
	if err != nil {
		t.Fatalf("NewAppointmentService: %v", err)
	}

	return &fixture{db: db, repo: repo, svc: svc, audit: audit, metrics: m, locker: locker}
}

func (f *fixture) doctor(t *testing.T) uuid.UUID {
	t.Helper()
	d := &doctor.Doctor{ID: uuid.New(), FirstName: "Ana", LastName: "Souza", Specialty: "cardiology"}
	if err := f.db.Create(d).Error; err != nil {
		t.Fatalf("seeding doctor: %v", err)
	}
	return d.ID
}

func (f *fixture) patient(t *testing.T) uuid.UUID {
	t.Helper()
	p := &patient.Patient{ID: uuid.New(), FirstName: "Joao", LastName: "Lima"}
	if err := f.db.Create(p).Error; err != nil {
		t.Fatalf("seeding patient: %v", err)
	}
	return p.ID
}

// book creates an appointment on the test day and fails the test on error.
func (f *fixture) book(t *testing.T, doctorID, patientID uuid.UUID, start, end time.Time) *appointment.Appointment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), &appointment.CreateAppointmentCommand{
		DoctorID:       doctorID,
		PatientID:      patientID,
		ScheduledAt:    start,
		EstimatedEndAt: &end,
	})
	if err != nil {
		t.Fatalf("booking %s-%s: %v", start.Format("15:04"), end.Format("15:04"), err)
	}
	return a
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *appointment.Appointment {
	t.Helper()
	a, err := f.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reloading %s: %v", id, err)
	}
	return a
}

// clock returns h:m on 2026-03-10 UTC.
func clock(h, m int) time.Time {
	return time.Date(2026, time.March, 10, h, m, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func assertInterval(t *testing.T, a *appointment.Appointment, start, end time.Time) {
	t.Helper()
	if !a.ScheduledAt.Equal(start) || !a.EstimatedEndAt.Equal(end) {
		t.Errorf("appointment %s: expected [%s, %s), got [%s, %s)",
			a.ID, start.Format(time.RFC3339), end.Format(time.RFC3339),
			a.ScheduledAt.Format(time.RFC3339), a.EstimatedEndAt.Format(time.RFC3339))
	}
}
