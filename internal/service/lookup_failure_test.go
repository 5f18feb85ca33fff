package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/repository/gormstore"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type unreachableDoctors struct{}

func (unreachableDoctors) GetByID(context.Context, uuid.UUID) (*doctor.Doctor, error) {
	return nil, appointment.PersistenceError("loading doctor", errors.New("connection refused"))
}

func TestLookupOutageIsLoggedAsError(t *testing.T) {
	db := openTestDB(t)
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	m := metrics.NewCollector("clinicflow_test", prometheus.NewRegistry())

	audit := NewAuditService(gormstore.NewAuditRepository(db), m, zap.NewNop())
	t.Cleanup(func() { audit.Shutdown(2 * time.Second) })

	svc, err := NewAppointmentService(
		gormstore.NewAppointmentRepository(db),
		unreachableDoctors{},
		gormstore.NewPatientRepository(db),
		lock.NewMemory(),
		audit,
		m,
		log,
		config.ScheduleConfig{TimeZone: "UTC", DefaultDuration: 30 * time.Minute},
	)
	if err != nil {
		t.Fatalf("NewAppointmentService: %v", err)
	}

	_, err = svc.Create(context.Background(), &appointment.CreateAppointmentCommand{
		DoctorID:    uuid.New(),
		PatientID:   uuid.New(),
		ScheduledAt: clock(9, 0),
	})
	if !errors.Is(err, appointment.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	failures := logs.FilterMessage("appointment write failed").All()
	if len(failures) != 1 {
		t.Fatalf("expected one failure entry, got %d", len(failures))
	}
	if failures[0].Level != zapcore.ErrorLevel {
		t.Errorf("expected error level, got %s", failures[0].Level)
	}
}
