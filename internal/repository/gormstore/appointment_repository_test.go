package gormstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/database"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("connecting: %v", err)
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

func at(h, m int) time.Time {
	return time.Date(2026, time.March, 10, h, m, 0, 0, time.UTC)
}

func insert(t *testing.T, r *AppointmentRepository, doctorID, patientID uuid.UUID, start, end time.Time, status appointment.Status) *appointment.Appointment {
	t.Helper()
	a := &appointment.Appointment{
		DoctorID:       doctorID,
		PatientID:      patientID,
		ScheduledAt:    start,
		EstimatedEndAt: end,
		Status:         status,
	}
	if err := r.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return a
}

func TestAppointmentRepository_CRUD(t *testing.T) {
	r := NewAppointmentRepository(openDB(t))
	ctx := context.Background()

	// Non-UTC input is stored as the same instant.
	sp := time.FixedZone("BRT", -3*60*60)
	a := insert(t, r, uuid.New(), uuid.New(), at(12, 0).In(sp), at(12, 30).In(sp), appointment.StatusScheduled)
	if a.ID == uuid.Nil {
		t.Fatal("expected Create to assign an id")
	}

	got, err := r.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.ScheduledAt.Equal(at(12, 0)) || !got.EstimatedEndAt.Equal(at(12, 30)) {
		t.Errorf("unexpected interval [%s, %s)", got.ScheduledAt, got.EstimatedEndAt)
	}

	got.Notes = "bring exams"
	got.Status = appointment.StatusCompleted
	if err := r.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	reloaded, _ := r.GetByID(ctx, a.ID)
	if reloaded.Notes != "bring exams" || reloaded.Status != appointment.StatusCompleted {
		t.Errorf("update not persisted: %+v", reloaded)
	}

	if err := r.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.GetByID(ctx, a.ID); !errors.Is(err, appointment.ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
	if err := r.Delete(ctx, a.ID); !errors.Is(err, appointment.ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound on second delete, got %v", err)
	}
	if err := r.Update(ctx, got); !errors.Is(err, appointment.ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound updating a deleted row, got %v", err)
	}
}

func TestAppointmentRepository_FindOverlapping(t *testing.T) {
	r := NewAppointmentRepository(openDB(t))
	ctx := context.Background()
	d, p := uuid.New(), uuid.New()

	first := insert(t, r, d, p, at(9, 0), at(9, 30), appointment.StatusScheduled)
	canceled := insert(t, r, d, uuid.New(), at(10, 0), at(10, 30), appointment.StatusCanceled)
	completed := insert(t, r, uuid.New(), p, at(11, 0), at(11, 30), appointment.StatusCompleted)

	tests := []struct {
		name string
		q    appointment.OverlapQuery
		want uuid.UUID
	}{
		{
			name: "overlapping doctor slot",
			q:    appointment.OverlapQuery{Subject: appointment.SubjectDoctor, SubjectID: d, Interval: appointment.Interval{Start: at(9, 15), End: at(9, 45)}, OnlyActive: true},
			want: first.ID,
		},
		{
			name: "touching after",
			q:    appointment.OverlapQuery{Subject: appointment.SubjectDoctor, SubjectID: d, Interval: appointment.Interval{Start: at(9, 30), End: at(10, 0)}, OnlyActive: true},
		},
		{
			name: "touching before",
			q:    appointment.OverlapQuery{Subject: appointment.SubjectDoctor, SubjectID: d, Interval: appointment.Interval{Start: at(8, 30), End: at(9, 0)}, OnlyActive: true},
		},
		{
			name: "canceled ignored when only active",
			q:    appointment.OverlapQuery{Subject: appointment.SubjectDoctor, SubjectID: d, Interval: appointment.Interval{Start: at(10, 0), End: at(10, 15)}, OnlyActive: true},
		},
		{
			name: "canceled returned otherwise",
			q:    appointment.OverlapQuery{Subject: appointment.SubjectDoctor, SubjectID: d, Interval: appointment.Interval{Start: at(10, 0), End: at(10, 15)}},
			want: canceled.ID,
		},
		{
			name: "completed still counts",
			q:    appointment.OverlapQuery{Subject: appointment.SubjectPatient, SubjectID: p, Interval: appointment.Interval{Start: at(11, 10), End: at(11, 20)}, OnlyActive: true},
			want: completed.ID,
		},
		{
			name: "excluded",
			q:    appointment.OverlapQuery{Subject: appointment.SubjectPatient, SubjectID: p, Interval: appointment.Interval{Start: at(8, 0), End: at(12, 0)}, ExcludeIDs: []uuid.UUID{first.ID, completed.ID}, OnlyActive: true},
		},
		{
			name: "earliest of several",
			q:    appointment.OverlapQuery{Subject: appointment.SubjectPatient, SubjectID: p, Interval: appointment.Interval{Start: at(8, 0), End: at(12, 0)}, OnlyActive: true},
			want: first.ID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.FindOverlapping(ctx, tt.q)
			if err != nil {
				t.Fatalf("FindOverlapping: %v", err)
			}
			if tt.want == uuid.Nil {
				if got != nil {
					t.Fatalf("expected no overlap, got %s", got.ID)
				}
				return
			}
			if got == nil || got.ID != tt.want {
				t.Fatalf("expected %s, got %v", tt.want, got)
			}
		})
	}
}

func TestAppointmentRepository_FindFollowing(t *testing.T) {
	r := NewAppointmentRepository(openDB(t))
	d, p := uuid.New(), uuid.New()

	edited := insert(t, r, d, p, at(9, 0), at(9, 30), appointment.StatusScheduled)
	b := insert(t, r, d, p, at(14, 0), at(14, 30), appointment.StatusScheduled)
	a := insert(t, r, d, p, at(9, 30), at(10, 0), appointment.StatusCompleted)
	insert(t, r, d, p, at(8, 0), at(8, 30), appointment.StatusScheduled)
	insert(t, r, d, p, at(10, 0), at(10, 30), appointment.StatusCanceled)
	insert(t, r, d, uuid.New(), at(11, 0), at(11, 30), appointment.StatusScheduled)
	insert(t, r, uuid.New(), p, at(12, 0), at(12, 30), appointment.StatusScheduled)
	insert(t, r, d, p, at(9, 0).AddDate(0, 0, 1), at(9, 30).AddDate(0, 0, 1), appointment.StatusScheduled)

	got, err := r.FindFollowing(context.Background(), appointment.NewCascadeWindow(edited, edited.EstimatedEndAt, time.UTC))
	if err != nil {
		t.Fatalf("FindFollowing: %v", err)
	}
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Fatalf("expected [%s %s], got %d rows", a.ID, b.ID, len(got))
	}
}

func TestAppointmentRepository_UpdateBatchIsAllOrNothing(t *testing.T) {
	r := NewAppointmentRepository(openDB(t))
	ctx := context.Background()
	a := insert(t, r, uuid.New(), uuid.New(), at(9, 0), at(9, 30), appointment.StatusScheduled)

	moved := *a
	moved.SetInterval(a.Interval().Shift(time.Hour))
	ghost := &appointment.Appointment{ID: uuid.New(), ScheduledAt: at(9, 0), EstimatedEndAt: at(9, 30), Status: appointment.StatusScheduled}

	// A planned row that is gone was deleted concurrently: retryable, not a 404.
	err := r.UpdateBatch(ctx, []*appointment.Appointment{&moved, ghost})
	if !errors.Is(err, appointment.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if errors.Is(err, appointment.ErrAppointmentNotFound) {
		t.Errorf("a vanished batch row must not read as a missing appointment: %v", err)
	}
	got, _ := r.GetByID(ctx, a.ID)
	if !got.ScheduledAt.Equal(at(9, 0)) {
		t.Errorf("first row must be rolled back, starts at %s", got.ScheduledAt)
	}

	if err := r.UpdateBatch(ctx, []*appointment.Appointment{&moved}); err != nil {
		t.Fatalf("UpdateBatch: %v", err)
	}
	got, _ = r.GetByID(ctx, a.ID)
	if !got.ScheduledAt.Equal(at(10, 0)) {
		t.Errorf("expected row moved to 10:00, got %s", got.ScheduledAt)
	}
}

func TestAppointmentRepository_TransactionRollsBack(t *testing.T) {
	r := NewAppointmentRepository(openDB(t))
	ctx := context.Background()
	boom := errors.New("boom")

	var id uuid.UUID
	err := r.Transaction(ctx, func(tx appointment.Repository) error {
		if err := tx.LockSubjects(ctx, "doctor:x"); err != nil {
			return err
		}
		a := &appointment.Appointment{DoctorID: uuid.New(), PatientID: uuid.New(), ScheduledAt: at(9, 0), EstimatedEndAt: at(9, 30), Status: appointment.StatusScheduled}
		if err := tx.Create(ctx, a); err != nil {
			return err
		}
		id = a.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := r.GetByID(ctx, id); !errors.Is(err, appointment.ErrAppointmentNotFound) {
		t.Errorf("expected rolled back row to be absent, got %v", err)
	}
}

func TestAppointmentRepository_List(t *testing.T) {
	r := NewAppointmentRepository(openDB(t))
	ctx := context.Background()
	d, p := uuid.New(), uuid.New()

	late := insert(t, r, d, p, at(23, 0), at(23, 30), appointment.StatusScheduled)
	early := insert(t, r, d, p, at(8, 0), at(8, 30), appointment.StatusCanceled)
	insert(t, r, d, p, at(8, 0).AddDate(0, 0, 1), at(8, 30).AddDate(0, 0, 1), appointment.StatusScheduled)

	from := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	got, err := r.List(ctx, &from, &to)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != early.ID || got[1].ID != late.ID {
		t.Fatalf("expected [early late], got %d rows", len(got))
	}

	all, err := r.List(ctx, nil, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 rows without bounds, got %d", len(all))
	}
}

func TestLookupRepositories(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	d := &doctor.Doctor{ID: uuid.New(), FirstName: "Ana", LastName: "Souza"}
	p := &patient.Patient{ID: uuid.New(), FirstName: "Joao", LastName: "Lima"}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("seeding doctor: %v", err)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seeding patient: %v", err)
	}

	if got, err := NewDoctorRepository(db).GetByID(ctx, d.ID); err != nil || got.FullName() != "Ana Souza" {
		t.Errorf("doctor lookup: %v %v", got, err)
	}
	if _, err := NewDoctorRepository(db).GetByID(ctx, uuid.New()); !errors.Is(err, doctor.ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
	if got, err := NewPatientRepository(db).GetByID(ctx, p.ID); err != nil || got.FullName() != "Joao Lima" {
		t.Errorf("patient lookup: %v %v", got, err)
	}
	if _, err := NewPatientRepository(db).GetByID(ctx, uuid.New()); !errors.Is(err, patient.ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestAuditRepository_AssignsID(t *testing.T) {
	db := openDB(t)
	entry := &domain.AuditLog{UserRole: domain.RoleAdmin, Action: domain.ActionCreate, ResourceType: "appointment"}
	if err := NewAuditRepository(db).Create(context.Background(), entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if entry.ID == uuid.Nil {
		t.Error("expected an id to be assigned")
	}
}

func TestLookupRepositories_StoreFailure(t *testing.T) {
	db := openDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.Close()

	ctx := context.Background()
	if _, err := NewDoctorRepository(db).GetByID(ctx, uuid.New()); !errors.Is(err, appointment.ErrPersistence) || errors.Is(err, doctor.ErrDoctorNotFound) {
		t.Errorf("doctor lookup: expected ErrPersistence, got %v", err)
	}
	if _, err := NewPatientRepository(db).GetByID(ctx, uuid.New()); !errors.Is(err, appointment.ErrPersistence) || errors.Is(err, patient.ErrPatientNotFound) {
		t.Errorf("patient lookup: expected ErrPersistence, got %v", err)
	}
}
