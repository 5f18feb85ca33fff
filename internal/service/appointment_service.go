package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const resourceAppointment = "appointment"

// AppointmentService is the only writer of appointments. Every write holds
// the locker keys of the subjects it touches from the conflict check until
// commit.
type AppointmentService struct {
	repo     appointment.Repository
	doctors  doctor.Lookup
	patients patient.Lookup
	locker   lock.Locker

	detector *ConflictDetector
	shifter  *CascadeShifter
	auditSvc *AuditService

	metrics *metrics.Collector
	log     *zap.Logger
	tracer  trace.Tracer

	loc             *time.Location
	defaultDuration time.Duration
}

func NewAppointmentService(
	repo appointment.Repository,
	doctors doctor.Lookup,
	patients patient.Lookup,
	locker lock.Locker,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
	cfg config.ScheduleConfig,
) (*AppointmentService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolving schedule time zone: %w", err)
	}
	return &AppointmentService{
		repo:            repo,
		doctors:         doctors,
		patients:        patients,
		locker:          locker,
		detector:        NewConflictDetector(repo, m),
		shifter:         NewCascadeShifter(loc, cfg.CascadeCheckDoctor),
		auditSvc:        auditSvc,
		metrics:         m,
		log:             log,
		tracer:          otel.Tracer("clinicflow/service"),
		loc:             loc,
		defaultDuration: cfg.DefaultDuration,
	}, nil
}

func (s *AppointmentService) Create(ctx context.Context, cmd *appointment.CreateAppointmentCommand) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.Create")
	defer span.End()

	// An invalid interval is reported before anything else about the request.
	iv, err := appointment.NewInterval(cmd.ScheduledAt, cmd.EstimatedEndAt, s.defaultDuration)
	if err != nil {
		return nil, err
	}

	status := appointment.StatusScheduled
	if cmd.Status != nil {
		if !cmd.Status.IsValid() {
			return nil, fmt.Errorf("%w: %q", appointment.ErrInvalidStatus, *cmd.Status)
		}
		status = *cmd.Status
	}

	if err := s.resolveSubjects(ctx, cmd.DoctorID, cmd.PatientID); err != nil {
		s.fail(span, "create", err)
		return nil, err
	}

	keys := subjectKeys(cmd.DoctorID, cmd.PatientID)
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("acquiring scheduling lock: %w", err)
	}
	defer unlock()

	a := &appointment.Appointment{
		DoctorID:  cmd.DoctorID,
		PatientID: cmd.PatientID,
		Status:    status,
		Notes:     cmd.Notes,
	}
	a.SetInterval(iv)

	err = s.repo.Transaction(ctx, func(tx appointment.Repository) error {
		if err := tx.LockSubjects(ctx, keys...); err != nil {
			return err
		}
		if status.IsActive() {
			if err := s.detector.within(tx).Check(ctx, a.DoctorID, a.PatientID, iv, nil); err != nil {
				return err
			}
		}
		return tx.Create(ctx, a)
	})
	if err != nil {
		s.fail(span, "create", err)
		return nil, err
	}

	span.SetAttributes(attribute.String("appointment.id", a.ID.String()))
	s.metrics.AppointmentsWritten.WithLabelValues("create").Inc()
	s.log.Info("appointment created",
		zap.String("appointment_id", a.ID.String()),
		zap.String("doctor_id", a.DoctorID.String()),
		zap.String("patient_id", a.PatientID.String()),
		zap.Time("scheduled_at", a.ScheduledAt),
	)
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       domain.ActionCreate,
		ResourceType: resourceAppointment,
		ResourceID:   a.ID.String(),
		Changes:      changesJSON(nil, a),
	})

	return a, nil
}

// Update overlays the supplied fields on the stored appointment. When the
// end time changes and the doctor stays the same, the appointments that
// follow it that day for the same doctor and patient move by the same delta.
func (s *AppointmentService) Update(ctx context.Context, id uuid.UUID, cmd *appointment.UpdateAppointmentCommand) (*appointment.UpdateResult, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.Update",
		trace.WithAttributes(attribute.String("appointment.id", id.String())))
	defer span.End()

	if cmd.Status != nil && !cmd.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", appointment.ErrInvalidStatus, *cmd.Status)
	}

	unlockRow, err := s.locker.Lock(ctx, appointment.Key(id))
	if err != nil {
		return nil, fmt.Errorf("acquiring appointment lock: %w", err)
	}
	defer unlockRow()

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := s.overlay(current, cmd)
	if err != nil {
		return nil, err
	}
	if err := s.resolveSubjects(ctx, next.DoctorID, next.PatientID); err != nil {
		s.fail(span, "update", err)
		return nil, err
	}

	keys := append(subjectKeys(current.DoctorID, current.PatientID), subjectKeys(next.DoctorID, next.PatientID)...)
	unlockSubjects, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("acquiring scheduling lock: %w", err)
	}
	defer unlockSubjects()

	var (
		result *appointment.UpdateResult
		before appointment.Appointment
	)
	err = s.repo.Transaction(ctx, func(tx appointment.Repository) error {
		if err := tx.LockSubjects(ctx, append(keys, appointment.Key(id))...); err != nil {
			return err
		}

		stored, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if stored.DoctorID != current.DoctorID || stored.PatientID != current.PatientID {
			return appointment.PersistenceError("reloading appointment", errSubjectsChanged)
		}
		before = *stored

		next, err := s.overlay(stored, cmd)
		if err != nil {
			return err
		}

		cascade := cmd.EstimatedEndAt != nil &&
			next.DoctorID == stored.DoctorID &&
			next.Status.IsActive()

		var shifts []appointment.Shift
		if cascade {
			shifts, err = s.shifter.Plan(ctx, tx, next, stored.EstimatedEndAt)
			if err != nil {
				return err
			}
		}

		if next.Status.IsActive() {
			detector := s.detector.within(tx)
			exclude := append([]uuid.UUID{id}, appointment.ShiftIDs(shifts)...)
			if err := detector.Check(ctx, next.DoctorID, next.PatientID, next.Interval(), exclude); err != nil {
				return err
			}
			if err := s.shifter.Validate(ctx, detector, id, shifts); err != nil {
				return err
			}
		}

		if err := tx.Update(ctx, next); err != nil {
			return err
		}
		moved, err := s.shifter.Apply(ctx, tx, shifts)
		if err != nil {
			return err
		}

		result = &appointment.UpdateResult{Appointment: next, Shifted: moved}
		return nil
	})
	if err != nil {
		s.fail(span, "update", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("cascade.shifted", len(result.Shifted)))
	s.metrics.AppointmentsWritten.WithLabelValues("update").Inc()
	s.log.Info("appointment updated",
		zap.String("appointment_id", id.String()),
		zap.String("status", string(result.Appointment.Status)),
	)

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       domain.ActionUpdate,
		ResourceType: resourceAppointment,
		ResourceID:   id.String(),
		Changes:      changesJSON(&before, result.Appointment),
	})

	if len(result.Shifted) > 0 {
		delta := result.Appointment.EstimatedEndAt.Sub(before.EstimatedEndAt)
		s.metrics.CascadeShifted.Add(float64(len(result.Shifted)))
		s.log.Info("cascade applied",
			zap.String("appointment_id", id.String()),
			zap.Int("shifted", len(result.Shifted)),
			zap.Duration("delta", delta),
		)
		for _, moved := range result.Shifted {
			s.auditSvc.LogAsync(ctx, AuditEntry{
				Action:       domain.ActionUpdate,
				ResourceType: resourceAppointment,
				ResourceID:   moved.ID.String(),
				Changes:      fmt.Sprintf(`{"cascade_from":%q,"delta":%q}`, id, delta),
			})
		}
	}

	return result, nil
}

// Remove deletes the appointment. Freeing a slot cannot create a conflict, so
// nothing is re-checked. The subject keys are still held so a cascade running
// for the same doctor or patient never sees a row disappear mid-batch.
func (s *AppointmentService) Remove(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.Remove",
		trace.WithAttributes(attribute.String("appointment.id", id.String())))
	defer span.End()

	unlockRow, err := s.locker.Lock(ctx, appointment.Key(id))
	if err != nil {
		return fmt.Errorf("acquiring appointment lock: %w", err)
	}
	defer unlockRow()

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	keys := subjectKeys(current.DoctorID, current.PatientID)
	unlockSubjects, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return fmt.Errorf("acquiring scheduling lock: %w", err)
	}
	defer unlockSubjects()

	var removed *appointment.Appointment
	err = s.repo.Transaction(ctx, func(tx appointment.Repository) error {
		if err := tx.LockSubjects(ctx, append(keys, appointment.Key(id))...); err != nil {
			return err
		}
		a, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.DoctorID != current.DoctorID || a.PatientID != current.PatientID {
			return appointment.PersistenceError("reloading appointment", errSubjectsChanged)
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		removed = a
		return nil
	})
	if err != nil {
		s.fail(span, "remove", err)
		return err
	}

	s.metrics.AppointmentsWritten.WithLabelValues("remove").Inc()
	s.log.Info("appointment removed", zap.String("appointment_id", id.String()))
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       domain.ActionDelete,
		ResourceType: resourceAppointment,
		ResourceID:   id.String(),
		Changes:      changesJSON(removed, nil),
	})
	return nil
}

func (s *AppointmentService) Find(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.Find")
	defer span.End()
	return s.repo.GetByID(ctx, id)
}

// List returns appointments whose start matches every supplied calendar
// component, in ascending start order.
func (s *AppointmentService) List(ctx context.Context, q appointment.ListAppointmentsQuery) ([]*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.List")
	defer span.End()

	if err := validateListQuery(q); err != nil {
		return nil, err
	}

	from, to := q.Range(s.loc)
	rows, err := s.repo.List(ctx, from, to)
	if err != nil {
		s.fail(span, "list", err)
		return nil, err
	}

	out := make([]*appointment.Appointment, 0, len(rows))
	for _, a := range rows {
		if q.Matches(a.ScheduledAt, s.loc) {
			out = append(out, a)
		}
	}
	return out, nil
}

// overlay applies cmd to a copy of stored and validates the result.
func (s *AppointmentService) overlay(stored *appointment.Appointment, cmd *appointment.UpdateAppointmentCommand) (*appointment.Appointment, error) {
	next := *stored
	if cmd.DoctorID != nil {
		next.DoctorID = *cmd.DoctorID
	}
	if cmd.PatientID != nil {
		next.PatientID = *cmd.PatientID
	}
	if cmd.Notes != nil {
		next.Notes = *cmd.Notes
	}
	if cmd.Status != nil {
		if !stored.CanTransitionTo(*cmd.Status) {
			return nil, fmt.Errorf("%w: %s to %s", appointment.ErrInvalidStatusTransition, stored.Status, *cmd.Status)
		}
		next.Status = *cmd.Status
	}

	start := stored.ScheduledAt
	if cmd.ScheduledAt != nil {
		start = *cmd.ScheduledAt
	}
	end := stored.EstimatedEndAt
	if cmd.EstimatedEndAt != nil {
		end = *cmd.EstimatedEndAt
	}
	iv, err := appointment.NewInterval(start, &end, s.defaultDuration)
	if err != nil {
		return nil, err
	}
	next.SetInterval(iv)
	return &next, nil
}

func (s *AppointmentService) resolveSubjects(ctx context.Context, doctorID, patientID uuid.UUID) error {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return err
	}
	return nil
}

// fail records err on the span and logs it at a level matching its kind.
func (s *AppointmentService) fail(span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var conflict *appointment.ConflictError
	switch {
	case errors.As(err, &conflict):
		s.log.Info("scheduling conflict",
			zap.String("operation", op),
			zap.String("subject", string(conflict.Subject)),
			zap.String("conflicting_appointment_id", conflict.AppointmentID.String()),
		)
	case errors.Is(err, appointment.ErrPersistence):
		s.log.Error("appointment write failed", zap.String("operation", op), zap.Error(err))
	default:
		s.log.Debug("appointment request rejected", zap.String("operation", op), zap.Error(err))
	}
}

func validateListQuery(q appointment.ListAppointmentsQuery) error {
	var fields []string
	if q.Year != nil && *q.Year < 1900 {
		fields = append(fields, "year must be 1900 or later")
	}
	if q.Month != nil && (*q.Month < 1 || *q.Month > 12) {
		fields = append(fields, "month must be between 1 and 12")
	}
	if q.Day != nil && (*q.Day < 1 || *q.Day > 31) {
		fields = append(fields, "day must be between 1 and 31")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func subjectKeys(doctorID, patientID uuid.UUID) []string {
	return []string{
		appointment.SubjectKey(appointment.SubjectDoctor, doctorID),
		appointment.SubjectKey(appointment.SubjectPatient, patientID),
	}
}

type appointmentSnapshot struct {
	DoctorID       uuid.UUID          `json:"doctor_id"`
	PatientID      uuid.UUID          `json:"patient_id"`
	ScheduledAt    time.Time          `json:"scheduled_at"`
	EstimatedEndAt time.Time          `json:"estimated_end_at"`
	Status         appointment.Status `json:"status"`
}

func snapshot(a *appointment.Appointment) *appointmentSnapshot {
	if a == nil {
		return nil
	}
	return &appointmentSnapshot{
		DoctorID:       a.DoctorID,
		PatientID:      a.PatientID,
		ScheduledAt:    a.ScheduledAt,
		EstimatedEndAt: a.EstimatedEndAt,
		Status:         a.Status,
	}
}

func changesJSON(before, after *appointment.Appointment) string {
	b, err := json.Marshal(struct {
		Before *appointmentSnapshot `json:"before,omitempty"`
		After  *appointmentSnapshot `json:"after,omitempty"`
	}{snapshot(before), snapshot(after)})
	if err != nil {
		return ""
	}
	return string(b)
}
