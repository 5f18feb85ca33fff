package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Scheduler interface {
	Create(ctx context.Context, cmd *appointment.CreateAppointmentCommand) (*appointment.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, cmd *appointment.UpdateAppointmentCommand) (*appointment.UpdateResult, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Find(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	List(ctx context.Context, q appointment.ListAppointmentsQuery) ([]*appointment.Appointment, error)
}

type AppointmentHandler struct {
	svc Scheduler
}

func NewAppointmentHandler(svc Scheduler) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

// RegisterRoutes mounts the appointment endpoints on an authenticated group.
func (h *AppointmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/appointments")
	g.POST("", middleware.RequirePermission(domain.PermAppointmentCreate), h.Create)
	g.GET("", middleware.RequirePermission(domain.PermAppointmentRead), h.List)
	g.GET("/:id", middleware.RequirePermission(domain.PermAppointmentRead), h.Get)
	g.PATCH("/:id", middleware.RequirePermission(domain.PermAppointmentUpdate), h.Update)
	g.DELETE("/:id", middleware.RequirePermission(domain.PermAppointmentDelete), h.Remove)
}

type createAppointmentRequest struct {
	DoctorID       string  `json:"doctor_id" binding:"required,uuid"`
	PatientID      string  `json:"patient_id" binding:"required,uuid"`
	ScheduledAt    string  `json:"scheduled_at" binding:"required"`
	EstimatedEndAt *string `json:"estimated_end_at"`
	Status         *string `json:"status"`
	Notes          string  `json:"notes" binding:"max=4000"`
}

type updateAppointmentRequest struct {
	DoctorID       *string `json:"doctor_id" binding:"omitempty,uuid"`
	PatientID      *string `json:"patient_id" binding:"omitempty,uuid"`
	ScheduledAt    *string `json:"scheduled_at"`
	EstimatedEndAt *string `json:"estimated_end_at"`
	Status         *string `json:"status"`
	Notes          *string `json:"notes" binding:"omitempty,max=4000"`
}

type appointmentResponse struct {
	ID             uuid.UUID          `json:"id"`
	DoctorID       uuid.UUID          `json:"doctor_id"`
	PatientID      uuid.UUID          `json:"patient_id"`
	ScheduledAt    time.Time          `json:"scheduled_at"`
	EstimatedEndAt time.Time          `json:"estimated_end_at"`
	Status         appointment.Status `json:"status"`
	Notes          string             `json:"notes,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type updateAppointmentResponse struct {
	Appointment appointmentResponse   `json:"appointment"`
	Shifted     []appointmentResponse `json:"shifted"`
}

func toResponse(a *appointment.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:             a.ID,
		DoctorID:       a.DoctorID,
		PatientID:      a.PatientID,
		ScheduledAt:    a.ScheduledAt,
		EstimatedEndAt: a.EstimatedEndAt,
		Status:         a.Status,
		Notes:          a.Notes,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toResponses(list []*appointment.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toResponse(a))
	}
	return out
}

func (h *AppointmentHandler) Create(c *gin.Context) {
	var req createAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &appointment.CreateAppointmentCommand{
		DoctorID:  uuid.MustParse(req.DoctorID),
		PatientID: uuid.MustParse(req.PatientID),
		Notes:     req.Notes,
	}
	var err error
	if cmd.ScheduledAt, err = appointment.ParseInstant(req.ScheduledAt); err != nil {
		respondServiceError(c, err)
		return
	}
	if cmd.EstimatedEndAt, err = parseOptionalInstant(req.EstimatedEndAt); err != nil {
		respondServiceError(c, err)
		return
	}
	if req.Status != nil {
		s := appointment.Status(*req.Status)
		cmd.Status = &s
	}

	a, err := h.svc.Create(c.Request.Context(), cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toResponse(a))
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.Find(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toResponse(a))
}

// List accepts optional year, month and day query parameters.
func (h *AppointmentHandler) List(c *gin.Context) {
	var (
		q  appointment.ListAppointmentsQuery
		ok bool
	)
	if q.Year, ok = parseQueryInt(c, "year"); !ok {
		return
	}
	if q.Month, ok = parseQueryInt(c, "month"); !ok {
		return
	}
	if q.Day, ok = parseQueryInt(c, "day"); !ok {
		return
	}

	list, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toResponses(list))
}

func (h *AppointmentHandler) Update(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &appointment.UpdateAppointmentCommand{Notes: req.Notes}
	if req.DoctorID != nil {
		v := uuid.MustParse(*req.DoctorID)
		cmd.DoctorID = &v
	}
	if req.PatientID != nil {
		v := uuid.MustParse(*req.PatientID)
		cmd.PatientID = &v
	}
	var err error
	if cmd.ScheduledAt, err = parseOptionalInstant(req.ScheduledAt); err != nil {
		respondServiceError(c, err)
		return
	}
	if cmd.EstimatedEndAt, err = parseOptionalInstant(req.EstimatedEndAt); err != nil {
		respondServiceError(c, err)
		return
	}
	if req.Status != nil {
		s := appointment.Status(*req.Status)
		cmd.Status = &s
	}

	res, err := h.svc.Update(c.Request.Context(), id, cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, updateAppointmentResponse{
		Appointment: toResponse(res.Appointment),
		Shifted:     toResponses(res.Shifted),
	})
}

func (h *AppointmentHandler) Remove(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse[any]{Message: "appointment removed"})
}

func parseOptionalInstant(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := appointment.ParseInstant(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
