package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDoctor    Role = "doctor"
	RoleAssistant Role = "assistant"
	RolePatient   Role = "patient"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleAssistant, RolePatient:
		return true
	}
	return false
}

type Permission string

const (
	PermAppointmentCreate Permission = "appointment_create"
	PermAppointmentRead   Permission = "appointment_read"
	PermAppointmentUpdate Permission = "appointment_update"
	PermAppointmentDelete Permission = "appointment_delete"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin:     {PermAppointmentCreate, PermAppointmentRead, PermAppointmentUpdate, PermAppointmentDelete},
	RoleAssistant: {PermAppointmentCreate, PermAppointmentRead, PermAppointmentUpdate, PermAppointmentDelete},
	RoleDoctor:    {PermAppointmentRead, PermAppointmentUpdate},
	RolePatient:   {},
}

// Can reports whether the role grants the permission.
func (r Role) Can(p Permission) bool {
	for _, granted := range rolePermissions[r] {
		if granted == p {
			return true
		}
	}
	return false
}

type Claims struct {
	UserID uuid.UUID `json:"sub"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
}

// Actor identifies who issued a request. It travels in the context so the
// scheduling core can attribute audit entries without knowing about HTTP.
type Actor struct {
	UserID    uuid.UUID
	Role      Role
	IPAddress string
	RequestID string
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}

type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
)

type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	UserRole  Role      `gorm:"column:user_role;type:varchar(30);not null"`
	IPAddress string    `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       AuditAction `gorm:"column:action;type:varchar(20);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`

	RequestID string `gorm:"column:request_id;type:varchar(50);index"`
	Changes   string `gorm:"column:changes;type:text"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
