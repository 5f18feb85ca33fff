package doctor

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Doctor is owned by the staff/profile service; the scheduler only reads it.
type Doctor struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	FirstName string    `gorm:"column:first_name;type:varchar(100);not null"`
	LastName  string    `gorm:"column:last_name;type:varchar(100);not null"`
	Specialty string    `gorm:"column:specialty;type:varchar(255)"`
	// Medical council registration number
	CRMNumber string `gorm:"column:crm_number;type:varchar(50);index"`
}

func (Doctor) TableName() string {
	return "doctors"
}

func (d *Doctor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}
