package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient is owned by the identity/profile service; the scheduler only reads it.
type Patient struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;index"`
	FirstName string     `gorm:"column:first_name;type:varchar(100);not null"`
	LastName  string     `gorm:"column:last_name;type:varchar(100);not null"`
	Phone     string     `gorm:"column:phone;type:varchar(20)"`
	BirthDate *time.Time `gorm:"column:birth_date"`
}

func (Patient) TableName() string {
	return "patients"
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
