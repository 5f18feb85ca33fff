package doctor

import (
	"context"

	"github.com/google/uuid"
)

type Lookup interface {
	// GetByID returns ErrDoctorNotFound if the doctor does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
}
