package patient

import (
	"context"

	"github.com/google/uuid"
)

type Lookup interface {
	// GetByID retrieves a patient by primary key. Returns ErrPatientNotFound if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}
