package encounters

import (
	"context"

	"github.com/edgemed/edgemed/internal/server/models"
)

// Repository persists accepted encounters.
type Repository interface {
	Create(ctx context.Context, encounter *models.Encounter) error
	GetByNoteID(ctx context.Context, noteID string) (*models.Encounter, error)
}
