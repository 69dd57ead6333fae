package repositories

import (
	"context"

	"rollsheet/internal/domain/models"
)

// SheetRepository is the document store for raid sheets. One row exists
// per raid ID; every write replaces the whole document.
type SheetRepository interface {
	// Get is a plain committed read with no lock. Returns
	// domain.ErrNotFound if the raid does not exist.
	Get(ctx context.Context, raidID string) (*models.Sheet, error)

	// GetForUpdate reads the sheet under an exclusive row lock scoped to
	// the transaction in ctx. It is the core's sole concurrency
	// primitive: concurrent callers on the same raid ID block until the
	// holder commits or rolls back; different raid IDs do not interact.
	GetForUpdate(ctx context.Context, raidID string) (*models.Sheet, error)

	// Upsert writes the full document, replacing any existing row for the
	// raid ID. Committing the enclosing transaction fires one change
	// notification carrying the raid ID.
	Upsert(ctx context.Context, raidID string, sheet *models.Sheet) error

	// ListForUser returns every sheet where the user is an admin or an
	// attendee.
	ListForUser(ctx context.Context, user models.User) ([]*models.Sheet, error)
}
