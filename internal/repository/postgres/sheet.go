package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"rollsheet/internal/domain"
	"rollsheet/internal/domain/models"
	"rollsheet/internal/domain/repositories"
)

// PostgresSheetRepository stores each raid sheet as one JSONB document
// keyed by raid ID. The primary key enforces the row-per-document
// invariant; a GIN index over the document serves the admin/attendee
// membership queries.
type PostgresSheetRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewSheetRepository creates a new sheet repository.
func NewSheetRepository(config *RepositoryConfig) repositories.SheetRepository {
	return &PostgresSheetRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Get retrieves a sheet without locking. Reads are read-committed: a
// concurrent in-flight mutation is not visible until it commits.
func (r *PostgresSheetRepository) Get(ctx context.Context, raidID string) (*models.Sheet, error) {
	query := fmt.Sprintf(`SELECT raid FROM %s WHERE raid_id = $1`, r.tables.Raids)

	executor := GetExecutor(ctx, r.pool)
	var raw []byte
	if err := executor.QueryRow(ctx, query, raidID).Scan(&raw); err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("raid %s: %w", raidID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get raid: %w", err)
	}

	return decodeSheet(raw)
}

// GetForUpdate retrieves a sheet under FOR UPDATE, blocking concurrent
// writers of the same raid until the transaction in ctx finishes. The
// wait is bounded by the transaction manager's lock_timeout.
func (r *PostgresSheetRepository) GetForUpdate(ctx context.Context, raidID string) (*models.Sheet, error) {
	query := fmt.Sprintf(`SELECT raid FROM %s WHERE raid_id = $1 FOR UPDATE`, r.tables.Raids)

	executor := GetExecutor(ctx, r.pool)
	var raw []byte
	if err := executor.QueryRow(ctx, query, raidID).Scan(&raw); err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("raid %s: %w", raidID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get raid for update: %w", err)
	}

	return decodeSheet(raw)
}

// Upsert writes the whole document. The raids trigger turns the insert
// or update into a pg_notify on commit.
func (r *PostgresSheetRepository) Upsert(ctx context.Context, raidID string, sheet *models.Sheet) error {
	doc, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("encode sheet: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (raid_id, raid)
		VALUES ($1, $2)
		ON CONFLICT (raid_id) DO UPDATE SET raid = EXCLUDED.raid
	`, r.tables.Raids)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, raidID, doc); err != nil {
		return fmt.Errorf("upsert raid: %w", err)
	}

	return nil
}

// ListForUser returns every sheet where the user appears as an admin or
// an attendee, via JSONB containment against the GIN index.
func (r *PostgresSheetRepository) ListForUser(ctx context.Context, user models.User) ([]*models.Sheet, error) {
	adminNeedle, err := json.Marshal([]map[string]string{{"userId": user.ID}})
	if err != nil {
		return nil, fmt.Errorf("encode admin needle: %w", err)
	}
	attendeeNeedle, err := json.Marshal([]map[string]map[string]string{{"user": {"userId": user.ID}}})
	if err != nil {
		return nil, fmt.Errorf("encode attendee needle: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT raid FROM %s
		WHERE raid->'admins' @> $1::jsonb OR raid->'attendees' @> $2::jsonb
		ORDER BY raid->>'time'
	`, r.tables.Raids)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, adminNeedle, attendeeNeedle)
	if err != nil {
		return nil, fmt.Errorf("list raids: %w", err)
	}
	defer rows.Close()

	var sheets []*models.Sheet
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan raid: %w", err)
		}
		sheet, err := decodeSheet(raw)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list raids: %w", err)
	}

	return sheets, nil
}

func decodeSheet(raw []byte) (*models.Sheet, error) {
	var sheet models.Sheet
	if err := json.Unmarshal(raw, &sheet); err != nil {
		return nil, fmt.Errorf("decode sheet: %w", err)
	}
	return &sheet, nil
}
