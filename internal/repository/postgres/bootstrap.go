package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Bootstrap creates the raids table, its GIN membership index, and the
// change-notification trigger if they do not exist. The trigger fires on
// every insert or update and publishes the raid ID on the prefix's NOTIFY
// channel; delivery happens at commit, so exactly the committed writes
// are announced. Idempotent, run at startup.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, channel string) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				raid_id text PRIMARY KEY,
				raid jsonb NOT NULL
			)
		`, tables.Raids),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS idx_%s_raid ON %s USING gin (raid)
		`, tables.Raids, tables.Raids),
		fmt.Sprintf(`
			CREATE OR REPLACE FUNCTION %s_notify() RETURNS trigger AS $$
			BEGIN
				PERFORM pg_notify('%s', NEW.raid_id);
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql
		`, tables.Raids, channel),
		fmt.Sprintf(`
			DROP TRIGGER IF EXISTS %s_notify ON %s
		`, tables.Raids, tables.Raids),
		fmt.Sprintf(`
			CREATE TRIGGER %s_notify
			AFTER INSERT OR UPDATE ON %s
			FOR EACH ROW EXECUTE FUNCTION %s_notify()
		`, tables.Raids, tables.Raids, tables.Raids),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}

	return nil
}
