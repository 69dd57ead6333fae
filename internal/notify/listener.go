package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"rollsheet/internal/domain"
	"rollsheet/internal/domain/models"
)

// reconnectDelay paces reconnect attempts after the listening connection
// fails.
const reconnectDelay = 5 * time.Second

// SheetSource reads the current committed sheet for an id.
type SheetSource interface {
	Get(ctx context.Context, raidID string) (*models.Sheet, error)
}

// Publisher fans a payload out to the connections watching a raid id.
type Publisher interface {
	Publish(raidID string, payload json.RawMessage)
}

// Listener is the single long-lived change notifier: one dedicated
// database connection LISTENing on the raids channel for the lifetime
// of the server. Each notification carries a raid id; the listener
// re-reads the committed document, redacts it, and hands it to the
// fan-out registry. Delivery is best-effort and at-most-once: if the
// listener is down, updates are simply not pushed, and clients recover
// by re-fetching.
type Listener struct {
	databaseURL string
	channel     string
	sheets      SheetSource
	fanout      Publisher
	logger      *slog.Logger
}

// NewListener creates a change-notification listener.
func NewListener(databaseURL, channel string, sheets SheetSource, fanout Publisher, logger *slog.Logger) *Listener {
	return &Listener{
		databaseURL: databaseURL,
		channel:     channel,
		sheets:      sheets,
		fanout:      fanout,
		logger:      logger,
	}
}

// Run listens until ctx is canceled, reconnecting with a fixed delay
// when the connection drops.
func (l *Listener) Run(ctx context.Context) {
	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				l.logger.Info("change listener stopped")
				return
			}
			l.logger.Error("change listener connection lost", "error", err)
		}

		select {
		case <-ctx.Done():
			l.logger.Info("change listener stopped")
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.databaseURL)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen on %s: %w", l.channel, err)
	}
	l.logger.Info("change listener started", "channel", l.channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.handle(ctx, notification.Payload)
	}
}

// handle resolves a raid id to its current redacted document and fans it
// out. Errors are logged and swallowed: a missed push is recovered by
// the client's next fetch, never by replay.
func (l *Listener) handle(ctx context.Context, raidID string) {
	sheet, err := l.sheets.Get(ctx, raidID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.logger.Warn("notification for unknown raid", "raid_id", raidID)
			return
		}
		l.logger.Error("resolve notification", "raid_id", raidID, "error", err)
		return
	}

	payload, err := json.Marshal(sheet.Redacted())
	if err != nil {
		l.logger.Error("encode push payload", "raid_id", raidID, "error", err)
		return
	}

	l.fanout.Publish(raidID, payload)
}
