package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// posOutboxChannel is the Postgres NOTIFY channel the pos_events_outbox insert trigger
// fires on (see the migration). Listening on it lets the drain loop react to new POS
// events immediately instead of waiting out a full poll interval; the polling drain stays
// the source of truth, so a dropped notification only costs latency, never an event.
const posOutboxChannel = "pos_events_outbox_wakeup"

// StartPosOutboxListener opens a dedicated LISTEN connection against databaseURL and
// nudges the run loop whenever a POS event lands. A no-op for non-Postgres stores (the
// sqlite dev path has no NOTIFY). A failed connect is retried after a fixed 5-second
// pause; a lost connection is reopened at once.
func (s *Scheduler) StartPosOutboxListener(ctx context.Context, databaseURL string) {
	if !strings.HasPrefix(databaseURL, "postgres://") && !strings.HasPrefix(databaseURL, "postgresql://") {
		return
	}
	wake := make(chan struct{}, 1)
	s.wakeup = wake
	log := s.log.Named("pos_outbox_listener")

	go func() {
		for ctx.Err() == nil {
			conn, err := pgx.Connect(ctx, databaseURL)
			if err != nil {
				log.Warn("listen connection failed, retrying", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
				}
				continue
			}
			if _, err := conn.Exec(ctx, "LISTEN "+posOutboxChannel); err != nil {
				log.Warn("LISTEN failed, retrying", zap.Error(err))
				_ = conn.Close(ctx)
				continue
			}
			for {
				if _, err := conn.WaitForNotification(ctx); err != nil {
					break
				}
				select {
				case wake <- struct{}{}:
				default: // a nudge is already pending
				}
			}
			_ = conn.Close(context.Background())
		}
	}()
}
