package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DeviceChangesChannel is the NOTIFY channel written by the devices trigger.
const DeviceChangesChannel = "device_changes"

type changeEvent struct {
	Event string `json:"event"`
	Table string `json:"table"`
}

// ChangeFeed turns Postgres notifications on the devices table into change
// signals. It holds one pooled connection for as long as Listen runs.
type ChangeFeed struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewChangeFeed(pool *pgxpool.Pool, log *zap.Logger) *ChangeFeed {
	return &ChangeFeed{pool: pool, log: log}
}

func (f *ChangeFeed) Listen(ctx context.Context, onChange func()) error {
	pooled, err := f.pool.Acquire(ctx)
	if err != nil {
		return wrap("acquire listener connection", err)
	}
	// LISTEN state must not leak back into the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+DeviceChangesChannel); err != nil {
		return wrap("listen", err)
	}
	f.log.Info("listening for device changes", zap.String("channel", DeviceChangesChannel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var ev changeEvent
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			f.log.Warn("malformed change payload", zap.String("payload", n.Payload), zap.Error(err))
		} else {
			f.log.Debug("device change", zap.String("event", ev.Event), zap.String("table", ev.Table))
		}
		onChange()
	}
}
