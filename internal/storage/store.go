package storage

import (
	"context"
	"errors"
)

// ErrMiss is returned by Load when the slot has never been written.
var ErrMiss = errors.New("cache miss")

// SnapshotStore is a durable key-value slot store. Each key holds exactly one
// value; Save overwrites it (last write wins).
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}
