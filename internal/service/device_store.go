package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/domain"
)

// DeviceStore is the engine's only path to the authoritative device table.
// Read failures on the bulk path are absorbed so callers can fall back to
// cached views instead of failing.
type DeviceStore struct {
	repo domain.DeviceRepository
	log  *zap.Logger
}

func NewDeviceStore(repo domain.DeviceRepository, log *zap.Logger) *DeviceStore {
	return &DeviceStore{repo: repo, log: log}
}

// FetchAll returns every device. ok is false when the store could not be
// read; the error has already been logged.
func (s *DeviceStore) FetchAll(ctx context.Context) (devices []*domain.Device, ok bool) {
	devices, err := s.repo.ListAll(ctx)
	if err != nil {
		s.log.Warn("device store unreachable", zap.Error(err))
		return nil, false
	}
	return devices, true
}

// FetchOne returns domain.ErrNotFound for a missing device and an error
// wrapping domain.ErrStoreUnavailable for anything else.
func (s *DeviceStore) FetchOne(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	d, err := s.repo.GetByID(ctx, id)
	switch {
	case err == nil:
		return d, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, domain.ErrNotFound
	case errors.Is(err, domain.ErrStoreUnavailable):
		return nil, err
	default:
		return nil, fmt.Errorf("fetch device %s: %w: %v", id, domain.ErrStoreUnavailable, err)
	}
}

// Update applies a partial update. With preconditions set on the patch it
// behaves as a compare-and-set and returns domain.ErrConflict when the stored
// row no longer matches.
func (s *DeviceStore) Update(ctx context.Context, id uuid.UUID, patch domain.DevicePatch) (*domain.Device, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: empty device update", domain.ErrInvalidInput)
	}
	return s.repo.Update(ctx, id, patch)
}
