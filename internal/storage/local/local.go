package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CaioWing/Arcade/internal/storage"
)

// LocalStore keeps one file per slot under basePath.
type LocalStore struct {
	basePath string
}

func New(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (s *LocalStore) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrMiss
		}
		return nil, fmt.Errorf("read slot: %w", err)
	}
	return data, nil
}

// Save writes to a temp file and renames it over the slot so readers never
// observe a partial snapshot.
func (s *LocalStore) Save(_ context.Context, key string, data []byte) error {
	f, err := os.CreateTemp(s.basePath, ".slot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write slot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close slot: %w", err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace slot: %w", err)
	}
	return nil
}

func (s *LocalStore) Close() error { return nil }

// Keys may contain characters that are not valid in file names.
func (s *LocalStore) path(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(s.basePath, hex.EncodeToString(h[:8])+".json")
}
