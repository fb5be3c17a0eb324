package snapshot

import (
	"context"
	"log/slog"
	"sync"

	"storefront/internal/cart/models"
)

// MemoryStore keeps the serialized snapshot in process memory. It is the
// default for tests and single-node development.
type MemoryStore struct {
	mu     sync.RWMutex
	data   []byte
	logger *slog.Logger
}

func NewMemory(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{logger: logger}
}

func (s *MemoryStore) Load(_ context.Context) ([]models.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decodeLines(s.data, s.logger), nil
}

func (s *MemoryStore) Save(_ context.Context, lines []models.Line) error {
	data, err := encodeLines(lines)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}

// SetRaw overwrites the stored bytes directly. Test hook for exercising the
// malformed-snapshot recovery path.
func (s *MemoryStore) SetRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
}
