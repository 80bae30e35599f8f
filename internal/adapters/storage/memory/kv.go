package memory

import (
	"context"
	"sync"

	"medicine-history/internal/ports/store"
)

// KV es el store en memoria. Sirve de default cuando no hay DB_DSN y de
// doble de pruebas (por eso cuenta escrituras).
type KV struct {
	mu     sync.RWMutex
	data   map[string]string
	writes int
}

func NewKV() *KV {
	return &KV{data: make(map[string]string)}
}

var _ store.KV = (*KV)(nil)

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	s.writes++
	return nil
}

func (s *KV) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	s.writes++
	return nil
}

// Writes devuelve cuántas mutaciones se aplicaron (Set + Remove).
func (s *KV) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
