package medicines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"medicine-history/internal/domain/history"
	"medicine-history/internal/ports/store"
)

var ErrNotFound = errors.New("medicine not found")

// Repository guarda la lista completa de medicamentos como un blob JSON
// bajo la clave "medicines". Igual que el historial, cada mutación es un
// ciclo read-modify-write serializado.
type Repository struct {
	kv store.KV
	mu sync.Mutex
}

func NewRepository(kv store.KV) *Repository {
	return &Repository{kv: kv}
}

func (r *Repository) load(ctx context.Context) ([]Medicine, error) {
	raw, ok, err := r.kv.Get(ctx, store.KeyMedicines)
	if err != nil {
		return nil, fmt.Errorf("load medicines: %w", err)
	}
	if !ok || raw == "" {
		return []Medicine{}, nil
	}

	var list []Medicine
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode medicines: %w", err)
	}
	return list, nil
}

func (r *Repository) save(ctx context.Context, list []Medicine) error {
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode medicines: %w", err)
	}
	if err := r.kv.Set(ctx, store.KeyMedicines, string(b)); err != nil {
		return fmt.Errorf("save medicines: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *Repository) GetByID(ctx context.Context, id string) (Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load(ctx)
	if err != nil {
		return Medicine{}, err
	}
	for _, m := range list {
		if m.ID == id {
			return m, nil
		}
	}
	return Medicine{}, ErrNotFound
}

// Upsert reemplaza el medicamento con el mismo id o lo añade al final.
func (r *Repository) Upsert(ctx context.Context, m Medicine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == m.ID {
			list[i] = m
			return r.save(ctx, list)
		}
	}
	return r.save(ctx, append(list, m))
}

func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	for i := range list {
		if list[i].ID == id {
			list = append(list[:i], list[i+1:]...)
			return true, r.save(ctx, list)
		}
	}
	return false, nil
}

// ListSchedules implementa history.ScheduleSource para el reset del engine.
func (r *Repository) ListSchedules(ctx context.Context) ([]history.Schedule, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]history.Schedule, 0, len(list))
	for _, m := range list {
		out = append(out, m.Schedule())
	}
	return out, nil
}
