package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zynqcloud/go-assets/internal/asset"
)

// Memory is a process-local catalog for development and tests. Nothing
// survives a restart.
type Memory struct {
	mu      sync.RWMutex
	records map[string]asset.Record
	now     func() time.Time
}

// NewMemory returns an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]asset.Record), now: time.Now}
}

func (m *Memory) Create(_ context.Context, d asset.Draft) (asset.Record, error) {
	if err := checkDraft(d); err != nil {
		return asset.Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.StorageLocation == d.StorageLocation {
			return asset.Record{}, errDuplicateLocation
		}
	}
	now := m.now().UTC()
	r := asset.Record{
		ID:              uuid.NewString(),
		Name:            d.Name,
		Format:          d.Format,
		StorageLocation: d.StorageLocation,
		SizeBytes:       d.SizeBytes,
		SHA256:          d.SHA256,
		ContentType:     d.ContentType,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.records[r.ID] = r
	return r, nil
}

func (m *Memory) Fetch(_ context.Context, id string) (asset.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return asset.Record{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) FetchByLocation(_ context.Context, location string) (asset.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.StorageLocation == location {
			return r, nil
		}
	}
	return asset.Record{}, ErrNotFound
}

func (m *Memory) List(_ context.Context, f Filter) ([]asset.Record, error) {
	m.mu.RLock()
	out := make([]asset.Record, 0, len(m.records))
	for _, r := range m.records {
		if f.Format == "" || r.Format == f.Format {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	off := f.offset()
	if off >= len(out) {
		return []asset.Record{}, nil
	}
	out = out[off:]
	if n := f.limit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Memory) Rename(_ context.Context, id, name string) (asset.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return asset.Record{}, ErrNotFound
	}
	r.Name = name
	r.UpdatedAt = m.now().UTC()
	m.records[id] = r
	return r, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
