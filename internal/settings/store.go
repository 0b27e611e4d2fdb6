package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Store persists settings, the goal ID cache and auxiliary options.
type Store interface {
	// Get returns the current settings snapshot.
	Get(ctx context.Context) (Settings, error)

	// Update applies mutate to a copy of the current settings and persists the
	// result as one write. It returns the snapshots before and after.
	Update(ctx context.Context, mutate func(*Settings)) (before, after Settings, err error)

	// GoalIDs returns the cached remote goal IDs. Missing cache yields an empty map.
	GoalIDs(ctx context.Context) (GoalIDCache, error)

	// SaveGoalIDs replaces the cached remote goal IDs.
	SaveGoalIDs(ctx context.Context, ids GoalIDCache) error

	// Option decodes a named option into dst. It reports false when the option is unset.
	Option(ctx context.Context, name string, dst any) (bool, error)

	// SetOption stores v as JSON under name.
	SetOption(ctx context.Context, name string, v any) error
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	options map[string]json.RawMessage
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store seeded with initial settings.
func NewMemoryStore(initial Settings) *MemoryStore {
	m := &MemoryStore{options: make(map[string]json.RawMessage)}
	raw, err := json.Marshal(initial)
	if err == nil {
		m.options[OptionSettings] = raw
	}
	return m
}

func (m *MemoryStore) Get(ctx context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked()
}

func (m *MemoryStore) getLocked() (Settings, error) {
	var s Settings
	raw, ok := m.options[OptionSettings]
	if !ok {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}

func (m *MemoryStore) Update(ctx context.Context, mutate func(*Settings)) (Settings, Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, err := m.getLocked()
	if err != nil {
		return Settings{}, Settings{}, err
	}
	next := old.Clone()
	mutate(&next)

	raw, err := json.Marshal(next)
	if err != nil {
		return Settings{}, Settings{}, fmt.Errorf("encoding settings: %w", err)
	}
	m.options[OptionSettings] = raw
	return old, next.Clone(), nil
}

func (m *MemoryStore) GoalIDs(ctx context.Context) (GoalIDCache, error) {
	ids := GoalIDCache{}
	if _, err := m.Option(ctx, OptionGoalIDs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *MemoryStore) SaveGoalIDs(ctx context.Context, ids GoalIDCache) error {
	return m.SetOption(ctx, OptionGoalIDs, ids)
}

func (m *MemoryStore) Option(ctx context.Context, name string, dst any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.options[name]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decoding option %s: %w", name, err)
	}
	return true, nil
}

func (m *MemoryStore) SetOption(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding option %s: %w", name, err)
	}
	m.mu.Lock()
	m.options[name] = raw
	m.mu.Unlock()
	return nil
}
