package location

import (
	"encoding/json"
	"fmt"
	"sync"
)

// RecentKey is the store key for recently used places.
const RecentKey = "connectify_recent_locations"

// DefaultRecentMax is how many recent places are kept.
const DefaultRecentMax = 5

// Store persists string values by key.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Recent is a most-recent-first list of places, unique by ID.
type Recent struct {
	store Store
	max   int

	mu    sync.Mutex
	items []Place
}

// LoadRecent reads the persisted list. An unreadable list is treated as empty.
func LoadRecent(store Store, max int) *Recent {
	if max < 1 {
		max = DefaultRecentMax
	}
	r := &Recent{store: store, max: max}
	if raw, ok := store.Get(RecentKey); ok && raw != "" {
		var items []Place
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			if len(items) > max {
				items = items[:max]
			}
			r.items = items
		}
	}
	return r
}

// Add moves p to the front, dropping any older entry with the same ID and
// trimming to the maximum, then persists the list.
func (r *Recent) Add(p Place) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]Place, 0, r.max)
	items = append(items, p)
	for _, it := range r.items {
		if it.ID == p.ID {
			continue
		}
		if len(items) == r.max {
			break
		}
		items = append(items, it)
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding recent locations: %w", err)
	}
	if err := r.store.Set(RecentKey, string(data)); err != nil {
		return fmt.Errorf("saving recent locations: %w", err)
	}
	r.items = items
	return nil
}

// List returns a copy of the recent places, most recent first.
func (r *Recent) List() []Place {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Place(nil), r.items...)
}
