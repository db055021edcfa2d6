package composer

import (
	"sync"

	"github.com/google/uuid"
)

// PreviewRegistry tracks preview handles for attached files. Handles are not
// reclaimed automatically and must be released when a file is removed.
type PreviewRegistry struct {
	mu      sync.Mutex
	entries map[string]File
}

// NewPreviewRegistry returns an empty registry.
func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{entries: map[string]File{}}
}

// Create registers f and returns its handle.
func (r *PreviewRegistry) Create(f File) string {
	h := "preview:" + uuid.NewString()
	r.mu.Lock()
	r.entries[h] = f
	r.mu.Unlock()
	return h
}

// Get returns the file behind a live handle.
func (r *PreviewRegistry) Get(handle string) (File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.entries[handle]
	return f, ok
}

// Release frees a handle. It reports whether the handle was live.
func (r *PreviewRegistry) Release(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[handle]
	delete(r.entries, handle)
	return ok
}

// Len returns the number of live handles.
func (r *PreviewRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
