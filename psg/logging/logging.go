// Package logging provides the category registry used to tag diagnostic
// output from the emulation core. Categories are small stable integer
// handles; the registry is an explicit capability owned by whoever builds
// the machine, not process-global state.
package logging

import (
	"log/slog"
	"sync"
)

// MaxCategories caps how many category names the registry retains.
// Registrations past the cap still get a handle but their name is
// silently dropped.
const MaxCategories = 64

// Category is a handle returned by Register. Handles start at 1; the
// zero value is no category.
type Category int

// Registry maps category handles to display names.
type Registry struct {
	mu    sync.Mutex
	count int
	names [MaxCategories]string
}

// NewRegistry creates an empty category registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register allocates a handle for the named category.
func (r *Registry) Register(name string) Category {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	if r.count < MaxCategories {
		r.names[r.count] = name
	}
	return Category(r.count)
}

// Name returns the display name for a category, or the empty string if
// the handle is unknown or was registered past the cap.
func (r *Registry) Name(c Category) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c <= 0 || int(c) >= MaxCategories {
		return ""
	}
	return r.names[c]
}

// Logger derives a logger tagged with the category's display name.
// A nil base falls back to slog.Default().
func (r *Registry) Logger(base *slog.Logger, c Category) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if name := r.Name(c); name != "" {
		return base.With("category", name)
	}
	return base
}
