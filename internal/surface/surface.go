// Package surface enumerates display surfaces and caches the result.
// The registry is the orchestrator's only source of surface descriptors;
// a short-lived cache absorbs repeated enumeration, and an explicit
// invalidation hook reacts to monitor-configuration changes.
package surface

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Bounds describes a surface's position and size.
type Bounds struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Descriptor identifies one display surface.
type Descriptor struct {
	ID      string `yaml:"id"`
	Bounds  Bounds `yaml:"bounds"`
	Primary bool   `yaml:"primary"`
}

func (d Descriptor) String() string {
	role := ""
	if d.Primary {
		role = " primary"
	}
	return fmt.Sprintf("%s %dx%d@%d,%d%s",
		d.ID, d.Bounds.Width, d.Bounds.Height, d.Bounds.X, d.Bounds.Y, role)
}

// Provider performs the actual enumeration.
type Provider interface {
	// Enumerate returns the currently available surfaces.
	Enumerate(ctx context.Context) ([]Descriptor, error)
	// Name identifies the provider for logging.
	Name() string
}

const defaultCacheTTL = 5 * time.Second

// Registry caches surface enumeration. Enumeration failures are
// non-fatal: the registry falls back to the last good list, or an empty
// list when there has never been one.
type Registry struct {
	provider Provider
	ttl      time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	cached   []Descriptor
	cachedAt time.Time
	valid    bool
	lastGood []Descriptor
	haveGood bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCacheTTL overrides the cache lifetime (default 5s).
func WithCacheTTL(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.ttl = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates a registry over a provider.
func NewRegistry(provider Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	r := &Registry{
		provider: provider,
		ttl:      defaultCacheTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Enumerate returns the available surfaces, served from cache while
// fresh. Never returns an error: on provider failure the last good list
// (possibly empty) is returned and the failure is logged.
func (r *Registry) Enumerate(ctx context.Context) []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.valid && time.Since(r.cachedAt) <= r.ttl {
		return cloneDescriptors(r.cached)
	}

	descs, err := r.provider.Enumerate(ctx)
	if err != nil {
		r.logger.Warn("surface enumeration failed",
			"provider", r.provider.Name(),
			"error", err,
			"fallback", r.haveGood)
		if r.haveGood {
			return cloneDescriptors(r.lastGood)
		}
		return nil
	}

	r.cached = cloneDescriptors(descs)
	r.cachedAt = time.Now()
	r.valid = true
	r.lastGood = cloneDescriptors(descs)
	r.haveGood = true
	return cloneDescriptors(descs)
}

// Invalidate drops the cache. Call on monitor-configuration-change
// notifications; the next Enumerate hits the provider.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.valid = false
}

func cloneDescriptors(descs []Descriptor) []Descriptor {
	if descs == nil {
		return nil
	}
	out := make([]Descriptor, len(descs))
	copy(out, descs)
	return out
}
