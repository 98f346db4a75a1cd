package surface

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// StaticProvider serves a fixed surface list. Used for tests and for
// inline configuration.
type StaticProvider struct {
	Surfaces []Descriptor
}

// Enumerate implements Provider.
func (p *StaticProvider) Enumerate(ctx context.Context) ([]Descriptor, error) {
	return cloneDescriptors(p.Surfaces), nil
}

// Name implements Provider.
func (p *StaticProvider) Name() string { return "static" }

// LayoutProvider reads surfaces from a YAML layout file. The file is
// re-read on every (uncached) enumeration, so a registry invalidation
// picks up layout edits.
type LayoutProvider struct {
	Path string
}

type layoutFile struct {
	Surfaces []Descriptor `yaml:"surfaces"`
}

// Enumerate implements Provider.
func (p *LayoutProvider) Enumerate(ctx context.Context) ([]Descriptor, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}

	var layout layoutFile
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", p.Path, err)
	}

	seen := make(map[string]struct{}, len(layout.Surfaces))
	for i, d := range layout.Surfaces {
		if d.ID == "" {
			return nil, fmt.Errorf("layout %s: surface %d has no id", p.Path, i)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("layout %s: duplicate surface id %q", p.Path, d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return layout.Surfaces, nil
}

// Name implements Provider.
func (p *LayoutProvider) Name() string { return "layout" }

// TermProvider reports the controlling terminal as a single primary
// surface. Fallback when no layout file is configured.
type TermProvider struct{}

// Enumerate implements Provider.
func (p *TermProvider) Enumerate(ctx context.Context) ([]Descriptor, error) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("stdout is not a terminal")
	}
	w, h, err := term.GetSize(fd)
	if err != nil {
		return nil, fmt.Errorf("terminal size: %w", err)
	}
	return []Descriptor{{
		ID:      "term",
		Bounds:  Bounds{Width: w, Height: h},
		Primary: true,
	}}, nil
}

// Name implements Provider.
func (p *TermProvider) Name() string { return "term" }
