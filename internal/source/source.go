// Package source defines the contract every upstream news API adapter
// implements and the registry that resolves adapters by name.
package source

//go:generate mockgen -source=source.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"news_aggregator/internal/domain"
)

// Adapter fetches one page of articles from an upstream API and normalizes
// them to domain.Article. Each implementation also exposes a Normalize method
// over its own raw record type.
type Adapter interface {
	Name() string
	FetchPage(ctx context.Context, page int, fromDate string) (*domain.PageResult, error)
}

// Constructor builds an adapter. Registered once at startup.
type Constructor func() (Adapter, error)

// Factory is a static registry mapping source names to constructors.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewFactory builds a factory with the given constructors pre-registered.
func NewFactory(constructors map[string]Constructor) *Factory {
	f := &Factory{constructors: make(map[string]Constructor)}
	for name, c := range constructors {
		f.Register(name, c)
	}
	return f
}

// Register associates a constructor with a source name.
func (f *Factory) Register(name string, c Constructor) {
	key := normalizeName(name)
	if key == "" || c == nil {
		return
	}

	f.mu.Lock()
	f.constructors[key] = c
	f.mu.Unlock()
}

// Create returns a new adapter for name or an *UnknownSourceError.
func (f *Factory) Create(name string) (Adapter, error) {
	f.mu.RLock()
	c, ok := f.constructors[normalizeName(name)]
	f.mu.RUnlock()

	if !ok {
		return nil, &UnknownSourceError{Name: name}
	}
	return c()
}

// Names returns the registered source names in sorted order.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
