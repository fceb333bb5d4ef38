// Package unified implements the model-introspecting filter and search engine
// behind the unified record API: it derives filter definitions from registered
// model schemas, translates request parameters into typed query predicates,
// and flattens records for output.
package unified

import (
	"sync"

	"github.com/virodata/poxbase/internal/domain"
)

const (
	// DefaultMaxFilters caps how many filter definitions are surfaced per
	// model so the UI stays manageable.
	DefaultMaxFilters = 8
	// DefaultSearchDepth restricts the global search term to root-level text
	// fields. Raising it widens search to nested fields.
	DefaultSearchDepth = 0
)

// Engine derives filters, queries and output plans for registered models. It
// holds no per-request state; one instance serves all requests.
type Engine struct {
	registry    *domain.Registry
	maxFilters  int
	searchDepth int

	mu    sync.RWMutex
	plans map[string]*SelectPlan
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMaxFilters overrides the filter definition cap.
func WithMaxFilters(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxFilters = n
		}
	}
}

// WithSearchDepth overrides how many relation hops the global search covers.
func WithSearchDepth(depth int) Option {
	return func(e *Engine) {
		if depth >= 0 && depth <= domain.MaxRelationDepth {
			e.searchDepth = depth
		}
	}
}

// NewEngine builds an engine over the given registry.
func NewEngine(registry *domain.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:    registry,
		maxFilters:  DefaultMaxFilters,
		searchDepth: DefaultSearchDepth,
		plans:       make(map[string]*SelectPlan),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry exposes the engine's model registry.
func (e *Engine) Registry() *domain.Registry {
	return e.registry
}

func (e *Engine) searchPaths(model string) ([]string, error) {
	fields, err := e.registry.Enumerate(model)
	if err != nil {
		return nil, err
	}
	var paths []string
	for fd := range fields {
		if fd.Kind == domain.FieldKindText && fd.Depth <= e.searchDepth {
			paths = append(paths, fd.Path)
		}
	}
	return paths, nil
}
