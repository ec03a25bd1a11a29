// Package collector defines the data-source plugin contract and the
// registry the engine polls. Collectors are stateless: each run returns
// a fresh payload or nothing.
package collector

import (
	"context"
	"fmt"
)

// Collector gathers one snapshot worth of data from an external domain.
// Returning (nil, nil) means "no data this cycle" and is not an error.
type Collector interface {
	Name() string
	Collect(ctx context.Context) (map[string]any, error)
}

// FuncCollector adapts a plain function into a Collector.
type FuncCollector struct {
	name string
	fn   func(ctx context.Context) (map[string]any, error)
}

func NewFuncCollector(name string, fn func(ctx context.Context) (map[string]any, error)) *FuncCollector {
	return &FuncCollector{name: name, fn: fn}
}

func (c *FuncCollector) Name() string { return c.name }

func (c *FuncCollector) Collect(ctx context.Context) (map[string]any, error) {
	return c.fn(ctx)
}

// Registry holds the collector set, populated explicitly at startup.
// Iteration order is registration order so analyzer input ordering is
// stable across ticks.
type Registry struct {
	order  []string
	byName map[string]Collector
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Collector)}
}

func (r *Registry) Register(c Collector) error {
	name := c.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("collector %q already registered", name)
	}
	r.byName[name] = c
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Get(name string) (Collector, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// All returns collectors in registration order.
func (r *Registry) All() []Collector {
	out := make([]Collector, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
