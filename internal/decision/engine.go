// Package decision implements the policies that pick which machines to power
// on for pending work and which to power off for idleness.
package decision

import (
	"fmt"
	"sort"
	"time"

	"PowerKeeper/internal/pool"
)

// DefaultIdleSeconds is how long a machine must sit without claimed slots
// before it becomes a shutdown candidate.
const DefaultIdleSeconds = 3600

type Factory func(p *pool.Pool, idleSeconds int64) pool.Engine

// Engines are registered in a static table, not discovered. Adding a policy
// means adding a line here.
var registry = map[string]Factory{
	"Sequential": NewSequential,
}

// New builds the named engine bound to a pool. An unknown name is a
// configuration error and fatal to startup.
func New(name string, p *pool.Pool, idleSeconds int64) (pool.Engine, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unrecognized decision engine: %s (known: %v)", name, Known())
	}
	if idleSeconds <= 0 {
		idleSeconds = DefaultIdleSeconds
	}
	return factory(p, idleSeconds), nil
}

func Known() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// now is swappable in tests.
var now = func() int64 { return time.Now().Unix() }
