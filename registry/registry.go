package registry

import (
	"sync"

	"github.com/sagernet/sing-cerl/congestion_cerl"
	E "github.com/sagernet/sing/common/exceptions"

	"golang.org/x/exp/slices"
)

const (
	NameCerl    = "cerl"
	NameNewReno = "new_reno"
)

// Factory creates a fresh strategy instance for one connection.
type Factory func(options congestion_cerl.Options) congestion_cerl.Algorithm

var (
	access    sync.RWMutex
	factories = map[string]Factory{
		NameCerl: func(options congestion_cerl.Options) congestion_cerl.Algorithm {
			return congestion_cerl.New(options)
		},
		NameNewReno: func(congestion_cerl.Options) congestion_cerl.Algorithm {
			return congestion_cerl.NewNewReno()
		},
	}
)

// Register adds or replaces the factory for name.
func Register(name string, factory Factory) {
	access.Lock()
	defer access.Unlock()
	factories[name] = factory
}

func New(name string, options congestion_cerl.Options) (congestion_cerl.Algorithm, error) {
	access.RLock()
	factory, loaded := factories[name]
	access.RUnlock()
	if !loaded {
		return nil, E.New("unknown congestion control: ", name)
	}
	return factory(options), nil
}

// Names returns the registered names in sorted order.
func Names() []string {
	access.RLock()
	defer access.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
