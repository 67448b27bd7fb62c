package sensor

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ericogr/as7341-to-mqtt/pkg/config"
)

var ErrUnknownModule = errors.New("unknown sensor module")

// Factory builds an unset-up module from its configuration.
type Factory func(cfg config.ModuleConfig) (Module, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterModule makes a module available by name. It is meant to be called
// from init and panics if name is already taken.
func RegisterModule(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if f == nil {
		panic(fmt.Sprintf("sensor module %q registered with nil factory", name))
	}
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("sensor module already registered for %q", name))
	}
	factories[name] = f
}

func Lookup(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Modules returns the registered module names in sorted order.
func Modules() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New builds and sets up the module named by cfg.Module. The returned module
// is serialized.
func New(cfg config.ModuleConfig) (Module, error) {
	f, ok := Lookup(cfg.Module)
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownModule, cfg.Module, Modules())
	}
	m, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", cfg.Name, err)
	}
	if err := m.Setup(); err != nil {
		return nil, fmt.Errorf("module %s setup: %w", cfg.Name, err)
	}
	return Serialize(m), nil
}
