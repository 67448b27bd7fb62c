package sensor

import (
	"sync"

	"github.com/ericogr/as7341-to-mqtt/pkg/config"
)

type serialized struct {
	mu sync.Mutex
	m  Module
}

// Serialize wraps m so that at most one call reaches it at a time. Inputs
// polled from separate goroutines share one bus through it.
func Serialize(m Module) Module {
	if s, ok := m.(*serialized); ok {
		return s
	}
	return &serialized{m: m}
}

func (s *serialized) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Setup()
}

func (s *serialized) Value(in config.InputConfig) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Value(in)
}

func (s *serialized) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Close()
}

func (s *serialized) Channel(in config.InputConfig) string {
	if c, ok := s.m.(Channeler); ok {
		return c.Channel(in)
	}
	return in.TypeName()
}
