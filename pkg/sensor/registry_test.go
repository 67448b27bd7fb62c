package sensor

import (
	"errors"
	"sync"
	"testing"

	"github.com/ericogr/as7341-to-mqtt/pkg/config"
)

type countingModule struct {
	setups   int
	reads    int
	closed   bool
	setupErr error
	inFlight int
	overlap  bool
}

func (c *countingModule) Setup() error {
	c.setups++
	return c.setupErr
}

func (c *countingModule) Value(in config.InputConfig) (float64, error) {
	c.inFlight++
	if c.inFlight > 1 {
		c.overlap = true
	}
	c.reads++
	c.inFlight--
	return float64(c.reads), nil
}

func (c *countingModule) Close() error {
	c.closed = true
	return nil
}

func TestRegisterAndNew(t *testing.T) {
	mod := &countingModule{}
	RegisterModule("test_counting", func(cfg config.ModuleConfig) (Module, error) { return mod, nil })

	if _, ok := Lookup("test_counting"); !ok {
		t.Fatalf("registered module not found")
	}
	found := false
	for _, name := range Modules() {
		if name == "test_counting" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Modules() missing test_counting: %v", Modules())
	}

	m, err := New(config.ModuleConfig{Name: "c1", Module: "test_counting"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if mod.setups != 1 {
		t.Fatalf("setup calls: got %d want 1", mod.setups)
	}
	v, err := m.Value(config.InputConfig{Name: "in"})
	if err != nil || v != 1 {
		t.Fatalf("value: got %v, %v", v, err)
	}
	if err := m.Close(); err != nil || !mod.closed {
		t.Fatalf("close: %v closed=%v", err, mod.closed)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	f := func(cfg config.ModuleConfig) (Module, error) { return &countingModule{}, nil }
	RegisterModule("test_dup", f)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	RegisterModule("test_dup", f)
}

func TestNewUnknownModule(t *testing.T) {
	_, err := New(config.ModuleConfig{Name: "x", Module: "does_not_exist"})
	if !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
}

func TestNewSetupFailure(t *testing.T) {
	boom := errors.New("bus busy")
	RegisterModule("test_failing", func(cfg config.ModuleConfig) (Module, error) {
		return &countingModule{setupErr: boom}, nil
	})
	_, err := New(config.ModuleConfig{Name: "f1", Module: "test_failing"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected setup error to be wrapped, got %v", err)
	}
}

func TestSerialize(t *testing.T) {
	mod := &countingModule{}
	m := Serialize(mod)
	if Serialize(m) != m {
		t.Fatalf("Serialize should not double wrap")
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Value(config.InputConfig{})
		}()
	}
	wg.Wait()
	if mod.reads != 50 {
		t.Fatalf("reads: got %d want 50", mod.reads)
	}
	if mod.overlap {
		t.Fatalf("concurrent calls reached the module")
	}
	if got := m.(Channeler).Channel(config.InputConfig{Type: config.StrPtr("raw")}); got != "raw" {
		t.Fatalf("fallback channel: got %q", got)
	}
}
