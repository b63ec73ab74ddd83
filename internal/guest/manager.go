package guest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasmcall/internal/wasm"
)

// Manager manages guest lifecycle and dispatches calls to guests by name.
type Manager struct {
	paths    []string
	runtime  *wasm.Runtime
	loader   *Loader
	registry *Registry
	invoker  *wasm.Invoker
	logger   *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// NewManager creates a new guest manager serving guests found under paths.
func NewManager(
	paths []string,
	runtime *wasm.Runtime,
	hostFuncs *wasm.HostFunctionsImpl,
	logger *zap.Logger,
) *Manager {
	instances := wasm.NewInstanceManager(runtime, hostFuncs, logger)
	return &Manager{
		paths:    paths,
		runtime:  runtime,
		loader:   NewLoader(runtime, logger),
		registry: NewRegistry(logger),
		invoker:  wasm.NewInvoker(runtime, instances, logger),
		logger:   logger.With(zap.String("component", "guest-manager")),
	}
}

// LoadAll discovers and loads all guests from the configured paths.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("guests already loaded")
	}

	m.logger.Info("Loading guests", zap.Strings("paths", m.paths))

	guests, err := m.loader.DiscoverGuests(ctx, m.paths)
	if err != nil {
		var none *NoGuestsFoundError
		if errors.As(err, &none) {
			m.logger.Warn("No guests found in configured paths",
				zap.Strings("paths", m.paths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, guest := range guests {
		if err := m.registry.Register(guest); err != nil {
			m.logger.Error("Failed to register guest",
				zap.String("name", guest.Manifest.Name),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Guests loaded successfully", zap.Int("count", m.registry.Count()))

	return nil
}

// GetGuest retrieves a guest by name.
func (m *Manager) GetGuest(name string) (*Guest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	guest, ok := m.registry.Get(name)
	if !ok {
		return nil, &GuestNotFoundError{GuestName: name}
	}

	return guest, nil
}

// Call runs one call of the named guest with input and returns the bytes
// the guest handed off.
func (m *Manager) Call(ctx context.Context, name string, input []byte) (*wasm.CallResult, error) {
	guest, err := m.GetGuest(name)
	if err != nil {
		return nil, err
	}

	return m.invoker.Call(ctx, guest.Compiled.Name, input)
}

// Shutdown gracefully shuts down all guests.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down guest manager")

	// Runtime close handles instance cleanup
	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Guest manager shutdown complete")
	return nil
}

// Registry returns the guest registry (for testing/inspection).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether guests have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
