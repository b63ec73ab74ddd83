package guest

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry manages loaded guests.
type Registry struct {
	sync.RWMutex
	guests map[string]*Guest // name -> guest
	logger *zap.Logger
}

// NewRegistry creates a new guest registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		guests: make(map[string]*Guest),
		logger: logger.With(zap.String("component", "guest-registry")),
	}
}

// Register adds a guest to the registry.
func (r *Registry) Register(guest *Guest) error {
	r.Lock()
	defer r.Unlock()

	name := guest.Manifest.Name

	// Check for duplicates
	if _, exists := r.guests[name]; exists {
		return &GuestAlreadyRegisteredError{GuestName: name}
	}

	r.guests[name] = guest

	r.logger.Info("Guest registered",
		zap.String("name", name),
		zap.String("version", guest.Manifest.Version),
	)

	return nil
}

// Get retrieves a guest by name.
func (r *Registry) Get(name string) (*Guest, bool) {
	r.RLock()
	defer r.RUnlock()

	guest, ok := r.guests[name]
	return guest, ok
}

// List returns all registered guests ordered by name.
func (r *Registry) List() []*Guest {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Guest, 0, len(r.guests))
	for _, guest := range r.guests {
		result = append(result, guest)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Manifest.Name < result[j].Manifest.Name
	})
	return result
}

// Unregister removes a guest from the registry.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.guests[name]; !ok {
		return
	}
	delete(r.guests, name)

	r.logger.Info("Guest unregistered", zap.String("name", name))
}

// Count returns the number of registered guests.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.guests)
}
