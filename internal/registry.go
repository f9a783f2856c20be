package nativeclass

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// classRegistry holds every registered class container. Entries are never
// removed.
type classRegistry struct {
	mu         sync.RWMutex
	containers map[string]*ClassInfoContainer
}

var registry = &classRegistry{
	containers: map[string]*ClassInfoContainer{},
}

// ClassOption configures a class at registration.
type ClassOption func(c *ClassInfoContainer)

// WithCreationPolicy sets the creation policy of the class.
func WithCreationPolicy(policy CreationPolicy) ClassOption {
	return func(c *ClassInfoContainer) {
		c.creationPolicy = policy
	}
}

// RegisterClass registers a native class under its canonical name. It is
// meant to be called during program initialization, before engines are
// used. Registering a name twice is a programming error and panics.
func RegisterClass(canonicalName string, initializer Initializer, creator Creator, size uintptr, opts ...ClassOption) *ClassInfoContainer {
	if canonicalName == "" {
		panic(newError(PhaseRegistration, KindInvalidInput, canonicalName, "canonical name cannot be empty"))
	}
	if initializer == nil || creator == nil {
		panic(newError(PhaseRegistration, KindInvalidInput, canonicalName, "initializer and creator are required"))
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, ok := registry.containers[canonicalName]; ok {
		panic(newError(PhaseRegistration, KindDuplicate, canonicalName, "class is already registered"))
	}

	container := newClassInfoContainer(canonicalName, initializer, creator, size)
	for _, opt := range opts {
		opt(container)
	}

	registry.containers[canonicalName] = container

	Logger().Debug("registered class", zap.String("class", canonicalName), zap.Uintptr("size", size))

	return container
}

// IsRegistered reports whether a class with the canonical name exists.
func IsRegistered(canonicalName string) bool {
	_, ok := LookupClass(canonicalName)
	return ok
}

// LookupClass returns the container registered under the canonical name.
func LookupClass(canonicalName string) (*ClassInfoContainer, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	container, ok := registry.containers[canonicalName]
	return container, ok
}

// RegisteredClasses returns the canonical names of all registered classes,
// sorted.
func RegisteredClasses() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.containers))
	for name := range registry.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *classRegistry) all() []*ClassInfoContainer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	containers := make([]*ClassInfoContainer, 0, len(r.containers))
	for _, container := range r.containers {
		containers = append(containers, container)
	}
	return containers
}

// releaseEngine tears down every ClassInfo that belongs to the engine.
func (r *classRegistry) releaseEngine(e *engine) {
	for _, container := range r.all() {
		container.release(e)
	}
}
