package nativeclass

import (
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// CreationPolicy controls who may create instances of a class.
type CreationPolicy int

const (
	// CreationPolicyNativeAndScript allows `new TypeName()` in script and
	// creation from Go.
	CreationPolicyNativeAndScript CreationPolicy = iota
	// CreationPolicyNativeOnly rejects `new TypeName()` in script with a
	// TypeError, instances can only be created from Go.
	CreationPolicyNativeOnly
)

// ClassInfoContainer holds the construction recipe of one native class and
// the ClassInfo created from it for every engine that used the class.
// Containers are created by RegisterClass and live for the process lifetime.
type ClassInfoContainer struct {
	canonicalName  string
	size           uintptr
	initializer    Initializer
	creator        Creator
	creationPolicy CreationPolicy

	mu         sync.Mutex
	classInfos map[EngineID]*ClassInfo
}

func newClassInfoContainer(canonicalName string, initializer Initializer, creator Creator, size uintptr) *ClassInfoContainer {
	return &ClassInfoContainer{
		canonicalName: canonicalName,
		size:          size,
		initializer:   initializer,
		creator:       creator,
		classInfos:    map[EngineID]*ClassInfo{},
	}
}

// CanonicalName returns the process-wide unique name of the class.
func (c *ClassInfoContainer) CanonicalName() string {
	return c.canonicalName
}

// Size returns the size of the native object, as given at registration.
func (c *ClassInfoContainer) Size() uintptr {
	return c.size
}

// CreationPolicy returns the creation policy of the class.
func (c *ClassInfoContainer) CreationPolicy() CreationPolicy {
	return c.creationPolicy
}

// Engines returns the ids of the engines that currently hold a ClassInfo
// for this class, in ascending order.
func (c *ClassInfoContainer) Engines() []EngineID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]EngineID, 0, len(c.classInfos))
	for id := range c.classInfos {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}

// classInfoFor returns the ClassInfo of this class for the engine, creating
// and initializing it on first use. pending lists the classes whose
// initialization on e led to this request; finding c among them is an
// inheritance cycle.
func (c *ClassInfoContainer) classInfoFor(e *engine, pending []*ClassInfoContainer) *ClassInfo {
	if slices.Contains(pending, c) {
		panic(newError(PhaseInitialization, KindInvalidInput, c.canonicalName, "class requested while it is being initialized on this engine, inheritance cycle"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if info, ok := c.classInfos[e.id]; ok {
		return info
	}

	if e.isDisposed() {
		panic(newError(PhaseRuntime, KindTornDown, c.canonicalName, "engine was disposed"))
	}

	info := newClassInfo(c, e)
	info.pending = append(slices.Clip(pending), c)
	info.initialize()
	c.classInfos[e.id] = info

	e.logger.Debug("created class info", zap.String("class", c.canonicalName), zap.Int("engines", len(c.classInfos)))

	return info
}

// release tears down and forgets the ClassInfo for the engine.
func (c *ClassInfoContainer) release(e *engine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.classInfos[e.id]
	if !ok {
		return
	}

	info.tearDown()
	delete(c.classInfos, e.id)
}
