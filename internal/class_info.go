package nativeclass

import (
	"fmt"
	"sync/atomic"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ClassState is the lifecycle state of a ClassInfo.
type ClassState int

const (
	ClassStateCreated ClassState = iota
	ClassStateInitializing
	ClassStateReady
	ClassStateTornDown
)

func (s ClassState) String() string {
	switch s {
	case ClassStateCreated:
		return "created"
	case ClassStateInitializing:
		return "initializing"
	case ClassStateReady:
		return "ready"
	case ClassStateTornDown:
		return "torn down"
	}
	return fmt.Sprintf("ClassState(%d)", int(s))
}

// ClassInfo is one native class inside one engine. It owns the function
// template for that engine and the bound constructor callback.
// ClassInfo values are only created by ClassInfoContainer.
type ClassInfo struct {
	engine              *engine
	container           *ClassInfoContainer
	functionTemplate    *FunctionTemplate
	constructorCallback ConstructorCallback
	state               atomic.Int32

	// containers initializing on the current call path, this one included.
	pending []*ClassInfoContainer

	// set while the instance is created from Go, bypasses the creation policy.
	nativeConstruction bool
}

func newClassInfo(container *ClassInfoContainer, e *engine) *ClassInfo {
	info := &ClassInfo{
		engine:    e,
		container: container,
	}
	info.setState(ClassStateCreated)

	ft, err := newFunctionTemplate(e.runtime, container.canonicalName, info.construct)
	if err != nil {
		panic(&Error{Phase: PhaseInitialization, Kind: KindInvalidInput, Class: container.canonicalName, Detail: "could not create function template", Cause: err})
	}
	info.functionTemplate = ft

	return info
}

// initialize runs the class initializer. Every registration must happen
// synchronously inside it.
func (ci *ClassInfo) initialize() {
	ci.setState(ClassStateInitializing)
	ci.container.initializer(ci)

	if ci.constructorCallback == nil {
		// Classes that are only created through their creator get a no-op
		// constructor, so `new` still associates a native object.
		ci.constructorCallback = func(NativeObject, goja.FunctionCall) {}
	}

	ci.setState(ClassStateReady)
	ci.pending = nil
	ci.logger().Debug("class ready")
}

// Engine returns the engine this ClassInfo belongs to.
func (ci *ClassInfo) Engine() Engine {
	return ci.engine
}

// Container returns the process-wide container this ClassInfo was created from.
func (ci *ClassInfo) Container() *ClassInfoContainer {
	return ci.container
}

// CanonicalName returns the canonical name of the class.
func (ci *ClassInfo) CanonicalName() string {
	return ci.container.canonicalName
}

// State returns the lifecycle state.
func (ci *ClassInfo) State() ClassState {
	return ClassState(ci.state.Load())
}

func (ci *ClassInfo) setState(state ClassState) {
	ci.state.Store(int32(state))
}

// RegisterConstructor binds the callback run for `new TypeName(...)`.
// Registering again replaces the previous constructor (last write wins).
func (ci *ClassInfo) RegisterConstructor(callback ConstructorCallback) {
	ci.mustBeInitializing("constructor")
	if callback == nil {
		panic(memberError(PhaseInitialization, KindInvalidInput, ci.CanonicalName(), "constructor", "callback cannot be nil"))
	}

	if ci.constructorCallback != nil {
		ci.logger().Warn("constructor registered twice, replacing previous constructor")
	}

	ci.constructorCallback = callback
}

// RegisterMethod installs a named method on the prototype. Registering the
// same name twice replaces the previous binding.
func (ci *ClassInfo) RegisterMethod(methodName string, callback MethodCallback) {
	ci.mustBeInitializing(methodName)
	if methodName == "" || callback == nil {
		panic(memberError(PhaseInitialization, KindInvalidInput, ci.CanonicalName(), methodName, "method name and callback are required"))
	}

	holder := callbackHolder{
		methodName: methodName,
		callback:   callback,
	}

	err := ci.functionTemplate.SetPrototypeMethod(methodName, func(call goja.FunctionCall) goja.Value {
		obj := ci.resolveThis(call.This, holder.methodName)
		result := holder.callback(obj, holder.methodName, call)
		if result == nil {
			return goja.Undefined()
		}
		return result
	})
	if err != nil {
		panic(&Error{Phase: PhaseInitialization, Kind: KindInvalidInput, Class: ci.CanonicalName(), Member: methodName, Detail: "could not install method", Cause: err})
	}
}

// RegisterStaticMethod installs a named function on the constructor.
func (ci *ClassInfo) RegisterStaticMethod(methodName string, callback StaticMethodCallback) {
	ci.mustBeInitializing(methodName)
	if methodName == "" || callback == nil {
		panic(memberError(PhaseInitialization, KindInvalidInput, ci.CanonicalName(), methodName, "method name and callback are required"))
	}

	holder := staticCallbackHolder{
		methodName: methodName,
		callback:   callback,
	}

	err := ci.functionTemplate.SetStaticMethod(methodName, func(call goja.FunctionCall) goja.Value {
		ci.throwIfTornDown()
		result := holder.callback(ci, holder.methodName, call)
		if result == nil {
			return goja.Undefined()
		}
		return result
	})
	if err != nil {
		panic(&Error{Phase: PhaseInitialization, Kind: KindInvalidInput, Class: ci.CanonicalName(), Member: methodName, Detail: "could not install static method", Cause: err})
	}
}

// RegisterAccessor installs a property accessor. Without a setter the
// property is read-only for scripts. Attributes default to
// PropertyAttributeNone.
func (ci *ClassInfo) RegisterAccessor(propertyName string, getter AccessorGetterCallback, setter AccessorSetterCallback, attributes ...PropertyAttribute) {
	ci.mustBeInitializing(propertyName)
	if propertyName == "" || getter == nil {
		panic(memberError(PhaseInitialization, KindInvalidInput, ci.CanonicalName(), propertyName, "property name and getter are required"))
	}

	holder := accessorHolder{
		propertyName: propertyName,
		getter:       getter,
		setter:       setter,
	}
	for _, attribute := range attributes {
		holder.attributes |= attribute
	}

	get := func(call goja.FunctionCall) goja.Value {
		obj := ci.resolveThis(call.This, holder.propertyName)
		result := holder.getter(obj, holder.propertyName)
		if result == nil {
			return goja.Undefined()
		}
		return result
	}

	var set func(call goja.FunctionCall) goja.Value
	if holder.setter != nil {
		set = func(call goja.FunctionCall) goja.Value {
			obj := ci.resolveThis(call.This, holder.propertyName)
			holder.setter(obj, holder.propertyName, call.Argument(0))
			return goja.Undefined()
		}
	}

	if err := ci.functionTemplate.SetAccessor(propertyName, get, set, holder.attributes); err != nil {
		panic(&Error{Phase: PhaseInitialization, Kind: KindInvalidInput, Class: ci.CanonicalName(), Member: propertyName, Detail: "could not install accessor", Cause: err})
	}
}

// Inherit makes this class a subclass of another registered class in the
// same engine. It must be called from the initializer. Inheriting from a class
// whose initialization is still in progress on this engine, itself included,
// panics with KindInvalidInput.
func (ci *ClassInfo) Inherit(canonicalName string) {
	ci.mustBeInitializing("prototype")

	container, ok := LookupClass(canonicalName)
	if !ok {
		panic(&Error{Phase: PhaseInitialization, Kind: KindNotFound, Class: ci.CanonicalName(), Detail: "parent class " + canonicalName, Cause: ErrClassNotFound})
	}

	parent := container.classInfoFor(ci.engine, ci.pending)

	if err := ci.functionTemplate.Inherit(parent.FunctionTemplate()); err != nil {
		panic(&Error{Phase: PhaseInitialization, Kind: KindInvalidInput, Class: ci.CanonicalName(), Detail: "could not inherit from " + canonicalName, Cause: err})
	}
}

// FunctionTemplate returns the template of this class in this engine. It
// faults when called before a constructor was registered.
func (ci *ClassInfo) FunctionTemplate() *FunctionTemplate {
	ci.mustBeUsable()
	if ci.State() != ClassStateReady && ci.constructorCallback == nil {
		panic(newError(PhaseInitialization, KindNotReady, ci.CanonicalName(), "function template requested before a constructor was registered"))
	}
	return ci.functionTemplate
}

// Constructor returns the script-visible constructor function. It faults
// when called before the initializer completed.
func (ci *ClassInfo) Constructor() *goja.Object {
	ci.mustBeUsable()
	if state := ci.State(); state != ClassStateReady {
		panic(newError(PhaseInitialization, KindNotReady, ci.CanonicalName(), "constructor requested while "+state.String()))
	}
	return ci.functionTemplate.GetFunction()
}

// HasInstance reports whether value is a script object of this class or of
// a subclass.
func (ci *ClassInfo) HasInstance(value goja.Value) bool {
	return ci.FunctionTemplate().HasInstance(value)
}

// NewInstance creates a script object of this class from Go. The creation
// policy does not apply.
func (ci *ClassInfo) NewInstance(args ...goja.Value) (NativeObject, error) {
	ci.Constructor()

	ci.nativeConstruction = true
	defer func() {
		ci.nativeConstruction = false
	}()

	jsObject, err := ci.functionTemplate.NewInstance(args...)
	if err != nil {
		return nil, fmt.Errorf("could not create instance of %s: %w", ci.CanonicalName(), err)
	}

	obj, ok := nativeObjectOf(jsObject)
	if !ok {
		return nil, newError(PhaseConstruction, KindWrongType, ci.CanonicalName(), "constructor did not produce a native object")
	}

	return obj, nil
}

// construct is the construct handler of the function template.
func (ci *ClassInfo) construct(call goja.ConstructorCall) *goja.Object {
	rt := ci.engine.runtime
	ci.throwIfTornDown()

	if call.NewTarget == nil {
		panic(rt.NewTypeError(fmt.Sprintf("Class constructor %s cannot be invoked without 'new'", ci.CanonicalName())))
	}

	if ci.State() != ClassStateReady {
		panic(rt.NewTypeError(fmt.Sprintf("class %s is not initialized", ci.CanonicalName())))
	}

	if ci.container.creationPolicy == CreationPolicyNativeOnly && !ci.nativeConstruction {
		panic(rt.NewTypeError("Illegal constructor: " + ci.CanonicalName() + " can only be created natively"))
	}
	ci.nativeConstruction = false

	obj := ci.container.creator(ci, call.This)
	if obj == nil {
		panic(rt.NewTypeError(fmt.Sprintf("creator for %s returned no object", ci.CanonicalName())))
	}

	if err := associate(ci, call.This, obj); err != nil {
		panic(rt.NewGoError(err))
	}

	ci.constructorCallback(obj, goja.FunctionCall{
		This:      call.This,
		Arguments: call.Arguments,
	})

	return nil
}

// resolveThis returns the native object a method or accessor was invoked on,
// throwing a TypeError for foreign or disposed receivers.
func (ci *ClassInfo) resolveThis(this goja.Value, member string) NativeObject {
	rt := ci.engine.runtime
	ci.throwIfTornDown()

	obj, ok := nativeObjectOf(this)
	if !ok {
		panic(rt.NewTypeError(fmt.Sprintf("Illegal invocation: %s.%s called on an object that is not a live %s", ci.CanonicalName(), member, ci.CanonicalName())))
	}

	if !obj.ClassInfo().isOrDerives(ci) {
		panic(rt.NewTypeError(fmt.Sprintf("Illegal invocation: %s.%s called on an instance of %s", ci.CanonicalName(), member, obj.ClassInfo().CanonicalName())))
	}

	return obj
}

func (ci *ClassInfo) isOrDerives(other *ClassInfo) bool {
	for t := ci.functionTemplate; t != nil; t = t.parent {
		if t == other.functionTemplate {
			return true
		}
	}
	return false
}

func (ci *ClassInfo) mustBeInitializing(member string) {
	if state := ci.State(); state != ClassStateInitializing {
		panic(memberError(PhaseInitialization, KindNotReady, ci.CanonicalName(), member, "registration is only allowed from the initializer, class is "+state.String()))
	}
}

func (ci *ClassInfo) tornDownError() *Error {
	return newError(PhaseRuntime, KindTornDown, ci.CanonicalName(), "class used after its engine was disposed")
}

func (ci *ClassInfo) mustBeUsable() {
	if ci.State() == ClassStateTornDown {
		panic(ci.tornDownError())
	}
}

// throwIfTornDown is mustBeUsable for callbacks entered from script, where
// only script values may be thrown.
func (ci *ClassInfo) throwIfTornDown() {
	if ci.State() == ClassStateTornDown {
		panic(ci.engine.runtime.NewGoError(ci.tornDownError()))
	}
}

// tearDown may run concurrently with the goroutine driving the engine.
func (ci *ClassInfo) tearDown() {
	ci.setState(ClassStateTornDown)
	ci.logger().Debug("class torn down")
}

func (ci *ClassInfo) logger() *zap.Logger {
	return ci.engine.logger.With(zap.String("class", ci.container.canonicalName))
}
