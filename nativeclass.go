package nativeclass

import (
	internal "github.com/jerbob92/goja-nativeclass/internal"

	"github.com/dop251/goja"
)

type NativeObject = internal.NativeObject

type ObjectBase = internal.ObjectBase

type ClassInfo = internal.ClassInfo

type ClassInfoContainer = internal.ClassInfoContainer

type FunctionTemplate = internal.FunctionTemplate

type ClassState = internal.ClassState

type CreationPolicy = internal.CreationPolicy

type PropertyAttribute = internal.PropertyAttribute

type ClassOption = internal.ClassOption

type JSConstructor = internal.JSConstructor

type Module = internal.Module

type Error = internal.Error

type (
	ConstructorCallback    = internal.ConstructorCallback
	MethodCallback         = internal.MethodCallback
	AccessorGetterCallback = internal.AccessorGetterCallback
	AccessorSetterCallback = internal.AccessorSetterCallback
	StaticMethodCallback   = internal.StaticMethodCallback
	Initializer            = internal.Initializer
	Creator                = internal.Creator
)

const (
	ClassStateCreated      = internal.ClassStateCreated
	ClassStateInitializing = internal.ClassStateInitializing
	ClassStateReady        = internal.ClassStateReady
	ClassStateTornDown     = internal.ClassStateTornDown
)

const (
	CreationPolicyNativeAndScript = internal.CreationPolicyNativeAndScript
	CreationPolicyNativeOnly      = internal.CreationPolicyNativeOnly
)

const (
	PropertyAttributeNone       = internal.PropertyAttributeNone
	PropertyAttributeReadOnly   = internal.PropertyAttributeReadOnly
	PropertyAttributeDontEnum   = internal.PropertyAttributeDontEnum
	PropertyAttributeDontDelete = internal.PropertyAttributeDontDelete
)

var (
	ErrDuplicateClass     = internal.ErrDuplicateClass
	ErrClassNotFound      = internal.ErrClassNotFound
	ErrNotReady           = internal.ErrNotReady
	ErrTornDown           = internal.ErrTornDown
	ErrIllegalConstructor = internal.ErrIllegalConstructor
)

// RegisterClass registers a native class under its canonical name. It
// panics when the name is already registered.
func RegisterClass(canonicalName string, initializer Initializer, creator Creator, size uintptr, opts ...ClassOption) *ClassInfoContainer {
	return internal.RegisterClass(canonicalName, initializer, creator, size, opts...)
}

// RegisterStruct registers a struct embedding ObjectBase, binding its
// exported methods and fields by reflection.
func RegisterStruct[T any](canonicalName string, opts ...ClassOption) *ClassInfoContainer {
	return internal.RegisterStruct[T](canonicalName, opts...)
}

func WithCreationPolicy(policy CreationPolicy) ClassOption {
	return internal.WithCreationPolicy(policy)
}

func LookupClass(canonicalName string) (*ClassInfoContainer, bool) {
	return internal.LookupClass(canonicalName)
}

func IsRegistered(canonicalName string) bool {
	return internal.IsRegistered(canonicalName)
}

func RegisteredClasses() []string {
	return internal.RegisteredClasses()
}

func Constructor[T NativeObject](fn func(obj T, call goja.FunctionCall)) ConstructorCallback {
	return internal.Constructor(fn)
}

func Method[T NativeObject](fn func(obj T, methodName string, call goja.FunctionCall) goja.Value) MethodCallback {
	return internal.Method(fn)
}

func Getter[T NativeObject](fn func(obj T, propertyName string) goja.Value) AccessorGetterCallback {
	return internal.Getter(fn)
}

func Setter[T NativeObject](fn func(obj T, propertyName string, value goja.Value)) AccessorSetterCallback {
	return internal.Setter(fn)
}

func Unwrap[T NativeObject](value goja.Value) (T, bool) {
	return internal.Unwrap[T](value)
}

func ValueOf(obj NativeObject) goja.Value {
	return internal.ValueOf(obj)
}

func NewModule(name string, fn func(e Engine, module *goja.Object)) Module {
	return internal.NewModule(name, fn)
}

func ClassModule(name string, canonicalNames ...string) Module {
	return internal.ClassModule(name, canonicalNames...)
}
