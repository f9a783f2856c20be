package nativeclass

import (
	"fmt"

	"github.com/dop251/goja"
)

// ConstructorCallback runs when script code invokes `new TypeName(...)`, after
// the native object was created and associated with the script object.
type ConstructorCallback func(obj NativeObject, call goja.FunctionCall)

// MethodCallback receives the name it was registered under, so one callback
// can serve several aliased methods.
type MethodCallback func(obj NativeObject, methodName string, call goja.FunctionCall) goja.Value

// AccessorGetterCallback receives the name of the property being read.
type AccessorGetterCallback func(obj NativeObject, propertyName string) goja.Value

// AccessorSetterCallback receives the name of the property being assigned and
// the assigned value.
type AccessorSetterCallback func(obj NativeObject, propertyName string, value goja.Value)

// StaticMethodCallback is a method installed on the constructor function
// itself, it is not bound to an instance.
type StaticMethodCallback func(info *ClassInfo, methodName string, call goja.FunctionCall) goja.Value

// Initializer populates a fresh ClassInfo with constructor, method and
// accessor bindings. It runs once per class per engine.
type Initializer func(info *ClassInfo)

// Creator allocates the native object paired with a script object.
type Creator func(info *ClassInfo, jsObject *goja.Object) NativeObject

// Constructor adapts a constructor written against a concrete native type.
func Constructor[T NativeObject](fn func(obj T, call goja.FunctionCall)) ConstructorCallback {
	return func(obj NativeObject, call goja.FunctionCall) {
		fn(mustCast[T](obj, "constructor"), call)
	}
}

// Method adapts a method callback written against a concrete native type.
func Method[T NativeObject](fn func(obj T, methodName string, call goja.FunctionCall) goja.Value) MethodCallback {
	return func(obj NativeObject, methodName string, call goja.FunctionCall) goja.Value {
		return fn(mustCast[T](obj, methodName), methodName, call)
	}
}

// Getter adapts a getter written against a concrete native type.
func Getter[T NativeObject](fn func(obj T, propertyName string) goja.Value) AccessorGetterCallback {
	return func(obj NativeObject, propertyName string) goja.Value {
		return fn(mustCast[T](obj, propertyName), propertyName)
	}
}

// Setter adapts a setter written against a concrete native type.
func Setter[T NativeObject](fn func(obj T, propertyName string, value goja.Value)) AccessorSetterCallback {
	return func(obj NativeObject, propertyName string, value goja.Value) {
		fn(mustCast[T](obj, propertyName), propertyName, value)
	}
}

// mustCast throws a script TypeError when a callback is invoked with a
// receiver of another native type, e.g. through Function.prototype.call.
func mustCast[T NativeObject](obj NativeObject, member string) T {
	typed, ok := obj.(T)
	if !ok {
		var want T
		panic(obj.ClassInfo().Engine().Runtime().NewTypeError(fmt.Sprintf("%s called on incompatible receiver %T, expected %T", member, obj, want)))
	}
	return typed
}
