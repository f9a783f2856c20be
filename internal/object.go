package nativeclass

import (
	"github.com/dop251/goja"
)

// NativeObject is implemented by every Go type exposed as a script class.
// Embed ObjectBase to implement it.
type NativeObject interface {
	ClassInfo() *ClassInfo
	JSObject() *goja.Object
	base() *ObjectBase
}

// ObjectBase ties a native object to its class and its script object. It must
// be embedded (by value) in native types.
type ObjectBase struct {
	info     *ClassInfo
	jsObject *goja.Object
	handle   *objectHandle
}

func (ob *ObjectBase) base() *ObjectBase {
	return ob
}

// ClassInfo returns the class of this object in the engine it lives in.
func (ob *ObjectBase) ClassInfo() *ClassInfo {
	return ob.info
}

// JSObject returns the script object this native object is paired with.
func (ob *ObjectBase) JSObject() *goja.Object {
	return ob.jsObject
}

// Engine returns the engine the object was created in.
func (ob *ObjectBase) Engine() Engine {
	if ob.info == nil {
		return nil
	}
	return ob.info.Engine()
}

// Runtime is a shorthand for Engine().Runtime().
func (ob *ObjectBase) Runtime() *goja.Runtime {
	return ob.info.Engine().Runtime()
}

// Dispose releases the association with the script object. Methods and
// accessors invoked on the script object afterwards throw a TypeError.
// The object must not be used anymore after calling this method.
func (ob *ObjectBase) Dispose() {
	if ob.handle != nil {
		ob.handle.obj = nil
		ob.handle = nil
	}
}

// IsDisposed reports whether Dispose was called or the object was never
// associated.
func (ob *ObjectBase) IsDisposed() bool {
	return ob.handle == nil
}

var nativeObjectSymbol = goja.NewSymbol("nativeclass.object")

type objectHandle struct {
	obj NativeObject
}

func associate(info *ClassInfo, jsObject *goja.Object, obj NativeObject) error {
	handle := &objectHandle{obj: obj}

	err := jsObject.DefineDataPropertySymbol(nativeObjectSymbol, info.Engine().Runtime().ToValue(handle), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	if err != nil {
		return err
	}

	b := obj.base()
	b.info = info
	b.jsObject = jsObject
	b.handle = handle
	return nil
}

func nativeObjectOf(value goja.Value) (NativeObject, bool) {
	obj, ok := value.(*goja.Object)
	if !ok || obj == nil {
		return nil, false
	}

	raw := obj.GetSymbol(nativeObjectSymbol)
	if raw == nil {
		return nil, false
	}

	handle, ok := raw.Export().(*objectHandle)
	if !ok || handle.obj == nil {
		return nil, false
	}

	return handle.obj, true
}

// Unwrap returns the native object behind a script value.
func Unwrap[T NativeObject](value goja.Value) (T, bool) {
	var zero T
	obj, ok := nativeObjectOf(value)
	if !ok {
		return zero, false
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// ValueOf returns the script value for a native object, or null for nil.
func ValueOf(obj NativeObject) goja.Value {
	if obj == nil || obj.JSObject() == nil {
		return goja.Null()
	}
	return obj.JSObject()
}
