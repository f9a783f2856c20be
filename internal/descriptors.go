package nativeclass

import "github.com/dop251/goja"

// PropertyAttribute controls how an accessor is defined on the prototype,
// following the engine's standard property model.
type PropertyAttribute int

const (
	PropertyAttributeNone PropertyAttribute = 0
	// PropertyAttributeReadOnly drops the setter even if one is registered.
	PropertyAttributeReadOnly   PropertyAttribute = 1 << 0
	PropertyAttributeDontEnum   PropertyAttribute = 1 << 1
	PropertyAttributeDontDelete PropertyAttribute = 1 << 2
)

func (a PropertyAttribute) enumerable() goja.Flag {
	if a&PropertyAttributeDontEnum != 0 {
		return goja.FLAG_FALSE
	}
	return goja.FLAG_TRUE
}

func (a PropertyAttribute) configurable() goja.Flag {
	if a&PropertyAttributeDontDelete != 0 {
		return goja.FLAG_FALSE
	}
	return goja.FLAG_TRUE
}

func (a PropertyAttribute) readOnly() bool {
	return a&PropertyAttributeReadOnly != 0
}

// accessorHolder pairs a property name with its callbacks for the duration of
// a single registration call.
type accessorHolder struct {
	propertyName string
	getter       AccessorGetterCallback
	setter       AccessorSetterCallback
	attributes   PropertyAttribute
}

// callbackHolder pairs a method name with its callback for the duration of a
// single registration call.
type callbackHolder struct {
	methodName string
	callback   MethodCallback
}

type staticCallbackHolder struct {
	methodName string
	callback   StaticMethodCallback
}
