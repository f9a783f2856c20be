package nativeclass

import (
	"fmt"

	"github.com/dop251/goja"
)

type constructHandler func(call goja.ConstructorCall) *goja.Object

// FunctionTemplate is the blueprint of one script class inside one runtime:
// a constructor function and the prototype object carrying its methods and
// accessors. The template owns the live constructor and every registration is
// applied to it directly.
type FunctionTemplate struct {
	runtime   *goja.Runtime
	className string
	function  *goja.Object
	prototype *goja.Object
	parent    *FunctionTemplate
	construct constructHandler
}

func newFunctionTemplate(rt *goja.Runtime, className string, construct constructHandler) (*FunctionTemplate, error) {
	ft := &FunctionTemplate{
		runtime:   rt,
		className: className,
		construct: construct,
	}

	// The closure goes through ft so the handler can be replaced.
	fn, ok := rt.ToValue(func(call goja.ConstructorCall) *goja.Object {
		return ft.construct(call)
	}).(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("could not create constructor function for %s", className)
	}

	proto, _ := fn.Get("prototype").(*goja.Object)
	if proto == nil {
		proto = rt.NewObject()
		if err := fn.DefineDataProperty("prototype", proto, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
			return nil, err
		}
	}

	if err := proto.DefineDataProperty("constructor", fn, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return nil, err
	}

	if err := proto.DefineDataPropertySymbol(goja.SymToStringTag, rt.ToValue(className), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return nil, err
	}

	if err := fn.DefineDataProperty("name", rt.ToValue(className), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return nil, err
	}

	ft.function = fn
	ft.prototype = proto
	return ft, nil
}

// ClassName returns the name the constructor function reports.
func (ft *FunctionTemplate) ClassName() string {
	return ft.className
}

// Runtime returns the runtime the template belongs to.
func (ft *FunctionTemplate) Runtime() *goja.Runtime {
	return ft.runtime
}

// GetFunction returns the constructor function.
func (ft *FunctionTemplate) GetFunction() *goja.Object {
	return ft.function
}

// PrototypeTemplate returns the object shared as prototype by all instances.
func (ft *FunctionTemplate) PrototypeTemplate() *goja.Object {
	return ft.prototype
}

// Parent returns the template this one inherits from, if any.
func (ft *FunctionTemplate) Parent() *FunctionTemplate {
	return ft.parent
}

// SetPrototypeMethod installs a non-enumerable function on the prototype,
// replacing any previous function with the same name.
func (ft *FunctionTemplate) SetPrototypeMethod(name string, fn func(call goja.FunctionCall) goja.Value) error {
	return ft.prototype.DefineDataProperty(name, ft.namedFunction(name, fn), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

// SetStaticMethod installs a non-enumerable function on the constructor.
func (ft *FunctionTemplate) SetStaticMethod(name string, fn func(call goja.FunctionCall) goja.Value) error {
	return ft.function.DefineDataProperty(name, ft.namedFunction(name, fn), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

// SetAccessor installs an accessor property on the prototype. A nil setter
// defines a getter-only property.
func (ft *FunctionTemplate) SetAccessor(name string, getter, setter func(call goja.FunctionCall) goja.Value, attributes PropertyAttribute) error {
	var getterValue, setterValue goja.Value
	if getter != nil {
		getterValue = ft.namedFunction("get "+name, getter)
	}
	if setter != nil && !attributes.readOnly() {
		setterValue = ft.namedFunction("set "+name, setter)
	}

	return ft.prototype.DefineAccessorProperty(name, getterValue, setterValue, attributes.configurable(), attributes.enumerable())
}

// Inherit makes instances of this template inherit from the parent's
// prototype, and the constructor from the parent's constructor.
func (ft *FunctionTemplate) Inherit(parent *FunctionTemplate) error {
	if parent == nil {
		return fmt.Errorf("cannot inherit %s from nil template", ft.className)
	}
	if parent.runtime != ft.runtime {
		return fmt.Errorf("cannot inherit %s from %s, templates belong to different runtimes", ft.className, parent.className)
	}

	for p := parent; p != nil; p = p.parent {
		if p == ft {
			return fmt.Errorf("cannot inherit %s from %s, inheritance cycle", ft.className, parent.className)
		}
	}

	if err := ft.prototype.SetPrototype(parent.prototype); err != nil {
		return err
	}
	if err := ft.function.SetPrototype(parent.function); err != nil {
		return err
	}

	ft.parent = parent
	return nil
}

// HasInstance reports whether value has this template's prototype in its
// prototype chain, the same relation `instanceof` checks.
func (ft *FunctionTemplate) HasInstance(value goja.Value) bool {
	obj, ok := value.(*goja.Object)
	if !ok || obj == nil {
		return false
	}

	for p := obj.Prototype(); p != nil; p = p.Prototype() {
		if p.SameAs(ft.prototype) {
			return true
		}
	}

	return false
}

// NewInstance runs the constructor as if `new` was used in script.
func (ft *FunctionTemplate) NewInstance(args ...goja.Value) (*goja.Object, error) {
	return ft.runtime.New(ft.function, args...)
}

func (ft *FunctionTemplate) namedFunction(name string, fn func(call goja.FunctionCall) goja.Value) goja.Value {
	value := ft.runtime.ToValue(fn)
	if obj, ok := value.(*goja.Object); ok {
		_ = obj.DefineDataProperty("name", ft.runtime.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	}
	return value
}
