package nativeclass

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/dop251/goja"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// JSConstructor is implemented by types bound with RegisterStruct that want
// the arguments of `new TypeName(...)`.
type JSConstructor interface {
	JSConstruct(call goja.FunctionCall)
}

var (
	nativeObjectType  = reflect.TypeOf((*NativeObject)(nil)).Elem()
	jsConstructorType = reflect.TypeOf((*JSConstructor)(nil)).Elem()
	gojaValueType     = reflect.TypeOf((*goja.Value)(nil)).Elem()
	errorType         = reflect.TypeOf((*error)(nil)).Elem()
)

type boundMethod struct {
	index  int
	goName string
	jsName string
}

type boundField struct {
	index    []int
	typ      reflect.Type
	jsName   string
	readOnly bool
}

type structBinding struct {
	typ     reflect.Type
	methods []boundMethod
	fields  []boundField
}

// RegisterStruct registers the struct type T as a class. T must embed
// ObjectBase. Exported methods become prototype methods and exported fields
// become accessors, both named in lowerCamelCase (DistanceTo -> distanceTo,
// URL -> url). Field tags `js:"name"`, `js:",readonly"` and `js:"-"` rename,
// drop the setter or skip a field. If *T implements JSConstructor it is used
// as the constructor.
func RegisterStruct[T any](canonicalName string, opts ...ClassOption) *ClassInfoContainer {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		panic(newError(PhaseRegistration, KindWrongType, canonicalName, fmt.Sprintf("%s is not a struct type", typ)))
	}

	ptrType := reflect.PointerTo(typ)
	if !ptrType.Implements(nativeObjectType) {
		panic(newError(PhaseRegistration, KindWrongType, canonicalName, fmt.Sprintf("%s does not embed nativeclass.ObjectBase", typ)))
	}

	binding := bindStruct(typ)

	initializer := func(info *ClassInfo) {
		if ptrType.Implements(jsConstructorType) {
			info.RegisterConstructor(func(obj NativeObject, call goja.FunctionCall) {
				obj.(JSConstructor).JSConstruct(call)
			})
		}

		for i := range binding.methods {
			info.RegisterMethod(binding.methods[i].jsName, binding.methods[i].callback())
		}

		for i := range binding.fields {
			field := binding.fields[i]
			var setter AccessorSetterCallback
			if !field.readOnly {
				setter = field.setter()
			}
			info.RegisterAccessor(field.jsName, field.getter(), setter)
		}
	}

	creator := func(info *ClassInfo, jsObject *goja.Object) NativeObject {
		return reflect.New(typ).Interface().(NativeObject)
	}

	return RegisterClass(canonicalName, initializer, creator, typ.Size(), opts...)
}

func bindStruct(typ reflect.Type) *structBinding {
	binding := &structBinding{typ: typ}

	skip := map[string]bool{"JSConstruct": true}
	baseType := reflect.TypeOf(&ObjectBase{})
	for i := 0; i < baseType.NumMethod(); i++ {
		skip[baseType.Method(i).Name] = true
	}

	ptrType := reflect.PointerTo(typ)
	for i := 0; i < ptrType.NumMethod(); i++ {
		method := ptrType.Method(i)
		if !method.IsExported() || skip[method.Name] {
			continue
		}

		binding.methods = append(binding.methods, boundMethod{
			index:  i,
			goName: method.Name,
			jsName: toLowerCamelCase(method.Name),
		})
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Anonymous || !field.IsExported() {
			continue
		}

		name := toLowerCamelCase(field.Name)
		readOnly := false
		if tag, ok := field.Tag.Lookup("js"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, option := range parts[1:] {
				if option == "readonly" {
					readOnly = true
				}
			}
		}

		binding.fields = append(binding.fields, boundField{
			index:    field.Index,
			typ:      field.Type,
			jsName:   name,
			readOnly: readOnly,
		})
	}

	return binding
}

func (m boundMethod) callback() MethodCallback {
	return func(obj NativeObject, methodName string, call goja.FunctionCall) goja.Value {
		rt := obj.ClassInfo().Engine().Runtime()
		fn := reflect.ValueOf(obj).Method(m.index)

		args, err := exportArguments(rt, fn.Type(), call.Arguments)
		if err != nil {
			panic(rt.NewTypeError(fmt.Sprintf("%s: %s", methodName, err.Error())))
		}

		return importResults(rt, fn.Call(args))
	}
}

func (f boundField) getter() AccessorGetterCallback {
	return func(obj NativeObject, propertyName string) goja.Value {
		rt := obj.ClassInfo().Engine().Runtime()
		return importValue(rt, reflect.ValueOf(obj).Elem().FieldByIndex(f.index))
	}
}

func (f boundField) setter() AccessorSetterCallback {
	return func(obj NativeObject, propertyName string, value goja.Value) {
		rt := obj.ClassInfo().Engine().Runtime()

		v, err := exportValue(rt, value, f.typ)
		if err != nil {
			panic(rt.NewTypeError(fmt.Sprintf("%s: %s", propertyName, err.Error())))
		}

		reflect.ValueOf(obj).Elem().FieldByIndex(f.index).Set(v)
	}
}

func exportArguments(rt *goja.Runtime, fnType reflect.Type, arguments []goja.Value) ([]reflect.Value, error) {
	numIn := fnType.NumIn()
	fixed := numIn
	if fnType.IsVariadic() {
		fixed--
	}

	args := make([]reflect.Value, 0, numIn)
	for i := 0; i < fixed; i++ {
		var arg goja.Value = goja.Undefined()
		if i < len(arguments) {
			arg = arguments[i]
		}

		v, err := exportValue(rt, arg, fnType.In(i))
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, v)
	}

	if fnType.IsVariadic() {
		elem := fnType.In(numIn - 1).Elem()
		for i := fixed; i < len(arguments); i++ {
			v, err := exportValue(rt, arguments[i], elem)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			args = append(args, v)
		}
	}

	return args, nil
}

func exportValue(rt *goja.Runtime, value goja.Value, typ reflect.Type) (reflect.Value, error) {
	if typ == gojaValueType {
		if value == nil {
			value = goja.Undefined()
		}
		return reflect.ValueOf(&value).Elem(), nil
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return reflect.Zero(typ), nil
	}

	if typ.Implements(nativeObjectType) {
		obj, ok := nativeObjectOf(value)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected a native object of type %s", typ)
		}
		v := reflect.ValueOf(obj)
		if !v.Type().AssignableTo(typ) {
			return reflect.Value{}, fmt.Errorf("expected %s, got %s", typ, v.Type())
		}
		return v, nil
	}

	target := reflect.New(typ)
	if err := rt.ExportTo(value, target.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return target.Elem(), nil
}

func importResults(rt *goja.Runtime, results []reflect.Value) goja.Value {
	if n := len(results); n > 0 && results[n-1].Type() == errorType {
		if err, _ := results[n-1].Interface().(error); err != nil {
			panic(rt.NewGoError(err))
		}
		results = results[:n-1]
	}

	switch len(results) {
	case 0:
		return goja.Undefined()
	case 1:
		return importValue(rt, results[0])
	}

	values := make([]any, len(results))
	for i := range results {
		values[i] = importValue(rt, results[i])
	}
	return rt.NewArray(values...)
}

func importValue(rt *goja.Runtime, v reflect.Value) goja.Value {
	if !v.IsValid() {
		return goja.Undefined()
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func:
		if v.IsNil() {
			return goja.Null()
		}
	}

	value := v.Interface()
	if gv, ok := value.(goja.Value); ok {
		return gv
	}
	if obj, ok := value.(NativeObject); ok {
		return ValueOf(obj)
	}
	return rt.ToValue(value)
}

// toLowerCamelCase lowers the leading capital or acronym of a Go identifier:
// DistanceTo -> distanceTo, URL -> url, HTTPServer -> httpServer.
func toLowerCamelCase(name string) string {
	runes := []rune(name)

	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}

	if n == 0 {
		return name
	}

	// The last capital of an acronym followed by lowercase starts the next word.
	if n > 1 && n < len(runes) && unicode.IsLower(runes[n]) {
		n--
	}

	return cases.Lower(language.Und).String(string(runes[:n])) + string(runes[n:])
}
