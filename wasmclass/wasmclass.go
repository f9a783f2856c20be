// Package wasmclass exposes WebAssembly modules to scripts as the native
// WasmModule class, backed by wazero.
//
//	const m = new WasmModule(bytes);
//	m.exports;         // ["add"]
//	m.call("add", 1, 2); // 3
//	m.close();
package wasmclass

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"github.com/dop251/goja"
	nativeclass "github.com/jerbob92/goja-nativeclass"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

const ClassName = "WasmModule"

// ModuleName is the name WasmModule is available under with require().
const ModuleName = "wasm"

type WasmModule struct {
	nativeclass.ObjectBase
	tracker *tracker

	mu       sync.Mutex
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	module   api.Module
}

// tracker holds the open modules of one engine and closes them when the
// engine is disposed.
type tracker struct {
	mu      sync.Mutex
	modules map[*WasmModule]struct{}
}

var trackers sync.Map // nativeclass.EngineID -> *tracker

func trackerFor(e nativeclass.Engine) *tracker {
	if t, ok := trackers.Load(e.ID()); ok {
		return t.(*tracker)
	}

	value, loaded := trackers.LoadOrStore(e.ID(), &tracker{modules: map[*WasmModule]struct{}{}})
	t := value.(*tracker)
	if !loaded {
		e.OnDispose(func() {
			trackers.Delete(e.ID())
			t.closeAll(e.Logger())
		})
	}
	return t
}

func (t *tracker) add(m *WasmModule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modules[m] = struct{}{}
}

func (t *tracker) remove(m *WasmModule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.modules, m)
}

func (t *tracker) closeAll(logger *zap.Logger) {
	t.mu.Lock()
	modules := t.modules
	t.modules = map[*WasmModule]struct{}{}
	t.mu.Unlock()

	for m := range modules {
		if err := m.close(context.Background()); err != nil {
			logger.Warn("could not close wasm module", zap.Error(err))
		}
	}
}

// OpenModules returns how many modules created in the engine are not closed.
func OpenModules(e nativeclass.Engine) int {
	value, ok := trackers.Load(e.ID())
	if !ok {
		return 0
	}

	t := value.(*tracker)
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.modules)
}

var registerOnce sync.Once

// Register registers WasmModule with the process-wide class registry. It is
// safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		nativeclass.RegisterClass(ClassName, initialize, create, unsafe.Sizeof(WasmModule{}))
	})
}

// RequireModule returns the module exporting the WasmModule constructor,
// for IEngineConfig.WithModule.
func RequireModule() nativeclass.Module {
	return nativeclass.ClassModule(ModuleName, ClassName)
}

func create(info *nativeclass.ClassInfo, jsObject *goja.Object) nativeclass.NativeObject {
	return &WasmModule{}
}

func initialize(info *nativeclass.ClassInfo) {
	info.RegisterConstructor(nativeclass.Constructor(construct))
	info.RegisterMethod("call", nativeclass.Method(call))
	info.RegisterMethod("close", nativeclass.Method(func(m *WasmModule, methodName string, _ goja.FunctionCall) goja.Value {
		if err := m.Close(context.Background()); err != nil {
			panic(m.Runtime().NewGoError(err))
		}
		return goja.Undefined()
	}))
	info.RegisterAccessor("exports", nativeclass.Getter(func(m *WasmModule, _ string) goja.Value {
		names := m.Exports()
		values := make([]any, len(names))
		for i := range names {
			values[i] = names[i]
		}
		return m.Runtime().NewArray(values...)
	}), nil)
	info.RegisterAccessor("closed", nativeclass.Getter(func(m *WasmModule, _ string) goja.Value {
		return m.Runtime().ToValue(m.IsClosed())
	}), nil, nativeclass.PropertyAttributeDontEnum)
}

func construct(m *WasmModule, call goja.FunctionCall) {
	rt := m.Runtime()

	binary, err := bytesOf(call.Argument(0))
	if err != nil {
		panic(rt.NewTypeError("WasmModule: " + err.Error()))
	}

	if err := m.load(m.Engine().Context(), binary); err != nil {
		panic(rt.NewGoError(err))
	}

	m.tracker = trackerFor(m.Engine())
	m.tracker.add(m)
}

func (m *WasmModule) load(ctx context.Context, binary []byte) error {
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))

	compiled, err := r.CompileModule(ctx, binary)
	if err != nil {
		_ = r.Close(ctx)
		return fmt.Errorf("could not compile wasm module: %w", err)
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = r.Close(ctx)
		return fmt.Errorf("could not instantiate wasm module: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runtime = r
	m.compiled = compiled
	m.module = mod
	return nil
}

// IsClosed reports whether the module was closed or never loaded.
func (m *WasmModule) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.module == nil
}

// Exports returns the names of the exported functions, sorted.
func (m *WasmModule) Exports() []string {
	m.mu.Lock()
	compiled := m.compiled
	m.mu.Unlock()

	if compiled == nil {
		return []string{}
	}

	definitions := compiled.ExportedFunctions()
	names := make([]string, 0, len(definitions))
	for name := range definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes an exported function with already encoded parameters.
func (m *WasmModule) Call(ctx context.Context, name string, params ...uint64) ([]uint64, api.FunctionDefinition, error) {
	fn, err := m.exportedFunction(name)
	if err != nil {
		return nil, nil, err
	}
	if fn == nil {
		return nil, nil, fmt.Errorf("wasm module has no exported function %q", name)
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, nil, fmt.Errorf("could not call %s: %w", name, err)
	}

	return results, fn.Definition(), nil
}

func (m *WasmModule) exportedFunction(name string) (api.Function, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.module == nil {
		return nil, fmt.Errorf("wasm module is closed")
	}
	return m.module.ExportedFunction(name), nil
}

// Close releases the wazero runtime. Closing twice is a no-op.
func (m *WasmModule) Close(ctx context.Context) error {
	if m.tracker != nil {
		m.tracker.remove(m)
	}
	return m.close(ctx)
}

func (m *WasmModule) close(ctx context.Context) error {
	m.mu.Lock()
	r := m.runtime
	m.runtime = nil
	m.compiled = nil
	m.module = nil
	m.mu.Unlock()

	if r == nil {
		return nil
	}
	return r.Close(ctx)
}

func call(m *WasmModule, methodName string, c goja.FunctionCall) goja.Value {
	rt := m.Runtime()
	if len(c.Arguments) == 0 {
		panic(rt.NewTypeError("WasmModule." + methodName + ": function name is required"))
	}
	name := c.Argument(0).String()

	fn, err := m.exportedFunction(name)
	if err != nil {
		panic(rt.NewTypeError("WasmModule." + methodName + ": module is closed"))
	}
	if fn == nil {
		panic(rt.NewTypeError(fmt.Sprintf("WasmModule.%s: no exported function %q", methodName, name)))
	}

	paramTypes := fn.Definition().ParamTypes()
	args := c.Arguments[1:]
	if len(args) != len(paramTypes) {
		panic(rt.NewTypeError(fmt.Sprintf("WasmModule.%s: %s expects %d argument(s), got %d", methodName, name, len(paramTypes), len(args))))
	}

	params := make([]uint64, len(paramTypes))
	for i, t := range paramTypes {
		encoded, err := encodeValue(t, args[i])
		if err != nil {
			panic(rt.NewTypeError(fmt.Sprintf("WasmModule.%s: argument %d: %s", methodName, i, err.Error())))
		}
		params[i] = encoded
	}

	results, definition, err := m.Call(m.Engine().Context(), name, params...)
	if err != nil {
		panic(rt.NewGoError(err))
	}

	resultTypes := definition.ResultTypes()
	switch len(results) {
	case 0:
		return goja.Undefined()
	case 1:
		return rt.ToValue(decodeValue(resultTypes[0], results[0]))
	}

	values := make([]any, len(results))
	for i := range results {
		values[i] = decodeValue(resultTypes[i], results[i])
	}
	return rt.NewArray(values...)
}

func encodeValue(t api.ValueType, value goja.Value) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		return api.EncodeI32(int32(value.ToInteger())), nil
	case api.ValueTypeI64:
		return api.EncodeI64(value.ToInteger()), nil
	case api.ValueTypeF32:
		return api.EncodeF32(float32(value.ToFloat())), nil
	case api.ValueTypeF64:
		return api.EncodeF64(value.ToFloat()), nil
	}
	return 0, fmt.Errorf("unsupported parameter type %s", api.ValueTypeName(t))
}

func decodeValue(t api.ValueType, value uint64) any {
	switch t {
	case api.ValueTypeI32:
		return api.DecodeI32(value)
	case api.ValueTypeI64:
		return int64(value)
	case api.ValueTypeF32:
		return api.DecodeF32(value)
	case api.ValueTypeF64:
		return api.DecodeF64(value)
	}
	return value
}

func bytesOf(value goja.Value) ([]byte, error) {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, fmt.Errorf("expected an ArrayBuffer or byte array")
	}

	switch v := value.Export().(type) {
	case goja.ArrayBuffer:
		return v.Bytes(), nil
	case []byte:
		return v, nil
	case []any:
		binary := make([]byte, len(v))
		for i := range v {
			switch n := v[i].(type) {
			case int64:
				binary[i] = byte(n)
			case float64:
				binary[i] = byte(n)
			default:
				return nil, fmt.Errorf("element %d is not a number", i)
			}
		}
		return binary, nil
	}

	return nil, fmt.Errorf("expected an ArrayBuffer or byte array, got %s", value.String())
}
