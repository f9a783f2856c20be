package nativeclass

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"go.uber.org/zap"
)

// EngineID identifies an engine instance for the lifetime of the process.
type EngineID uint64

var lastEngineID atomic.Uint64

// FunctionHandler backs a native function created with Engine.NewFunction.
type FunctionHandler func(receiver goja.Value, arguments []goja.Value) (goja.Value, error)

// Engine is one embedded script engine. An engine must be driven by one
// goroutine at a time; only ClassInfo, EnqueueOnNextTick and Dispose may be
// called from other goroutines.
type Engine interface {
	ID() EngineID
	Runtime() *goja.Runtime
	Logger() *zap.Logger
	// Context returns a context carrying the engine, cancelled on Dispose.
	Context() context.Context
	Attach(ctx context.Context) context.Context

	RunString(ctx context.Context, source string) (goja.Value, error)

	// ClassInfo returns the class for this engine, initializing it on first use.
	ClassInfo(canonicalName string) (*ClassInfo, error)
	ExposeClass(canonicalName string) error
	ExposeClassAs(canonicalName, globalName string) error
	ExposeAll() error
	NewObject(canonicalName string, arguments ...any) (NativeObject, error)
	NewFunction(handler FunctionHandler) *goja.Object

	EnqueueOnNextTick(job func())
	Tick() int
	OnDispose(hook func())
	Dispose()
	IsDisposed() bool
}

type engine struct {
	id      EngineID
	runtime *goja.Runtime
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	mu           sync.Mutex
	jobs         []func()
	disposeHooks []func()
	disposed     bool
}

// CreateEngine creates an engine with a fresh runtime.
func CreateEngine(config IEngineConfig) Engine {
	if config == nil {
		config = NewConfig()
	}
	cfg := config.values()

	id := EngineID(lastEngineID.Add(1))

	l := cfg.logger
	if l == nil {
		l = Logger()
	}

	e := &engine{
		id:      id,
		runtime: goja.New(),
		logger:  l.Named("engine").With(zap.Uint64("engine", uint64(id))),
	}
	e.ctx, e.cancel = context.WithCancel(e.Attach(context.Background()))

	if cfg.fieldNameMapper != nil {
		e.runtime.SetFieldNameMapper(cfg.fieldNameMapper)
	}

	modules := require.NewRegistry()
	if cfg.console {
		modules.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(&consolePrinter{logger: e.logger.Named("console")}))
	}
	for _, module := range cfg.modules {
		modules.RegisterNativeModule(module.Name(), e.moduleLoader(module))
	}
	modules.Enable(e.runtime)
	if cfg.console {
		console.Enable(e.runtime)
	}

	if cfg.exposeAll {
		if err := e.ExposeAll(); err != nil {
			panic(err)
		}
	}

	e.logger.Debug("created engine")

	return e
}

func (e *engine) ID() EngineID {
	return e.id
}

func (e *engine) Runtime() *goja.Runtime {
	return e.runtime
}

func (e *engine) Logger() *zap.Logger {
	return e.logger
}

func (e *engine) Context() context.Context {
	return e.ctx
}

func (e *engine) Attach(ctx context.Context) context.Context {
	return context.WithValue(ctx, EngineKey{}, e)
}

// RunString evaluates source and then runs the jobs queued for the next
// tick. Cancelling ctx interrupts the script.
func (e *engine) RunString(ctx context.Context, source string) (goja.Value, error) {
	if e.isDisposed() {
		return nil, fmt.Errorf("could not run script: %w", ErrTornDown)
	}

	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(interrupted)
		e.runtime.Interrupt(ctx.Err())
	})
	defer func() {
		if !stop() {
			<-interrupted
			e.runtime.ClearInterrupt()
		}
	}()

	value, err := e.runtime.RunString(source)
	if err != nil {
		return nil, fmt.Errorf("could not run script: %w", err)
	}

	e.Tick()

	return value, nil
}

func (e *engine) ClassInfo(canonicalName string) (*ClassInfo, error) {
	container, ok := LookupClass(canonicalName)
	if !ok {
		return nil, newError(PhaseLookup, KindNotFound, canonicalName, "class is not registered")
	}

	if e.isDisposed() {
		return nil, newError(PhaseRuntime, KindTornDown, canonicalName, "engine was disposed")
	}

	return container.classInfoFor(e, nil), nil
}

func (e *engine) ExposeClass(canonicalName string) error {
	return e.ExposeClassAs(canonicalName, canonicalName)
}

func (e *engine) ExposeClassAs(canonicalName, globalName string) error {
	info, err := e.ClassInfo(canonicalName)
	if err != nil {
		return err
	}

	return e.runtime.GlobalObject().DefineDataProperty(globalName, info.Constructor(), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

func (e *engine) ExposeAll() error {
	for _, name := range RegisteredClasses() {
		if err := e.ExposeClass(name); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) NewObject(canonicalName string, arguments ...any) (NativeObject, error) {
	info, err := e.ClassInfo(canonicalName)
	if err != nil {
		return nil, err
	}

	values := make([]goja.Value, len(arguments))
	for i := range arguments {
		values[i] = e.runtime.ToValue(arguments[i])
	}

	return info.NewInstance(values...)
}

func (e *engine) NewFunction(handler FunctionHandler) *goja.Object {
	return e.runtime.ToValue(func(call goja.FunctionCall) goja.Value {
		result, err := handler(call.This, call.Arguments)
		if err != nil {
			panic(e.runtime.NewGoError(err))
		}
		if result == nil {
			return goja.Undefined()
		}
		return result
	}).(*goja.Object)
}

// EnqueueOnNextTick queues a job to run on the goroutine driving the engine,
// at the end of the next RunString or Tick.
func (e *engine) EnqueueOnNextTick(job func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return
	}
	e.jobs = append(e.jobs, job)
}

// Tick runs the jobs queued so far and returns how many ran. Jobs queued by
// those jobs wait for the next tick.
func (e *engine) Tick() int {
	e.mu.Lock()
	jobs := e.jobs
	e.jobs = nil
	e.mu.Unlock()

	for _, job := range jobs {
		job()
	}

	return len(jobs)
}

// OnDispose registers a hook run when the engine is disposed, before its
// classes are torn down. Hooks run in reverse registration order.
func (e *engine) OnDispose(hook func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return
	}
	e.disposeHooks = append(e.disposeHooks, hook)
}

// Dispose interrupts the runtime and tears down every ClassInfo of the
// engine. Calling it more than once is a no-op.
func (e *engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	hooks := e.disposeHooks
	e.disposeHooks = nil
	e.jobs = nil
	e.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}

	e.runtime.Interrupt(ErrTornDown)
	e.cancel()
	registry.releaseEngine(e)

	e.logger.Debug("disposed engine")
}

func (e *engine) IsDisposed() bool {
	return e.isDisposed()
}

func (e *engine) isDisposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

type consolePrinter struct {
	logger *zap.Logger
}

func (p *consolePrinter) Log(s string) {
	p.logger.Info(s)
}

func (p *consolePrinter) Warn(s string) {
	p.logger.Warn(s)
}

func (p *consolePrinter) Error(s string) {
	p.logger.Error(s)
}
