package nativeclass

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
)

// Module is a native module loadable with require(name) from scripts.
type Module interface {
	Name() string
	// Require populates module.exports for the engine requiring the module.
	Require(e Engine, module *goja.Object)
}

type moduleFunc struct {
	name    string
	require func(e Engine, module *goja.Object)
}

func (m *moduleFunc) Name() string {
	return m.name
}

func (m *moduleFunc) Require(e Engine, module *goja.Object) {
	m.require(e, module)
}

// NewModule creates a Module from a require function.
func NewModule(name string, fn func(e Engine, module *goja.Object)) Module {
	return &moduleFunc{
		name:    name,
		require: fn,
	}
}

// ClassModule creates a module whose exports are the constructors of the
// given classes, keyed by canonical name.
func ClassModule(name string, canonicalNames ...string) Module {
	return NewModule(name, func(e Engine, module *goja.Object) {
		rt := e.Runtime()
		exports := rt.NewObject()
		for _, canonicalName := range canonicalNames {
			info, err := e.ClassInfo(canonicalName)
			if err != nil {
				panic(rt.NewGoError(err))
			}
			if err := exports.Set(canonicalName, info.Constructor()); err != nil {
				panic(rt.NewGoError(err))
			}
		}
		if err := module.Set("exports", exports); err != nil {
			panic(rt.NewGoError(err))
		}
	})
}

func (e *engine) moduleLoader(module Module) require.ModuleLoader {
	return func(rt *goja.Runtime, moduleObject *goja.Object) {
		module.Require(e, moduleObject)
	}
}
