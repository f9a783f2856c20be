package nativeclass

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// IEngineConfig configures engines created with CreateEngine.
type IEngineConfig interface {
	// WithLogger sets the logger used by the engine and by script console
	// output. Defaults to the package logger.
	WithLogger(logger *zap.Logger) IEngineConfig
	// WithModule makes a native module available to require() in the engine.
	WithModule(module Module) IEngineConfig
	// WithConsole toggles the console global. Enabled by default.
	WithConsole(enabled bool) IEngineConfig
	// WithExposeAll exposes every registered class as a global constructor
	// when the engine is created.
	WithExposeAll(enabled bool) IEngineConfig
	// WithFieldNameMapper sets how plain Go values passed to scripts name
	// their fields and methods. Defaults to goja.UncapFieldNameMapper().
	WithFieldNameMapper(mapper goja.FieldNameMapper) IEngineConfig

	values() *engineConfig
}

type engineConfig struct {
	logger          *zap.Logger
	modules         []Module
	console         bool
	exposeAll       bool
	fieldNameMapper goja.FieldNameMapper
}

// NewConfig returns the default engine configuration.
func NewConfig() IEngineConfig {
	return &engineConfig{
		console:         true,
		fieldNameMapper: goja.UncapFieldNameMapper(),
	}
}

func (c *engineConfig) WithLogger(logger *zap.Logger) IEngineConfig {
	c.logger = logger
	return c
}

func (c *engineConfig) WithModule(module Module) IEngineConfig {
	c.modules = append(c.modules, module)
	return c
}

func (c *engineConfig) WithConsole(enabled bool) IEngineConfig {
	c.console = enabled
	return c
}

func (c *engineConfig) WithExposeAll(enabled bool) IEngineConfig {
	c.exposeAll = enabled
	return c
}

func (c *engineConfig) WithFieldNameMapper(mapper goja.FieldNameMapper) IEngineConfig {
	c.fieldNameMapper = mapper
	return c
}

func (c *engineConfig) values() *engineConfig {
	return c
}
