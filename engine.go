package nativeclass

import (
	"context"

	internal "github.com/jerbob92/goja-nativeclass/internal"

	"go.uber.org/zap"
)

type Engine = internal.Engine

type EngineID = internal.EngineID

type EngineKey = internal.EngineKey

type FunctionHandler = internal.FunctionHandler

type IEngineConfig = internal.IEngineConfig

func NewConfig() IEngineConfig {
	return internal.NewConfig()
}

func CreateEngine(config IEngineConfig) Engine {
	return internal.CreateEngine(config)
}

func GetEngineFromContext(ctx context.Context) (Engine, error) {
	return internal.GetEngineFromContext(ctx)
}

func MustGetEngineFromContext(ctx context.Context) Engine {
	return internal.MustGetEngineFromContext(ctx)
}

// SetLogger sets the logger used for registration and by engines created
// without their own logger.
func SetLogger(l *zap.Logger) {
	internal.SetLogger(l)
}
