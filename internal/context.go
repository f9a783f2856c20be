package nativeclass

import (
	"context"
	"fmt"
)

// EngineKey Use this key to add the engine to your context:
// ctx = context.WithValue(ctx, nativeclass.EngineKey{}, engine)
// or use engine.Attach(ctx).
type EngineKey struct{}

func GetEngineFromContext(ctx context.Context) (Engine, error) {
	raw := ctx.Value(EngineKey{})
	if raw == nil {
		return nil, fmt.Errorf("nativeclass engine not found in context")
	}

	value, ok := raw.(Engine)
	if !ok {
		return nil, fmt.Errorf("context value %v not of type %T", raw, new(Engine))
	}

	return value, nil
}

func MustGetEngineFromContext(ctx context.Context) Engine {
	e, err := GetEngineFromContext(ctx)
	if err != nil {
		panic(fmt.Errorf("could not get nativeclass engine from context: %w, make sure to attach it with \"ctx = engine.Attach(ctx)\"", err))
	}

	return e
}
