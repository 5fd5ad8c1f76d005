package source

import (
	"fmt"
	"log"

	"crossvr-capture-go/internal/types"
)

func toVec3(v any) (types.Vec3, error) {
	items, ok := v.([]any)
	if !ok {
		return types.Vec3{}, fmt.Errorf("expected 3-element array, got %T", v)
	}
	if len(items) != 3 {
		return types.Vec3{}, fmt.Errorf("expected 3 elements, got %d", len(items))
	}
	x, err := toFloat(items[0])
	if err != nil {
		return types.Vec3{}, err
	}
	y, err := toFloat(items[1])
	if err != nil {
		return types.Vec3{}, err
	}
	z, err := toFloat(items[2])
	if err != nil {
		return types.Vec3{}, err
	}
	return types.Vec3{X: x, Y: y, Z: z}, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var logCounter int

func logEveryN(n int, format string, args ...any) {
	logCounter++
	if logCounter%n == 0 {
		log.Printf(format, args...)
	}
}
