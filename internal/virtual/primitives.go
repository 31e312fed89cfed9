package virtual

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/Iron-Ham/prism/internal/event"
)

// Map emits fn(in) on output whenever fn reports ok.
func Map(output string, fn func(event.Input) (any, bool)) Factory {
	return func(ctx *Context) (Handler, error) {
		return HandlerFunc(func(in event.Input) error {
			if v, ok := fn(in); ok {
				ctx.Emit(output, v)
			}
			return nil
		}), nil
	}
}

// Scan folds every input into an accumulator seeded with seed and emits
// the new accumulator on output.
func Scan(output string, seed any, fn func(acc any, in event.Input) any) Factory {
	return func(ctx *Context) (Handler, error) {
		var mu sync.Mutex
		acc := seed
		return HandlerFunc(func(in event.Input) error {
			mu.Lock()
			acc = fn(acc, in)
			next := acc
			mu.Unlock()

			ctx.Emit(output, next)
			return nil
		}), nil
	}
}

// DistinctUntilChanged re-emits input payloads on output, skipping a
// payload equal to the previous one. A nil equal uses reflect.DeepEqual.
func DistinctUntilChanged(output string, equal func(a, b any) bool) Factory {
	if equal == nil {
		equal = reflect.DeepEqual
	}
	return func(ctx *Context) (Handler, error) {
		var (
			mu   sync.Mutex
			last any
			seen bool
		)
		return HandlerFunc(func(in event.Input) error {
			mu.Lock()
			if seen && equal(last, in.Data) {
				mu.Unlock()
				return nil
			}
			last, seen = in.Data, true
			mu.Unlock()

			ctx.Emit(output, in.Data)
			return nil
		}), nil
	}
}

// CombineLatest keeps the most recent payload of each source and, once
// every source has been seen at least once, emits fn(latest) on output for
// each subsequent input. The map passed to fn is a copy. Emission happens
// under the handler's lock, so concurrent inputs emit in the order their
// updates were applied and the last combination reflects the final state.
// The output may not be one of the sources.
func CombineLatest(output string, sources []string, fn func(latest map[string]any) any) Factory {
	sources = slices.Clone(sources)
	return func(ctx *Context) (Handler, error) {
		if len(sources) == 0 {
			return nil, fmt.Errorf("%w: combine-latest needs sources", ErrInvalidDefinition)
		}
		if slices.Contains(sources, output) {
			return nil, fmt.Errorf("%w: combine-latest output %q feeds itself", ErrInvalidDefinition, output)
		}
		var mu sync.Mutex
		latest := make(map[string]any, len(sources))
		return HandlerFunc(func(in event.Input) error {
			if !slices.Contains(sources, in.Type) {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			latest[in.Type] = in.Data
			if len(latest) < len(sources) {
				return nil
			}
			ctx.Emit(output, fn(maps.Clone(latest)))
			return nil
		}), nil
	}
}

// Calibrate emits scale*x + offset on output for numeric payloads.
func Calibrate(output string, scale, offset float64) Factory {
	return func(ctx *Context) (Handler, error) {
		return HandlerFunc(func(in event.Input) error {
			x, ok := ToFloat(in.Data)
			if !ok {
				return fmt.Errorf("%w: %T", ErrNotNumeric, in.Data)
			}
			ctx.Emit(output, scale*x+offset)
			return nil
		}), nil
	}
}

// JSONField extracts path (gjson syntax) from a JSON payload and emits the
// decoded value on output. Payloads may be []byte or string.
func JSONField(output, path string) Factory {
	return func(ctx *Context) (Handler, error) {
		return HandlerFunc(func(in event.Input) error {
			var res gjson.Result
			switch raw := in.Data.(type) {
			case []byte:
				res = gjson.GetBytes(raw, path)
			case string:
				res = gjson.Get(raw, path)
			default:
				return fmt.Errorf("json field %s: unsupported payload %T", path, in.Data)
			}
			if !res.Exists() {
				return fmt.Errorf("%w: %s", ErrPathNotFound, path)
			}
			ctx.Emit(output, res.Value())
			return nil
		}), nil
	}
}

// ToFloat converts the common numeric payload types to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
