package dagrs

import (
	"sync"
	"time"

	"github.com/dagrs-go/dagrs/pkg/dagrs/registry"
)

// Env is the graph-wide shared environment: a read-mostly mapping from
// string keys to typed values, populated before Start and frozen once
// the scheduler launches. Writes after freezing are rejected.
//
// Storage is a registry.Registry[string, any], narrowed from its
// mutable Register/Delete API to a snapshot that can only be built up
// before a run starts: writeMu serializes Set against freeze so a write
// can never land after the scheduler has already started reading.
type Env struct {
	reg     *registry.Registry[string, any]
	writeMu sync.Mutex
	frozen  bool
}

// NewEnv builds an empty, writable Env.
func NewEnv() *Env {
	return &Env{reg: registry.New[string, any]()}
}

// NewEnvFrom builds a writable Env pre-populated from data. The caller's
// map is copied; later mutation of the argument does not affect the Env.
func NewEnvFrom(data map[string]any) *Env {
	e := NewEnv()
	if len(data) > 0 {
		e.reg.RegisterMany(data)
	}
	return e
}

// Set installs key=value. It returns ErrEnvFrozen if called after the
// owning Graph has started.
func (e *Env) Set(key string, value any) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.frozen {
		return ErrEnvFrozen
	}
	e.reg.Register(key, value)
	return nil
}

// freeze marks the Env immutable. Called by Graph.Start before any
// node task is launched.
func (e *Env) freeze() {
	e.writeMu.Lock()
	e.frozen = true
	e.writeMu.Unlock()
}

// Has reports whether key is present.
func (e *Env) Has(key string) bool {
	return e.reg.Has(key)
}

// Get returns the raw value for key and whether it was present. Missing
// keys return (nil, false) rather than aborting.
func (e *Env) Get(key string) (any, bool) {
	return e.reg.Get(key)
}

// GetTyped type-asserts the stored value for key to T. A missing key or
// a type mismatch both return the zero value and false — never a panic.
func GetTyped[T any](e *Env, key string) (T, bool) {
	raw, ok := e.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// String returns the string value for key, or def on a miss or type
// mismatch. Mirrors config.Config's typed-accessor contract.
func (e *Env) String(key, def string) string {
	if v, ok := GetTyped[string](e, key); ok {
		return v
	}
	return def
}

// Int returns the int value for key, accepting int/int64/float64 stored
// values (as a YAML- or JSON-sourced environment naturally produces),
// or def on a miss or an unconvertible type.
func (e *Env) Int(key string, def int) int {
	raw, ok := e.Get(key)
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Float returns the float64 value for key, accepting int/int64/float64
// stored values, or def on a miss or an unconvertible type.
func (e *Env) Float(key string, def float64) float64 {
	raw, ok := e.Get(key)
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Bool returns the bool value for key, or def on a miss or type mismatch.
func (e *Env) Bool(key string, def bool) bool {
	if v, ok := GetTyped[bool](e, key); ok {
		return v
	}
	return def
}

// Duration returns the time.Duration value for key, accepting a
// time.Duration, a duration string parseable by time.ParseDuration, or
// an int/int64/float64 count of seconds, or def otherwise.
func (e *Env) Duration(key string, def time.Duration) time.Duration {
	raw, ok := e.Get(key)
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		return def
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		return def
	}
}

// Keys returns a snapshot of the env's keys, in no particular order.
func (e *Env) Keys() []string {
	return e.reg.Keys()
}
