// Package mapping holds the conversions between entity shapes. Conversions
// are registered once during process initialization and looked up by their
// source and target types.
package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var ErrNotRegistered = errors.New("mapping not registered")

type pair struct {
	from reflect.Type
	to   reflect.Type
}

// Registry maps (From, To) type pairs onto conversion functions.
type Registry struct {
	once sync.Once
	mu   sync.RWMutex
	fns  map[pair]any
}

func NewRegistry() *Registry {
	return &Registry{fns: make(map[pair]any)}
}

// Init runs setup exactly once for the lifetime of r. Later calls are no-ops,
// so every entity controller may call it with the same setup function.
func (r *Registry) Init(setup func(r *Registry)) {
	r.once.Do(func() { setup(r) })
}

func key[From, To any]() pair {
	return pair{from: reflect.TypeFor[From](), to: reflect.TypeFor[To]()}
}

// Register stores fn as the conversion from From to To, replacing any
// previous registration.
func Register[From, To any](r *Registry, fn func(From) (To, error)) {
	if fn == nil {
		panic(fmt.Sprintf("mapping: nil func for %s -> %s", reflect.TypeFor[From](), reflect.TypeFor[To]()))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[key[From, To]()] = fn
}

// Lookup returns the conversion from From to To. When nothing is registered
// and both are the same type the identity conversion is returned.
func Lookup[From, To any](r *Registry) (func(From) (To, error), error) {
	k := key[From, To]()
	r.mu.RLock()
	fn, ok := r.fns[k]
	r.mu.RUnlock()
	if ok {
		return fn.(func(From) (To, error)), nil
	}
	if k.from == k.to {
		return func(v From) (To, error) {
			return any(v).(To), nil
		}, nil
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrNotRegistered, k.from, k.to)
}

// Map converts v with the registered conversion.
func Map[From, To any](r *Registry, v From) (To, error) {
	fn, err := Lookup[From, To](r)
	if err != nil {
		var zero To
		return zero, err
	}
	return fn(v)
}

// MapAll converts every element of vs.
func MapAll[From, To any](r *Registry, vs []From) ([]To, error) {
	fn, err := Lookup[From, To](r)
	if err != nil {
		return nil, err
	}
	out := make([]To, 0, len(vs))
	for _, v := range vs {
		mapped, err := fn(v)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped)
	}
	return out, nil
}
