package factory

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// ErrUnknownType is returned by Create for a type with no factory.
var ErrUnknownType = errors.New("unknown module type")

// ModuleConfig names a module and carries its raw settings.
type ModuleConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// Factory builds a T from raw settings.
type Factory[T any] func(conf map[string]any) (T, error)

// Registry maps type names to factories. It is safe for concurrent use;
// registration normally happens from init functions.
type Registry[T any] struct {
	mu sync.RWMutex
	m  map[string]Factory[T]
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{m: map[string]Factory[T]{}}
}

// Register fails on a nil factory or a name already taken.
func (r *Registry[T]) Register(name string, f Factory[T]) error {
	if f == nil {
		return fmt.Errorf("register %q: nil factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.m[name]; dup {
		return fmt.Errorf("register %q: already registered", name)
	}
	r.m[name] = f
	return nil
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.m[name]
	return ok
}

// Create runs the factory registered for cfg.Type.
func (r *Registry[T]) Create(cfg ModuleConfig) (T, error) {
	var zero T
	r.mu.RLock()
	f, ok := r.m[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%w %q (known: %v)", ErrUnknownType, cfg.Type, r.Names())
	}
	v, err := f(cfg.Conf)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", cfg.Type, err)
	}
	return v, nil
}

// Names returns the registered type names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.m))
}

// Decode copies raw settings into out using its json tags. Values are
// weakly typed so env overrides, which arrive as strings, decode like YAML:
// "5s" fills a time.Duration and "a,b" fills a []string.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
