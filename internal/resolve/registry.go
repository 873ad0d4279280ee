package resolve

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/phobologic/adaptive/internal/model"
)

var closureName = regexp.MustCompile(`\.func\d+(\.\d+)*$`)

// Registry holds live Go values that tests register up front, keyed by
// "importpath.Name". Register types with a zero value or a typed nil
// pointer, e.g. Calculator{} or (*Store)(nil), and functions by value.
type Registry struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{values: map[string]any{}}
}

// Register adds values. It returns an error for values whose import path
// cannot be determined, such as unnamed types or closures.
func (r *Registry) Register(values ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range values {
		key, err := registryKey(v)
		if err != nil {
			return err
		}
		r.values[key] = v
	}
	return nil
}

// Len returns the number of registered values.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.values)
}

// Load implements Loader for Go candidates.
func (r *Registry) Load(_ context.Context, c model.Candidate) (*Loaded, error) {
	if c.Language != "go" || c.Module == "" {
		return nil, ErrNotLoadable
	}
	r.mu.RLock()
	v, ok := r.values[c.Module+"."+c.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotLoadable
	}

	loaded := &Loaded{Name: c.Name, Access: c.Name, Source: "registry"}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func {
		loaded.Kind = model.Function
		loaded.Value = v
		return loaded, nil
	}

	t := namedType(reflect.TypeOf(v))
	loaded.Value = t
	switch t.Kind() {
	case reflect.Struct:
		loaded.Kind = model.Class
	case reflect.Interface:
		loaded.Kind = model.Interface
	default:
		loaded.Kind = model.Record
	}
	loaded.Methods = methodNames(t)
	return loaded, nil
}

func registryKey(v any) (string, error) {
	if v == nil {
		return "", fmt.Errorf("register: nil value")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func {
		fn := runtime.FuncForPC(rv.Pointer())
		if fn == nil {
			return "", fmt.Errorf("register: cannot resolve function %T", v)
		}
		name := fn.Name()
		if closureName.MatchString(name) {
			return "", fmt.Errorf("register: closures are not addressable: %s", name)
		}
		return name, nil
	}
	t := namedType(reflect.TypeOf(v))
	if t.Name() == "" || t.PkgPath() == "" {
		return "", fmt.Errorf("register: %s is not a named type", t)
	}
	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return t.PkgPath() + "." + name, nil
}

// namedType peels pointers until it reaches a named type.
func namedType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	return t
}

// methodNames lists the method set of *T (or T for interfaces).
func methodNames(t reflect.Type) []string {
	mt := t
	if t.Kind() != reflect.Interface {
		mt = reflect.PointerTo(t)
	}
	names := make([]string, 0, mt.NumMethod())
	for i := range mt.NumMethod() {
		names = append(names, mt.Method(i).Name)
	}
	slices.Sort(names)
	return names
}
