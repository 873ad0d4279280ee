package resolve

import (
	"context"
	"fmt"
	"go/types"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/tools/go/packages"

	"github.com/phobologic/adaptive/internal/model"
)

// GoTypesLoader type-checks the package that owns a Go candidate and looks
// the symbol up in its scope. Nothing is compiled or executed.
type GoTypesLoader struct {
	// Env overrides the environment passed to the go command.
	Env []string

	mu   sync.Mutex
	pkgs map[string]checkedPackage // dir → last checked package
}

// checkedPackage is valid while the directory's Go sources still hash to fp.
type checkedPackage struct {
	fp  uint64
	pkg *types.Package
}

// NewGoTypesLoader returns a loader with an empty package cache.
func NewGoTypesLoader() *GoTypesLoader {
	return &GoTypesLoader{pkgs: map[string]checkedPackage{}}
}

// Load implements Loader.
func (g *GoTypesLoader) Load(ctx context.Context, c model.Candidate) (*Loaded, error) {
	if c.Language != "go" {
		return nil, ErrNotLoadable
	}
	pkg, err := g.pkg(ctx, filepath.Dir(c.Path))
	if err != nil {
		return nil, err
	}

	if c.Kind == model.Module {
		return &Loaded{
			Kind:    model.Module,
			Name:    pkg.Name(),
			Methods: packageFuncs(pkg),
			Access:  pkg.Path(),
			Value:   pkg,
			Source:  "go/types",
		}, nil
	}

	obj := pkg.Scope().Lookup(c.Name)
	if obj == nil {
		return nil, fmt.Errorf("%s not declared in package %s", c.Name, pkg.Path())
	}

	loaded := &Loaded{Name: obj.Name(), Access: obj.Name(), Value: obj, Source: "go/types"}
	switch o := obj.(type) {
	case *types.Func:
		loaded.Kind = model.Function
	case *types.TypeName:
		named, ok := o.Type().(*types.Named)
		if !ok {
			loaded.Kind = model.Record
			break
		}
		switch named.Underlying().(type) {
		case *types.Struct:
			loaded.Kind = model.Class
		case *types.Interface:
			loaded.Kind = model.Interface
		default:
			loaded.Kind = model.Record
		}
		loaded.Methods = methodSet(named)
	default:
		return nil, fmt.Errorf("%s is a %T, not a type or function", c.Name, obj)
	}
	return loaded, nil
}

func (g *GoTypesLoader) pkg(ctx context.Context, dir string) (*types.Package, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pkgs == nil {
		g.pkgs = map[string]checkedPackage{}
	}
	fp, err := sourceFingerprint(dir)
	if err != nil {
		return nil, err
	}
	if p, ok := g.pkgs[dir]; ok && p.fp == fp {
		return p.pkg, nil
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.NeedName | packages.NeedTypes | packages.NeedDeps | packages.NeedImports,
		Dir:     dir,
		Env:     g.Env,
	}
	loaded, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, fmt.Errorf("loading package in %s: %w", dir, err)
	}
	if len(loaded) == 0 || loaded[0].Types == nil {
		return nil, fmt.Errorf("no package in %s", dir)
	}
	p := loaded[0]
	if len(p.Errors) > 0 && (p.Types.Scope() == nil || p.Types.Scope().Len() == 0) {
		return nil, fmt.Errorf("type-checking %s: %v", dir, p.Errors[0])
	}
	g.pkgs[dir] = checkedPackage{fp: fp, pkg: p.Types}
	return p.Types, nil
}

// sourceFingerprint hashes the names and contents of the .go files in dir,
// plus go.mod when present, so any edit forces a fresh type-check.
func sourceFingerprint(dir string) (uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}
	h := xxh3.New()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".go") && name != "go.mod") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", name, err)
		}
		_, _ = h.WriteString(name)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(data)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64(), nil
}

// methodSet lists the methods callable on *T, or on T for interfaces.
func methodSet(named *types.Named) []string {
	var t types.Type = named
	if !types.IsInterface(named) {
		t = types.NewPointer(named)
	}
	ms := types.NewMethodSet(t)
	names := make([]string, 0, ms.Len())
	for i := range ms.Len() {
		names = append(names, ms.At(i).Obj().Name())
	}
	slices.Sort(names)
	return names
}

func packageFuncs(pkg *types.Package) []string {
	var names []string
	scope := pkg.Scope()
	for _, n := range scope.Names() {
		if f, ok := scope.Lookup(n).(*types.Func); ok && f.Exported() {
			names = append(names, n)
		}
	}
	return names
}
