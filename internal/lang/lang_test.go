package lang

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/phobologic/adaptive/internal/model"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".py", "python"},
		{".go", "go"},
		{".rb", "ruby"},
		{".js", "javascript"},
		{".MJS", "javascript"},
		{".ts", "typescript"},
		{".tsx", "tsx"},
		{".java", "java"},
		{".txt", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			got := ForExtension(tt.ext)
			if got != tt.want {
				t.Errorf("ForExtension(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestLanguagesRegistered(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"go", "python", "ruby", "javascript", "typescript", "tsx", "java"} {
		l, ok := Languages[name]
		if !ok {
			t.Fatalf("%s language not registered", name)
		}
		if l.GetLanguage() == nil {
			t.Errorf("%s language is nil", name)
		}
		if l.Lang() != name {
			t.Errorf("Lang() = %q, want %q", l.Lang(), name)
		}
	}
}

func extract(t *testing.T, langName, file, source string) []model.Candidate {
	t.Helper()
	l := Languages[langName]
	if l == nil {
		t.Fatalf("language %q not registered", langName)
	}
	cands, err := l.Parse(context.Background(), []byte(source), filepath.Join(t.TempDir(), file))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cands
}

func find(t *testing.T, cands []model.Candidate, name string, kind model.Kind) model.Candidate {
	t.Helper()
	for _, c := range cands {
		if c.Name == name && c.Kind == kind {
			return c
		}
	}
	t.Fatalf("no %s %q in %+v", kind, name, cands)
	return model.Candidate{}
}

func TestPythonExtract(t *testing.T) {
	t.Parallel()

	source := `import os

@dataclass
class Point:
    x: int

class Calculator(Base, metaclass=Meta):
    def add(self, a, b):
        return a + b

    @staticmethod
    def subtract(a, b):
        return a - b

def helper():
    pass

def _private():
    pass
`
	cands := extract(t, "python", "calc.py", source)

	mod := find(t, cands, "calc", model.Module)
	if !slices.Equal(mod.Methods, []string{"helper"}) {
		t.Errorf("module methods = %v", mod.Methods)
	}

	calc := find(t, cands, "Calculator", model.Class)
	if !slices.Equal(calc.Methods, []string{"add", "subtract"}) {
		t.Errorf("methods = %v", calc.Methods)
	}
	if !slices.Equal(calc.Extends, []string{"Base"}) {
		t.Errorf("extends = %v", calc.Extends)
	}
	if calc.Line != 7 {
		t.Errorf("line = %d, want 7", calc.Line)
	}
	if calc.Language != "python" {
		t.Errorf("language = %q", calc.Language)
	}

	point := find(t, cands, "Point", model.Record)
	if !slices.Equal(point.Annotations, []string{"dataclass"}) {
		t.Errorf("annotations = %v", point.Annotations)
	}

	priv := find(t, cands, "_private", model.Function)
	if priv.Export.Kind != model.ExportNone {
		t.Errorf("_private export = %v", priv.Export)
	}
}

func TestGoExtract(t *testing.T) {
	t.Parallel()

	source := `package calc

type Calculator struct {
	Base
	total int
}

type Adder interface {
	Add(a, b int) int
}

type Mode int

func New() *Calculator { return &Calculator{} }

func (c *Calculator) Add(a, b int) int { return a + b }
`
	cands := extract(t, "go", "calc.go", source)

	pkg := find(t, cands, "calc", model.Module)
	if pkg.Module != "calc" {
		t.Errorf("module = %q", pkg.Module)
	}
	if !slices.Equal(pkg.Methods, []string{"New"}) {
		t.Errorf("package funcs = %v", pkg.Methods)
	}

	calc := find(t, cands, "Calculator", model.Class)
	if !slices.Equal(calc.Extends, []string{"Base"}) {
		t.Errorf("embedded = %v", calc.Extends)
	}
	if calc.Export.Kind != model.ExportNamed {
		t.Errorf("export = %v", calc.Export)
	}

	adder := find(t, cands, "Adder", model.Interface)
	if !slices.Equal(adder.Methods, []string{"Add"}) {
		t.Errorf("interface methods = %v", adder.Methods)
	}

	find(t, cands, "Mode", model.Record)

	add := find(t, cands, "Add", model.Method)
	if add.Receiver != "Calculator" {
		t.Errorf("receiver = %q", add.Receiver)
	}
}

func TestGoImportPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/shop\n\ngo 1.22\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(root, "internal", "cart")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	if got := goImportPath(dir, "cart"); got != "example.com/shop/internal/cart" {
		t.Errorf("goImportPath = %q", got)
	}
	if got := goImportPath(root, "shop"); got != "example.com/shop" {
		t.Errorf("goImportPath(root) = %q", got)
	}
}

func TestJavaScriptExtract(t *testing.T) {
	t.Parallel()

	source := `class Calculator extends Base {
  add(a, b) { return a + b; }
  subtract(a, b) { return a - b; }
}

export function sum(xs) { return 0; }

export const twice = (x) => x * 2;

export default Calculator;
`
	cands := extract(t, "javascript", "Calculator.js", source)

	calc := find(t, cands, "Calculator", model.Class)
	if !slices.Equal(calc.Methods, []string{"add", "subtract"}) {
		t.Errorf("methods = %v", calc.Methods)
	}
	if !slices.Equal(calc.Extends, []string{"Base"}) {
		t.Errorf("extends = %v", calc.Extends)
	}
	if calc.Export.Kind != model.ExportDefault {
		t.Errorf("export = %v", calc.Export)
	}

	sum := find(t, cands, "sum", model.Function)
	if sum.Export != (model.Export{Kind: model.ExportNamed, Name: "sum"}) {
		t.Errorf("sum export = %v", sum.Export)
	}

	mod := find(t, cands, "Calculator", model.Module)
	if !slices.Equal(mod.Methods, []string{"sum", "twice"}) {
		t.Errorf("module methods = %v", mod.Methods)
	}
}

func TestJavaScriptCommonJS(t *testing.T) {
	t.Parallel()

	source := `class Store {
  get(key) {}
}
module.exports = Store;
`
	cands := extract(t, "javascript", "store.js", source)
	store := find(t, cands, "Store", model.Class)
	if store.Export.Kind != model.ExportModule {
		t.Errorf("export = %v", store.Export)
	}

	cands = extract(t, "javascript", "utils.js", "module.exports = { parse, format() {} };\n")
	mod := find(t, cands, "utils", model.Module)
	if !slices.Equal(mod.Methods, []string{"parse", "format"}) {
		t.Errorf("module methods = %v", mod.Methods)
	}
}

func TestTypeScriptExtract(t *testing.T) {
	t.Parallel()

	source := `export interface Repo {
  find(id: string): Item;
}

export enum Color { Red, Green }

export class UserRepo implements Repo {
  find(id: string): Item { return null; }
  private save(item: Item): void {}
}
`
	cands := extract(t, "typescript", "repo.ts", source)

	repo := find(t, cands, "Repo", model.Interface)
	if !slices.Equal(repo.Methods, []string{"find"}) {
		t.Errorf("interface methods = %v", repo.Methods)
	}
	find(t, cands, "Color", model.Enum)

	user := find(t, cands, "UserRepo", model.Class)
	if !slices.Equal(user.Methods, []string{"find", "save"}) {
		t.Errorf("methods = %v", user.Methods)
	}
	if !slices.Equal(user.Implements, []string{"Repo"}) {
		t.Errorf("implements = %v", user.Implements)
	}
	if user.Export.Kind != model.ExportNamed {
		t.Errorf("export = %v", user.Export)
	}
}

func TestRubyExtract(t *testing.T) {
	t.Parallel()

	source := `module Billing
  class Invoice < Document
    include Comparable

    def total
    end

    def self.build
    end
  end
end

def helper
end
`
	cands := extract(t, "ruby", "invoice.rb", source)

	find(t, cands, "Billing", model.Module)
	inv := find(t, cands, "Invoice", model.Class)
	if inv.Module != "Billing" {
		t.Errorf("module = %q", inv.Module)
	}
	if !slices.Equal(inv.Methods, []string{"total", "build"}) {
		t.Errorf("methods = %v", inv.Methods)
	}
	if !slices.Equal(inv.Extends, []string{"Document"}) {
		t.Errorf("extends = %v", inv.Extends)
	}
	if !slices.Equal(inv.Implements, []string{"Comparable"}) {
		t.Errorf("mixins = %v", inv.Implements)
	}
	find(t, cands, "helper", model.Function)
}

func TestJavaExtract(t *testing.T) {
	t.Parallel()

	source := `package com.acme.billing;

@Service
public class InvoiceService extends BaseService implements Closeable, Auditable {
    public void close() {}
    Invoice create(String id) { return null; }
}

interface Auditable extends Named {
    void audit();
}

public record Money(long cents, String currency) {}
`
	cands := extract(t, "java", "InvoiceService.java", source)

	svc := find(t, cands, "InvoiceService", model.Class)
	if svc.Module != "com.acme.billing" {
		t.Errorf("module = %q", svc.Module)
	}
	if !slices.Equal(svc.Methods, []string{"close", "create"}) {
		t.Errorf("methods = %v", svc.Methods)
	}
	if !slices.Equal(svc.Annotations, []string{"Service"}) {
		t.Errorf("annotations = %v", svc.Annotations)
	}
	if !slices.Equal(svc.Extends, []string{"BaseService"}) {
		t.Errorf("extends = %v", svc.Extends)
	}
	if !slices.Equal(svc.Implements, []string{"Closeable", "Auditable"}) {
		t.Errorf("implements = %v", svc.Implements)
	}
	if svc.Export.Kind != model.ExportNamed {
		t.Errorf("export = %v", svc.Export)
	}

	aud := find(t, cands, "Auditable", model.Interface)
	if aud.Export.Kind != model.ExportNone {
		t.Errorf("package-private export = %v", aud.Export)
	}
	if !slices.Equal(aud.Extends, []string{"Named"}) {
		t.Errorf("interface extends = %v", aud.Extends)
	}

	money := find(t, cands, "Money", model.Record)
	if !slices.Equal(money.Methods, []string{"cents", "currency"}) {
		t.Errorf("record components = %v", money.Methods)
	}
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	cands, err := Languages["python"].Parse(context.Background(), nil, "x.py")
	if err != nil || cands != nil {
		t.Errorf("Parse(empty) = %v, %v", cands, err)
	}
}
