package discovery

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/phobologic/adaptive/internal/cache"
	"github.com/phobologic/adaptive/internal/config"
	"github.com/phobologic/adaptive/internal/model"
	"github.com/phobologic/adaptive/internal/resolve"
)

const calculatorJS = `class Calculator {
  add(a, b) { return a + b; }
  subtract(a, b) { return a - b; }
}
module.exports = Calculator;
`

var calculatorSig = Signature{
	Name:    "Calculator",
	Type:    "class",
	Methods: []string{"add", "subtract"},
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// newEngine returns an unregistered engine with an in-memory cache.
func newEngine(t *testing.T, root string, opts ...Option) (*Engine, *cache.FileStore) {
	t.Helper()
	store := cache.NewMemoryStore()
	e, err := New(root, append([]Option{WithStore(store)}, opts...)...)
	require.NoError(t, err)
	return e, store
}

func TestCalculatorScenario(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Calculator.js", calculatorJS)
	write(t, root, "tests/fixtures/Calculator.js", calculatorJS)

	e, _ := newEngine(t, root)
	ctx := context.Background()

	target, err := e.Discover(ctx, calculatorSig)
	require.NoError(t, err)
	assert.Equal(t, "src/Calculator.js", target.Candidate.RelPath)
	assert.Equal(t, model.Class, target.Loaded.Kind)
	assert.Equal(t, "source", target.Loaded.Source)
	assert.True(t, target.Loaded.HasMethod("subtract"))

	list, err := e.Explain(ctx, calculatorSig, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "src/Calculator.js", list[0].RelPath)
	assert.Equal(t, "tests/fixtures/Calculator.js", list[1].RelPath)
	assert.Greater(t, list[0].Score, list[1].Score)
}

func TestDecoyResilience(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/services/Cart.py", "class Cart:\n    def add(self, item): pass\n    def total(self): pass\n")
	for _, dir := range []string{"test", "tests", "mocks", "__mocks__", "fixtures", "spec", "tests/fixtures/deep"} {
		write(t, root, dir+"/Cart.py", "class Cart:\n    def add(self, item): pass\n    def total(self): pass\n")
	}

	e, _ := newEngine(t, root)
	winner, err := e.Find(context.Background(), Signature{Name: "Cart", Type: "class", Methods: []string{"add"}})
	require.NoError(t, err)
	assert.Equal(t, "src/services/Cart.py", winner.RelPath)
}

func TestMoveResilience(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Calculator.js", calculatorJS)
	write(t, root, "tests/fixtures/Calculator.js", calculatorJS)

	e, _ := newEngine(t, root)
	ctx := context.Background()
	before, err := e.Discover(ctx, calculatorSig)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib", "math"), 0o755))
	require.NoError(t, os.Rename(filepath.Join(root, "src", "Calculator.js"), filepath.Join(root, "lib", "math", "Calculator.js")))
	require.NoError(t, e.ClearCache())

	after, err := e.Discover(ctx, calculatorSig)
	require.NoError(t, err)
	assert.Equal(t, "lib/math/Calculator.js", after.Candidate.RelPath)
	assert.Equal(t, before.Candidate.Name, after.Candidate.Name)
	assert.Equal(t, before.Loaded.Kind, after.Loaded.Kind)
	assert.ElementsMatch(t, before.Loaded.Methods, after.Loaded.Methods)
}

func TestWarmCacheZeroReparse(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Calculator.js", calculatorJS)
	write(t, root, "lib/Calculator.py", "class Calculator:\n    def add(self): pass\n")
	write(t, root, "tests/Calculator.js", calculatorJS)

	e, store := newEngine(t, root)
	ctx := context.Background()

	cold, err := e.Explain(ctx, calculatorSig, 0)
	require.NoError(t, err)
	coldStats := store.Stats()
	assert.Equal(t, int64(3), coldStats.Puts)

	warm, err := e.Explain(ctx, calculatorSig, 0)
	require.NoError(t, err)
	warmStats := store.Stats()
	assert.Equal(t, coldStats.Puts, warmStats.Puts, "no re-parse on a warm cache")
	assert.Equal(t, coldStats.Misses, warmStats.Misses)
	assert.Equal(t, coldStats.Hits+3, warmStats.Hits)
	assert.Equal(t, cold, warm)
}

func TestSingleFileInvalidation(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a/Calculator.js", calculatorJS)
	write(t, root, "b/Calculator.js", calculatorJS)
	write(t, root, "c/Calculator.js", calculatorJS)

	e, store := newEngine(t, root)
	ctx := context.Background()
	_, err := e.Explain(ctx, calculatorSig, 0)
	require.NoError(t, err)
	base := store.Stats()

	write(t, root, "b/Calculator.js", calculatorJS+" ")
	_, err = e.Explain(ctx, calculatorSig, 0)
	require.NoError(t, err)
	after := store.Stats()

	assert.Equal(t, base.Puts+1, after.Puts, "only the modified file is re-extracted")
	assert.Equal(t, base.Hits+2, after.Hits)
	assert.Equal(t, base.Misses+1, after.Misses)
}

func TestExplainBreakdownSums(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Calculator.js", calculatorJS)
	write(t, root, "mocks/Calculator.js", "class Calculator { add() {} }\n")
	write(t, root, "legacy/CalculatorOld.py", "class CalculatorOld:\n    pass\n")

	e, _ := newEngine(t, root)
	list, err := e.Explain(context.Background(), Signature{Name: "calculator", Methods: []string{"add", "subtract"}}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	for _, c := range list {
		assert.Equal(t, c.Breakdown.Total(), c.Score, "%s in %s", c.Name, c.RelPath)
	}

	limited, err := e.Explain(context.Background(), Signature{Name: "calculator"}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMissingMethodNotFound(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Order.js", "class Order {\n  place() {}\n}\nmodule.exports = Order;\n")

	e, _ := newEngine(t, root)
	_, err := e.Discover(context.Background(), Signature{Name: "Order", Type: "class", Methods: []string{"cancel"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Len(t, nf.Rejected, 1)
	assert.Equal(t, "Order", nf.Rejected[0].Name)
	assert.Equal(t, e.Config().MinCandidateScore, nf.MinScore)
}

func TestTieFirstInScanOrder(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/beta/Calculator.js", calculatorJS)
	write(t, root, "src/alpha/Calculator.js", calculatorJS)

	for range 3 {
		e, _ := newEngine(t, root)
		winner, err := e.Find(context.Background(), calculatorSig)
		require.NoError(t, err)
		assert.Equal(t, "src/alpha/Calculator.js", winner.RelPath)
	}
}

func TestInvalidSignature(t *testing.T) {
	e, store := newEngine(t, t.TempDir())
	_, err := e.Discover(context.Background(), Signature{})
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, CodeOf(err), Code("INVALID_SIGNATURE"))
	assert.Zero(t, store.Stats().Misses, "no scan for an invalid signature")
}

func TestValidationFailureIsNotDowngraded(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Calculator.js", calculatorJS)

	wrongKind := resolve.LoaderFunc(func(_ context.Context, c model.Candidate) (*resolve.Loaded, error) {
		return &resolve.Loaded{Name: c.Name, Kind: model.Function}, nil
	})
	e, _ := newEngine(t, root, WithLoader(wrongKind))

	_, err := e.Discover(context.Background(), calculatorSig)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "src/Calculator.js", ve.Candidate.RelPath)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestTimeout(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Calculator.js", calculatorJS)

	e, _ := newEngine(t, root)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Minute))
	defer cancel()

	_, err := e.Discover(ctx, calculatorSig)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfiguredTimeoutCoversLoad(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Calculator.js", calculatorJS)

	blocking := resolve.LoaderFunc(func(ctx context.Context, _ model.Candidate) (*resolve.Loaded, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e, _ := newEngine(t, root, WithLoader(blocking),
		WithConfig(map[string]any{"timeout": 100 * time.Millisecond}))

	start := time.Now()
	_, err := e.Discover(context.Background(), calculatorSig)
	assert.ErrorIs(t, err, ErrTimeout)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Less(t, time.Since(start), 5*time.Second)
}

type Widget struct{}

func (*Widget) Spin() {}

func TestRegistryLoaderForGo(t *testing.T) {
	root := t.TempDir()
	write(t, root, "go.mod", "module github.com/phobologic/adaptive/discovery\n\ngo 1.25\n")
	write(t, root, "widget.go", "package discovery\n\ntype Widget struct{}\n\nfunc (w *Widget) Spin() {}\n")

	reg := resolve.NewRegistry()
	require.NoError(t, reg.Register(Widget{}))

	e, _ := newEngine(t, root, WithRegistry(reg))
	target, err := e.Discover(context.Background(), Signature{Name: "Widget", Type: "struct", Methods: []string{"Spin"}})
	require.NoError(t, err)
	assert.Equal(t, "registry", target.Loaded.Source)
	assert.Equal(t, reflect.TypeOf(Widget{}), target.Loaded.Value)
}

func TestGoEditRediscovers(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	root := t.TempDir()
	write(t, root, "go.mod", "module example.com/calc\n\ngo 1.21\n")
	write(t, root, "calc/calc.go", "package calc\n\ntype Calc struct{}\n\nfunc (c *Calc) Add(a, b int) int { return a + b }\n")

	e, _ := newEngine(t, root, WithRegistry(resolve.NewRegistry()))
	ctx := context.Background()

	target, err := e.Discover(ctx, Signature{Name: "Calc", Type: "class", Methods: []string{"Add"}})
	require.NoError(t, err)
	assert.Equal(t, "go/types", target.Loaded.Source)

	write(t, root, "calc/calc.go", "package calc\n\ntype Calc struct{}\n\nfunc (c *Calc) Add(a, b int) int { return a + b }\n\nfunc (c *Calc) Sub(a, b int) int { return a - b }\n")
	target, err = e.Discover(ctx, Signature{Name: "Calc", Type: "class", Methods: []string{"Add", "Sub"}})
	require.NoError(t, err)
	assert.True(t, target.Loaded.HasMethod("Sub"))
}

func TestPersistentCacheAcrossEngines(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Calculator.js", calculatorJS)

	first, err := New(root)
	require.NoError(t, err)
	_, err = first.Discover(context.Background(), calculatorSig)
	require.NoError(t, err)

	snapshot := filepath.Join(first.Root(), config.DefaultCacheFile)
	_, err = os.Stat(snapshot)
	require.NoError(t, err)

	second, err := New(root)
	require.NoError(t, err)
	_, err = second.Discover(context.Background(), calculatorSig)
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Stats().Hits)
	assert.Zero(t, second.Stats().Puts)

	require.NoError(t, second.ClearCache())
	_, err = os.Stat(snapshot)
	assert.True(t, os.IsNotExist(err))
}

func TestCacheDisabled(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Calculator.js", calculatorJS)

	e, err := New(root, WithConfig(map[string]any{"cache_enabled": false}))
	require.NoError(t, err)
	_, err = e.Discover(context.Background(), calculatorSig)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(e.Root(), config.DefaultCacheFile))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigOverridesMinScore(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Calculator.js", calculatorJS)

	e, _ := newEngine(t, root, WithConfig(map[string]any{"min_candidate_score": 1000}))
	_, err := e.Find(context.Background(), calculatorSig)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestForRootSharesEngine(t *testing.T) {
	root := t.TempDir()

	a, err := ForRoot(root)
	require.NoError(t, err)
	b, err := ForRoot(filepath.Join(root, ".", "sub", ".."))
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := New(root)
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	_, err = ForRoot(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestPackageLevelAPI(t *testing.T) {
	root := t.TempDir()
	write(t, root, "app/billing.py", "class Invoice:\n    def total(self): pass\n")

	ctx := context.Background()
	target, err := Discover(ctx, Signature{Name: "Invoice", Methods: []string{"total"}}, root)
	require.NoError(t, err)
	assert.Equal(t, "app/billing.py", target.Candidate.RelPath)
	assert.Equal(t, "app.billing", target.Candidate.Module)

	winner, err := Find(ctx, Signature{Name: "Invoice"}, root)
	require.NoError(t, err)
	assert.Equal(t, "Invoice", winner.Name)

	list, err := Explain(ctx, Signature{Name: "Invoice"}, root, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	require.NoError(t, ClearCache(root))
}

func TestDiscoverSpanAndMetrics(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/Calculator.js", calculatorJS)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	e, _ := newEngine(t, root, WithTracerProvider(tp))
	_, err := e.Discover(context.Background(), calculatorSig)
	require.NoError(t, err)

	var found bool
	for _, s := range exporter.GetSpans() {
		if s.Name != "discovery.discover" {
			continue
		}
		found = true
		attrs := map[attribute.Key]string{}
		for _, a := range s.Attributes {
			attrs[a.Key] = a.Value.Emit()
		}
		assert.NotEmpty(t, attrs["call_id"])
		assert.Equal(t, "{name=Calculator type=class methods=[add,subtract]}", attrs["signature"])
	}
	assert.True(t, found, "discovery.discover span not recorded")

	families, err := e.Gatherer().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["adaptive_calls_total"])
	assert.True(t, names["adaptive_scan_files_total"])
}
