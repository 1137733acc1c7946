package probsheet

import (
	"math"
	"testing"
)

// EngineTestCase is a fluent builder for end-to-end engine tests.
type EngineTestCase struct {
	t      *testing.T
	name   string
	engine *Engine
	err    error
}

func NewEngineTestCase(t *testing.T, name string) *EngineTestCase {
	t.Helper()
	cfg := &Config{RandomSeed: 42}
	engine, err := New(cfg)
	tc := &EngineTestCase{t: t, name: name, engine: engine, err: err}
	if err != nil {
		t.Fatalf("%s: engine construction failed: %v", name, err)
	}
	if _, err := engine.AddSheet("Sheet1"); err != nil {
		t.Fatalf("%s: AddSheet failed: %v", name, err)
	}
	return tc
}

func (tc *EngineTestCase) Set(address, raw string) *EngineTestCase {
	if tc.err != nil {
		return tc
	}
	tc.err = tc.engine.Set(address, raw)
	if tc.err != nil {
		tc.t.Errorf("%s: Set(%s) failed: %v", tc.name, address, tc.err)
	}
	return tc
}

func (tc *EngineTestCase) Remove(address string) *EngineTestCase {
	if tc.err != nil {
		return tc
	}
	addr, err := tc.engine.resolveAddressText(address)
	if err != nil {
		tc.err = err
		tc.t.Errorf("%s: Remove(%s) failed: %v", tc.name, address, err)
		return tc
	}
	tc.engine.SetEmpty(addr)
	return tc
}

func (tc *EngineTestCase) Recompute() *EngineTestCase {
	if tc.err != nil {
		return tc
	}
	tc.engine.Recompute()
	return tc
}

func (tc *EngineTestCase) value(address string) Value {
	tc.t.Helper()
	v, err := tc.engine.Get(address)
	if err != nil {
		tc.t.Fatalf("%s: Get(%s) failed: %v", tc.name, address, err)
	}
	return v
}

func (tc *EngineTestCase) ExpectNumber(address string, want, tol float64) *EngineTestCase {
	tc.t.Helper()
	v := tc.value(address)
	n, ok := v.(*RichNumber)
	if !ok {
		tc.t.Errorf("%s: %s = %#v, want a number near %v", tc.name, address, v, want)
		return tc
	}
	if math.Abs(n.Val-want) > tol {
		tc.t.Errorf("%s: %s = %v, want %v +- %v", tc.name, address, n.Val, want, tol)
	}
	return tc
}

func (tc *EngineTestCase) ExpectString(address, want string) *EngineTestCase {
	tc.t.Helper()
	v := tc.value(address)
	if s, ok := v.(string); !ok || s != want {
		tc.t.Errorf("%s: %s = %#v, want %q", tc.name, address, v, want)
	}
	return tc
}

func (tc *EngineTestCase) ExpectBool(address string, want bool) *EngineTestCase {
	tc.t.Helper()
	v := tc.value(address)
	if b, ok := v.(bool); !ok || b != want {
		tc.t.Errorf("%s: %s = %#v, want %v", tc.name, address, v, want)
	}
	return tc
}

func (tc *EngineTestCase) ExpectError(address string, kind ErrorKind) *EngineTestCase {
	tc.t.Helper()
	v := tc.value(address)
	err, ok := v.(*CellError)
	if !ok {
		tc.t.Errorf("%s: %s = %#v, want error kind %v", tc.name, address, v, kind)
		return tc
	}
	if err.Kind != kind {
		tc.t.Errorf("%s: %s error kind = %v, want %v", tc.name, address, err.Kind, kind)
	}
	return tc
}

func (tc *EngineTestCase) number(address string) *RichNumber {
	tc.t.Helper()
	n, ok := tc.value(address).(*RichNumber)
	if !ok {
		tc.t.Fatalf("%s: %s is not a number", tc.name, address)
	}
	return n
}

// scenario 1: basic gaussian sum

func TestScenarioGaussianSum(t *testing.T) {
	tc := NewEngineTestCase(t, "gaussian sum").
		Set("A1", "N(μ=1, σ²=2)").
		Set("B1", "N(μ=3, σ²=4)").
		Set("C1", "=A1+B1").
		Recompute()

	c1 := tc.number("C1")
	if c1.Kind != KindGaussian {
		t.Fatalf("C1 kind = %v, want Gaussian", c1.Kind)
	}
	if math.Abs(c1.Mu-4) > 0.1 {
		t.Errorf("C1 mean = %v, want 4 +- 0.1", c1.Mu)
	}
	if math.Abs(c1.Sigma2-6) > 0.3 {
		t.Errorf("C1 variance = %v, want 6 +- 0.3", c1.Sigma2)
	}
}

// scenario 2: CI parsed then multiplied by scalar

func TestScenarioConfidenceIntervalTimesScalar(t *testing.T) {
	tc := NewEngineTestCase(t, "ci times scalar").
		Set("A1", "10 to 20").
		Set("B1", "3").
		Set("C1", "=A1*B1").
		Recompute()

	a1 := tc.number("A1")
	if a1.Kind != KindConfidenceInterval || a1.Lo != 10 || a1.Hi != 20 {
		t.Fatalf("A1 = %+v, want CI[10, 20]", a1)
	}
	if a1.Interp != InterpLogNormal {
		t.Errorf("A1 interpretation = %v, want LogNormal (ratio 2, auto)", a1.Interp)
	}

	c1 := tc.number("C1")
	if !c1.IsDistribution() {
		t.Fatalf("C1 kind = %v, want a distribution", c1.Kind)
	}
	// the CI reads as log-normal with median sqrt(10*20); tripling
	// scales the median by 3
	wantMedian := 3 * math.Sqrt(200)
	samples, serr := tc.engine.sampler.samplesOf(c1)
	if serr != nil {
		t.Fatalf("samples: %v", serr)
	}
	if got := medianOfSamples(samples); math.Abs(got-wantMedian) > 1.0 {
		t.Errorf("C1 median = %v, want %v +- 1.0", got, wantMedian)
	}
}

func medianOfSamples(samples []float64) float64 {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] < sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// scenario 3: div-by-zero guard

func TestScenarioDivByZero(t *testing.T) {
	NewEngineTestCase(t, "div by zero").
		Set("A1", "5").
		Set("B1", "0").
		Set("C1", "=A1/B1").
		Recompute().
		ExpectError("C1", ErrorDivByZero)
}

// scenario 4: range SUM with hierarchical sharing

func TestScenarioRangeSumHierarchy(t *testing.T) {
	tc := NewEngineTestCase(t, "range sum hierarchy")
	for row := 1; row <= 10; row++ {
		tc.Set("A"+itoa(row), itoa(row))
	}
	tc.Set("B1", "=SUM(A1:A10)").
		Set("B2", "=SUM(A1:A5)").
		Recompute().
		ExpectNumber("B1", 55, 1e-9).
		ExpectNumber("B2", 15, 1e-9)

	g := tc.engine.graph
	big := newAbsoluteCellRange(addr(0, 0), addr(0, 9))
	small := newAbsoluteCellRange(addr(0, 0), addr(0, 4))
	bigID, okBig := g.ranges[big]
	smallID, okSmall := g.ranges[small]
	if !okBig || !okSmall {
		t.Fatal("both range vertices must exist")
	}
	if _, hasEdge := g.dependents[smallID][bigID]; !hasEdge {
		t.Error("graph must contain the sub-range edge A1:A5 -> A1:A10")
	}
}

func itoa(n int) string {
	if n == 10 {
		return "10"
	}
	return string(rune('0' + n))
}

// scenario 5: cycle

func TestScenarioCycle(t *testing.T) {
	NewEngineTestCase(t, "cycle").
		Set("A1", "=B1").
		Set("B1", "=A1").
		Recompute().
		ExpectError("A1", ErrorCycle).
		ExpectError("B1", ErrorCycle)
}

// scenario 6: volatile recomputation

func TestScenarioVolatileRecompute(t *testing.T) {
	tc := NewEngineTestCase(t, "volatile").
		Set("A1", "=RAND()").
		Set("B1", "=A1").
		Recompute()

	before := tc.number("A1").Val
	beforeB := tc.number("B1").Val
	if before != beforeB {
		t.Fatalf("B1 must mirror A1: %v vs %v", before, beforeB)
	}

	tc.Set("C1", "7").Recompute()

	after := tc.number("A1").Val
	if after == before {
		t.Error("volatile A1 must re-evaluate after an unrelated edit")
	}
	if got := tc.number("B1").Val; got != after {
		t.Errorf("B1 = %v, want re-evaluated value %v", got, after)
	}
}

// scenario 7 lives in sample_test.go (CI round-trip); the engine-level
// variant checks the parsed literal feeds the same sampler

func TestScenarioCIRoundTripThroughEngine(t *testing.T) {
	tc := NewEngineTestCase(t, "ci round trip").
		Set("A1", "CI[10, 14]"). // ratio < 2 so auto resolves to Normal
		Recompute()

	a1 := tc.number("A1")
	if a1.Interp != InterpNormal {
		t.Fatalf("interpretation = %v, want Normal", a1.Interp)
	}
	samples, err := tc.engine.sampler.samplesOf(a1)
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	if got := meanOf(samples); math.Abs(got-12) > 0.3 {
		t.Errorf("mean = %v, want 12 +- 0.3", got)
	}
}

// further end-to-end coverage

func TestFormulaReferencingEmptyCell(t *testing.T) {
	NewEngineTestCase(t, "empty ref").
		Set("B1", "=A1+5").
		Recompute().
		ExpectNumber("B1", 5, 1e-9)
}

func TestIncrementalRecompute(t *testing.T) {
	tc := NewEngineTestCase(t, "incremental").
		Set("A1", "2").
		Set("B1", "=A1*10").
		Recompute().
		ExpectNumber("B1", 20, 1e-9)

	tc.Set("A1", "3").Recompute().ExpectNumber("B1", 30, 1e-9)
}

func TestStringsAndComparisons(t *testing.T) {
	NewEngineTestCase(t, "strings").
		Set("A1", "hello").
		Set("B1", `=A1&" world"`).
		Set("C1", `=IF(A1="HELLO", 1, 2)`).
		Recompute().
		ExpectString("B1", "hello world").
		// default engine is case-insensitive
		ExpectNumber("C1", 1, 0)
}

func TestIfErrorTrapsOnlyThere(t *testing.T) {
	NewEngineTestCase(t, "iferror").
		Set("A1", "=1/0").
		Set("B1", "=IFERROR(A1, 42)").
		Set("C1", "=A1+1").
		Recompute().
		ExpectError("A1", ErrorDivByZero).
		ExpectNumber("B1", 42, 0).
		ExpectError("C1", ErrorDivByZero)
}

func TestIfNACatchesOnlyNA(t *testing.T) {
	NewEngineTestCase(t, "ifna").
		Set("A1", "=1/0").
		Set("B1", "=IFNA(A1, 42)").
		Recompute().
		ExpectError("B1", ErrorDivByZero)
}

func TestParsingErrorVertex(t *testing.T) {
	tc := NewEngineTestCase(t, "parse error").
		Set("A1", "=1+").
		Recompute().
		ExpectError("A1", ErrorGeneric)

	v := tc.engine.graph.GetCell(addr(0, 0))
	pe, ok := v.(*ParsingErrorVertex)
	if !ok {
		t.Fatalf("vertex = %T, want ParsingErrorVertex", v)
	}
	if pe.RawText != "=1+" {
		t.Errorf("raw text = %q", pe.RawText)
	}
}

func TestArrayFormulaSpill(t *testing.T) {
	tc := NewEngineTestCase(t, "array spill").
		Set("A1", "1").
		Set("A2", "2").
		Set("B1", "{=A1:A2*10}").
		Recompute().
		ExpectNumber("B1", 10, 1e-9).
		ExpectNumber("B2", 20, 1e-9)

	// occupy the spill area and watch it fail
	tc.Set("D2", "occupied").
		Set("C1", "{=A1:A2*10}").
		Recompute()
	// C1 spills into C2 which is free, so it works; E1 spilling into
	// the occupied D2 does not exist yet. re-anchor over D2:
	tc.Set("D1", "{=A1:A2*10}").
		Recompute().
		ExpectError("D1", ErrorSpill)
}

func TestNamedExpressions(t *testing.T) {
	tc := NewEngineTestCase(t, "named expressions")
	if err := tc.engine.AddNamedExpression("tax_rate", "0.2", SheetForWorkbookExpressions); err != nil {
		t.Fatalf("AddNamedExpression: %v", err)
	}
	tc.Set("A1", "100").
		Set("B1", "=A1*tax_rate").
		Recompute().
		ExpectNumber("B1", 20, 1e-9)

	// undefined names evaluate to Error(Name)
	tc.Set("C1", "=A1*missing_rate").
		Recompute().
		ExpectError("C1", ErrorName)
}

func TestRemoveNamedExpressionLeavesPlaceholder(t *testing.T) {
	tc := NewEngineTestCase(t, "named removal")
	if err := tc.engine.AddNamedExpression("rate", "2", SheetForWorkbookExpressions); err != nil {
		t.Fatalf("AddNamedExpression: %v", err)
	}
	tc.Set("A1", "=rate*3").Recompute().ExpectNumber("A1", 6, 1e-9)

	if err := tc.engine.RemoveNamedExpression("rate", SheetForWorkbookExpressions); err != nil {
		t.Fatalf("RemoveNamedExpression: %v", err)
	}
	tc.Recompute().ExpectError("A1", ErrorName)
}

func TestFormulaText(t *testing.T) {
	NewEngineTestCase(t, "formulatext").
		Set("A1", "=1+2").
		Set("B1", "=FORMULATEXT(A1)").
		Recompute().
		ExpectString("B1", "=1+2")
}

func TestAddRowsKeepsFormulaMeaning(t *testing.T) {
	tc := NewEngineTestCase(t, "add rows").
		Set("A1", "1").
		Set("A2", "2").
		Set("B1", "=SUM(A1:A2)").
		Recompute().
		ExpectNumber("B1", 3, 1e-9)

	// insert a row between A1 and A2; the range stretches over it
	if err := tc.engine.AddRows(0, 1, 1); err != nil {
		t.Fatalf("AddRows: %v", err)
	}
	tc.Recompute().ExpectNumber("B1", 3, 1e-9)

	tc.Set("A2", "10").Recompute().ExpectNumber("B1", 13, 1e-9)
}

func TestRemoveRowsInvalidatesReferences(t *testing.T) {
	tc := NewEngineTestCase(t, "remove rows").
		Set("A2", "5").
		Set("B1", "=A2").
		Recompute().
		ExpectNumber("B1", 5, 1e-9)

	if err := tc.engine.RemoveRows(0, 1, 1); err != nil {
		t.Fatalf("RemoveRows: %v", err)
	}
	tc.Recompute().ExpectError("B1", ErrorRef)
}

func TestMultiSheetReferences(t *testing.T) {
	tc := NewEngineTestCase(t, "multi sheet")
	if _, err := tc.engine.AddSheet("Data"); err != nil {
		t.Fatalf("AddSheet: %v", err)
	}
	tc.Set("Data!A1", "11").
		Set("Sheet1!A1", "=Data!A1*2").
		Recompute().
		ExpectNumber("Sheet1!A1", 22, 1e-9)
}

func TestDeterministicEngines(t *testing.T) {
	run := func() float64 {
		tc := NewEngineTestCase(t, "determinism").
			Set("A1", "N(μ=1, σ²=2)").
			Set("B1", "=A1*A1").
			Recompute()
		return tc.number("B1").Val
	}
	if run() != run() {
		t.Error("identical seeds and inputs must produce identical results")
	}
}

func TestChangeRecords(t *testing.T) {
	tc := NewEngineTestCase(t, "change records").
		Set("A1", "1").
		Set("B1", "=A1+1").
		Set("C1", "=B1+1")
	changes := tc.engine.Recompute()
	if len(changes) != 2 {
		t.Fatalf("change count = %d, want 2 (B1, C1)", len(changes))
	}
	// deterministic address order: row-major
	if changes[0].Address != addr(1, 0) || changes[1].Address != addr(2, 0) {
		t.Errorf("change order = %v, %v", changes[0].Address, changes[1].Address)
	}
}

func TestRunnableChain(t *testing.T) {
	var logged []string
	engine, err := NewRunnable(&Config{RandomSeed: 1}, func(s string) { logged = append(logged, s) }).
		AddSheet("Sheet1").
		Set("A1", "2").
		Set("B1", "=A1^10").
		Log("A1").
		Run()
	if err != nil {
		t.Fatalf("runnable chain failed: %v", err)
	}
	v, err := engine.Get("B1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n, ok := v.(*RichNumber); !ok || n.Val != 1024 {
		t.Errorf("B1 = %#v, want 1024", v)
	}
	if len(logged) != 1 {
		t.Errorf("log lines = %v", logged)
	}
}
