package probsheet

import (
	"fmt"
	"testing"
)

// benchmarks for the hot paths: Monte-Carlo sampling, formula
// evaluation, and incremental recompute.

func benchEngine(b *testing.B) *Engine {
	b.Helper()
	engine, err := New(&Config{RandomSeed: 42})
	if err != nil {
		b.Fatal(err)
	}
	if _, err := engine.AddSheet("Sheet1"); err != nil {
		b.Fatal(err)
	}
	return engine
}

func BenchmarkGaussianSampling(b *testing.B) {
	cfg := DefaultConfig()
	cfg.RandomSeed = 42
	cfg.Random = NewSeededRandomGenerator(42)
	s := newSampler(cfg)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.gaussianVector(0, 1)
	}
}

func BenchmarkDistributionAdd(b *testing.B) {
	cfg := DefaultConfig()
	cfg.RandomSeed = 42
	cfg.Random = NewSeededRandomGenerator(42)
	a := newArith(cfg, newSampler(cfg))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.Add(NewGaussian(1, 2), NewGaussian(3, 4)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkScalarRecompute(b *testing.B) {
	engine := benchEngine(b)
	const rows = 100
	for row := 0; row < rows; row++ {
		cell := SimpleCellAddress{Sheet: 0, Col: 0, Row: row}
		if err := engine.SetCellContents(cell, fmt.Sprintf("%d", row)); err != nil {
			b.Fatal(err)
		}
		formula := SimpleCellAddress{Sheet: 0, Col: 1, Row: row}
		if err := engine.SetCellContents(formula, fmt.Sprintf("=A%d*2+1", row+1)); err != nil {
			b.Fatal(err)
		}
	}
	engine.Recompute()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		root := SimpleCellAddress{Sheet: 0, Col: 0, Row: 0}
		if err := engine.SetCellContents(root, fmt.Sprintf("%d", i)); err != nil {
			b.Fatal(err)
		}
		engine.Recompute()
	}
}

func BenchmarkRangeSum(b *testing.B) {
	engine := benchEngine(b)
	const rows = 1000
	for row := 0; row < rows; row++ {
		cell := SimpleCellAddress{Sheet: 0, Col: 0, Row: row}
		if err := engine.SetCellContents(cell, "1"); err != nil {
			b.Fatal(err)
		}
	}
	sum := SimpleCellAddress{Sheet: 0, Col: 1, Row: 0}
	if err := engine.SetCellContents(sum, fmt.Sprintf("=SUM(A1:A%d)", rows)); err != nil {
		b.Fatal(err)
	}
	engine.Recompute()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cell := SimpleCellAddress{Sheet: 0, Col: 0, Row: i % rows}
		if err := engine.SetCellContents(cell, "2"); err != nil {
			b.Fatal(err)
		}
		engine.Recompute()
	}
}

func BenchmarkParseCached(b *testing.B) {
	engine := benchEngine(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addr := SimpleCellAddress{Sheet: 0, Col: 2, Row: i % 1000}
		// anchored references hash identically at every address: one
		// parse, one shared AST
		if err := engine.SetCellContents(addr, "=$A$1*$B$1+SUM($C$1:$C$10)"); err != nil {
			b.Fatal(err)
		}
	}
}
