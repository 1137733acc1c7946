package probsheet

import "testing"

func addr(col, row int) SimpleCellAddress {
	return SimpleCellAddress{Sheet: 0, Col: col, Row: row}
}

func TestEmptyVertexInvariant(t *testing.T) {
	g := NewDependencyGraph()

	// a formula depending on an empty cell materializes a placeholder
	f := &FormulaVertex{Address: addr(1, 0), Width: 1, Height: 1}
	g.SetFormula(f, []Dep{{Kind: DepAddress, Address: newRelativeAddress(-1, 0)}})

	if _, ok := g.cellID(addr(0, 0)); !ok {
		t.Fatal("empty dependency must exist as a vertex")
	}

	// removing the formula must clean the orphaned placeholder up
	g.SetEmpty(addr(1, 0))
	if _, ok := g.cellID(addr(0, 0)); ok {
		t.Error("empty vertex with no dependents must be removed")
	}
}

func TestSetEmptyKeepsPlaceholderForDependents(t *testing.T) {
	g := NewDependencyGraph()
	g.SetValue(addr(0, 0), "5", NewRaw(5))
	f := &FormulaVertex{Address: addr(1, 0), Width: 1, Height: 1}
	g.SetFormula(f, []Dep{{Kind: DepAddress, Address: newRelativeAddress(-1, 0)}})

	g.SetEmpty(addr(0, 0))
	id, ok := g.cellID(addr(0, 0))
	if !ok {
		t.Fatal("cell with dependents must convert to a placeholder, not vanish")
	}
	if _, isEmpty := g.vertexAt(id).(*EmptyVertex); !isEmpty {
		t.Errorf("vertex = %T, want EmptyVertex", g.vertexAt(id))
	}
}

func TestHierarchicalRangeSharing(t *testing.T) {
	g := NewDependencyGraph()
	for row := 0; row < 10; row++ {
		g.SetValue(addr(0, row), "1", NewRaw(1))
	}

	big := newAbsoluteCellRange(addr(0, 0), addr(0, 9))
	small := newAbsoluteCellRange(addr(0, 0), addr(0, 4))

	bigID := g.getOrCreateRangeVertex(big)
	bigVertex := g.vertexAt(bigID).(*RangeVertex)
	if !bigVertex.BruteForce {
		t.Fatal("first range must be brute force")
	}

	smallID := g.getOrCreateRangeVertex(small)
	// the superset must have adopted the sub-range
	if bigVertex.BruteForce {
		t.Error("superset must drop brute force once a sub-range exists")
	}
	if bigVertex.SmallerRange != smallID {
		t.Errorf("smaller range = %d, want %d", bigVertex.SmallerRange, smallID)
	}
	if _, hasEdge := g.dependents[smallID][bigID]; !hasEdge {
		t.Error("graph must contain the sub-range edge small -> big")
	}

	// big's direct cell edges now cover only rows 5..9
	for row := 0; row < 5; row++ {
		cellID, _ := g.cellID(addr(0, row))
		if _, hasEdge := g.dependents[cellID][bigID]; hasEdge {
			t.Errorf("row %d should reach the big range only through the sub-range", row)
		}
	}
	for row := 5; row < 10; row++ {
		cellID, _ := g.cellID(addr(0, row))
		if _, hasEdge := g.dependents[cellID][bigID]; !hasEdge {
			t.Errorf("row %d must keep a direct edge to the big range", row)
		}
	}
}

func TestTopSortCycleDetection(t *testing.T) {
	g := NewDependencyGraph()
	a := &FormulaVertex{Address: addr(0, 0), Width: 1, Height: 1}
	b := &FormulaVertex{Address: addr(1, 0), Width: 1, Height: 1}
	g.SetFormula(a, []Dep{{Kind: DepAddress, Address: newRelativeAddress(1, 0)}})
	g.SetFormula(b, []Dep{{Kind: DepAddress, Address: newRelativeAddress(-1, 0)}})

	_, cycles := g.TopSortWithSCC()
	if len(cycles) != 2 {
		t.Errorf("cycle vertex count = %d, want 2", len(cycles))
	}
}

func TestTopSortOrder(t *testing.T) {
	g := NewDependencyGraph()
	g.SetValue(addr(0, 0), "1", NewRaw(1))
	b := &FormulaVertex{Address: addr(1, 0), Width: 1, Height: 1}
	g.SetFormula(b, []Dep{{Kind: DepAddress, Address: newRelativeAddress(-1, 0)}})
	c := &FormulaVertex{Address: addr(2, 0), Width: 1, Height: 1}
	g.SetFormula(c, []Dep{{Kind: DepAddress, Address: newRelativeAddress(-1, 0)}})

	order, cycles := g.TopSortWithSCC()
	if len(cycles) != 0 {
		t.Fatalf("unexpected cycles: %v", cycles)
	}

	pos := make(map[NodeID]int)
	for i, id := range order {
		pos[id] = i
	}
	aID, _ := g.cellID(addr(0, 0))
	bID, _ := g.cellID(addr(1, 0))
	cID, _ := g.cellID(addr(2, 0))
	if !(pos[aID] < pos[bID] && pos[bID] < pos[cID]) {
		t.Errorf("order violates dependencies: a=%d b=%d c=%d", pos[aID], pos[bID], pos[cID])
	}
}

func TestVolatileAlwaysRecomputes(t *testing.T) {
	g := NewDependencyGraph()
	f := &FormulaVertex{Address: addr(0, 0), Width: 1, Height: 1}
	id := g.SetFormula(f, nil)
	g.MarkVolatile(id)
	g.ClearDirty()

	recompute := g.VertsToRecompute()
	if _, ok := recompute[id]; !ok {
		t.Error("volatile vertex must always be in the recompute set")
	}
}

func TestAddRowsShiftsCells(t *testing.T) {
	g := NewDependencyGraph()
	g.SetValue(addr(0, 5), "5", NewRaw(5))
	id, _ := g.cellID(addr(0, 5))

	g.AddRows(0, 2, 3)

	if _, ok := g.cellID(addr(0, 5)); ok {
		t.Error("old address must be vacated")
	}
	moved, ok := g.cellID(addr(0, 8))
	if !ok || moved != id {
		t.Errorf("cell must move to row 8, got id %d ok=%v", moved, ok)
	}
}

func TestRemoveRowsTruncatesRanges(t *testing.T) {
	g := NewDependencyGraph()
	for row := 0; row < 10; row++ {
		g.SetValue(addr(0, row), "1", NewRaw(1))
	}
	rng := newAbsoluteCellRange(addr(0, 0), addr(0, 9))
	id := g.getOrCreateRangeVertex(rng)

	g.RemoveRows(0, 5, 3)

	v := g.vertexAt(id).(*RangeVertex)
	want := newAbsoluteCellRange(addr(0, 0), addr(0, 6))
	if v.Range != want {
		t.Errorf("truncated range = %+v, want %+v", v.Range, want)
	}
	if _, ok := g.ranges[want]; !ok {
		t.Error("range mapping must be re-keyed after truncation")
	}
}

func TestInfiniteRangeConnectsNewCells(t *testing.T) {
	g := NewDependencyGraph()
	colRange := newColumnRange(0, 0, 0)
	rangeID := g.getOrCreateRangeVertex(colRange)

	g.SetValue(addr(0, 100), "7", NewRaw(7))
	cellID, _ := g.cellID(addr(0, 100))
	if _, hasEdge := g.dependents[cellID][rangeID]; !hasEdge {
		t.Error("new cell inside an infinite range must be wired in on the fly")
	}
}

func TestGraphInvariantDependenciesMatchAst(t *testing.T) {
	g := NewDependencyGraph()
	base := addr(2, 0)
	ast := mustParse(t, "=A1+SUM(B1:B3)", base)
	deps := collectDependencies(ast)
	f := &FormulaVertex{Address: base, AST: ast, Width: 1, Height: 1}
	id := g.SetFormula(f, deps)

	// the predecessor set must equal the absolutized dependency list
	wantPredecessors := map[NodeID]struct{}{}
	cellID, _ := g.cellID(addr(0, 0))
	wantPredecessors[cellID] = struct{}{}
	rangeID := g.ranges[newAbsoluteCellRange(addr(1, 0), addr(1, 2))]
	wantPredecessors[rangeID] = struct{}{}

	if len(g.precedents[id]) != len(wantPredecessors) {
		t.Fatalf("predecessor count = %d, want %d", len(g.precedents[id]), len(wantPredecessors))
	}
	for pred := range wantPredecessors {
		if _, ok := g.precedents[id][pred]; !ok {
			t.Errorf("missing predecessor %d", pred)
		}
	}
}
