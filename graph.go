package probsheet

// DependencyGraph manages cell, range, and named-expression
// dependencies and the recalculation order. It is an arena of vertices
// indexed by NodeID; adjacency is stored as hash sets in both
// directions. The graph is the sole owner of every vertex.
type DependencyGraph struct {
	vertices []Vertex // arena; index 0 reserved
	free     []NodeID

	// edges run dep -> dependent: dependents[d] holds everything that
	// must recompute when d changes, precedents is the mirror.
	dependents map[NodeID]map[NodeID]struct{}
	precedents map[NodeID]map[NodeID]struct{}

	// address and range mappings
	cells  map[SimpleCellAddress]NodeID
	ranges map[AbsoluteCellRange]NodeID

	// infiniteRanges indexes open-ended range vertices so newly
	// touched cells can be wired in on the fly.
	infiniteRanges map[NodeID]struct{}

	// recomputation flags, keyed by NodeID
	dirtySet      map[NodeID]struct{}
	volatileSet   map[NodeID]struct{}
	structuralSet map[NodeID]struct{}

	// nameResolver maps a named expression to its cell on the virtual
	// expression sheet, interning placeholders for undefined names.
	nameResolver func(name string, scope int) SimpleCellAddress
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		vertices:       []Vertex{nil}, // index 0 unused
		dependents:     make(map[NodeID]map[NodeID]struct{}),
		precedents:     make(map[NodeID]map[NodeID]struct{}),
		cells:          make(map[SimpleCellAddress]NodeID),
		ranges:         make(map[AbsoluteCellRange]NodeID),
		infiniteRanges: make(map[NodeID]struct{}),
		dirtySet:       make(map[NodeID]struct{}),
		volatileSet:    make(map[NodeID]struct{}),
		structuralSet:  make(map[NodeID]struct{}),
	}
}

// arena plumbing

func (g *DependencyGraph) alloc(v Vertex) NodeID {
	if n := len(g.free); n > 0 {
		id := g.free[n-1]
		g.free = g.free[:n-1]
		g.vertices[id] = v
		return id
	}
	g.vertices = append(g.vertices, v)
	return NodeID(len(g.vertices) - 1)
}

// vertexAt returns the vertex for an id, nil when freed.
func (g *DependencyGraph) vertexAt(id NodeID) Vertex {
	if id == noNode || int(id) >= len(g.vertices) {
		return nil
	}
	return g.vertices[id]
}

// releaseVertex drops a vertex and every edge touching it.
func (g *DependencyGraph) releaseVertex(id NodeID) {
	for dep := range g.precedents[id] {
		delete(g.dependents[dep], id)
		g.cleanupIfUnneeded(dep)
	}
	delete(g.precedents, id)
	for dependent := range g.dependents[id] {
		delete(g.precedents[dependent], id)
	}
	delete(g.dependents, id)
	delete(g.dirtySet, id)
	delete(g.volatileSet, id)
	delete(g.structuralSet, id)
	delete(g.infiniteRanges, id)
	g.vertices[id] = nil
	g.free = append(g.free, id)
}

// addEdge records dep -> dependent.
func (g *DependencyGraph) addEdge(dep, dependent NodeID) {
	if g.dependents[dep] == nil {
		g.dependents[dep] = make(map[NodeID]struct{})
	}
	g.dependents[dep][dependent] = struct{}{}
	if g.precedents[dependent] == nil {
		g.precedents[dependent] = make(map[NodeID]struct{})
	}
	g.precedents[dependent][dep] = struct{}{}
}

func (g *DependencyGraph) removeEdge(dep, dependent NodeID) {
	delete(g.dependents[dep], dependent)
	delete(g.precedents[dependent], dep)
}

// cleanupIfUnneeded removes empty placeholders and range vertices that
// lost their last dependent. An Empty vertex exists iff something
// depends on it.
func (g *DependencyGraph) cleanupIfUnneeded(id NodeID) {
	switch v := g.vertexAt(id).(type) {
	case *EmptyVertex:
		if len(g.dependents[id]) == 0 {
			for addr, cid := range g.cells {
				if cid == id {
					delete(g.cells, addr)
					break
				}
			}
			g.releaseVertex(id)
		}
	case *RangeVertex:
		if len(g.dependents[id]) == 0 {
			delete(g.ranges, v.Range)
			g.releaseVertex(id)
		}
	}
}

// cell mapping

// cellID looks up the vertex at an address.
func (g *DependencyGraph) cellID(addr SimpleCellAddress) (NodeID, bool) {
	id, ok := g.cells[addr]
	return id, ok
}

// GetCell returns the vertex stored at an address.
func (g *DependencyGraph) GetCell(addr SimpleCellAddress) Vertex {
	if id, ok := g.cells[addr]; ok {
		return g.vertexAt(id)
	}
	return nil
}

// scalarValueAt implements cellValueSource: the computed scalar value
// visible at an address.
func (g *DependencyGraph) scalarValueAt(addr SimpleCellAddress) Value {
	return vertexScalarValue(g.GetCell(addr), addr)
}

// getOrCreateEmptyCell materializes an Empty placeholder so an edge
// can be attached to a not-yet-written cell.
func (g *DependencyGraph) getOrCreateEmptyCell(addr SimpleCellAddress) NodeID {
	if id, ok := g.cells[addr]; ok {
		return id
	}
	id := g.alloc(&EmptyVertex{})
	g.cells[addr] = id
	g.correctInfiniteRangesDependency(id, addr)
	return id
}

// replaceCellVertex installs a new vertex at an address, rewiring the
// old vertex's dependents onto the new one and dropping its own
// dependencies.
func (g *DependencyGraph) replaceCellVertex(addr SimpleCellAddress, v Vertex) NodeID {
	old, existed := g.cells[addr]
	id := g.alloc(v)
	g.cells[addr] = id
	if existed {
		for dependent := range g.dependents[old] {
			g.addEdge(id, dependent)
		}
		g.releaseVertex(old)
	}
	g.correctInfiniteRangesDependency(id, addr)
	return id
}

// SetValue installs a literal cell. When the existing vertex is
// already a value vertex the content overwrites in place; otherwise
// the vertex is replaced and edges rewired.
func (g *DependencyGraph) SetValue(addr SimpleCellAddress, raw string, parsed Value) NodeID {
	if id, ok := g.cells[addr]; ok {
		if vv, isValue := g.vertexAt(id).(*ValueVertex); isValue {
			vv.Raw = raw
			vv.Parsed = parsed
			g.markDependentsDirty(id)
			return id
		}
	}
	id := g.replaceCellVertex(addr, &ValueVertex{Raw: raw, Parsed: parsed})
	g.markDependentsDirty(id)
	return id
}

// SetFormula installs a formula vertex and its dependency edges.
func (g *DependencyGraph) SetFormula(v *FormulaVertex, deps []Dep) NodeID {
	id := g.replaceCellVertex(v.Address, v)
	g.installDependencies(id, v.Address, deps)
	g.MarkDirty(id)
	return id
}

// SetArray installs an array formula anchored at its corner. The
// rectangle's unoccupied cells map to the same vertex; occupied ones
// are discovered at evaluation time and flag NoSpace.
func (g *DependencyGraph) SetArray(v *ArrayVertex, deps []Dep) NodeID {
	id := g.replaceCellVertex(v.Corner, v)
	for cell := range v.rect().Addresses() {
		if cell == v.Corner {
			continue
		}
		if _, occupied := g.cells[cell]; !occupied {
			g.cells[cell] = id
		}
	}
	g.installDependencies(id, v.Corner, deps)
	g.MarkDirty(id)
	return id
}

// SetParsingError installs a vertex for unparseable cell text.
func (g *DependencyGraph) SetParsingError(addr SimpleCellAddress, errs []string, raw string) NodeID {
	id := g.replaceCellVertex(addr, &ParsingErrorVertex{Errors: errs, RawText: raw})
	g.markDependentsDirty(id)
	return id
}

// SetEmpty removes the cell vertex at an address. If other formulas
// still depend on it, the vertex converts to an Empty placeholder
// instead of disappearing.
func (g *DependencyGraph) SetEmpty(addr SimpleCellAddress) {
	id, ok := g.cells[addr]
	if !ok {
		return
	}
	if arr, isArray := g.vertexAt(id).(*ArrayVertex); isArray {
		for cell := range arr.rect().Addresses() {
			if g.cells[cell] == id {
				delete(g.cells, cell)
			}
		}
	}
	g.clearVertexDependencies(id)
	g.markDependentsDirty(id)
	if len(g.dependents[id]) > 0 {
		empty := g.alloc(&EmptyVertex{})
		g.cells[addr] = empty
		for dependent := range g.dependents[id] {
			g.addEdge(empty, dependent)
		}
		g.releaseVertex(id)
		return
	}
	delete(g.cells, addr)
	g.releaseVertex(id)
}

// clearVertexDependencies drops a formula's incoming edges, cleaning
// up placeholders and orphaned range vertices.
func (g *DependencyGraph) clearVertexDependencies(id NodeID) {
	for dep := range g.precedents[id] {
		g.removeEdge(dep, id)
		g.cleanupIfUnneeded(dep)
	}
}

// dependency installation

// installDependencies wires one formula vertex to the vertices its
// dependency list resolves to.
func (g *DependencyGraph) installDependencies(id NodeID, base SimpleCellAddress, deps []Dep) {
	for _, dep := range deps {
		resolved := absolutize(dep, base)
		if resolved.Invalid {
			continue // off-sheet relative references fail at evaluation
		}
		switch resolved.Kind {
		case DepAddress:
			g.addEdge(g.getOrCreateEmptyCell(resolved.Cell), id)
		case DepCellRange, DepColumnRange, DepRowRange:
			g.addEdge(g.getOrCreateRangeVertex(resolved.Range), id)
		case DepName:
			if g.nameResolver != nil {
				addr := g.nameResolver(resolved.Name, base.Sheet)
				g.addEdge(g.getOrCreateEmptyCell(addr), id)
			}
		}
	}
}

// getOrCreateRangeVertex returns the vertex materializing a range,
// building its edge structure per the hierarchical sharing rules.
func (g *DependencyGraph) getOrCreateRangeVertex(rng AbsoluteCellRange) NodeID {
	if id, ok := g.ranges[rng]; ok {
		return id
	}
	v := &RangeVertex{Range: rng}
	id := g.alloc(v)
	g.ranges[rng] = id

	if !rng.IsFinite() {
		// open-ended ranges connect existing cells now and future
		// cells as they appear
		g.infiniteRanges[id] = struct{}{}
		for addr, cellID := range g.cells {
			if rng.Contains(addr) && !g.isRangeID(cellID) {
				g.addEdge(cellID, id)
			}
		}
		v.BruteForce = true
		return id
	}

	if smaller, ok := g.findSmallerRange(rng); ok {
		v.SmallerRange = smaller
		smallerRange := g.vertexAt(smaller).(*RangeVertex).Range
		g.addEdge(smaller, id)
		for addr := range rng.Addresses() {
			if !smallerRange.Contains(addr) {
				g.addEdge(g.getOrCreateEmptyCell(addr), id)
			}
		}
	} else {
		v.BruteForce = true
		for addr := range rng.Addresses() {
			g.addEdge(g.getOrCreateEmptyCell(addr), id)
		}
	}

	// an existing brute-force superset can now share through this
	// vertex instead of its cell fan-out
	g.adoptIntoSuperRanges(id, rng)
	return id
}

func (g *DependencyGraph) isRangeID(id NodeID) bool {
	_, ok := g.vertexAt(id).(*RangeVertex)
	return ok
}

// findSmallerRange locates the largest already-materialized strict
// sub-range sharing this range's anchor column span.
func (g *DependencyGraph) findSmallerRange(rng AbsoluteCellRange) (NodeID, bool) {
	best := noNode
	bestEndRow := -1
	for candidate, id := range g.ranges {
		if candidate.Start == rng.Start &&
			candidate.IsFinite() &&
			candidate.End.Col == rng.End.Col &&
			candidate.End.Row < rng.End.Row &&
			candidate.End.Row > bestEndRow {
			best = id
			bestEndRow = candidate.End.Row
		}
	}
	return best, best != noNode
}

// adoptIntoSuperRanges converts brute-force supersets of a freshly
// materialized sub-range to hierarchical sharing: the cell edges the
// sub-range covers are removed and replaced by one range edge.
func (g *DependencyGraph) adoptIntoSuperRanges(subID NodeID, sub AbsoluteCellRange) {
	for candidate, id := range g.ranges {
		if id == subID || !candidate.IsFinite() {
			continue
		}
		v := g.vertexAt(id).(*RangeVertex)
		if !v.BruteForce {
			continue
		}
		if candidate.Start == sub.Start && candidate.End.Col == sub.End.Col && candidate.End.Row > sub.End.Row {
			for addr := range sub.Addresses() {
				if cellID, ok := g.cells[addr]; ok {
					g.removeEdge(cellID, id)
					g.cleanupIfUnneeded(cellID)
				}
			}
			v.BruteForce = false
			v.SmallerRange = subID
			g.addEdge(subID, id)
		}
	}
}

// correctInfiniteRangesDependency wires a newly created cell into
// every open-ended range that covers it.
func (g *DependencyGraph) correctInfiniteRangesDependency(cellID NodeID, addr SimpleCellAddress) {
	for rangeID := range g.infiniteRanges {
		v := g.vertexAt(rangeID).(*RangeVertex)
		if v.Range.Contains(addr) {
			g.addEdge(cellID, rangeID)
			g.markDependentsDirty(rangeID)
		}
	}
}

// rangeVertexFor returns the materialized vertex for a range, if any.
func (g *DependencyGraph) rangeVertexFor(rng AbsoluteCellRange) (*RangeVertex, bool) {
	if id, ok := g.ranges[rng]; ok {
		v, isRange := g.vertexAt(id).(*RangeVertex)
		return v, isRange
	}
	return nil, false
}

// dirty / volatile / structural flags

// MarkDirty marks a vertex as needing recalculation.
func (g *DependencyGraph) MarkDirty(id NodeID) {
	g.dirtySet[id] = struct{}{}
}

// markDependentsDirty marks everything downstream of a vertex.
func (g *DependencyGraph) markDependentsDirty(id NodeID) {
	for dependent := range g.dependents[id] {
		g.dirtySet[dependent] = struct{}{}
	}
}

func (g *DependencyGraph) MarkVolatile(id NodeID)   { g.volatileSet[id] = struct{}{} }
func (g *DependencyGraph) MarkStructural(id NodeID) { g.structuralSet[id] = struct{}{} }

// markStructuralDirty queues every structure-dependent vertex.
func (g *DependencyGraph) markStructuralDirty() {
	for id := range g.structuralSet {
		g.dirtySet[id] = struct{}{}
	}
}

// ClearDirty resets the dirty set after a recompute.
func (g *DependencyGraph) ClearDirty() {
	g.dirtySet = make(map[NodeID]struct{})
}

// recomputation planning

// VertsToRecompute expands the dirty and volatile sets with their
// transitive dependents. Volatile vertices are always included,
// regardless of dirty flag.
func (g *DependencyGraph) VertsToRecompute() map[NodeID]struct{} {
	seeds := make([]NodeID, 0, len(g.dirtySet)+len(g.volatileSet))
	for id := range g.dirtySet {
		seeds = append(seeds, id)
	}
	for id := range g.volatileSet {
		seeds = append(seeds, id)
	}
	out := make(map[NodeID]struct{})
	for len(seeds) > 0 {
		id := seeds[len(seeds)-1]
		seeds = seeds[:len(seeds)-1]
		if _, seen := out[id]; seen {
			continue
		}
		out[id] = struct{}{}
		for dependent := range g.dependents[id] {
			seeds = append(seeds, dependent)
		}
	}
	return out
}

// TopSortWithSCC runs Tarjan over the whole graph. It returns every
// live vertex in an order where dependencies precede dependents, plus
// the set of vertices belonging to non-trivial strongly connected
// components (cycles).
func (g *DependencyGraph) TopSortWithSCC() (order []NodeID, cycles map[NodeID]struct{}) {
	cycles = make(map[NodeID]struct{})

	index := make(map[NodeID]int)
	lowlink := make(map[NodeID]int)
	onStack := make(map[NodeID]bool)
	var stack []NodeID
	next := 0
	var sccs [][]NodeID

	type frame struct {
		id    NodeID
		iter  []NodeID
		child int
	}

	neighbors := func(id NodeID) []NodeID {
		out := make([]NodeID, 0, len(g.dependents[id]))
		for dep := range g.dependents[id] {
			out = append(out, dep)
		}
		return out
	}

	var visit func(root NodeID)
	visit = func(root NodeID) {
		frames := []frame{{id: root, iter: neighbors(root)}}
		index[root] = next
		lowlink[root] = next
		next++
		stack = append(stack, root)
		onStack[root] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			if f.child < len(f.iter) {
				w := f.iter[f.child]
				f.child++
				if _, visited := index[w]; !visited {
					index[w] = next
					lowlink[w] = next
					next++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{id: w, iter: neighbors(w)})
				} else if onStack[w] {
					if index[w] < lowlink[f.id] {
						lowlink[f.id] = index[w]
					}
				}
				continue
			}

			// finished this vertex
			if lowlink[f.id] == index[f.id] {
				var scc []NodeID
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == f.id {
						break
					}
				}
				sccs = append(sccs, scc)
			}
			finished := f.id
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := &frames[len(frames)-1]
				if lowlink[finished] < lowlink[parent.id] {
					lowlink[parent.id] = lowlink[finished]
				}
			}
		}
	}

	for id := 1; id < len(g.vertices); id++ {
		nid := NodeID(id)
		if g.vertices[id] == nil {
			continue
		}
		if _, visited := index[nid]; !visited {
			visit(nid)
		}
	}

	// with edges running dep -> dependent, Tarjan emits dependents'
	// components first; reverse so dependencies evaluate first
	order = make([]NodeID, 0, next)
	for i := len(sccs) - 1; i >= 0; i-- {
		scc := sccs[i]
		if len(scc) > 1 {
			for _, id := range scc {
				cycles[id] = struct{}{}
			}
		} else {
			// a self-loop is also a cycle
			id := scc[0]
			if _, self := g.dependents[id][id]; self {
				cycles[id] = struct{}{}
			}
		}
		order = append(order, scc...)
	}
	return order, cycles
}

// sheet geometry queries

// GetSheetHeight is the number of rows in use on a sheet.
func (g *DependencyGraph) GetSheetHeight(sheet int) int {
	maxRow := -1
	for addr, id := range g.cells {
		if addr.Sheet == sheet && addr.Row > maxRow && !g.isRangeID(id) {
			maxRow = addr.Row
		}
	}
	return maxRow + 1
}

// GetSheetWidth is the number of columns in use on a sheet.
func (g *DependencyGraph) GetSheetWidth(sheet int) int {
	maxCol := -1
	for addr, id := range g.cells {
		if addr.Sheet == sheet && addr.Col > maxCol && !g.isRangeID(id) {
			maxCol = addr.Col
		}
	}
	return maxCol + 1
}

// structural edits

// AddRows shifts cells at or below rowStart down by count and adjusts
// every range that crosses the inserted slab.
func (g *DependencyGraph) AddRows(sheet, rowStart, count int) {
	moved := g.remapCells(func(addr SimpleCellAddress) (SimpleCellAddress, bool) {
		if addr.Sheet == sheet && addr.Row >= rowStart {
			addr.Row += count
			return addr, true
		}
		return addr, false
	})

	g.remapRanges(func(rng AbsoluteCellRange) (AbsoluteCellRange, bool) {
		if rng.Start.Sheet != sheet {
			return rng, false
		}
		changed := false
		if rng.Start.Row >= rowStart {
			rng.Start.Row += count
			changed = true
		}
		if rng.End.Row != unboundedSentinel && rng.End.Row >= rowStart {
			rng.End.Row += count
			changed = true
		}
		return rng, changed
	})

	// ranges that straddle the slab pick up the inserted cells as
	// direct edges; they are part of R \ S for hierarchical ranges
	for rng, id := range g.ranges {
		if rng.Start.Sheet == sheet && rng.Start.Row < rowStart &&
			(rng.End.Row == unboundedSentinel || rng.End.Row >= rowStart+count) {
			if rng.End.Row != unboundedSentinel {
				for col := rng.Start.Col; col <= rng.End.Col; col++ {
					for row := rowStart; row < rowStart+count; row++ {
						addr := SimpleCellAddress{Sheet: sheet, Col: col, Row: row}
						g.addEdge(g.getOrCreateEmptyCell(addr), id)
					}
				}
			}
			g.markDependentsDirty(id)
		}
	}

	g.afterStructuralChange(moved)
}

// RemoveRows deletes the span [rowStart, rowStart+count) and shifts
// the rest up, truncating ranges that straddle the span.
func (g *DependencyGraph) RemoveRows(sheet, rowStart, count int) {
	rowEnd := rowStart + count // exclusive

	// drop vertices inside the span
	for addr, id := range g.cells {
		if addr.Sheet == sheet && addr.Row >= rowStart && addr.Row < rowEnd {
			g.markDependentsDirty(id)
			g.clearVertexDependencies(id)
			delete(g.cells, addr)
			g.releaseVertex(id)
		}
	}

	moved := g.remapCells(func(addr SimpleCellAddress) (SimpleCellAddress, bool) {
		if addr.Sheet == sheet && addr.Row >= rowEnd {
			addr.Row -= count
			return addr, true
		}
		return addr, false
	})

	g.truncateRanges(sheet, rowStart, count)
	g.afterStructuralChange(moved)
}

// truncateRanges shrinks or removes ranges overlapping a removed row
// span and shifts ranges below it.
func (g *DependencyGraph) truncateRanges(sheet, rowStart, count int) {
	rowEnd := rowStart + count
	type edit struct {
		old AbsoluteCellRange
		id  NodeID
	}
	var edits []edit
	for rng, id := range g.ranges {
		if rng.Start.Sheet == sheet {
			edits = append(edits, edit{old: rng, id: id})
		}
	}
	for _, e := range edits {
		rng := e.old
		v := g.vertexAt(e.id).(*RangeVertex)
		finiteEnd := rng.End.Row != unboundedSentinel

		// entirely inside the removed span: the range is gone
		if rng.Start.Row >= rowStart && finiteEnd && rng.End.Row < rowEnd {
			g.markDependentsDirty(e.id)
			delete(g.ranges, rng)
			g.clearVertexDependencies(e.id)
			g.releaseVertex(e.id)
			continue
		}

		newRng := rng
		if newRng.Start.Row >= rowEnd {
			newRng.Start.Row -= count
		} else if newRng.Start.Row >= rowStart {
			newRng.Start.Row = rowStart
		}
		if finiteEnd {
			if newRng.End.Row >= rowEnd {
				newRng.End.Row -= count
			} else if newRng.End.Row >= rowStart {
				newRng.End.Row = rowStart - 1
			}
		}
		if newRng != rng {
			delete(g.ranges, rng)
			g.ranges[newRng] = e.id
			v.Range = newRng
			// hierarchical composition may no longer hold after a cut
			if v.SmallerRange != noNode {
				g.rebuildRangeEdges(e.id)
			}
			v.clearFunctionCache()
			g.markDependentsDirty(e.id)
		}
	}
}

// rebuildRangeEdges reconstructs brute-force edges for a range whose
// hierarchical parent composition was invalidated.
func (g *DependencyGraph) rebuildRangeEdges(id NodeID) {
	v := g.vertexAt(id).(*RangeVertex)
	g.clearVertexDependencies(id)
	v.SmallerRange = noNode
	v.BruteForce = true
	if v.Range.IsFinite() {
		for addr := range v.Range.Addresses() {
			g.addEdge(g.getOrCreateEmptyCell(addr), id)
		}
	}
}

// AddColumns shifts cells at or right of colStart by count.
func (g *DependencyGraph) AddColumns(sheet, colStart, count int) {
	moved := g.remapCells(func(addr SimpleCellAddress) (SimpleCellAddress, bool) {
		if addr.Sheet == sheet && addr.Col >= colStart {
			addr.Col += count
			return addr, true
		}
		return addr, false
	})
	g.remapRanges(func(rng AbsoluteCellRange) (AbsoluteCellRange, bool) {
		if rng.Start.Sheet != sheet {
			return rng, false
		}
		changed := false
		if rng.Start.Col >= colStart {
			rng.Start.Col += count
			changed = true
		}
		if rng.End.Col != unboundedSentinel && rng.End.Col >= colStart {
			rng.End.Col += count
			changed = true
		}
		return rng, changed
	})
	for rng, id := range g.ranges {
		if rng.Start.Sheet == sheet && rng.Start.Col < colStart &&
			rng.End.Col != unboundedSentinel && rng.End.Col >= colStart+count &&
			rng.End.Row != unboundedSentinel {
			for col := colStart; col < colStart+count; col++ {
				for row := rng.Start.Row; row <= rng.End.Row; row++ {
					addr := SimpleCellAddress{Sheet: sheet, Col: col, Row: row}
					g.addEdge(g.getOrCreateEmptyCell(addr), id)
				}
			}
			g.markDependentsDirty(id)
		}
	}
	g.afterStructuralChange(moved)
}

// RemoveColumns deletes the span [colStart, colStart+count).
func (g *DependencyGraph) RemoveColumns(sheet, colStart, count int) {
	colEnd := colStart + count
	for addr, id := range g.cells {
		if addr.Sheet == sheet && addr.Col >= colStart && addr.Col < colEnd {
			g.markDependentsDirty(id)
			g.clearVertexDependencies(id)
			delete(g.cells, addr)
			g.releaseVertex(id)
		}
	}
	moved := g.remapCells(func(addr SimpleCellAddress) (SimpleCellAddress, bool) {
		if addr.Sheet == sheet && addr.Col >= colEnd {
			addr.Col -= count
			return addr, true
		}
		return addr, false
	})

	type edit struct {
		old AbsoluteCellRange
		id  NodeID
	}
	var edits []edit
	for rng, id := range g.ranges {
		if rng.Start.Sheet == sheet {
			edits = append(edits, edit{rng, id})
		}
	}
	for _, e := range edits {
		rng := e.old
		v := g.vertexAt(e.id).(*RangeVertex)
		finiteEnd := rng.End.Col != unboundedSentinel
		if rng.Start.Col >= colStart && finiteEnd && rng.End.Col < colEnd {
			g.markDependentsDirty(e.id)
			delete(g.ranges, rng)
			g.clearVertexDependencies(e.id)
			g.releaseVertex(e.id)
			continue
		}
		newRng := rng
		if newRng.Start.Col >= colEnd {
			newRng.Start.Col -= count
		} else if newRng.Start.Col >= colStart {
			newRng.Start.Col = colStart
		}
		if finiteEnd {
			if newRng.End.Col >= colEnd {
				newRng.End.Col -= count
			} else if newRng.End.Col >= colStart {
				newRng.End.Col = colStart - 1
			}
		}
		if newRng != rng {
			delete(g.ranges, rng)
			g.ranges[newRng] = e.id
			v.Range = newRng
			if v.SmallerRange != noNode {
				g.rebuildRangeEdges(e.id)
			}
			v.clearFunctionCache()
			g.markDependentsDirty(e.id)
		}
	}
	g.afterStructuralChange(moved)
}

// RemoveSheet drops every vertex living on a sheet.
func (g *DependencyGraph) RemoveSheet(sheet int) {
	for addr, id := range g.cells {
		if addr.Sheet == sheet {
			g.markDependentsDirty(id)
			g.clearVertexDependencies(id)
			delete(g.cells, addr)
			g.releaseVertex(id)
		}
	}
	for rng, id := range g.ranges {
		if rng.Start.Sheet == sheet {
			g.markDependentsDirty(id)
			delete(g.ranges, rng)
			g.clearVertexDependencies(id)
			g.releaseVertex(id)
		}
	}
	g.markStructuralDirty()
}

// ClearSheet empties a sheet's cells but keeps the sheet itself.
func (g *DependencyGraph) ClearSheet(sheet int) {
	var addrs []SimpleCellAddress
	for addr := range g.cells {
		if addr.Sheet == sheet {
			addrs = append(addrs, addr)
		}
	}
	for _, addr := range addrs {
		if _, stillThere := g.cells[addr]; stillThere {
			g.SetEmpty(addr)
		}
	}
	g.markStructuralDirty()
}

// MoveCells relocates a finite source rectangle so its top-left corner
// lands at target. Overwritten target cells are removed first; moved
// formulas and everything depending on either region recompute.
func (g *DependencyGraph) MoveCells(source AbsoluteCellRange, target SimpleCellAddress) {
	colDelta := target.Col - source.Start.Col
	rowDelta := target.Row - source.Start.Row

	// clear the destination
	for addr := range source.Addresses() {
		dst := SimpleCellAddress{Sheet: target.Sheet, Col: addr.Col + colDelta, Row: addr.Row + rowDelta}
		if source.Contains(dst) && target.Sheet == source.Start.Sheet {
			continue // overlapping move: the source cell will land here
		}
		if _, occupied := g.cells[dst]; occupied {
			g.SetEmpty(dst)
		}
	}

	moved := g.remapCells(func(addr SimpleCellAddress) (SimpleCellAddress, bool) {
		if source.Contains(addr) {
			return SimpleCellAddress{
				Sheet: target.Sheet,
				Col:   addr.Col + colDelta,
				Row:   addr.Row + rowDelta,
			}, true
		}
		return addr, false
	})
	g.afterStructuralChange(moved)
}

// remapCells applies an address rewrite to the cell mapping, updating
// formula/array vertex addresses. Returns the moved vertex ids.
func (g *DependencyGraph) remapCells(rewrite func(SimpleCellAddress) (SimpleCellAddress, bool)) []NodeID {
	type move struct {
		from, to SimpleCellAddress
		id       NodeID
	}
	var moves []move
	for addr, id := range g.cells {
		if to, changed := rewrite(addr); changed {
			moves = append(moves, move{from: addr, to: to, id: id})
		}
	}
	for _, m := range moves {
		delete(g.cells, m.from)
	}
	moved := make([]NodeID, 0, len(moves))
	for _, m := range moves {
		g.cells[m.to] = m.id
		moved = append(moved, m.id)
		switch v := g.vertexAt(m.id).(type) {
		case *FormulaVertex:
			v.Address = m.to
		case *ArrayVertex:
			if m.from == v.Corner {
				v.Corner = m.to
			}
		}
	}
	return moved
}

// remapRanges applies a range rewrite to the range mapping.
func (g *DependencyGraph) remapRanges(rewrite func(AbsoluteCellRange) (AbsoluteCellRange, bool)) {
	type move struct {
		from, to AbsoluteCellRange
		id       NodeID
	}
	var moves []move
	for rng, id := range g.ranges {
		if to, changed := rewrite(rng); changed {
			moves = append(moves, move{from: rng, to: to, id: id})
		}
	}
	for _, m := range moves {
		delete(g.ranges, m.from)
	}
	for _, m := range moves {
		g.ranges[m.to] = m.id
		v := g.vertexAt(m.id).(*RangeVertex)
		v.Range = m.to
		v.clearFunctionCache()
	}
}

// afterStructuralChange marks moved vertices' dependents and every
// structure-dependent vertex dirty.
func (g *DependencyGraph) afterStructuralChange(moved []NodeID) {
	for _, id := range moved {
		g.MarkDirty(id)
		g.markDependentsDirty(id)
	}
	g.markStructuralDirty()
}
