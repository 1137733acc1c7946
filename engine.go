package probsheet

import (
	"math"
	"sort"
	"strings"
)

// Engine is the headless spreadsheet engine: storage, parsing,
// dependency tracking, Monte-Carlo arithmetic, and formula evaluation
// behind one single-threaded API.
type Engine struct {
	cfg        *Config
	sheets     *SheetStore
	graph      *DependencyGraph
	cache      *Cache
	registry   *FunctionRegistry
	evaluator  *Evaluator
	serializer *Serializer
	named      *NamedExpressionStore

	patterns *lexerPatterns
	literals *literalParser
	arith    *Arith
	sampler  *sampler
	comparer *stringComparer

	// lazy AST transformation log: structural edits append an entry
	// and bump version; formula ASTs are rewritten on first use.
	version         int
	transformations []transformation
}

// New builds an engine from a configuration. A nil config selects the
// defaults.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	smp := newSampler(cfg)
	registry := defaultRegistry()
	e := &Engine{
		cfg:      cfg,
		sheets:   NewSheetStore(),
		graph:    NewDependencyGraph(),
		registry: registry,
		named:    NewNamedExpressionStore(),
		patterns: newLexerPatterns(cfg),
		literals: newLiteralParser(cfg, smp),
		sampler:  smp,
		comparer: newStringComparer(cfg),
	}
	e.arith = newArith(cfg, smp)
	e.cache = NewCache(cfg, registry.VolatileNames(), registry.StructuralNames())
	e.serializer = newSerializer(cfg, smp)

	e.graph.nameResolver = func(name string, scope int) SimpleCellAddress {
		return e.named.addressOf(e.named.intern(name, scope))
	}

	e.evaluator = &Evaluator{
		cfg:      cfg,
		graph:    e.graph,
		arith:    e.arith,
		literals: e.literals,
		comparer: e.comparer,
		registry: registry,
		sampler:  smp,
		clock:    cfg.Clock,
		rng:      cfg.Random,
		namedValue: func(name string, scope int) Value {
			entry, ok := e.named.lookup(name, scope)
			if !ok || !entry.Added {
				return NewCellError(ErrorName, "named expression not found: "+name)
			}
			return e.graph.scalarValueAt(e.named.addressOf(entry))
		},
		formulaTextAt: func(addr SimpleCellAddress) (string, bool) {
			switch v := e.graph.GetCell(addr).(type) {
			case *FormulaVertex:
				return v.Text, true
			case *ArrayVertex:
				return v.Text, true
			}
			return "", false
		},
	}
	return e, nil
}

// sheet management

// AddSheet defines a new sheet and returns its id.
func (e *Engine) AddSheet(name string) (int, error) {
	if id, exists := e.sheets.IDFor(name); exists && e.sheets.IsDefined(id) {
		return 0, NewApplicationError(AlreadyExists, "sheet already exists: "+name)
	}
	return e.sheets.Define(name), nil
}

// RemoveSheet drops a sheet and every vertex on it. Formulas
// elsewhere that referenced its cells see empty values afterwards.
func (e *Engine) RemoveSheet(name string) error {
	id, exists := e.sheets.IDFor(name)
	if !exists || !e.sheets.IsDefined(id) {
		return NewApplicationError(NotFound, "sheet not found: "+name)
	}
	e.graph.RemoveSheet(id)
	e.sheets.Undefine(name)
	return nil
}

// RenameSheet renames a defined sheet; formulas keep working because
// they hold sheet ids, not names.
func (e *Engine) RenameSheet(oldName, newName string) error {
	return e.sheets.Rename(oldName, newName)
}

// ClearSheet removes the contents of a sheet but keeps the sheet.
func (e *Engine) ClearSheet(name string) error {
	id, exists := e.sheets.IDFor(name)
	if !exists || !e.sheets.IsDefined(id) {
		return NewApplicationError(NotFound, "sheet not found: "+name)
	}
	e.graph.ClearSheet(id)
	return nil
}

// ListSheets returns all defined sheet names.
func (e *Engine) ListSheets() []string {
	out := e.sheets.ListDefined()
	sort.Strings(out)
	return out
}

// DoesSheetExist checks whether a sheet is defined.
func (e *Engine) DoesSheetExist(name string) bool {
	id, exists := e.sheets.IDFor(name)
	return exists && e.sheets.IsDefined(id)
}

// cell content API

// SetCellContents writes raw text into a cell: formulas parse and
// install into the graph, everything else goes through the literal
// parser. Empty text removes the cell.
func (e *Engine) SetCellContents(addr SimpleCellAddress, raw string) error {
	if addr.Col < 0 || addr.Row < 0 {
		return NewApplicationError(InvalidArgument, "negative cell coordinates")
	}
	switch {
	case raw == "":
		e.graph.SetEmpty(addr)
	case IsFormula(raw):
		e.installFormula(addr, raw, false)
	case strings.HasPrefix(raw, "{=") && strings.HasSuffix(raw, "}"):
		e.installFormula(addr, raw, true)
	default:
		e.graph.SetValue(addr, raw, e.literals.ParseCellLiteral(raw))
	}
	return nil
}

// SetEmpty removes a cell. If other formulas still depend on it, an
// Empty placeholder remains behind.
func (e *Engine) SetEmpty(addr SimpleCellAddress) {
	e.graph.SetEmpty(addr)
}

// installFormula runs the parse -> hash -> cache -> graph pipeline.
func (e *Engine) installFormula(addr SimpleCellAddress, raw string, isArray bool) {
	text := raw
	if isArray {
		text = strings.TrimSuffix(strings.TrimPrefix(raw, "{"), "}")
	}

	ctx := e.parserContext(addr)
	ast, perr := parseFormula(text, ctx)
	if perr != nil {
		e.graph.SetParsingError(addr, []string{perr.Error()}, raw)
		return
	}

	hash := e.cache.HashOf(ast)
	entry := e.cache.MaybeSetAndGet(hash, ast)

	var id NodeID
	if isArray {
		vertex := &ArrayVertex{
			Corner:         addr,
			Text:           raw,
			Width:          1,
			Height:         1,
			AST:            entry.AST,
			Hash:           hash,
			Version:        e.version,
			VersionAddress: addr,
		}
		id = e.graph.SetArray(vertex, entry.RelativeDependencies)
	} else {
		vertex := &FormulaVertex{
			Address:        addr,
			Text:           raw,
			AST:            entry.AST,
			Hash:           hash,
			Version:        e.version,
			VersionAddress: addr,
			Width:          1,
			Height:         1,
		}
		id = e.graph.SetFormula(vertex, entry.RelativeDependencies)
	}

	if entry.HasVolatileFunction {
		e.graph.MarkVolatile(id)
	}
	if entry.HasStructuralFunction {
		e.graph.MarkStructural(id)
	}
}

// parserContext builds the per-cell parsing context. Sheet names
// referenced in formulas are interned even when undefined, so the
// reference stays stable if the sheet appears later.
func (e *Engine) parserContext(base SimpleCellAddress) *ParserContext {
	return &ParserContext{
		Base: base,
		ResolveSheet: func(name string) (int, bool) {
			return e.sheets.Intern(name), true
		},
		patterns:    e.patterns,
		literals:    e.literals,
		translation: e.cfg.TranslationPackage,
	}
}

// queries

// GetCellValue reads the computed value at an address.
func (e *Engine) GetCellValue(addr SimpleCellAddress) Value {
	return e.graph.scalarValueAt(addr)
}

// GetCellFormatted renders the computed value as display text.
func (e *Engine) GetCellFormatted(addr SimpleCellAddress) string {
	return e.serializer.Format(e.GetCellValue(addr))
}

// GetCellFormula returns the formula text of a cell, if it has one.
func (e *Engine) GetCellFormula(addr SimpleCellAddress) (string, bool) {
	return e.evaluator.formulaTextAt(addr)
}

// GetCellType reports the coarse type of the computed value.
func (e *Engine) GetCellType(addr SimpleCellAddress) CellType {
	return TypeOf(e.GetCellValue(addr))
}

// GetSheetHeight is the used row extent of a sheet.
func (e *Engine) GetSheetHeight(sheet int) int { return e.graph.GetSheetHeight(sheet) }

// GetSheetWidth is the used column extent of a sheet.
func (e *Engine) GetSheetWidth(sheet int) int { return e.graph.GetSheetWidth(sheet) }

// address-text convenience API (teacher-style string addresses)

// resolveAddressText parses "Sheet1!A1" or "A1" (sheet 0) into a
// resolved address.
func (e *Engine) resolveAddressText(text string) (SimpleCellAddress, error) {
	sheet := 0
	body := text
	if idx := strings.LastIndex(text, "!"); idx != -1 {
		name := text[:idx]
		body = text[idx+1:]
		if strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") && len(name) >= 2 {
			name = name[1 : len(name)-1]
		}
		id, exists := e.sheets.IDFor(name)
		if !exists || !e.sheets.IsDefined(id) {
			return SimpleCellAddress{}, NewApplicationError(NotFound, "sheet not found: "+name)
		}
		sheet = id
	}
	col, row, _, _, ok := parseA1Part(body)
	if !ok {
		return SimpleCellAddress{}, NewApplicationError(InvalidArgument, "invalid address: "+text)
	}
	return SimpleCellAddress{Sheet: sheet, Col: col, Row: row}, nil
}

// Set writes raw text at an A1-style address.
func (e *Engine) Set(address, raw string) error {
	addr, err := e.resolveAddressText(address)
	if err != nil {
		return err
	}
	return e.SetCellContents(addr, raw)
}

// Get reads the computed value at an A1-style address.
func (e *Engine) Get(address string) (Value, error) {
	addr, err := e.resolveAddressText(address)
	if err != nil {
		return nil, err
	}
	return e.GetCellValue(addr), nil
}

// named expressions

// AddNamedExpression defines a named expression. scope is a sheet id
// or SheetForWorkbookExpressions for workbook scope; rawContent goes
// through the normal cell content pipeline.
func (e *Engine) AddNamedExpression(name, rawContent string, scope int) error {
	entry, err := e.named.define(name, scope)
	if err != nil {
		return err
	}
	return e.SetCellContents(e.named.addressOf(entry), rawContent)
}

// RemoveNamedExpression undefines a name. Formulas still referencing
// it hold onto a placeholder and evaluate to Error(Name).
func (e *Engine) RemoveNamedExpression(name string, scope int) error {
	entry, ok := e.named.lookup(name, scope)
	if !ok {
		return NewApplicationError(NotFound, "named expression not found: "+name)
	}
	addr := e.named.addressOf(entry)
	stillReferenced := false
	if id, exists := e.graph.cellID(addr); exists {
		stillReferenced = len(e.graph.dependents[id]) > 0
	}
	if _, err := e.named.remove(name, scope, stillReferenced); err != nil {
		return err
	}
	e.graph.SetEmpty(addr)
	return nil
}

// ChangeNamedExpression rewrites the contents of a defined name.
func (e *Engine) ChangeNamedExpression(name, rawContent string, scope int) error {
	entry, ok := e.named.lookup(name, scope)
	if !ok || !entry.Added {
		return NewApplicationError(NotFound, "named expression not found: "+name)
	}
	return e.SetCellContents(e.named.addressOf(entry), rawContent)
}

// ListNamedExpressions returns defined names in a scope.
func (e *Engine) ListNamedExpressions(scope int) []string {
	out := e.named.listDefined(scope)
	sort.Strings(out)
	return out
}

// structural edits

// AddRows inserts count rows before rowStart on a sheet.
func (e *Engine) AddRows(sheet, rowStart, count int) error {
	if count <= 0 || rowStart < 0 {
		return NewApplicationError(InvalidArgument, "invalid row span")
	}
	e.graph.AddRows(sheet, rowStart, count)
	e.pushTransformation(transformation{kind: transformAddRows, sheet: sheet, start: rowStart, count: count})
	return nil
}

// RemoveRows deletes count rows starting at rowStart.
func (e *Engine) RemoveRows(sheet, rowStart, count int) error {
	if count <= 0 || rowStart < 0 {
		return NewApplicationError(InvalidArgument, "invalid row span")
	}
	e.graph.RemoveRows(sheet, rowStart, count)
	e.pushTransformation(transformation{kind: transformRemoveRows, sheet: sheet, start: rowStart, count: count})
	return nil
}

// AddColumns inserts count columns before colStart.
func (e *Engine) AddColumns(sheet, colStart, count int) error {
	if count <= 0 || colStart < 0 {
		return NewApplicationError(InvalidArgument, "invalid column span")
	}
	e.graph.AddColumns(sheet, colStart, count)
	e.pushTransformation(transformation{kind: transformAddColumns, sheet: sheet, start: colStart, count: count})
	return nil
}

// RemoveColumns deletes count columns starting at colStart.
func (e *Engine) RemoveColumns(sheet, colStart, count int) error {
	if count <= 0 || colStart < 0 {
		return NewApplicationError(InvalidArgument, "invalid column span")
	}
	e.graph.RemoveColumns(sheet, colStart, count)
	e.pushTransformation(transformation{kind: transformRemoveColumns, sheet: sheet, start: colStart, count: count})
	return nil
}

// MoveCells relocates a rectangle of cells. Relative references inside
// moved formulas re-resolve from their new position.
func (e *Engine) MoveCells(source AbsoluteCellRange, target SimpleCellAddress) error {
	if !source.IsFinite() {
		return NewApplicationError(InvalidArgument, "cannot move an infinite range")
	}
	e.graph.MoveCells(source, target)
	return nil
}

func (e *Engine) pushTransformation(t transformation) {
	e.transformations = append(e.transformations, t)
	e.version++
}

// recomputation

// Recompute runs the §-ordered recalculation cycle: collect dirty and
// volatile vertices, walk SCC topological order, evaluate, and export
// the change records in deterministic address order.
func (e *Engine) Recompute() []CellValueChange {
	recompute := e.graph.VertsToRecompute()
	if len(recompute) == 0 {
		return nil
	}
	order, cycles := e.graph.TopSortWithSCC()

	var changes []CellValueChange
	for _, id := range order {
		if _, needed := recompute[id]; !needed {
			continue
		}
		switch v := e.graph.vertexAt(id).(type) {
		case *RangeVertex:
			v.clearFunctionCache()
		case *FormulaVertex:
			var result Value
			if _, inCycle := cycles[id]; inCycle {
				result = NewCellError(ErrorCycle, "").attachRoot(v.Address)
			} else {
				e.ensureRecentFormula(v)
				raw := e.evaluator.Evaluate(v.AST, evalState{formulaAddress: v.Address})
				result = e.postprocess(raw, v.Address)
			}
			v.cached = result
			v.computed = true
			changes = append(changes, CellValueChange{Address: v.Address, NewValue: result})
		case *ArrayVertex:
			changes = append(changes, e.recomputeArray(id, v, cycles)...)
		}
	}

	e.graph.ClearDirty()

	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i].Address, changes[j].Address
		if a.Sheet != b.Sheet {
			return a.Sheet < b.Sheet
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	return changes
}

// postprocess rejects non-finite scalars and attributes errors to the
// formula that produced them.
func (e *Engine) postprocess(v Value, at SimpleCellAddress) Value {
	switch t := v.(type) {
	case *CellError:
		return t.attachRoot(at)
	case *SimpleRangeValue:
		return NewCellError(ErrorValue, "scalar expected").attachRoot(at)
	case *RichNumber:
		if math.IsNaN(t.Val) || math.IsInf(t.Val, 0) {
			return NewCellError(ErrorNum, "").attachRoot(at)
		}
	}
	return v
}

// recomputeArray evaluates an array formula and spills its result,
// flagging NoSpace when a non-corner cell is already occupied.
func (e *Engine) recomputeArray(id NodeID, v *ArrayVertex, cycles map[NodeID]struct{}) []CellValueChange {
	if _, inCycle := cycles[id]; inCycle {
		v.NoSpace = false
		v.computed = true
		v.values = [][]Value{{NewCellError(ErrorCycle, "").attachRoot(v.Corner)}}
		v.Width, v.Height = 1, 1
		return []CellValueChange{{Address: v.Corner, NewValue: v.values[0][0]}}
	}

	e.ensureRecentArray(v)
	result := e.evaluator.Evaluate(v.AST, evalState{formulaAddress: v.Corner})

	var data [][]Value
	if rng, isRange := result.(*SimpleRangeValue); isRange {
		h, w := rng.Height(), rng.Width()
		data = make([][]Value, h)
		for row := 0; row < h; row++ {
			data[row] = make([]Value, w)
			for col := 0; col < w; col++ {
				data[row][col] = rng.ValueAt(row, col)
			}
		}
	} else {
		data = [][]Value{{e.postprocess(result, v.Corner)}}
	}

	v.Width = len(data[0])
	v.Height = len(data)

	// spill check: every non-corner cell of the rectangle must be free
	// or already owned by this vertex
	v.NoSpace = false
	for cell := range v.rect().Addresses() {
		if cell == v.Corner {
			continue
		}
		if otherID, occupied := e.graph.cells[cell]; occupied && otherID != id {
			if _, isEmpty := e.graph.vertexAt(otherID).(*EmptyVertex); !isEmpty {
				v.NoSpace = true
				break
			}
		}
	}

	if v.NoSpace {
		v.computed = true
		v.values = nil
		return []CellValueChange{{Address: v.Corner, NewValue: NewCellError(ErrorSpill, "array result cannot spill").attachRoot(v.Corner)}}
	}

	// claim the rectangle and export each spilled cell
	v.values = data
	v.computed = true
	var changes []CellValueChange
	for cell := range v.rect().Addresses() {
		if _, occupied := e.graph.cells[cell]; !occupied {
			e.graph.cells[cell] = id
		}
		changes = append(changes, CellValueChange{Address: cell, NewValue: v.valueAt(cell)})
	}
	return changes
}

// lazy AST transformation

type transformKind uint8

const (
	transformAddRows transformKind = iota
	transformRemoveRows
	transformAddColumns
	transformRemoveColumns
)

// transformation is one recorded structural edit. ASTs older than the
// current version replay pending transformations before evaluation.
type transformation struct {
	kind  transformKind
	sheet int
	start int
	count int
}

// applyToAddress shifts one resolved address through the edit. ok is
// false when the edit removed the address.
func (t transformation) applyToAddress(addr SimpleCellAddress) (SimpleCellAddress, bool) {
	if addr.Sheet != t.sheet {
		return addr, true
	}
	switch t.kind {
	case transformAddRows:
		if addr.Row >= t.start {
			addr.Row += t.count
		}
	case transformRemoveRows:
		if addr.Row >= t.start && addr.Row < t.start+t.count {
			return addr, false
		}
		if addr.Row >= t.start+t.count {
			addr.Row -= t.count
		}
	case transformAddColumns:
		if addr.Col >= t.start {
			addr.Col += t.count
		}
	case transformRemoveColumns:
		if addr.Col >= t.start && addr.Col < t.start+t.count {
			return addr, false
		}
		if addr.Col >= t.start+t.count {
			addr.Col -= t.count
		}
	}
	return addr, true
}

// ensureRecentFormula rewrites a formula's AST if structural edits
// happened since it was parsed, then re-keys it in the cache.
func (e *Engine) ensureRecentFormula(v *FormulaVertex) {
	if v.Version == e.version {
		return
	}
	newAst := e.transformAst(v.AST, v.VersionAddress, v.Address, v.Version)
	hash, entry := e.cache.FetchCachedForAst(newAst)
	v.AST = entry.AST
	v.Hash = hash
	v.Version = e.version
	v.VersionAddress = v.Address
}

func (e *Engine) ensureRecentArray(v *ArrayVertex) {
	if v.Version == e.version {
		return
	}
	newAst := e.transformAst(v.AST, v.VersionAddress, v.Corner, v.Version)
	hash, entry := e.cache.FetchCachedForAst(newAst)
	v.AST = entry.AST
	v.Hash = hash
	v.Version = e.version
	v.VersionAddress = v.Corner
}

// transformAst deep-copies an AST, replaying every transformation
// recorded since fromVersion onto each reference. References whose
// target was removed become unresolvable and evaluate to Error(Ref).
func (e *Engine) transformAst(ast Ast, oldBase, newBase SimpleCellAddress, fromVersion int) Ast {
	pending := e.transformations[fromVersion:]

	mapAddress := func(a CellAddress) CellAddress {
		if a.Sheet == unresolvableSheet {
			return a
		}
		target, ok := a.toSimple(oldBase)
		if !ok {
			return a
		}
		alive := true
		for _, t := range pending {
			target, alive = t.applyToAddress(target)
			if !alive {
				dead := a
				dead.Sheet = unresolvableSheet
				dead.SheetKind = Absolute
				return dead
			}
		}
		return fromSimple(target, newBase, a.ColKind, a.RowKind, a.SheetKind)
	}

	var rewrite func(node Ast) Ast
	rewrite = func(node Ast) Ast {
		switch n := node.(type) {
		case *CellReferenceNode:
			return &CellReferenceNode{Address: mapAddress(n.Address)}
		case *CellRangeNode:
			return &CellRangeNode{Start: mapAddress(n.Start), End: mapAddress(n.End)}
		case *ColumnRangeNode:
			return &ColumnRangeNode{Start: mapAddress(n.Start), End: mapAddress(n.End)}
		case *RowRangeNode:
			return &RowRangeNode{Start: mapAddress(n.Start), End: mapAddress(n.End)}
		case *FunctionCallNode:
			args := make([]Ast, len(n.Args))
			for i, arg := range n.Args {
				args[i] = rewrite(arg)
			}
			return &FunctionCallNode{Name: n.Name, Args: args}
		case *ArrayNode:
			rows := make([][]Ast, len(n.Rows))
			for i, row := range n.Rows {
				rows[i] = make([]Ast, len(row))
				for j, item := range row {
					rows[i][j] = rewrite(item)
				}
			}
			return &ArrayNode{Rows: rows}
		case *ParenthesisNode:
			return &ParenthesisNode{Inner: rewrite(n.Inner)}
		case *UnaryOpNode:
			return &UnaryOpNode{Op: n.Op, Operand: rewrite(n.Operand)}
		case *BinaryOpNode:
			return &BinaryOpNode{Op: n.Op, Left: rewrite(n.Left), Right: rewrite(n.Right)}
		default:
			return node
		}
	}
	return rewrite(ast)
}
