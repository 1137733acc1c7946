package probsheet

import "strings"

// Evaluator walks ASTs against the dependency graph, coercing values
// and dispatching to function plugins and the arithmetic engine.
type Evaluator struct {
	cfg      *Config
	graph    *DependencyGraph
	arith    *Arith
	literals *literalParser
	comparer *stringComparer
	registry *FunctionRegistry
	sampler  *sampler
	clock    Clock
	rng      RandomGenerator

	// namedValue resolves a named expression in a sheet scope,
	// falling back to workbook scope.
	namedValue func(name string, scope int) Value

	// formulaTextAt returns the source text of the formula at an
	// address, for FORMULATEXT.
	formulaTextAt func(addr SimpleCellAddress) (string, bool)
}

// evalState carries the evaluation position through one AST walk.
type evalState struct {
	formulaAddress SimpleCellAddress
}

// Evaluate computes the value of an AST at the given formula address.
func (ev *Evaluator) Evaluate(ast Ast, state evalState) Value {
	switch n := ast.(type) {
	case nil, *EmptyNode:
		return nil
	case *NumberNode:
		return NewRaw(n.Value)
	case *StringNode:
		return n.Value
	case *BoolNode:
		return n.Value
	case *ErrorNode:
		return NewCellError(n.Kind, "")
	case *DistributionNode:
		return n.Number
	case *CellReferenceNode:
		return ev.evalCellReference(n, state)
	case *CellRangeNode:
		return ev.evalRange(DepCellRange, n.Start, n.End, state)
	case *ColumnRangeNode:
		return ev.evalRange(DepColumnRange, n.Start, n.End, state)
	case *RowRangeNode:
		return ev.evalRange(DepRowRange, n.Start, n.End, state)
	case *NamedExpressionNode:
		return ev.namedValue(n.Name, state.formulaAddress.Sheet)
	case *ParenthesisNode:
		return ev.Evaluate(n.Inner, state)
	case *ArrayNode:
		return ev.evalArrayLiteral(n, state)
	case *UnaryOpNode:
		return ev.evalUnaryOp(n, state)
	case *BinaryOpNode:
		return ev.evalBinaryOp(n, state)
	case *FunctionCallNode:
		return ev.evalFunctionCall(n, state)
	default:
		return NewCellError(ErrorGeneric, "unknown expression")
	}
}

func (ev *Evaluator) evalCellReference(n *CellReferenceNode, state evalState) Value {
	if n.Address.Sheet == unresolvableSheet {
		return NewCellError(ErrorRef, "")
	}
	addr, ok := n.Address.toSimple(state.formulaAddress)
	if !ok {
		return NewCellError(ErrorRef, "")
	}
	v := ev.graph.scalarValueAt(addr)
	if _, isRange := v.(*SimpleRangeValue); isRange {
		return NewCellError(ErrorValue, "scalar expected")
	}
	return v
}

// evalRange materializes a range lazily. Infinite ranges clamp to the
// sheet's used extent.
func (ev *Evaluator) evalRange(kind DepKind, start, end CellAddress, state evalState) Value {
	dep := Dep{Kind: kind, RangeStart: start, RangeEnd: end}
	resolved := absolutize(dep, state.formulaAddress)
	if resolved.Invalid || resolved.Range.Start.Sheet == unresolvableSheet {
		return NewCellError(ErrorRef, "")
	}
	rng := resolved.Range
	if !rng.IsFinite() {
		rng = rng.clampedTo(
			ev.graph.GetSheetWidth(rng.Start.Sheet),
			ev.graph.GetSheetHeight(rng.Start.Sheet),
		)
	}
	return rangeValueFromRange(rng, ev.graph)
}

func (ev *Evaluator) evalArrayLiteral(n *ArrayNode, state evalState) Value {
	data := make([][]Value, len(n.Rows))
	for i, row := range n.Rows {
		data[i] = make([]Value, len(row))
		for j, item := range row {
			v := ev.Evaluate(item, state)
			if _, isRange := v.(*SimpleRangeValue); isRange {
				return NewCellError(ErrorValue, "scalar expected in array literal")
			}
			data[i][j] = v
		}
	}
	return rangeValueFromData(data)
}

// operator evaluation

func (ev *Evaluator) evalUnaryOp(n *UnaryOpNode, state evalState) Value {
	operand := ev.Evaluate(n.Operand, state)
	return ev.applyVectorized1(operand, func(v Value) Value {
		if err := asError(v); err != nil {
			return err
		}
		num, cerr := ev.literals.coerceToNumber(v)
		if cerr != nil {
			return cerr
		}
		var out *RichNumber
		var aerr *CellError
		switch n.Op {
		case UnaryOpPlus:
			out, aerr = ev.arith.UnaryPlus(num)
		case UnaryOpMinus:
			out, aerr = ev.arith.UnaryMinus(num)
		case UnaryOpPercent:
			out, aerr = ev.arith.UnaryPercent(num)
		}
		if aerr != nil {
			return aerr
		}
		return out
	})
}

func (ev *Evaluator) evalBinaryOp(n *BinaryOpNode, state evalState) Value {
	left := ev.Evaluate(n.Left, state)
	right := ev.Evaluate(n.Right, state)
	return ev.applyVectorized2(left, right, func(l, r Value) Value {
		return ev.applyBinaryScalar(n.Op, l, r)
	})
}

// applyBinaryScalar dispatches one scalar binary operation, with
// error short-circuit.
func (ev *Evaluator) applyBinaryScalar(op BinaryOp, left, right Value) Value {
	if err := asError(left); err != nil {
		return err
	}
	if err := asError(right); err != nil {
		return err
	}

	switch op {
	case BinOpAdd, BinOpSubtract, BinOpMultiply, BinOpDivide, BinOpPower:
		l, cerr := ev.literals.coerceToNumber(left)
		if cerr != nil {
			return cerr
		}
		r, cerr := ev.literals.coerceToNumber(right)
		if cerr != nil {
			return cerr
		}
		var out *RichNumber
		var aerr *CellError
		switch op {
		case BinOpAdd:
			out, aerr = ev.arith.Add(l, r)
		case BinOpSubtract:
			out, aerr = ev.arith.Sub(l, r)
		case BinOpMultiply:
			out, aerr = ev.arith.Mul(l, r)
		case BinOpDivide:
			out, aerr = ev.arith.Div(l, r)
		case BinOpPower:
			out, aerr = ev.arith.Pow(l, r)
		}
		if aerr != nil {
			return aerr
		}
		return out

	case BinOpConcat:
		return ev.stringify(left) + ev.stringify(right)

	case BinOpEqual:
		return ev.arith.compareValues(left, right, ev.comparer) == 0
	case BinOpNotEqual:
		return ev.arith.compareValues(left, right, ev.comparer) != 0
	case BinOpLess, BinOpLessEqual, BinOpGreater, BinOpGreaterEqual:
		cmp := ev.arith.compareValues(left, right, ev.comparer)
		if cmp == -2 {
			return NewCellError(ErrorValue, "cannot compare these values")
		}
		switch op {
		case BinOpLess:
			return cmp < 0
		case BinOpLessEqual:
			return cmp <= 0
		case BinOpGreater:
			return cmp > 0
		default:
			return cmp >= 0
		}
	}
	return NewCellError(ErrorGeneric, "unknown operator")
}

// stringify renders a scalar for concatenation and text functions.
func (ev *Evaluator) stringify(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case *RichNumber:
		return formatNumberForText(t)
	case *CellError:
		return t.Code()
	default:
		return ""
	}
}

// vectorization

// applyVectorized1 broadcasts a scalar operation over a range operand.
func (ev *Evaluator) applyVectorized1(v Value, fn func(Value) Value) Value {
	rng, isRange := v.(*SimpleRangeValue)
	if !isRange {
		return fn(v)
	}
	h, w := rng.Height(), rng.Width()
	out := make([][]Value, h)
	for row := 0; row < h; row++ {
		out[row] = make([]Value, w)
		for col := 0; col < w; col++ {
			out[row][col] = fn(rng.ValueAt(row, col))
		}
	}
	return rangeValueFromData(out)
}

// applyVectorized2 broadcasts a binary operation elementwise when
// either operand is a range. Scalar operands broadcast; mismatched
// extents produce per-element Error(NA) cells.
func (ev *Evaluator) applyVectorized2(left, right Value, fn func(l, r Value) Value) Value {
	lr, lIsRange := left.(*SimpleRangeValue)
	rr, rIsRange := right.(*SimpleRangeValue)
	if !lIsRange && !rIsRange {
		return fn(left, right)
	}

	h, w := 1, 1
	if lIsRange {
		h, w = lr.Height(), lr.Width()
	}
	if rIsRange {
		h = max(h, rr.Height())
		w = max(w, rr.Width())
	}

	pick := func(rng *SimpleRangeValue, scalar Value, isRange bool, row, col int) (Value, bool) {
		if !isRange {
			return scalar, true
		}
		switch {
		case rng.Height() == h && rng.Width() == w:
			return rng.ValueAt(row, col), true
		case rng.Height() == 1 && rng.Width() == w:
			return rng.ValueAt(0, col), true
		case rng.Height() == h && rng.Width() == 1:
			return rng.ValueAt(row, 0), true
		case rng.Height() == 1 && rng.Width() == 1:
			return rng.ValueAt(0, 0), true
		}
		return nil, false
	}

	out := make([][]Value, h)
	for row := 0; row < h; row++ {
		out[row] = make([]Value, w)
		for col := 0; col < w; col++ {
			l, okL := pick(lr, left, lIsRange, row, col)
			r, okR := pick(rr, right, rIsRange, row, col)
			if !okL || !okR {
				out[row][col] = NewCellError(ErrorNA, "")
				continue
			}
			out[row][col] = fn(l, r)
		}
	}
	return rangeValueFromData(out)
}

// function dispatch

func (ev *Evaluator) evalFunctionCall(n *FunctionCallNode, state evalState) Value {
	def, ok := ev.registry.Lookup(n.Name)
	if !ok {
		return NewCellError(ErrorName, "unknown function: "+n.Name)
	}

	ctx := &FunctionContext{ev: ev, formulaAddress: state.formulaAddress}

	if def.DoesNotNeedArgumentsToBeComputed {
		ctx.rawArgs = n.Args
		return def.Method(ctx, nil)
	}

	args := make([]Value, len(n.Args))
	for i, argAst := range n.Args {
		args[i] = ev.Evaluate(argAst, state)
	}

	return ev.invoke(def, ctx, args)
}

// invoke applies arity checks, default filling, vectorization, and
// per-parameter coercion, then calls the method.
func (ev *Evaluator) invoke(def *FunctionDefinition, ctx *FunctionContext, args []Value) Value {
	if len(args) < def.minArgs() {
		return NewCellError(ErrorNA, strings.ToUpper(def.Name)+" is missing required arguments")
	}
	if def.RepeatLastArgs == 0 && len(args) > len(def.Parameters) {
		return NewCellError(ErrorNA, strings.ToUpper(def.Name)+" has too many arguments")
	}

	// fill trailing optional defaults
	if len(args) < len(def.Parameters) {
		for i := len(args); i < len(def.Parameters); i++ {
			p := def.Parameters[i]
			if p.DefaultValue != nil {
				args = append(args, p.DefaultValue)
			} else if p.Optional {
				args = append(args, nil)
			}
		}
	}

	if !def.VectorizationForbidden {
		if result, vectorized := ev.vectorizeCall(def, ctx, args); vectorized {
			return result
		}
	}

	coerced, err := ev.coerceArgs(def, args)
	if err != nil {
		return err
	}
	return def.Method(ctx, coerced)
}

// vectorizeCall broadcasts the function elementwise when a range was
// passed for a scalar-typed parameter.
func (ev *Evaluator) vectorizeCall(def *FunctionDefinition, ctx *FunctionContext, args []Value) (Value, bool) {
	h, w := 1, 1
	found := false
	for i, arg := range args {
		p, ok := def.parameterFor(i)
		if !ok || p.ArgType == ArgRange || p.ArgType == ArgAny || p.ForbidVectorization {
			continue
		}
		if rng, isRange := arg.(*SimpleRangeValue); isRange {
			found = true
			h = max(h, rng.Height())
			w = max(w, rng.Width())
		}
	}
	if !found {
		return nil, false
	}

	out := make([][]Value, h)
	for row := 0; row < h; row++ {
		out[row] = make([]Value, w)
		for col := 0; col < w; col++ {
			cellArgs := make([]Value, len(args))
			for i, arg := range args {
				p, _ := def.parameterFor(i)
				rng, isRange := arg.(*SimpleRangeValue)
				if !isRange || p.ArgType == ArgRange || p.ArgType == ArgAny || p.ForbidVectorization {
					cellArgs[i] = arg
					continue
				}
				switch {
				case rng.Height() == h && rng.Width() == w:
					cellArgs[i] = rng.ValueAt(row, col)
				case rng.Height() == 1 && rng.Width() == w:
					cellArgs[i] = rng.ValueAt(0, col)
				case rng.Height() == h && rng.Width() == 1:
					cellArgs[i] = rng.ValueAt(row, 0)
				case rng.Height() == 1 && rng.Width() == 1:
					cellArgs[i] = rng.ValueAt(0, 0)
				default:
					cellArgs[i] = NewCellError(ErrorNA, "")
				}
			}
			coerced, err := ev.coerceArgs(def, cellArgs)
			if err != nil {
				out[row][col] = err
			} else {
				out[row][col] = def.Method(ctx, coerced)
			}
		}
	}
	return rangeValueFromData(out), true
}

// coerceArgs applies per-parameter coercion, short-circuiting on the
// first error unless the parameter traps errors.
func (ev *Evaluator) coerceArgs(def *FunctionDefinition, args []Value) ([]Value, *CellError) {
	out := make([]Value, len(args))
	for i, arg := range args {
		p, ok := def.parameterFor(i)
		if !ok {
			out[i] = arg
			continue
		}
		v, err := ev.coerceArg(p, arg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (ev *Evaluator) coerceArg(p Parameter, arg Value) (Value, *CellError) {
	if p.ArgType != ArgNoError && p.ArgType != ArgAny && p.ArgType != ArgRange {
		if err := asError(arg); err != nil {
			return nil, err
		}
	}
	switch p.ArgType {
	case ArgNumber, ArgInteger:
		if arg == nil && p.Optional {
			return nil, nil
		}
		num, err := ev.literals.coerceToNumber(arg)
		if err != nil {
			return nil, err
		}
		if p.ArgType == ArgInteger {
			num = truncated(num)
		}
		if p.HasBounds && (num.Val < p.Min || num.Val > p.Max) {
			return nil, NewCellError(ErrorNum, "argument out of bounds")
		}
		if !p.PassSubtype {
			return NewRaw(num.Val), nil
		}
		return num, nil
	case ArgString:
		if arg == nil && p.Optional {
			return nil, nil
		}
		return ev.stringify(arg), nil
	case ArgBool:
		if arg == nil && p.Optional {
			return nil, nil
		}
		b, ok := coerceToBool(arg)
		if !ok {
			return nil, NewCellError(ErrorValue, "cannot coerce value to boolean")
		}
		return b, nil
	case ArgScalar, ArgNoError:
		if _, isRange := arg.(*SimpleRangeValue); isRange {
			return nil, NewCellError(ErrorValue, "scalar expected")
		}
		return arg, nil
	case ArgRange:
		if rng, isRange := arg.(*SimpleRangeValue); isRange {
			return rng, nil
		}
		// a scalar promotes to a 1x1 rectangle
		return rangeValueFromData([][]Value{{arg}}), nil
	default: // ArgAny
		return arg, nil
	}
}

// truncated drops the fractional part toward zero, keeping subtype.
func truncated(n *RichNumber) *RichNumber {
	v := float64(int64(n.Val))
	if v == n.Val {
		return n
	}
	return n.FromValue(v)
}

// rangeSum computes SUM over a graph-backed range using the range
// vertex's hierarchical cache: a range composed of a smaller range
// plus a remainder reuses the smaller range's cached sum.
func (ev *Evaluator) rangeSum(rng AbsoluteCellRange) Value {
	vertex, ok := ev.graph.rangeVertexFor(rng)
	if !ok {
		return ev.sumCells(rng, nil, nil)
	}
	if cached, hit := vertex.getCachedFunctionValue("SUM"); hit {
		return cached
	}
	var result Value
	if vertex.SmallerRange != noNode {
		if smaller, isRange := ev.graph.vertexAt(vertex.SmallerRange).(*RangeVertex); isRange {
			base := ev.rangeSum(smaller.Range)
			result = ev.sumCells(rng, &smaller.Range, base)
		}
	}
	if result == nil {
		result = ev.sumCells(rng, nil, nil)
	}
	vertex.setCachedFunctionValue("SUM", result)
	return result
}

// sumCells folds the cells of rng outside skip into the running sum.
func (ev *Evaluator) sumCells(rng AbsoluteCellRange, skip *AbsoluteCellRange, acc Value) Value {
	sum := NewRaw(0)
	if acc != nil {
		if err := asError(acc); err != nil {
			return err
		}
		if n, isNum := acc.(*RichNumber); isNum {
			sum = n
		}
	}
	for addr := range rng.Addresses() {
		if skip != nil && skip.Contains(addr) {
			continue
		}
		v := ev.graph.scalarValueAt(addr)
		if err := asError(v); err != nil {
			return err
		}
		n, isNum := v.(*RichNumber)
		if !isNum {
			continue // blanks, text, and booleans are skipped by SUM
		}
		out, aerr := ev.arith.Add(sum, n)
		if aerr != nil {
			return aerr
		}
		sum = out
	}
	return sum
}
