package probsheet

import (
	"math"
	"sort"
)

// registerStatFunctions installs the aggregation builtins. They accept
// any mix of scalars and ranges and fold rich numbers through the
// arithmetic engine, so uncertainty propagates through SUM and
// AVERAGE like it does through the operators.
func registerStatFunctions(r *FunctionRegistry) {
	variadicAny := []Parameter{{ArgType: ArgAny}}
	r.Register(
		&FunctionDefinition{
			Name: "SUM", Method: fnSUM,
			Parameters: variadicAny, RepeatLastArgs: 1, ExpandRanges: true,
		},
		&FunctionDefinition{
			Name: "AVERAGE", Method: fnAVERAGE,
			Parameters: variadicAny, RepeatLastArgs: 1, ExpandRanges: true,
		},
		&FunctionDefinition{
			Name: "COUNT", Method: fnCOUNT,
			Parameters: variadicAny, RepeatLastArgs: 1, ExpandRanges: true,
		},
		&FunctionDefinition{
			Name: "COUNTA", Method: fnCOUNTA,
			Parameters: variadicAny, RepeatLastArgs: 1, ExpandRanges: true,
		},
		&FunctionDefinition{
			Name: "MAX", Method: fnMAX,
			Parameters: variadicAny, RepeatLastArgs: 1, ExpandRanges: true,
		},
		&FunctionDefinition{
			Name: "MIN", Method: fnMIN,
			Parameters: variadicAny, RepeatLastArgs: 1, ExpandRanges: true,
		},
		&FunctionDefinition{
			Name: "MEDIAN", Method: fnMEDIAN,
			Parameters: variadicAny, RepeatLastArgs: 1, ExpandRanges: true,
		},
		&FunctionDefinition{
			Name: "COUNTUNIQUE", Method: fnCOUNTUNIQUE,
			Parameters: variadicAny, RepeatLastArgs: 1, ExpandRanges: true,
		},
		&FunctionDefinition{
			Name: "MEAN", Method: fnMEAN,
			Parameters: []Parameter{{ArgType: ArgNumber, PassSubtype: true}},
		},
		&FunctionDefinition{
			Name: "VARIANCE", Method: fnVARIANCE,
			Parameters: []Parameter{{ArgType: ArgNumber, PassSubtype: true}},
		},
		&FunctionDefinition{
			Name: "STDEV", Method: fnSTDEV,
			Parameters: []Parameter{{ArgType: ArgNumber, PassSubtype: true}},
		},
	)
}

// forEachScalar feeds every scalar reachable from the arguments into
// the visitor; range cells arrive as-is, direct scalars too.
func forEachScalar(args []Value, visit func(v Value, fromRange bool) *CellError) *CellError {
	for _, arg := range args {
		if rng, isRange := arg.(*SimpleRangeValue); isRange {
			var failed *CellError
			rng.Values(func(item Value) bool {
				if err := visit(item, true); err != nil {
					failed = err
					return false
				}
				return true
			})
			if failed != nil {
				return failed
			}
			continue
		}
		if err := visit(arg, false); err != nil {
			return err
		}
	}
	return nil
}

func fnSUM(ctx *FunctionContext, args []Value) Value {
	ev := ctx.ev
	sum := NewRaw(0)

	for _, arg := range args {
		if err := asError(arg); err != nil {
			return err
		}
		if rng, isRange := arg.(*SimpleRangeValue); isRange {
			if backing, ok := rng.Range(); ok {
				// graph-backed ranges go through the hierarchical
				// range-vertex cache
				partial := ev.rangeSum(backing)
				if err := asError(partial); err != nil {
					return err
				}
				if n, isNum := partial.(*RichNumber); isNum {
					out, aerr := ev.arith.Add(sum, n)
					if aerr != nil {
						return aerr
					}
					sum = out
				}
				continue
			}
		}
		if err := forEachScalar([]Value{arg}, func(v Value, fromRange bool) *CellError {
			if err := asError(v); err != nil {
				return err
			}
			n, isNum := v.(*RichNumber)
			if !isNum {
				if fromRange {
					return nil // text and booleans in ranges are skipped
				}
				coerced, cerr := ev.literals.coerceToNumber(v)
				if cerr != nil {
					return cerr
				}
				n = coerced
			}
			out, aerr := ev.arith.Add(sum, n)
			if aerr != nil {
				return aerr
			}
			sum = out
			return nil
		}); err != nil {
			return err
		}
	}
	return sum
}

func fnAVERAGE(ctx *FunctionContext, args []Value) Value {
	ev := ctx.ev
	sum := NewRaw(0)
	count := 0
	if err := forEachScalar(args, func(v Value, fromRange bool) *CellError {
		if err := asError(v); err != nil {
			return err
		}
		n, isNum := v.(*RichNumber)
		if !isNum {
			if fromRange || v == nil {
				return nil
			}
			coerced, cerr := ev.literals.coerceToNumber(v)
			if cerr != nil {
				return cerr
			}
			n = coerced
		}
		out, aerr := ev.arith.Add(sum, n)
		if aerr != nil {
			return aerr
		}
		sum = out
		count++
		return nil
	}); err != nil {
		return err
	}
	if count == 0 {
		return NewCellError(ErrorDivByZero, "AVERAGE has no numeric values")
	}
	out, aerr := ev.arith.Div(sum, NewRaw(float64(count)))
	if aerr != nil {
		return aerr
	}
	return out
}

func fnCOUNT(ctx *FunctionContext, args []Value) Value {
	count := 0
	_ = forEachScalar(args, func(v Value, fromRange bool) *CellError {
		// COUNT never propagates errors from ranges, just skips them
		if _, isNum := v.(*RichNumber); isNum {
			count++
		}
		return nil
	})
	return NewRaw(float64(count))
}

func fnCOUNTA(ctx *FunctionContext, args []Value) Value {
	count := 0
	_ = forEachScalar(args, func(v Value, fromRange bool) *CellError {
		if v != nil {
			count++
		}
		return nil
	})
	return NewRaw(float64(count))
}

func fnMAX(ctx *FunctionContext, args []Value) Value {
	best := math.Inf(-1)
	seen := false
	if err := numericFold(ctx, args, func(v float64) {
		if v > best {
			best = v
		}
		seen = true
	}); err != nil {
		return err
	}
	if !seen {
		return NewRaw(0)
	}
	return NewRaw(best)
}

func fnMIN(ctx *FunctionContext, args []Value) Value {
	best := math.Inf(1)
	seen := false
	if err := numericFold(ctx, args, func(v float64) {
		if v < best {
			best = v
		}
		seen = true
	}); err != nil {
		return err
	}
	if !seen {
		return NewRaw(0)
	}
	return NewRaw(best)
}

// numericFold feeds representative values of numeric cells into the
// fold, propagating errors.
func numericFold(ctx *FunctionContext, args []Value, fold func(float64)) *CellError {
	return forEachScalar(args, func(v Value, fromRange bool) *CellError {
		if err := asError(v); err != nil {
			return err
		}
		if n, isNum := v.(*RichNumber); isNum {
			fold(n.Val)
			return nil
		}
		if !fromRange && v != nil {
			coerced, cerr := ctx.ev.literals.coerceToNumber(v)
			if cerr != nil {
				return cerr
			}
			fold(coerced.Val)
		}
		return nil
	})
}

func fnMEDIAN(ctx *FunctionContext, args []Value) Value {
	var values []float64
	if err := numericFold(ctx, args, func(v float64) {
		values = append(values, v)
	}); err != nil {
		return err
	}
	if len(values) == 0 {
		return NewCellError(ErrorNum, "MEDIAN has no numeric values")
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return NewRaw((values[mid-1] + values[mid]) / 2)
	}
	return NewRaw(values[mid])
}

// countUniqueKey folds a scalar to a comparable identity.
type countUniqueKey struct {
	kind CellType
	num  float64
	text string
	b    bool
}

func fnCOUNTUNIQUE(ctx *FunctionContext, args []Value) Value {
	seen := make(map[countUniqueKey]struct{})
	if err := forEachScalar(args, func(v Value, fromRange bool) *CellError {
		if err := asError(v); err != nil {
			return err
		}
		switch t := v.(type) {
		case nil:
			// blanks are not counted
		case *RichNumber:
			seen[countUniqueKey{kind: CellTypeNumber, num: t.Val}] = struct{}{}
		case string:
			key := t
			if !ctx.ev.cfg.CaseSensitive {
				key = lowerForCompare(t)
			}
			seen[countUniqueKey{kind: CellTypeString, text: key}] = struct{}{}
		case bool:
			seen[countUniqueKey{kind: CellTypeBoolean, b: t}] = struct{}{}
		}
		return nil
	}); err != nil {
		return err
	}
	return NewRaw(float64(len(seen)))
}

// distribution introspection: these read the uncertainty a value
// carries rather than collapsing it

func fnMEAN(ctx *FunctionContext, args []Value) Value {
	n := args[0].(*RichNumber)
	return NewRaw(n.Val)
}

func fnVARIANCE(ctx *FunctionContext, args []Value) Value {
	n := args[0].(*RichNumber)
	switch n.Kind {
	case KindGaussian:
		return NewRaw(n.Sigma2)
	case KindUniform:
		w := n.Hi - n.Lo
		return NewRaw(w * w / 12)
	case KindLogNormal, KindConfidenceInterval, KindSampled:
		samples, err := ctx.ev.sampler.samplesOf(n)
		if err != nil {
			return err
		}
		return NewRaw(varianceOf(samples))
	default:
		return NewRaw(0)
	}
}

func fnSTDEV(ctx *FunctionContext, args []Value) Value {
	v := fnVARIANCE(ctx, args)
	if err := asError(v); err != nil {
		return err
	}
	return NewRaw(math.Sqrt(v.(*RichNumber).Val))
}
