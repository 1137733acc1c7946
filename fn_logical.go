package probsheet

// registerLogicalFunctions installs the boolean and branching
// builtins.
func registerLogicalFunctions(r *FunctionRegistry) {
	r.Register(
		&FunctionDefinition{
			Name:   "IF",
			Method: fnIF,
			Parameters: []Parameter{
				{ArgType: ArgBool},
				{ArgType: ArgAny},
				{ArgType: ArgAny, Optional: true},
			},
		},
		&FunctionDefinition{
			Name:   "IFS",
			Method: fnIFS,
			Parameters: []Parameter{
				{ArgType: ArgBool},
				{ArgType: ArgAny},
			},
			RepeatLastArgs: 2,
		},
		&FunctionDefinition{
			Name:           "AND",
			Method:         fnAND,
			Parameters:     []Parameter{{ArgType: ArgAny}},
			RepeatLastArgs: 1,
			ExpandRanges:   true,
		},
		&FunctionDefinition{
			Name:           "OR",
			Method:         fnOR,
			Parameters:     []Parameter{{ArgType: ArgAny}},
			RepeatLastArgs: 1,
			ExpandRanges:   true,
		},
		&FunctionDefinition{
			Name:           "XOR",
			Method:         fnXOR,
			Parameters:     []Parameter{{ArgType: ArgAny}},
			RepeatLastArgs: 1,
			ExpandRanges:   true,
		},
		&FunctionDefinition{
			Name:       "NOT",
			Method:     fnNOT,
			Parameters: []Parameter{{ArgType: ArgBool}},
		},
		&FunctionDefinition{
			Name:   "CHOOSE",
			Method: fnCHOOSE,
			Parameters: []Parameter{
				{ArgType: ArgInteger},
				{ArgType: ArgAny},
			},
			RepeatLastArgs: 1,
		},
		&FunctionDefinition{
			Name:   "SWITCH",
			Method: fnSWITCH,
			Parameters: []Parameter{
				{ArgType: ArgScalar},
				{ArgType: ArgAny},
			},
			RepeatLastArgs:         1,
			VectorizationForbidden: true,
		},
		&FunctionDefinition{
			Name:   "IFERROR",
			Method: fnIFERROR,
			Parameters: []Parameter{
				{ArgType: ArgNoError},
				{ArgType: ArgNoError},
			},
			VectorizationForbidden: true,
		},
		&FunctionDefinition{
			Name:   "IFNA",
			Method: fnIFNA,
			Parameters: []Parameter{
				{ArgType: ArgNoError},
				{ArgType: ArgNoError},
			},
			VectorizationForbidden: true,
		},
	)
}

func fnIF(ctx *FunctionContext, args []Value) Value {
	cond, _ := args[0].(bool)
	if cond {
		return args[1]
	}
	if len(args) >= 3 && args[2] != nil {
		return args[2]
	}
	return false
}

func fnIFS(ctx *FunctionContext, args []Value) Value {
	if len(args)%2 != 0 {
		return NewCellError(ErrorNA, "IFS expects condition/value pairs")
	}
	for i := 0; i+1 < len(args); i += 2 {
		if cond, _ := args[i].(bool); cond {
			return args[i+1]
		}
	}
	return NewCellError(ErrorNA, "no condition in IFS was true")
}

// truthyFold walks scalar and range arguments, feeding each boolean
// reading into the fold. errors propagate immediately.
func truthyFold(ctx *FunctionContext, args []Value, fold func(bool)) *CellError {
	var visit func(v Value) *CellError
	visit = func(v Value) *CellError {
		if err := asError(v); err != nil {
			return err
		}
		if rng, isRange := v.(*SimpleRangeValue); isRange {
			var failed *CellError
			rng.Values(func(item Value) bool {
				if err := visit(item); err != nil {
					failed = err
					return false
				}
				return true
			})
			return failed
		}
		if v == nil {
			return nil // blank cells are ignored by AND/OR/XOR
		}
		b, ok := coerceToBool(v)
		if !ok {
			return NewCellError(ErrorValue, "cannot coerce value to boolean")
		}
		fold(b)
		return nil
	}
	for _, arg := range args {
		if err := visit(arg); err != nil {
			return err
		}
	}
	return nil
}

func fnAND(ctx *FunctionContext, args []Value) Value {
	result := true
	seen := false
	if err := truthyFold(ctx, args, func(b bool) {
		seen = true
		result = result && b
	}); err != nil {
		return err
	}
	if !seen {
		return NewCellError(ErrorValue, "AND has no boolean values")
	}
	return result
}

func fnOR(ctx *FunctionContext, args []Value) Value {
	result := false
	seen := false
	if err := truthyFold(ctx, args, func(b bool) {
		seen = true
		result = result || b
	}); err != nil {
		return err
	}
	if !seen {
		return NewCellError(ErrorValue, "OR has no boolean values")
	}
	return result
}

func fnXOR(ctx *FunctionContext, args []Value) Value {
	trues := 0
	seen := false
	if err := truthyFold(ctx, args, func(b bool) {
		seen = true
		if b {
			trues++
		}
	}); err != nil {
		return err
	}
	if !seen {
		return NewCellError(ErrorValue, "XOR has no boolean values")
	}
	return trues%2 == 1
}

func fnNOT(ctx *FunctionContext, args []Value) Value {
	b, _ := args[0].(bool)
	return !b
}

func fnCHOOSE(ctx *FunctionContext, args []Value) Value {
	idx, ok := args[0].(*RichNumber)
	if !ok {
		return NewCellError(ErrorValue, "CHOOSE requires a numeric index")
	}
	n := int(idx.Val)
	if n < 1 || n >= len(args) {
		return NewCellError(ErrorNum, "CHOOSE index out of range")
	}
	return args[n]
}

func fnSWITCH(ctx *FunctionContext, args []Value) Value {
	selector := args[0]
	rest := args[1:]
	ev := ctx.ev
	// pairs of (case, result); a trailing odd argument is the default
	for i := 0; i+1 < len(rest); i += 2 {
		if ev.arith.compareValues(selector, rest[i], ev.comparer) == 0 {
			return rest[i+1]
		}
	}
	if len(rest)%2 == 1 {
		return rest[len(rest)-1]
	}
	return NewCellError(ErrorNA, "no case in SWITCH matched")
}

func fnIFERROR(ctx *FunctionContext, args []Value) Value {
	if asError(args[0]) != nil {
		return args[1]
	}
	if args[0] == nil {
		return NewRaw(0)
	}
	return args[0]
}

func fnIFNA(ctx *FunctionContext, args []Value) Value {
	if err := asError(args[0]); err != nil && err.Kind == ErrorNA {
		return args[1]
	}
	return args[0]
}
