package probsheet

import "math"

// registerMathFunctions installs the numeric builtins.
func registerMathFunctions(r *FunctionRegistry) {
	oneNumber := []Parameter{{ArgType: ArgNumber}}
	r.Register(
		&FunctionDefinition{
			Name:   "MOD",
			Method: fnMOD,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber},
			},
		},
		&FunctionDefinition{Name: "INT", Method: fnINT, Parameters: oneNumber},
		&FunctionDefinition{
			Name:   "ROUND",
			Method: fnROUND,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgInteger, Optional: true, DefaultValue: NewRaw(0)},
			},
		},
		&FunctionDefinition{
			Name:   "ROUNDUP",
			Method: fnROUNDUP,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgInteger, Optional: true, DefaultValue: NewRaw(0)},
			},
		},
		&FunctionDefinition{
			Name:   "ROUNDDOWN",
			Method: fnROUNDDOWN,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgInteger, Optional: true, DefaultValue: NewRaw(0)},
			},
		},
		&FunctionDefinition{Name: "EVEN", Method: fnEVEN, Parameters: oneNumber},
		&FunctionDefinition{Name: "ODD", Method: fnODD, Parameters: oneNumber},
		&FunctionDefinition{
			Name:   "CEILING",
			Method: fnCEILING,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber, Optional: true, DefaultValue: NewRaw(1)},
			},
		},
		&FunctionDefinition{
			Name:   "CEILING.MATH",
			Method: fnCEILINGMATH,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber, Optional: true, DefaultValue: NewRaw(1)},
				{ArgType: ArgNumber, Optional: true, DefaultValue: NewRaw(0)},
			},
		},
		&FunctionDefinition{
			Name:   "CEILING.PRECISE",
			Method: fnCEILINGPRECISE,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber, Optional: true, DefaultValue: NewRaw(1)},
			},
		},
		&FunctionDefinition{
			Name:   "FLOOR",
			Method: fnFLOOR,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber, Optional: true, DefaultValue: NewRaw(1)},
			},
		},
		&FunctionDefinition{
			Name:   "FLOOR.MATH",
			Method: fnFLOORMATH,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber, Optional: true, DefaultValue: NewRaw(1)},
				{ArgType: ArgNumber, Optional: true, DefaultValue: NewRaw(0)},
			},
		},
		&FunctionDefinition{
			Name:   "FLOOR.PRECISE",
			Method: fnFLOORPRECISE,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber, Optional: true, DefaultValue: NewRaw(1)},
			},
		},
		&FunctionDefinition{Name: "ABS", Method: fnABS, Parameters: oneNumber},
		&FunctionDefinition{Name: "PI", Method: fnPI},
		&FunctionDefinition{Name: "SQRT", Method: fnSQRT, Parameters: oneNumber},
		&FunctionDefinition{Name: "SQRTPI", Method: fnSQRTPI, Parameters: oneNumber},
		&FunctionDefinition{
			Name:   "POWER",
			Method: fnPOWER,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber},
			},
		},
		&FunctionDefinition{Name: "RADIANS", Method: fnRADIANS, Parameters: oneNumber},
		&FunctionDefinition{Name: "DEGREES", Method: fnDEGREES, Parameters: oneNumber},
		&FunctionDefinition{
			Name:   "BITAND",
			Method: bitwiseFn(func(a, b uint64) uint64 { return a & b }),
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber},
			},
		},
		&FunctionDefinition{
			Name:   "BITOR",
			Method: bitwiseFn(func(a, b uint64) uint64 { return a | b }),
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber},
			},
		},
		&FunctionDefinition{
			Name:   "BITXOR",
			Method: bitwiseFn(func(a, b uint64) uint64 { return a ^ b }),
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber},
			},
		},
		&FunctionDefinition{
			Name:   "DELTA",
			Method: fnDELTA,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber, Optional: true, DefaultValue: NewRaw(0)},
			},
		},
	)
}

func numArg(v Value) float64 {
	if n, ok := v.(*RichNumber); ok {
		return n.Val
	}
	return 0
}

func fnMOD(ctx *FunctionContext, args []Value) Value {
	dividend := numArg(args[0])
	divisor := numArg(args[1])
	if divisor == 0 {
		return NewCellError(ErrorDivByZero, "")
	}
	// spreadsheet MOD takes the sign of the divisor
	result := dividend - divisor*math.Floor(dividend/divisor)
	return NewRaw(result)
}

func fnINT(ctx *FunctionContext, args []Value) Value {
	return NewRaw(math.Floor(numArg(args[0])))
}

// roundHalfAwayFromZero is the spreadsheet rounding rule.
func roundHalfAwayFromZero(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	scaled := v * mult
	if scaled >= 0 {
		return math.Floor(scaled+0.5) / mult
	}
	return math.Ceil(scaled-0.5) / mult
}

func fnROUND(ctx *FunctionContext, args []Value) Value {
	places, _ := intArg(args[1])
	return NewRaw(roundHalfAwayFromZero(numArg(args[0]), places))
}

func fnROUNDUP(ctx *FunctionContext, args []Value) Value {
	places, _ := intArg(args[1])
	mult := math.Pow(10, float64(places))
	v := numArg(args[0])
	if v >= 0 {
		return NewRaw(math.Ceil(v*mult) / mult)
	}
	return NewRaw(math.Floor(v*mult) / mult)
}

func fnROUNDDOWN(ctx *FunctionContext, args []Value) Value {
	places, _ := intArg(args[1])
	mult := math.Pow(10, float64(places))
	return NewRaw(math.Trunc(numArg(args[0])*mult) / mult)
}

func fnEVEN(ctx *FunctionContext, args []Value) Value {
	v := numArg(args[0])
	rounded := math.Ceil(math.Abs(v) / 2) * 2
	if v < 0 {
		rounded = -rounded
	}
	return NewRaw(rounded)
}

func fnODD(ctx *FunctionContext, args []Value) Value {
	v := numArg(args[0])
	abs := math.Abs(v)
	rounded := math.Floor(abs)
	if math.Mod(rounded, 2) == 0 {
		rounded++
	} else if rounded < abs {
		rounded += 2
	}
	if v < 0 {
		rounded = -rounded
	}
	return NewRaw(rounded)
}

func fnCEILING(ctx *FunctionContext, args []Value) Value {
	v := numArg(args[0])
	sig := numArg(args[1])
	if sig == 0 {
		return NewRaw(0)
	}
	if v > 0 && sig < 0 {
		return NewCellError(ErrorNum, "CEILING significance sign mismatch")
	}
	return NewRaw(math.Ceil(v/sig) * sig)
}

func fnCEILINGMATH(ctx *FunctionContext, args []Value) Value {
	v := numArg(args[0])
	sig := math.Abs(numArg(args[1]))
	mode := numArg(args[2])
	if sig == 0 {
		return NewRaw(0)
	}
	if v >= 0 || mode == 0 {
		return NewRaw(math.Ceil(v/sig) * sig)
	}
	// negative numbers round away from zero when mode is nonzero
	return NewRaw(math.Floor(v/sig) * sig)
}

func fnCEILINGPRECISE(ctx *FunctionContext, args []Value) Value {
	v := numArg(args[0])
	sig := math.Abs(numArg(args[1]))
	if sig == 0 {
		return NewRaw(0)
	}
	return NewRaw(math.Ceil(v/sig) * sig)
}

func fnFLOOR(ctx *FunctionContext, args []Value) Value {
	v := numArg(args[0])
	sig := numArg(args[1])
	if sig == 0 {
		return NewCellError(ErrorDivByZero, "")
	}
	if v > 0 && sig < 0 {
		return NewCellError(ErrorNum, "FLOOR significance sign mismatch")
	}
	return NewRaw(math.Floor(v/sig) * sig)
}

func fnFLOORMATH(ctx *FunctionContext, args []Value) Value {
	v := numArg(args[0])
	sig := math.Abs(numArg(args[1]))
	mode := numArg(args[2])
	if sig == 0 {
		return NewRaw(0)
	}
	if v >= 0 || mode == 0 {
		return NewRaw(math.Floor(v/sig) * sig)
	}
	return NewRaw(math.Ceil(v/sig) * sig)
}

func fnFLOORPRECISE(ctx *FunctionContext, args []Value) Value {
	v := numArg(args[0])
	sig := math.Abs(numArg(args[1]))
	if sig == 0 {
		return NewRaw(0)
	}
	return NewRaw(math.Floor(v/sig) * sig)
}

func fnABS(ctx *FunctionContext, args []Value) Value {
	n := args[0].(*RichNumber)
	return n.FromValue(math.Abs(n.Val))
}

func fnPI(ctx *FunctionContext, args []Value) Value {
	return NewRaw(math.Pi)
}

func fnSQRT(ctx *FunctionContext, args []Value) Value {
	v := numArg(args[0])
	if v < 0 {
		return NewCellError(ErrorNum, "SQRT requires a non-negative argument")
	}
	return NewRaw(math.Sqrt(v))
}

func fnSQRTPI(ctx *FunctionContext, args []Value) Value {
	v := numArg(args[0])
	if v < 0 {
		return NewCellError(ErrorNum, "SQRTPI requires a non-negative argument")
	}
	return NewRaw(math.Sqrt(v * math.Pi))
}

func fnPOWER(ctx *FunctionContext, args []Value) Value {
	v := math.Pow(numArg(args[0]), numArg(args[1]))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NewCellError(ErrorNum, "")
	}
	return NewRaw(v)
}

func fnRADIANS(ctx *FunctionContext, args []Value) Value {
	return NewRaw(numArg(args[0]) * math.Pi / 180)
}

func fnDEGREES(ctx *FunctionContext, args []Value) Value {
	return NewRaw(numArg(args[0]) * 180 / math.Pi)
}

// maxBitOperand bounds bitwise arguments to 48 bits.
const maxBitOperand = float64(1<<48) - 1

func bitwiseFn(op func(a, b uint64) uint64) FunctionMethod {
	return func(ctx *FunctionContext, args []Value) Value {
		a := numArg(args[0])
		b := numArg(args[1])
		if a < 0 || b < 0 || a != math.Trunc(a) || b != math.Trunc(b) || a > maxBitOperand || b > maxBitOperand {
			return NewCellError(ErrorNum, "bitwise arguments must be non-negative integers below 2^48")
		}
		return NewRaw(float64(op(uint64(a), uint64(b))))
	}
}

func fnDELTA(ctx *FunctionContext, args []Value) Value {
	if numArg(args[0]) == numArg(args[1]) {
		return NewRaw(1)
	}
	return NewRaw(0)
}
