package probsheet

import "math"

// registerTrigFunctions installs the trigonometric and hyperbolic
// builtins. they all take one number except ATAN2.
func registerTrigFunctions(r *FunctionRegistry) {
	one := func(name string, method FunctionMethod) *FunctionDefinition {
		return &FunctionDefinition{
			Name:       name,
			Method:     method,
			Parameters: []Parameter{{ArgType: ArgNumber}},
		}
	}

	r.Register(
		one("SIN", func(ctx *FunctionContext, args []Value) Value {
			return NewRaw(math.Sin(numArg(args[0])))
		}),
		one("COS", func(ctx *FunctionContext, args []Value) Value {
			return NewRaw(math.Cos(numArg(args[0])))
		}),
		one("TAN", func(ctx *FunctionContext, args []Value) Value {
			return NewRaw(math.Tan(numArg(args[0])))
		}),
		one("ASIN", func(ctx *FunctionContext, args []Value) Value {
			v := numArg(args[0])
			if v < -1 || v > 1 {
				return NewCellError(ErrorNum, "ASIN argument out of domain")
			}
			return NewRaw(math.Asin(v))
		}),
		one("ACOS", func(ctx *FunctionContext, args []Value) Value {
			v := numArg(args[0])
			if v < -1 || v > 1 {
				return NewCellError(ErrorNum, "ACOS argument out of domain")
			}
			return NewRaw(math.Acos(v))
		}),
		one("ATAN", func(ctx *FunctionContext, args []Value) Value {
			return NewRaw(math.Atan(numArg(args[0])))
		}),
		&FunctionDefinition{
			Name: "ATAN2",
			Method: func(ctx *FunctionContext, args []Value) Value {
				x := numArg(args[0])
				y := numArg(args[1])
				if x == 0 && y == 0 {
					return NewCellError(ErrorDivByZero, "ATAN2 is undefined at the origin")
				}
				return NewRaw(math.Atan2(y, x))
			},
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber},
			},
		},
		one("COT", func(ctx *FunctionContext, args []Value) Value {
			t := math.Tan(numArg(args[0]))
			if t == 0 {
				return NewCellError(ErrorDivByZero, "")
			}
			return NewRaw(1 / t)
		}),
		one("SEC", func(ctx *FunctionContext, args []Value) Value {
			c := math.Cos(numArg(args[0]))
			if c == 0 {
				return NewCellError(ErrorDivByZero, "")
			}
			return NewRaw(1 / c)
		}),
		one("CSC", func(ctx *FunctionContext, args []Value) Value {
			s := math.Sin(numArg(args[0]))
			if s == 0 {
				return NewCellError(ErrorDivByZero, "")
			}
			return NewRaw(1 / s)
		}),
		one("ACOT", func(ctx *FunctionContext, args []Value) Value {
			v := numArg(args[0])
			if v == 0 {
				return NewRaw(math.Pi / 2)
			}
			out := math.Atan(1 / v)
			if v < 0 {
				out += math.Pi
			}
			return NewRaw(out)
		}),
		one("SINH", func(ctx *FunctionContext, args []Value) Value {
			return NewRaw(math.Sinh(numArg(args[0])))
		}),
		one("COSH", func(ctx *FunctionContext, args []Value) Value {
			return NewRaw(math.Cosh(numArg(args[0])))
		}),
		one("TANH", func(ctx *FunctionContext, args []Value) Value {
			return NewRaw(math.Tanh(numArg(args[0])))
		}),
		one("COTH", func(ctx *FunctionContext, args []Value) Value {
			t := math.Tanh(numArg(args[0]))
			if t == 0 {
				return NewCellError(ErrorDivByZero, "")
			}
			return NewRaw(1 / t)
		}),
		one("SECH", func(ctx *FunctionContext, args []Value) Value {
			return NewRaw(1 / math.Cosh(numArg(args[0])))
		}),
		one("CSCH", func(ctx *FunctionContext, args []Value) Value {
			s := math.Sinh(numArg(args[0]))
			if s == 0 {
				return NewCellError(ErrorDivByZero, "")
			}
			return NewRaw(1 / s)
		}),
		one("ASINH", func(ctx *FunctionContext, args []Value) Value {
			return NewRaw(math.Asinh(numArg(args[0])))
		}),
		one("ACOSH", func(ctx *FunctionContext, args []Value) Value {
			v := numArg(args[0])
			if v < 1 {
				return NewCellError(ErrorNum, "ACOSH argument out of domain")
			}
			return NewRaw(math.Acosh(v))
		}),
		one("ATANH", func(ctx *FunctionContext, args []Value) Value {
			v := numArg(args[0])
			if v <= -1 || v >= 1 {
				return NewCellError(ErrorNum, "ATANH argument out of domain")
			}
			return NewRaw(math.Atanh(v))
		}),
		one("ACOTH", func(ctx *FunctionContext, args []Value) Value {
			v := numArg(args[0])
			if v >= -1 && v <= 1 {
				return NewCellError(ErrorNum, "ACOTH argument out of domain")
			}
			return NewRaw(math.Atanh(1 / v))
		}),
	)
}
