package probsheet

import "math"

// registerRandomFunctions installs the volatile random builtins. They
// draw from the engine's seeded PRNG so runs are reproducible under a
// fixed seed.
func registerRandomFunctions(r *FunctionRegistry) {
	r.Register(
		&FunctionDefinition{
			Name:       "RAND",
			Method:     fnRAND,
			IsVolatile: true,
		},
		&FunctionDefinition{
			Name:   "RANDBETWEEN",
			Method: fnRANDBETWEEN,
			Parameters: []Parameter{
				{ArgType: ArgNumber},
				{ArgType: ArgNumber},
			},
			IsVolatile: true,
		},
	)
}

func fnRAND(ctx *FunctionContext, args []Value) Value {
	return NewRaw(ctx.ev.rng.Float64())
}

func fnRANDBETWEEN(ctx *FunctionContext, args []Value) Value {
	lower := numArg(args[0])
	upper := numArg(args[1])
	if upper < lower {
		return NewCellError(ErrorNum, "RANDBETWEEN bounds reversed")
	}
	lo := math.Ceil(lower)
	span := math.Floor(upper) + 1 - lo
	if span <= 0 {
		// the integer range is empty (e.g. between 0.1 and 0.9); widen
		// the upper bound by one
		span = math.Floor(upper+1) + 1 - lo
	}
	return NewRaw(lo + math.Floor(ctx.ev.rng.Float64()*span))
}
