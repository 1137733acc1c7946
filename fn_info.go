package probsheet

import (
	"math"
	"strings"
	"time"
)

// lowerForCompare folds a string for case-insensitive identity.
func lowerForCompare(s string) string {
	return strings.ToLower(s)
}

// registerInfoFunctions installs metadata and date/time builtins.
func registerInfoFunctions(r *FunctionRegistry) {
	r.Register(
		&FunctionDefinition{
			Name:                              "FORMULATEXT",
			Method:                            fnFORMULATEXT,
			DoesNotNeedArgumentsToBeComputed:  true,
			IsDependentOnSheetStructureChange: true,
			VectorizationForbidden:            true,
		},
		&FunctionDefinition{
			Name:       "NOW",
			Method:     fnNOW,
			IsVolatile: true,
		},
		&FunctionDefinition{
			Name:       "TODAY",
			Method:     fnTODAY,
			IsVolatile: true,
		},
		&FunctionDefinition{
			Name:   "DATE",
			Method: fnDATE,
			Parameters: []Parameter{
				{ArgType: ArgInteger},
				{ArgType: ArgInteger},
				{ArgType: ArgInteger},
			},
		},
	)
}

// fnFORMULATEXT reads the formula text of the referenced cell. It
// operates on the uncomputed argument so a reference to an error cell
// still reports its formula.
func fnFORMULATEXT(ctx *FunctionContext, args []Value) Value {
	if len(ctx.rawArgs) != 1 {
		return NewCellError(ErrorNA, "FORMULATEXT requires exactly 1 argument")
	}
	var target CellAddress
	switch n := ctx.rawArgs[0].(type) {
	case *CellReferenceNode:
		target = n.Address
	case *CellRangeNode:
		target = n.Start
	default:
		return NewCellError(ErrorNA, "FORMULATEXT requires a reference")
	}
	addr, ok := target.toSimple(ctx.formulaAddress)
	if !ok || target.Sheet == unresolvableSheet {
		return NewCellError(ErrorRef, "")
	}
	if text, found := ctx.ev.formulaTextAt(addr); found {
		return text
	}
	return NewCellError(ErrorNA, "referenced cell has no formula")
}

func fnNOW(ctx *FunctionContext, args []Value) Value {
	return NewDateTime(serialFromTime(ctx.ev.clock.Now()), "")
}

func fnTODAY(ctx *FunctionContext, args []Value) Value {
	now := ctx.ev.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return NewDate(math.Floor(serialFromTime(midnight)), "")
}

func fnDATE(ctx *FunctionContext, args []Value) Value {
	year, _ := intArg(args[0])
	month, _ := intArg(args[1])
	day, _ := intArg(args[2])
	if year < 0 || year > 9999 {
		return NewCellError(ErrorNum, "DATE year out of range")
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	serial := math.Floor(serialFromTime(t))
	if serial < 0 {
		return NewCellError(ErrorNum, "DATE before the epoch")
	}
	return NewDate(serial, "")
}
