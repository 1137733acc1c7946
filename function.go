package probsheet

import "strings"

// ArgType declares the coercion applied to one function parameter.
type ArgType uint8

const (
	ArgNumber ArgType = iota
	ArgString
	ArgBool
	ArgInteger
	ArgScalar
	ArgNoError
	ArgRange
	ArgAny
)

// Parameter describes one declared function parameter.
type Parameter struct {
	ArgType      ArgType
	DefaultValue Value
	Optional     bool

	// numeric bounds, enforced when HasBounds is set
	Min, Max  float64
	HasBounds bool

	// PassSubtype keeps the rich-number subtype instead of demoting to
	// a plain number.
	PassSubtype bool

	// ForbidVectorization keeps a parameter scalar even when the
	// function as a whole vectorizes.
	ForbidVectorization bool
}

// FunctionContext is what a builtin sees when invoked.
type FunctionContext struct {
	ev             *Evaluator
	formulaAddress SimpleCellAddress

	// rawArgs carries the uncomputed argument ASTs for functions
	// declaring DoesNotNeedArgumentsToBeComputed.
	rawArgs []Ast
}

// FunctionMethod is the body of one builtin. It returns a Value;
// errors are returned as *CellError values.
type FunctionMethod func(ctx *FunctionContext, args []Value) Value

// FunctionDefinition declares one builtin: name, body, parameters, and
// evaluation flags.
type FunctionDefinition struct {
	Name       string
	Method     FunctionMethod
	Parameters []Parameter

	// RepeatLastArgs allows the trailing n parameters to repeat for
	// variadic functions. 0 means a fixed signature.
	RepeatLastArgs int

	IsVolatile                        bool
	IsDependentOnSheetStructureChange bool
	ExpandRanges                      bool
	DoesNotNeedArgumentsToBeComputed  bool
	VectorizationForbidden            bool
}

// FunctionRegistry maps canonical function names to their plugins.
type FunctionRegistry struct {
	byName map[string]*FunctionDefinition
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{byName: make(map[string]*FunctionDefinition)}
}

// Register installs definitions, last registration winning.
func (r *FunctionRegistry) Register(defs ...*FunctionDefinition) {
	for _, def := range defs {
		r.byName[strings.ToUpper(def.Name)] = def
	}
}

// Lookup finds a definition by canonical name.
func (r *FunctionRegistry) Lookup(name string) (*FunctionDefinition, bool) {
	def, ok := r.byName[strings.ToUpper(name)]
	return def, ok
}

// VolatileNames returns the set of volatile function names, consumed
// by the parse cache for flagging.
func (r *FunctionRegistry) VolatileNames() map[string]bool {
	out := make(map[string]bool)
	for name, def := range r.byName {
		if def.IsVolatile {
			out[name] = true
		}
	}
	return out
}

// StructuralNames returns the functions depending on sheet geometry.
func (r *FunctionRegistry) StructuralNames() map[string]bool {
	out := make(map[string]bool)
	for name, def := range r.byName {
		if def.IsDependentOnSheetStructureChange {
			out[name] = true
		}
	}
	return out
}

// defaultRegistry assembles every builtin plugin group.
func defaultRegistry() *FunctionRegistry {
	r := NewFunctionRegistry()
	registerLogicalFunctions(r)
	registerTextFunctions(r)
	registerMathFunctions(r)
	registerTrigFunctions(r)
	registerStatFunctions(r)
	registerInfoFunctions(r)
	registerRandomFunctions(r)
	return r
}

// parameterFor maps an argument index to its declared parameter,
// honouring RepeatLastArgs.
func (def *FunctionDefinition) parameterFor(i int) (Parameter, bool) {
	if i < len(def.Parameters) {
		return def.Parameters[i], true
	}
	if def.RepeatLastArgs > 0 && len(def.Parameters) > 0 {
		repeatStart := len(def.Parameters) - def.RepeatLastArgs
		offset := (i - repeatStart) % def.RepeatLastArgs
		return def.Parameters[repeatStart+offset], true
	}
	return Parameter{}, false
}

// minArgs counts the required leading parameters.
func (def *FunctionDefinition) minArgs() int {
	n := 0
	for _, p := range def.Parameters {
		if p.Optional {
			break
		}
		n++
	}
	return n
}
