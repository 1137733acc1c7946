package probsheet

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Value represents the content of a computed cell.
// dynamic types:
//   - nil: empty cell (distinct from zero, empty string, false)
//   - *RichNumber: numeric values with detailed type
//   - string: text values
//   - bool: boolean values (TRUE/FALSE)
//   - *CellError: error values (#DIV/0!, #VALUE!, etc.)
//   - *SimpleRangeValue: a 2-D rectangle of values
type Value any

// CellType represents numeric constants for cell value types
// (external API)
type CellType uint8

const (
	CellTypeEmpty   CellType = 0
	CellTypeNumber  CellType = 1
	CellTypeString  CellType = 2
	CellTypeBoolean CellType = 3
	CellTypeError   CellType = 4
	CellTypeRange   CellType = 5
)

// TypeOf returns the coarse type tag of a value.
func TypeOf(v Value) CellType {
	switch v.(type) {
	case nil:
		return CellTypeEmpty
	case *RichNumber:
		return CellTypeNumber
	case string:
		return CellTypeString
	case bool:
		return CellTypeBoolean
	case *CellError:
		return CellTypeError
	case *SimpleRangeValue:
		return CellTypeRange
	default:
		return CellTypeError
	}
}

// DetailedTypeOf exposes the rich-number kind for numbers and the
// coarse tag name otherwise.
func DetailedTypeOf(v Value) string {
	switch t := v.(type) {
	case *RichNumber:
		return t.Kind.String()
	case nil:
		return "EMPTY"
	case string:
		return "STRING"
	case bool:
		return "BOOLEAN"
	case *CellError:
		return "ERROR"
	case *SimpleRangeValue:
		return "RANGE"
	default:
		return "ERROR"
	}
}

// asError returns the error if value is a *CellError, nil otherwise
func asError(v Value) *CellError {
	if err, ok := v.(*CellError); ok {
		return err
	}
	return nil
}

// complexPattern accepts strings of the form a+bi with optional real or
// imaginary part, e.g. "3+4i", "-2.5i", "7".
var complexPattern = regexp.MustCompile(`^\s*([+-]?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?)?\s*(?:([+-]\s*\d*(?:\.\d+)?(?:[eE][+-]?\d+)?)\s*[ij])?\s*$`)

// coerceComplex parses an a+bi string into [re, im].
func coerceComplex(text string) ([2]float64, bool) {
	m := complexPattern.FindStringSubmatch(text)
	if m == nil || (m[1] == "" && m[2] == "") {
		return [2]float64{}, false
	}
	var re, im float64
	if m[1] != "" {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return [2]float64{}, false
		}
		re = v
	}
	if m[2] != "" {
		part := strings.ReplaceAll(m[2], " ", "")
		if part == "+" || part == "-" {
			part += "1"
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return [2]float64{}, false
		}
		im = v
	}
	return [2]float64{re, im}, true
}

// coerceToBool converts a scalar to a boolean. ok is false for values
// with no boolean reading.
func coerceToBool(v Value) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case nil:
		return false, true
	case *RichNumber:
		return t.Val != 0, true
	case string:
		switch strings.ToUpper(t) {
		case "TRUE":
			return true, true
		case "FALSE", "":
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// stringComparer orders and matches strings according to the engine's
// case/accent sensitivity configuration. The x/text collator is built
// once per engine.
type stringComparer struct {
	collator *collate.Collator
}

func newStringComparer(cfg *Config) *stringComparer {
	if cfg.CaseSensitive && cfg.AccentSensitive {
		return &stringComparer{}
	}
	var opts []collate.Option
	if !cfg.CaseSensitive {
		opts = append(opts, collate.IgnoreCase)
	}
	if !cfg.AccentSensitive {
		opts = append(opts, collate.IgnoreDiacritics)
	}
	return &stringComparer{collator: collate.New(language.Und, opts...)}
}

// compare orders two strings; equal strings under the configured
// sensitivity compare as 0.
func (sc *stringComparer) compare(l, r string) int {
	if sc.collator == nil {
		return strings.Compare(l, r)
	}
	return sc.collator.CompareString(l, r)
}

func (sc *stringComparer) equal(l, r string) bool {
	return sc.compare(l, r) == 0
}

// compareValues compares two values of possibly different types.
// returns -1 if left < right, 0 if equal, 1 if left > right, -2 if not
// comparable. Mixed-type ordering follows spreadsheet convention:
// numbers < strings < booleans; empty coerces to the other side's zero
// value.
func (a *Arith) compareValues(left, right Value, sc *stringComparer) int {
	// empty coerces against the other operand
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		left = zeroOfSameType(right)
	}
	if right == nil {
		right = zeroOfSameType(left)
	}

	lNum, lIsNum := left.(*RichNumber)
	rNum, rIsNum := right.(*RichNumber)
	if lIsNum && rIsNum {
		return a.floatCmp(lNum.Val, rNum.Val)
	}

	lStr, lIsStr := left.(string)
	rStr, rIsStr := right.(string)
	if lIsStr && rIsStr {
		return sc.compare(lStr, rStr)
	}

	lBool, lIsBool := left.(bool)
	rBool, rIsBool := right.(bool)
	if lIsBool && rIsBool {
		switch {
		case lBool == rBool:
			return 0
		case !lBool:
			return -1
		default:
			return 1
		}
	}

	// mixed kinds: number < string < boolean
	lRank, lOK := kindRank(left)
	rRank, rOK := kindRank(right)
	if !lOK || !rOK {
		return -2
	}
	switch {
	case lRank < rRank:
		return -1
	case lRank > rRank:
		return 1
	}
	return -2
}

func kindRank(v Value) (int, bool) {
	switch v.(type) {
	case *RichNumber:
		return 0, true
	case string:
		return 1, true
	case bool:
		return 2, true
	}
	return 0, false
}

func zeroOfSameType(v Value) Value {
	switch v.(type) {
	case string:
		return ""
	case bool:
		return false
	default:
		return NewRaw(0)
	}
}

// strictEqual is type-strict equality: differing types are never equal.
func (a *Arith) strictEqual(left, right Value, sc *stringComparer) bool {
	switch l := left.(type) {
	case *RichNumber:
		r, ok := right.(*RichNumber)
		return ok && a.floatCmp(l.Val, r.Val) == 0
	case string:
		r, ok := right.(string)
		return ok && sc.equal(l, r)
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	case nil:
		return right == nil
	}
	return false
}

// cellValueSource resolves a resolved address to its scalar value.
// the dependency graph implements it; tests can stub it.
type cellValueSource interface {
	scalarValueAt(addr SimpleCellAddress) Value
}

// SimpleRangeValue is a 2-D rectangle of values, either backed by a
// graph range (fetched lazily) or ad-hoc in memory.
type SimpleRangeValue struct {
	data   [][]Value
	rng    *AbsoluteCellRange
	source cellValueSource
}

// rangeValueFromData wraps an in-memory rectangle. rows must be equal
// length.
func rangeValueFromData(data [][]Value) *SimpleRangeValue {
	return &SimpleRangeValue{data: data}
}

// rangeValueFromRange wraps a finite graph-backed range.
func rangeValueFromRange(rng AbsoluteCellRange, source cellValueSource) *SimpleRangeValue {
	return &SimpleRangeValue{rng: &rng, source: source}
}

func (rv *SimpleRangeValue) Width() int {
	if rv.rng != nil {
		return rv.rng.Width()
	}
	if len(rv.data) == 0 {
		return 0
	}
	return len(rv.data[0])
}

func (rv *SimpleRangeValue) Height() int {
	if rv.rng != nil {
		return rv.rng.Height()
	}
	return len(rv.data)
}

// ValueAt fetches the value at 0-based (row, col) within the
// rectangle.
func (rv *SimpleRangeValue) ValueAt(row, col int) Value {
	if rv.rng != nil {
		return rv.source.scalarValueAt(SimpleCellAddress{
			Sheet: rv.rng.Start.Sheet,
			Col:   rv.rng.Start.Col + col,
			Row:   rv.rng.Start.Row + row,
		})
	}
	if row < 0 || row >= len(rv.data) || col < 0 || col >= len(rv.data[row]) {
		return nil
	}
	return rv.data[row][col]
}

// Values iterates all cells in row-major order.
func (rv *SimpleRangeValue) Values(yield func(Value) bool) {
	h, w := rv.Height(), rv.Width()
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !yield(rv.ValueAt(row, col)) {
				return
			}
		}
	}
}

// Range returns the backing graph range, if any.
func (rv *SimpleRangeValue) Range() (AbsoluteCellRange, bool) {
	if rv.rng == nil {
		return AbsoluteCellRange{}, false
	}
	return *rv.rng, true
}
