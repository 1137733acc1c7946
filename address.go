package probsheet

import (
	"fmt"
	"strconv"
	"strings"
)

// ReferenceKind says whether one part of a cell reference is anchored
// ($A$1 style) or relative to the formula's own address.
type ReferenceKind uint8

const (
	Relative ReferenceKind = iota
	Absolute
)

// SheetForWorkbookExpressions is the reserved virtual sheet id that
// workbook-scoped named expressions live on. Consecutive rows of this
// sheet are handed out as names are added.
const SheetForWorkbookExpressions = -1

// SimpleCellAddress is a fully resolved cell address.
type SimpleCellAddress struct {
	Sheet int
	Col   int
	Row   int
}

func (a SimpleCellAddress) String() string {
	return fmt.Sprintf("%d!%s%d", a.Sheet, columnLabel(a.Col), a.Row+1)
}

// CellAddress is a reference as written in a formula. Col and Row hold
// absolute indexes when the matching kind is Absolute, and offsets from
// the owning formula's address when Relative. Sheet is an absolute
// sheet id; SheetKind Relative means the reference inherits the
// formula's sheet.
type CellAddress struct {
	Sheet     int
	Col       int
	Row       int
	ColKind   ReferenceKind
	RowKind   ReferenceKind
	SheetKind ReferenceKind
}

// newRelativeAddress builds a same-sheet reference from offsets.
func newRelativeAddress(colOffset, rowOffset int) CellAddress {
	return CellAddress{Col: colOffset, Row: rowOffset}
}

// newAbsoluteAddress builds a fully anchored reference.
func newAbsoluteAddress(sheet, col, row int) CellAddress {
	return CellAddress{
		Sheet: sheet, Col: col, Row: row,
		ColKind: Absolute, RowKind: Absolute, SheetKind: Absolute,
	}
}

// toSimple resolves the reference against the owning formula's address.
// ok is false when a relative part resolves outside the sheet.
func (a CellAddress) toSimple(base SimpleCellAddress) (SimpleCellAddress, bool) {
	out := SimpleCellAddress{Sheet: a.Sheet, Col: a.Col, Row: a.Row}
	if a.SheetKind == Relative {
		out.Sheet = base.Sheet
	}
	if a.ColKind == Relative {
		out.Col = base.Col + a.Col
	}
	if a.RowKind == Relative {
		out.Row = base.Row + a.Row
	}
	if out.Col < 0 || out.Row < 0 {
		return SimpleCellAddress{}, false
	}
	return out, true
}

// fromSimple rebuilds a reference with the given kinds so that it
// resolves to target when evaluated at base.
func fromSimple(target SimpleCellAddress, base SimpleCellAddress, colKind, rowKind, sheetKind ReferenceKind) CellAddress {
	a := CellAddress{Sheet: target.Sheet, Col: target.Col, Row: target.Row,
		ColKind: colKind, RowKind: rowKind, SheetKind: sheetKind}
	if sheetKind == Relative {
		a.Sheet = 0
	}
	if colKind == Relative {
		a.Col = target.Col - base.Col
	}
	if rowKind == Relative {
		a.Row = target.Row - base.Row
	}
	return a
}

// shifted returns a copy with relative parts moved by the given deltas.
// Absolute parts are shifted too: structural edits move anchored
// references along with the cells they point at.
func (a CellAddress) shifted(colDelta, rowDelta int) CellAddress {
	a.Col += colDelta
	a.Row += rowDelta
	return a
}

// Hash renders the reference-independent form used in formula hashes.
// Relative parts render as offsets, absolute parts as anchored indexes,
// so two formulas at different addresses that reference the same
// relative shape hash identically. withAbsoluteSheet forces the sheet
// part in, for references that cross sheets.
func (a CellAddress) Hash(withAbsoluteSheet bool) string {
	var sb strings.Builder
	sb.WriteByte('#')
	if withAbsoluteSheet || a.SheetKind == Absolute {
		sb.WriteString(strconv.Itoa(a.Sheet))
	}
	sb.WriteByte('#')
	if a.ColKind == Absolute {
		sb.WriteByte('A')
	} else {
		sb.WriteByte('C')
	}
	sb.WriteString(strconv.Itoa(a.Col))
	if a.RowKind == Absolute {
		sb.WriteByte('A')
	} else {
		sb.WriteByte('R')
	}
	sb.WriteString(strconv.Itoa(a.Row))
	return sb.String()
}

// unresolvableReferenceHash marks references that no longer point at a
// live cell after a structural edit.
const unresolvableReferenceHash = "!REF"

// columnLabel converts a 0-based column index to spreadsheet letters
// (0 -> A, 25 -> Z, 26 -> AA).
func columnLabel(col int) string {
	if col < 0 {
		return "?"
	}
	label := ""
	for {
		label = string(rune('A'+col%26)) + label
		col = col/26 - 1
		if col < 0 {
			break
		}
	}
	return label
}

// columnIndex converts spreadsheet letters to a 0-based column index
// (A=0, B=1, ..., Z=25, AA=26, AB=27, ...)
func columnIndex(letters string) (int, bool) {
	if letters == "" {
		return 0, false
	}
	col := 0
	for i, ch := range strings.ToUpper(letters) {
		if ch < 'A' || ch > 'Z' {
			return 0, false
		}
		col = col*26 + int(ch-'A')
		if i < len(letters)-1 {
			col++ // account for positional notation
		}
	}
	return col, true
}

// parseA1Part splits an A1-style reference body like "$B$12" into its
// column/row indexes and kinds. The sheet prefix must already be
// stripped.
func parseA1Part(text string) (col, row int, colKind, rowKind ReferenceKind, ok bool) {
	colKind, rowKind = Relative, Relative
	i := 0
	if i < len(text) && text[i] == '$' {
		colKind = Absolute
		i++
	}
	letterStart := i
	for i < len(text) && isLetterByte(text[i]) {
		i++
	}
	if i == letterStart {
		return 0, 0, 0, 0, false
	}
	col, okCol := columnIndex(text[letterStart:i])
	if !okCol {
		return 0, 0, 0, 0, false
	}
	if i < len(text) && text[i] == '$' {
		rowKind = Absolute
		i++
	}
	digitStart := i
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if digitStart == i || i != len(text) {
		return 0, 0, 0, 0, false
	}
	rowNum, err := strconv.Atoi(text[digitStart:i])
	if err != nil || rowNum < 1 {
		return 0, 0, 0, 0, false
	}
	return col, rowNum - 1, colKind, rowKind, true
}

// parseR1C1Part parses an R1C1-style body like "R3C7". Missing digits
// mean "this row/column", i.e. a zero relative offset.
func parseR1C1Part(text string) (a CellAddress, ok bool) {
	if len(text) < 2 || (text[0] != 'r' && text[0] != 'R') {
		return CellAddress{}, false
	}
	i := 1
	rowStart := i
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if i >= len(text) || (text[i] != 'c' && text[i] != 'C') {
		return CellAddress{}, false
	}
	rowDigits := text[rowStart:i]
	i++
	colStart := i
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if i != len(text) {
		return CellAddress{}, false
	}
	colDigits := text[colStart:]

	a = newRelativeAddress(0, 0)
	if rowDigits != "" {
		n, _ := strconv.Atoi(rowDigits)
		if n < 1 {
			return CellAddress{}, false
		}
		a.Row = n - 1
		a.RowKind = Absolute
	}
	if colDigits != "" {
		n, _ := strconv.Atoi(colDigits)
		if n < 1 {
			return CellAddress{}, false
		}
		a.Col = n - 1
		a.ColKind = Absolute
	}
	return a, true
}

func isLetterByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
