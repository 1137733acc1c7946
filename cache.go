package probsheet

import (
	"strconv"
	"strings"
)

// astHasher renders the canonical, reference-independent textual form
// of an AST. The rendering honours the configured decimal and argument
// separators and canonicalises function names, so two formulas that
// differ only in their own address (or in localisation) hash the same.
type astHasher struct {
	decimalSeparator rune
	argSeparator     rune
	translation      *TranslationPackage
}

func newASTHasher(cfg *Config) *astHasher {
	return &astHasher{
		decimalSeparator: cfg.DecimalSeparator,
		argSeparator:     cfg.FunctionArgSeparator,
		translation:      cfg.TranslationPackage,
	}
}

// hash deterministically pretty-prints the AST.
func (h *astHasher) hash(ast Ast) string {
	var sb strings.Builder
	h.write(&sb, ast)
	return sb.String()
}

func (h *astHasher) write(sb *strings.Builder, ast Ast) {
	switch n := ast.(type) {
	case *EmptyNode:
	case *NumberNode:
		sb.WriteString(h.formatNumber(n.Value))
	case *StringNode:
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(n.Value, `"`, `""`))
		sb.WriteByte('"')
	case *BoolNode:
		if n.Value {
			sb.WriteString("TRUE")
		} else {
			sb.WriteString("FALSE")
		}
	case *ErrorNode:
		sb.WriteString(errorCodeMapper[n.Kind])
	case *CellReferenceNode:
		sb.WriteString(h.refHash(n.Address))
	case *CellRangeNode:
		h.writeRangeEnds(sb, n.Start, n.End)
	case *ColumnRangeNode:
		sb.WriteString("COL")
		h.writeRangeEnds(sb, n.Start, n.End)
	case *RowRangeNode:
		sb.WriteString("ROW")
		h.writeRangeEnds(sb, n.Start, n.End)
	case *NamedExpressionNode:
		sb.WriteString(normalizeExpressionName(n.Name))
	case *FunctionCallNode:
		sb.WriteString(n.Name)
		sb.WriteByte('(')
		for i, arg := range n.Args {
			if i > 0 {
				sb.WriteRune(h.argSeparator)
			}
			h.write(sb, arg)
		}
		sb.WriteByte(')')
	case *ArrayNode:
		sb.WriteByte('{')
		for i, row := range n.Rows {
			if i > 0 {
				sb.WriteByte(';')
			}
			for j, item := range row {
				if j > 0 {
					sb.WriteRune(h.argSeparator)
				}
				h.write(sb, item)
			}
		}
		sb.WriteByte('}')
	case *ParenthesisNode:
		sb.WriteByte('(')
		h.write(sb, n.Inner)
		sb.WriteByte(')')
	case *UnaryOpNode:
		switch n.Op {
		case UnaryOpMinus:
			sb.WriteByte('-')
			h.write(sb, n.Operand)
		case UnaryOpPlus:
			sb.WriteByte('+')
			h.write(sb, n.Operand)
		case UnaryOpPercent:
			h.write(sb, n.Operand)
			sb.WriteByte('%')
		}
	case *BinaryOpNode:
		h.write(sb, n.Left)
		sb.WriteString(binaryOpSymbols[n.Op])
		h.write(sb, n.Right)
	case *DistributionNode:
		// strip insignificant whitespace so spellings of one literal
		// collapse to one hash
		sb.WriteString(strings.ReplaceAll(n.Text, " ", ""))
	}
}

// refHash renders one reference. References into sheets that no longer
// resolve render as !REF so they never collide with a live reference.
func (h *astHasher) refHash(a CellAddress) string {
	if a.Sheet == unresolvableSheet {
		return unresolvableReferenceHash
	}
	return a.Hash(a.SheetKind == Absolute)
}

// writeRangeEnds hashes both endpoints with sheet-absoluteness tags.
func (h *astHasher) writeRangeEnds(sb *strings.Builder, start, end CellAddress) {
	sb.WriteString(h.refHash(start))
	sb.WriteByte(':')
	sb.WriteString(h.refHash(end))
}

// formatNumber round-trips through the configured decimal separator.
func (h *astHasher) formatNumber(v float64) string {
	text := strconv.FormatFloat(v, 'g', -1, 64)
	if h.decimalSeparator != '.' {
		text = strings.ReplaceAll(text, ".", string(h.decimalSeparator))
	}
	return text
}

// CacheEntry is one parsed formula shared by every cell whose formula
// hashes identically.
type CacheEntry struct {
	AST Ast

	// RelativeDependencies is the dependency list in relative form,
	// absolutized per owning cell at install time.
	RelativeDependencies []Dep

	// HasVolatileFunction marks formulas that must recompute on every
	// cycle (RAND, NOW, ...).
	HasVolatileFunction bool

	// HasStructuralFunction marks formulas whose value depends on
	// sheet geometry (FORMULATEXT, ...).
	HasStructuralFunction bool
}

// Cache deduplicates parsed formulas by canonical hash. structurally
// identical formulas at different addresses share one AST and one
// dependency skeleton.
type Cache struct {
	entries map[string]*CacheEntry
	hasher  *astHasher

	// function flag sets injected by the registry
	volatileFunctions   map[string]bool
	structuralFunctions map[string]bool
}

func NewCache(cfg *Config, volatile, structural map[string]bool) *Cache {
	return &Cache{
		entries:             make(map[string]*CacheEntry),
		hasher:              newASTHasher(cfg),
		volatileFunctions:   volatile,
		structuralFunctions: structural,
	}
}

// Get retrieves an entry by hash.
func (c *Cache) Get(hash string) (*CacheEntry, bool) {
	entry, ok := c.entries[hash]
	return entry, ok
}

// Set computes the dependency skeleton and function flags for an AST
// and stores it under the hash, replacing any previous entry.
func (c *Cache) Set(hash string, ast Ast) *CacheEntry {
	entry := c.computeEntry(ast)
	c.entries[hash] = entry
	return entry
}

// MaybeSetAndGet inserts only if absent, returning the resident entry.
func (c *Cache) MaybeSetAndGet(hash string, ast Ast) *CacheEntry {
	if entry, ok := c.entries[hash]; ok {
		return entry
	}
	return c.Set(hash, ast)
}

// FetchCachedForAst re-hashes a (possibly transformed) AST and returns
// its resident entry, inserting when absent. Used when structural
// edits rewrite ASTs and they need re-keying.
func (c *Cache) FetchCachedForAst(ast Ast) (string, *CacheEntry) {
	hash := c.hasher.hash(ast)
	return hash, c.MaybeSetAndGet(hash, ast)
}

// HashOf renders the canonical hash of an AST.
func (c *Cache) HashOf(ast Ast) string {
	return c.hasher.hash(ast)
}

// Count returns the number of unique cached formulas.
func (c *Cache) Count() int {
	return len(c.entries)
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.entries = make(map[string]*CacheEntry)
}

// computeEntry walks the AST once for dependencies and function flags.
func (c *Cache) computeEntry(ast Ast) *CacheEntry {
	entry := &CacheEntry{
		AST:                  ast,
		RelativeDependencies: collectDependencies(ast),
	}
	var walk func(node Ast)
	walk = func(node Ast) {
		switch n := node.(type) {
		case *FunctionCallNode:
			if c.volatileFunctions[n.Name] {
				entry.HasVolatileFunction = true
			}
			if c.structuralFunctions[n.Name] {
				entry.HasStructuralFunction = true
			}
			for _, arg := range n.Args {
				walk(arg)
			}
		case *ArrayNode:
			for _, row := range n.Rows {
				for _, item := range row {
					walk(item)
				}
			}
		case *ParenthesisNode:
			walk(n.Inner)
		case *UnaryOpNode:
			walk(n.Operand)
		case *BinaryOpNode:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(ast)
	return entry
}
