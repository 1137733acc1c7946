package probsheet

import "testing"

func TestExpressionNameValidity(t *testing.T) {
	valid := []string{"total", "_hidden", "tax.rate", "Σ_sum", "row_2", "r2d2x"}
	for _, name := range valid {
		if !IsValidExpressionName(name) {
			t.Errorf("%q should be a valid name", name)
		}
	}

	invalid := []string{
		"",
		"2fast",     // must start with letter or underscore
		"A1",        // collides with A1 notation
		"XFD1048576",// still A1-shaped
		"R1C1",      // collides with R1C1 notation
		"rc",        // R1C1-shaped with empty digits
		"has space",
		"has-dash",
	}
	for _, name := range invalid {
		if IsValidExpressionName(name) {
			t.Errorf("%q should be rejected", name)
		}
	}
}

func TestNamedExpressionScoping(t *testing.T) {
	s := NewNamedExpressionStore()

	if _, err := s.define("rate", SheetForWorkbookExpressions); err != nil {
		t.Fatalf("workbook define: %v", err)
	}
	if _, err := s.define("rate", 0); err != nil {
		t.Fatalf("sheet-scope define must not collide with workbook scope: %v", err)
	}

	workbook, _ := s.lookup("rate", 99)
	sheetScoped, _ := s.lookup("rate", 0)
	if workbook == sheetScoped {
		t.Error("sheet scope must shadow workbook scope")
	}

	// lookup is case-insensitive through normalization
	if _, ok := s.lookup("RATE", 99); !ok {
		t.Error("lookup must normalize case")
	}
}

func TestNamedExpressionRowsAreConsecutive(t *testing.T) {
	s := NewNamedExpressionStore()
	a, _ := s.define("first", SheetForWorkbookExpressions)
	b, _ := s.define("second", SheetForWorkbookExpressions)
	if a.Row != 0 || b.Row != 1 {
		t.Errorf("rows = %d, %d, want 0, 1", a.Row, b.Row)
	}
	if s.addressOf(a).Sheet != SheetForWorkbookExpressions {
		t.Error("expressions must live on the reserved virtual sheet")
	}
}

func TestNamedExpressionPlaceholders(t *testing.T) {
	s := NewNamedExpressionStore()

	// referencing interns a placeholder
	e := s.intern("later", 0)
	if e.Added {
		t.Fatal("interned placeholder must not be Added")
	}

	// defining the same name claims the placeholder (same row)
	defined, err := s.define("later", SheetForWorkbookExpressions)
	if err != nil {
		t.Fatalf("define after intern: %v", err)
	}
	if defined.Row != e.Row {
		t.Error("defining a referenced name must reuse the placeholder row")
	}
	if !defined.Added {
		t.Error("defined entry must be Added")
	}

	if got := s.listPlaceholders(); len(got) != 0 {
		t.Errorf("placeholders = %v, want none after definition", got)
	}
}

func TestDuplicateDefinition(t *testing.T) {
	s := NewNamedExpressionStore()
	if _, err := s.define("x", SheetForWorkbookExpressions); err != nil {
		t.Fatal(err)
	}
	if _, err := s.define("X", SheetForWorkbookExpressions); err == nil {
		t.Error("names must be unique modulo case")
	}
}
