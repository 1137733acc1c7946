package probsheet

import (
	"math"
	"testing"
)

func testLiteralParser() *literalParser {
	cfg := DefaultConfig()
	cfg.RandomSeed = 5
	cfg.Random = NewSeededRandomGenerator(5)
	return newLiteralParser(cfg, newSampler(cfg))
}

func TestDistributionLiterals(t *testing.T) {
	lp := testLiteralParser()

	t.Run("gaussian", func(t *testing.T) {
		v := lp.ParseCellLiteral("N(μ=3.5, σ²=0.25)")
		n, ok := v.(*RichNumber)
		if !ok || n.Kind != KindGaussian {
			t.Fatalf("got %v, want Gaussian", v)
		}
		if n.Mu != 3.5 || n.Sigma2 != 0.25 {
			t.Errorf("params = (%v, %v), want (3.5, 0.25)", n.Mu, n.Sigma2)
		}
	})

	t.Run("sampled", func(t *testing.T) {
		v := lp.ParseCellLiteral("S(μ=1, σ²=2)")
		n, ok := v.(*RichNumber)
		if !ok || n.Kind != KindSampled {
			t.Fatalf("got %v, want Sampled", v)
		}
		if len(n.samples) != lp.cfg.SampleSize {
			t.Errorf("sample count = %d, want %d", len(n.samples), lp.cfg.SampleSize)
		}
		if math.Abs(n.Val-1) > 0.1 {
			t.Errorf("mean = %v, want about 1", n.Val)
		}
	})

	t.Run("ci forms", func(t *testing.T) {
		for _, text := range []string{"CI[10, 20]", "[10, 20]", "10 to 20", "10 TO 20"} {
			v := lp.ParseCellLiteral(text)
			n, ok := v.(*RichNumber)
			if !ok || n.Kind != KindConfidenceInterval {
				t.Fatalf("%q: got %v, want ConfidenceInterval", text, v)
			}
			if n.Lo != 10 || n.Hi != 20 || n.Confidence != 90 {
				t.Errorf("%q: got [%v, %v]@%v", text, n.Lo, n.Hi, n.Confidence)
			}
			// ratio 2 auto-selects the log-normal reading
			if n.Interp != InterpLogNormal {
				t.Errorf("%q: interp = %v, want LogNormal", text, n.Interp)
			}
		}
	})

	t.Run("legacy confidence form", func(t *testing.T) {
		v := lp.ParseCellLiteral("P95[10, 20]")
		n, ok := v.(*RichNumber)
		if !ok || n.Kind != KindConfidenceInterval || n.Confidence != 95 {
			t.Fatalf("got %v, want CI at 95", v)
		}
	})

	t.Run("lognormal and uniform", func(t *testing.T) {
		v := lp.ParseCellLiteral("LN(0, 0.25)")
		if n, ok := v.(*RichNumber); !ok || n.Kind != KindLogNormal {
			t.Fatalf("LN: got %v", v)
		}
		v = lp.ParseCellLiteral("ln(0, 0.25)")
		if n, ok := v.(*RichNumber); !ok || n.Kind != KindLogNormal {
			t.Fatalf("ln lowercase: got %v", v)
		}
		v = lp.ParseCellLiteral("U(0, 1)")
		if n, ok := v.(*RichNumber); !ok || n.Kind != KindUniform {
			t.Fatalf("U: got %v", v)
		}
	})

	t.Run("one-argument gaussian stays a string", func(t *testing.T) {
		v := lp.ParseCellLiteral("N(1)")
		if s, ok := v.(string); !ok || s != "N(1)" {
			t.Errorf("N(1) = %#v, want the string back", v)
		}
	})
}

func TestScalarLiterals(t *testing.T) {
	lp := testLiteralParser()

	t.Run("numbers", func(t *testing.T) {
		v := lp.ParseCellLiteral("42.5")
		if n, ok := v.(*RichNumber); !ok || n.Val != 42.5 || n.Kind != KindRaw {
			t.Errorf("42.5 = %#v", v)
		}
		v = lp.ParseCellLiteral("1,234.5")
		if n, ok := v.(*RichNumber); !ok || n.Val != 1234.5 {
			t.Errorf("1,234.5 = %#v", v)
		}
	})

	t.Run("overflow is a num error", func(t *testing.T) {
		v := lp.ParseCellLiteral("1e999")
		if err, ok := v.(*CellError); !ok || err.Kind != ErrorNum {
			t.Errorf("1e999 = %#v, want Error(Num)", v)
		}
	})

	t.Run("percent", func(t *testing.T) {
		v := lp.ParseCellLiteral("5%")
		n, ok := v.(*RichNumber)
		if !ok || n.Kind != KindPercent {
			t.Fatalf("5%% = %#v", v)
		}
		if n.Val != 0.05 {
			t.Errorf("5%% stores %v, want 0.05", n.Val)
		}
	})

	t.Run("currency", func(t *testing.T) {
		v := lp.ParseCellLiteral("$12.50")
		n, ok := v.(*RichNumber)
		if !ok || n.Kind != KindCurrency || n.Symbol != "$" {
			t.Fatalf("$12.50 = %#v", v)
		}
		if n.Val != 12.5 {
			t.Errorf("$12.50 stores %v", n.Val)
		}
	})

	t.Run("booleans", func(t *testing.T) {
		if v := lp.ParseCellLiteral("TRUE"); v != true {
			t.Errorf("TRUE = %#v", v)
		}
		if v := lp.ParseCellLiteral("false"); v != false {
			t.Errorf("false = %#v", v)
		}
	})

	t.Run("errors", func(t *testing.T) {
		v := lp.ParseCellLiteral("#DIV/0!")
		if err, ok := v.(*CellError); !ok || err.Kind != ErrorDivByZero {
			t.Errorf("#DIV/0! = %#v", v)
		}
		v = lp.ParseCellLiteral("#NAME?")
		if err, ok := v.(*CellError); !ok || err.Kind != ErrorName {
			t.Errorf("#NAME? = %#v", v)
		}
	})

	t.Run("dates", func(t *testing.T) {
		v := lp.ParseCellLiteral("2024-03-15")
		n, ok := v.(*RichNumber)
		if !ok || n.Kind != KindDate {
			t.Fatalf("date = %#v", v)
		}
		// serial date round-trips through the epoch
		if n.Val <= 0 {
			t.Errorf("serial = %v, want positive", n.Val)
		}
	})

	t.Run("apostrophe escape", func(t *testing.T) {
		if v := lp.ParseCellLiteral("'=A1"); v != "=A1" {
			t.Errorf("'=A1 = %#v, want \"=A1\"", v)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if v := lp.ParseCellLiteral(""); v != nil {
			t.Errorf("empty = %#v, want nil", v)
		}
	})

	t.Run("plain text", func(t *testing.T) {
		if v := lp.ParseCellLiteral("hello"); v != "hello" {
			t.Errorf("hello = %#v", v)
		}
	})
}

func TestIsFormula(t *testing.T) {
	if !IsFormula("=A1") {
		t.Error("=A1 is a formula")
	}
	if IsFormula("A1") || IsFormula("'=A1") {
		t.Error("non-= text is not a formula")
	}
}

func TestCoerceToNumber(t *testing.T) {
	lp := testLiteralParser()

	if n, err := lp.coerceToNumber(true); err != nil || n.Val != 1 {
		t.Errorf("true -> %v (%v)", n, err)
	}
	if n, err := lp.coerceToNumber(nil); err != nil || n.Val != 0 {
		t.Errorf("nil -> %v (%v)", n, err)
	}
	if n, err := lp.coerceToNumber("5%"); err != nil || n.Val != 0.05 {
		t.Errorf("\"5%%\" -> %v (%v)", n, err)
	}
	if _, err := lp.coerceToNumber("pear"); err == nil || err.Kind != ErrorValue {
		t.Errorf("\"pear\" should fail with Error(Value), got %v", err)
	}
}

func TestCoerceComplex(t *testing.T) {
	cases := []struct {
		in   string
		want [2]float64
		ok   bool
	}{
		{"3+4i", [2]float64{3, 4}, true},
		{"7", [2]float64{7, 0}, true},
		{"-2.5", [2]float64{-2.5, 0}, true},
		{"1-1i", [2]float64{1, -1}, true},
		{"pear", [2]float64{}, false},
	}
	for _, tc := range cases {
		got, ok := coerceComplex(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("coerceComplex(%q) = %v/%v, want %v/%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
