package probsheet

import (
	"strings"
	"testing"
)

func testSerializer() *Serializer {
	cfg := DefaultConfig()
	cfg.RandomSeed = 21
	cfg.Random = NewSeededRandomGenerator(21)
	return newSerializer(cfg, newSampler(cfg))
}

func TestFormatScalars(t *testing.T) {
	sz := testSerializer()

	cases := []struct {
		name string
		in   Value
		want string
	}{
		{"empty", nil, ""},
		{"string", "hi", "hi"},
		{"bool true", true, "TRUE"},
		{"bool false", false, "FALSE"},
		{"raw", NewRaw(2.5), "2.5"},
		{"integer raw", NewRaw(4), "4"},
		{"currency", NewCurrency(12.5, "$"), "$12.5"},
		{"percent", NewPercent(0.05), "5%"},
		{"error", NewCellError(ErrorDivByZero, ""), "#DIV/0!"},
		{"cycle error", NewCellError(ErrorCycle, ""), "#CYCLE!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sz.Format(tc.in); got != tc.want {
				t.Errorf("Format(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFormatDistributions(t *testing.T) {
	sz := testSerializer()

	if got := sz.Format(NewGaussian(3.456, 0.251)); got != "N(μ=3.46, σ²=0.25)" {
		t.Errorf("gaussian = %q", got)
	}
	if got := sz.Format(NewConfidenceInterval(10, 20, 90, InterpNormal)); got != "CI[10, 20]" {
		t.Errorf("ci = %q", got)
	}
	sampled := NewSampled([]float64{1, 2, 3})
	got := sz.Format(sampled)
	if !strings.HasPrefix(got, "S(μ=2.00, σ²=") {
		t.Errorf("sampled = %q, want S(μ=2.00, σ²=...)", got)
	}
	if got := sz.Format(NewLogNormal(0, 0.25)); got != "LN(μ=0.00, σ²=0.25)" {
		t.Errorf("lognormal = %q", got)
	}
}

func TestTranslatedErrorCodes(t *testing.T) {
	tp, err := TranslationFromYAML([]byte(`
language: deDE
errors:
  "#VALUE!": "#WERT!"
functions:
  SUM: SUMME
`))
	if err != nil {
		t.Fatalf("TranslationFromYAML: %v", err)
	}
	cfg := &Config{TranslationPackage: tp, RandomSeed: 1}
	cfg.withDefaults()
	sz := newSerializer(cfg, newSampler(cfg))

	if got := sz.Format(NewCellError(ErrorValue, "")); got != "#WERT!" {
		t.Errorf("translated value error = %q, want #WERT!", got)
	}
	if got := sz.Format(NewCellError(ErrorDivByZero, "")); got != "#DIV/0!" {
		t.Errorf("untranslated error = %q, want #DIV/0!", got)
	}
	if got := tp.CanonicalFunctionName("summe"); got != "SUM" {
		t.Errorf("canonical name = %q, want SUM", got)
	}
	if kind, ok := tp.ErrorKindFromCode("#WERT!"); !ok || kind != ErrorValue {
		t.Errorf("reverse error lookup = %v/%v", kind, ok)
	}
}

func TestTranslatedFormulaParsesAndHashesCanonically(t *testing.T) {
	tp, err := TranslationFromYAML([]byte(`
language: deDE
functions:
  SUM: SUMME
`))
	if err != nil {
		t.Fatalf("TranslationFromYAML: %v", err)
	}
	cfgDE := &Config{TranslationPackage: tp, RandomSeed: 1}
	cfgDE.withDefaults()
	smpDE := newSampler(cfgDE)
	ctxDE := &ParserContext{
		Base:         SimpleCellAddress{Sheet: 0, Col: 2, Row: 0},
		ResolveSheet: func(string) (int, bool) { return 0, true },
		patterns:     newLexerPatterns(cfgDE),
		literals:     newLiteralParser(cfgDE, smpDE),
		translation:  tp,
	}
	astDE, perr := parseFormula("=SUMME(A1:B1)", ctxDE)
	if perr != nil {
		t.Fatalf("parse localized formula: %v", perr)
	}

	astEN := mustParse(t, "=SUM(A1:B1)", SimpleCellAddress{Sheet: 0, Col: 2, Row: 0})

	if newASTHasher(cfgDE).hash(astDE) != newASTHasher(DefaultConfig()).hash(astEN) {
		t.Error("localized and canonical spellings must hash identically")
	}
}

func TestSmartRounding(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmartRounding = true
	cfg.PrecisionRounding = 4
	cfg.RandomSeed = 1
	cfg.Random = NewSeededRandomGenerator(1)
	sz := newSerializer(cfg, newSampler(cfg))

	if got := sz.Format(NewRaw(1.23456789)); got != "1.235" {
		t.Errorf("smart-rounded = %q, want 1.235", got)
	}
}

func TestRoundToSignificant(t *testing.T) {
	if got := roundToSignificant(123.456, 4); got != 123.5 {
		t.Errorf("roundToSignificant(123.456, 4) = %v, want 123.5", got)
	}
	if got := roundToSignificant(-123.456, 4); got != -123.5 {
		t.Errorf("half away from zero on negatives: got %v", got)
	}
	if got := roundToSignificant(0, 4); got != 0 {
		t.Errorf("zero stays zero: %v", got)
	}
}
