package probsheet

import (
	"math/rand/v2"
	"time"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for
// testing and deterministic Monte-Carlo runs
type RandomGenerator interface {
	Float64() float64
}

// SeededRandomGenerator is the default implementation, a PCG stream
// seeded from the engine configuration so identical inputs produce
// bit-identical sample vectors.
type SeededRandomGenerator struct {
	rng *rand.Rand
}

func NewSeededRandomGenerator(seed uint64) *SeededRandomGenerator {
	return &SeededRandomGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *SeededRandomGenerator) Float64() float64 {
	return g.rng.Float64()
}

// Config holds all engine options. All options are supplied at engine
// construction and are immutable per engine instance.
type Config struct {
	// SampleSize is the length of every generated sample vector.
	SampleSize int

	// numerical safety

	PrecisionEpsilon  float64
	PrecisionRounding uint8
	SmartRounding     bool

	// locale

	CurrencySymbols      []string
	DecimalSeparator     rune
	ThousandSeparator    rune
	FunctionArgSeparator rune

	// string comparison and matching

	CaseSensitive         bool
	AccentSensitive       bool
	MatchWholeCell        bool
	UseWildcards          bool
	UseRegularExpressions bool

	// RandomSeed seeds the Monte-Carlo PRNG. two engines constructed
	// with the same seed and fed the same inputs compute identically.
	RandomSeed uint64

	// TranslationPackage supplies translated error codes and function
	// names. nil selects the built-in english package.
	TranslationPackage *TranslationPackage

	// Clock and Random override the time source and PRNG. nil selects
	// the defaults (wall clock, seeded PCG).
	Clock  Clock
	Random RandomGenerator
}

// DefaultConfig returns the configuration used when New is called with
// a nil config.
func DefaultConfig() *Config {
	return (&Config{}).withDefaults()
}

// withDefaults fills zero-valued options in place and returns the
// receiver.
func (c *Config) withDefaults() *Config {
	if c.SampleSize <= 0 {
		c.SampleSize = 10000
	}
	if c.PrecisionEpsilon <= 0 {
		c.PrecisionEpsilon = 1e-13
	}
	if c.PrecisionRounding == 0 {
		c.PrecisionRounding = 14
	}
	if len(c.CurrencySymbols) == 0 {
		c.CurrencySymbols = []string{"$"}
	}
	if c.DecimalSeparator == 0 {
		c.DecimalSeparator = '.'
	}
	if c.ThousandSeparator == 0 {
		c.ThousandSeparator = ','
	}
	if c.FunctionArgSeparator == 0 {
		c.FunctionArgSeparator = ','
	}
	if c.TranslationPackage == nil {
		c.TranslationPackage = EnglishTranslationPackage()
	}
	if c.Clock == nil {
		c.Clock = &WallClock{}
	}
	if c.Random == nil {
		c.Random = NewSeededRandomGenerator(c.RandomSeed)
	}
	return c
}

// validate rejects separator collisions that would make number lexing
// ambiguous.
func (c *Config) validate() error {
	if c.DecimalSeparator == c.ThousandSeparator {
		return NewApplicationError(InvalidArgument, "decimal and thousand separators must differ")
	}
	if c.DecimalSeparator == c.FunctionArgSeparator {
		return NewApplicationError(InvalidArgument, "decimal and function argument separators must differ")
	}
	return nil
}
