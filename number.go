package probsheet

import (
	"math"
)

// NumberKind tags the detailed type a rich number carries on top of its
// representative scalar.
type NumberKind uint8

const (
	KindRaw NumberKind = iota
	KindCurrency
	KindPercent
	KindDate
	KindTime
	KindDateTime
	KindGaussian
	KindLogNormal
	KindUniform
	KindConfidenceInterval
	KindSampled
)

var numberKindNames = map[NumberKind]string{
	KindRaw:                "NUMBER_RAW",
	KindCurrency:           "NUMBER_CURRENCY",
	KindPercent:            "NUMBER_PERCENT",
	KindDate:               "NUMBER_DATE",
	KindTime:               "NUMBER_TIME",
	KindDateTime:           "NUMBER_DATETIME",
	KindGaussian:           "NUMBER_GAUSSIAN",
	KindLogNormal:          "NUMBER_LOGNORMAL",
	KindUniform:            "NUMBER_UNIFORM",
	KindConfidenceInterval: "NUMBER_CONFIDENCE_INTERVAL",
	KindSampled:            "NUMBER_SAMPLED",
}

func (k NumberKind) String() string { return numberKindNames[k] }

// Interpretation says which distribution family a confidence interval
// is read as when it enters arithmetic.
type Interpretation uint8

const (
	InterpAuto Interpretation = iota
	InterpNormal
	InterpUniform
	InterpLogNormal
)

// RichNumber is a numeric cell value that also carries semantic type:
// a display format (date, currency, percent) or a distribution kind.
// Val is always the representative scalar used wherever a plain number
// is needed.
type RichNumber struct {
	Kind NumberKind
	Val  float64

	// format payloads

	Symbol string // currency symbol
	Format string // date/time format string

	// distribution parameters

	Mu     float64 // gaussian/lognormal mean parameter
	Sigma2 float64 // gaussian/lognormal variance parameter
	Lo, Hi float64 // uniform interval / confidence interval bounds

	// confidence interval payload

	Confidence float64
	Interp     Interpretation

	// samples is the cached Monte-Carlo buffer. immutable once set;
	// regenerated lazily by the sampler when nil.
	samples []float64
}

func NewRaw(v float64) *RichNumber {
	return &RichNumber{Kind: KindRaw, Val: v}
}

func NewCurrency(v float64, symbol string) *RichNumber {
	return &RichNumber{Kind: KindCurrency, Val: v, Symbol: symbol}
}

// NewPercent stores the fraction form: 5% is NewPercent(0.05).
func NewPercent(v float64) *RichNumber {
	return &RichNumber{Kind: KindPercent, Val: v}
}

func NewDate(serial float64, format string) *RichNumber {
	return &RichNumber{Kind: KindDate, Val: serial, Format: format}
}

func NewTime(serial float64, format string) *RichNumber {
	return &RichNumber{Kind: KindTime, Val: serial, Format: format}
}

func NewDateTime(serial float64, format string) *RichNumber {
	return &RichNumber{Kind: KindDateTime, Val: serial, Format: format}
}

func NewGaussian(mu, sigma2 float64) *RichNumber {
	return &RichNumber{Kind: KindGaussian, Val: mu, Mu: mu, Sigma2: sigma2}
}

// NewLogNormal takes the parameters of the underlying normal: the
// variable is exp(Y) with Y ~ N(mu, sigma2). The representative value
// is the distribution mean exp(mu + sigma2/2).
func NewLogNormal(mu, sigma2 float64) *RichNumber {
	return &RichNumber{
		Kind: KindLogNormal, Val: math.Exp(mu + sigma2/2),
		Mu: mu, Sigma2: sigma2,
	}
}

// NewUniform is the half-open interval [a, b) with representative
// value at the midpoint.
func NewUniform(a, b float64) *RichNumber {
	if b < a {
		a, b = b, a
	}
	return &RichNumber{Kind: KindUniform, Val: (a + b) / 2, Lo: a, Hi: b}
}

// NewConfidenceInterval builds an input-only interval distribution.
// Auto interpretation resolves to LogNormal when lo > 0 and hi/lo >= 2,
// else Normal. A LogNormal interpretation with non-positive bounds
// falls back to Normal. The representative value is the median under
// the resolved interpretation.
func NewConfidenceInterval(lo, hi, confidence float64, interp Interpretation) *RichNumber {
	if hi < lo {
		lo, hi = hi, lo
	}
	if interp == InterpAuto {
		if lo > 0 && hi/lo >= 2 {
			interp = InterpLogNormal
		} else {
			interp = InterpNormal
		}
	}
	if interp == InterpLogNormal && (lo <= 0 || hi <= 0) {
		interp = InterpNormal
	}
	n := &RichNumber{
		Kind: KindConfidenceInterval,
		Lo:   lo, Hi: hi,
		Confidence: confidence,
		Interp:     interp,
	}
	switch interp {
	case InterpLogNormal:
		n.Val = math.Sqrt(lo * hi) // exp((ln lo + ln hi)/2)
	default:
		n.Val = (lo + hi) / 2
	}
	return n
}

// NewSampled wraps a Monte-Carlo result vector. The representative
// value is the sample mean. The vector is owned by the number and must
// not be mutated afterwards.
func NewSampled(samples []float64) *RichNumber {
	return &RichNumber{
		Kind:    KindSampled,
		Val:     meanOf(samples),
		samples: samples,
	}
}

// IsDistribution reports whether the number participates in
// Monte-Carlo propagation.
func (n *RichNumber) IsDistribution() bool {
	switch n.Kind {
	case KindGaussian, KindLogNormal, KindUniform, KindConfidenceInterval, KindSampled:
		return true
	}
	return false
}

// FromValue clones the number with a new representative value,
// preserving auxiliary data (symbol, format, interval width,
// interpretation). Distribution parameters are shifted so the clone's
// center tracks the new value; sample caches are dropped. A Sampled
// number, and a log-normal moved to a non-positive value, become Raw.
func (n *RichNumber) FromValue(v float64) *RichNumber {
	switch n.Kind {
	case KindCurrency:
		return NewCurrency(v, n.Symbol)
	case KindPercent:
		return NewPercent(v)
	case KindDate:
		return NewDate(v, n.Format)
	case KindTime:
		return NewTime(v, n.Format)
	case KindDateTime:
		return NewDateTime(v, n.Format)
	case KindGaussian:
		return NewGaussian(v, n.Sigma2)
	case KindLogNormal:
		// keep the log-space spread, move the mean
		if v > 0 {
			return NewLogNormal(math.Log(v)-n.Sigma2/2, n.Sigma2)
		}
		return NewRaw(v)
	case KindUniform:
		half := (n.Hi - n.Lo) / 2
		return NewUniform(v-half, v+half)
	case KindConfidenceInterval:
		// width kept, interpretation kept
		half := (n.Hi - n.Lo) / 2
		return NewConfidenceInterval(v-half, v+half, n.Confidence, n.Interp)
	case KindSampled:
		return NewRaw(v)
	default:
		return NewRaw(v)
	}
}

// meanOf is the arithmetic mean of a sample vector.
func meanOf(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// varianceOf is the population variance of a sample vector.
func varianceOf(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	mean := meanOf(samples)
	acc := 0.0
	for _, s := range samples {
		d := s - mean
		acc += d * d
	}
	return acc / float64(len(samples))
}

// additiveResultKind reproduces the additive type-promotion table. Any
// distribution operand makes the result a distribution, whose family
// the arithmetic engine decides from the operand kinds (resultFamily)
// before sampling. Otherwise the
// Excel-like date table applies.
func additiveResultKind(left, right NumberKind) NumberKind {
	if left == KindDate && right == KindTime || left == KindTime && right == KindDate {
		return KindDateTime
	}
	if left == KindDateTime && right == KindDate || left == KindDate && right == KindDateTime {
		return KindRaw
	}
	if left == KindRaw {
		return right
	}
	return left
}

// multiplicativeResultKind reproduces the multiplicative promotion
// table: Percent demotes to Raw before combining, then Raw yields to
// the other operand's kind.
func multiplicativeResultKind(left, right NumberKind) NumberKind {
	if left == KindPercent {
		left = KindRaw
	}
	if right == KindPercent {
		right = KindRaw
	}
	if left == KindRaw {
		return right
	}
	if right == KindRaw {
		return left
	}
	return KindRaw
}

// carrierFor picks which operand's auxiliary data (currency symbol,
// date format) survives into a result of the given kind.
func carrierFor(kind NumberKind, left, right *RichNumber) *RichNumber {
	if left.Kind == kind {
		return left
	}
	if right.Kind == kind {
		return right
	}
	return left
}
