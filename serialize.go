package probsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Serializer formats computed cell values for output, including the
// distribution renderings.
type Serializer struct {
	cfg         *Config
	translation *TranslationPackage
	sampler     *sampler
}

func newSerializer(cfg *Config, s *sampler) *Serializer {
	return &Serializer{cfg: cfg, translation: cfg.TranslationPackage, sampler: s}
}

// Format renders one cell value as display text. Empty cells render
// as the empty string (the exported value itself is nil).
func (sz *Serializer) Format(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case *CellError:
		return sz.translation.ErrorCode(t.Kind)
	case *RichNumber:
		return sz.formatNumber(t)
	case *SimpleRangeValue:
		return sz.Format(t.ValueAt(0, 0))
	default:
		return fmt.Sprint(v)
	}
}

func (sz *Serializer) formatNumber(n *RichNumber) string {
	switch n.Kind {
	case KindGaussian:
		return fmt.Sprintf("N(μ=%.2f, σ²=%.2f)", n.Mu, n.Sigma2)
	case KindLogNormal:
		return fmt.Sprintf("LN(μ=%.2f, σ²=%.2f)", n.Mu, n.Sigma2)
	case KindUniform:
		return fmt.Sprintf("U(%s, %s)", sz.plain(n.Lo), sz.plain(n.Hi))
	case KindConfidenceInterval:
		return fmt.Sprintf("CI[%s, %s]", sz.plain(n.Lo), sz.plain(n.Hi))
	case KindSampled:
		samples, err := sz.sampler.samplesOf(n)
		if err != nil {
			return sz.translation.ErrorCode(err.Kind)
		}
		return fmt.Sprintf("S(μ=%.2f, σ²=%.2f)", meanOf(samples), varianceOf(samples))
	case KindCurrency:
		return n.Symbol + sz.plain(n.Val)
	case KindPercent:
		return sz.plain(n.Val*100) + "%"
	case KindDate:
		return sz.formatSerialDate(n.Val, n.Format, "2006-01-02")
	case KindTime:
		return sz.formatSerialDate(n.Val, n.Format, "15:04:05")
	case KindDateTime:
		return sz.formatSerialDate(n.Val, n.Format, "2006-01-02 15:04:05")
	default:
		return sz.plain(n.Val)
	}
}

// plain renders a raw float honouring smart rounding and the decimal
// separator.
func (sz *Serializer) plain(v float64) string {
	if sz.cfg.SmartRounding {
		v = roundToSignificant(v, int(sz.cfg.PrecisionRounding))
	}
	text := strconv.FormatFloat(v, 'f', -1, 64)
	if sz.cfg.DecimalSeparator != '.' {
		text = strings.Replace(text, ".", string(sz.cfg.DecimalSeparator), 1)
	}
	return text
}

func (sz *Serializer) formatSerialDate(serial float64, layout, fallback string) string {
	if layout == "" {
		layout = fallback
	}
	ms := int64(serial*msPerDay) + excelEpochMs
	return time.UnixMilli(ms).UTC().Format(layout)
}

// roundToSignificant rounds half away from zero to the given number of
// significant digits.
func roundToSignificant(v float64, digits int) float64 {
	if v == 0 || digits <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	magnitude := math.Ceil(math.Log10(math.Abs(v)))
	scale := math.Pow(10, float64(digits)-magnitude)
	scaled := v * scale
	var rounded float64
	if scaled >= 0 {
		rounded = math.Floor(scaled + 0.5)
	} else {
		rounded = math.Ceil(scaled - 0.5)
	}
	return rounded / scale
}

// formatNumberForText renders a number for string concatenation: the
// minimal plain form, with integers losing their decimal point.
func formatNumberForText(n *RichNumber) string {
	if n.Val == math.Trunc(n.Val) && math.Abs(n.Val) < 1e15 {
		return strconv.FormatInt(int64(n.Val), 10)
	}
	return strconv.FormatFloat(n.Val, 'g', -1, 64)
}

// CellValueChange is one exported change record produced by a
// recomputation.
type CellValueChange struct {
	Address  SimpleCellAddress
	NewValue Value
}
