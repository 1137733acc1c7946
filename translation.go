package probsheet

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// TranslationPackage supplies translated error codes and function names
// for one UI language. Function names map canonical (english) names to
// localized spellings; the engine parses localized names and hashes the
// canonical ones so formula hashes are language-independent.
type TranslationPackage struct {
	Language   string               `yaml:"language"`
	ErrorCodes map[string]string    `yaml:"errors"`    // canonical code -> translated code
	Functions  map[string]string    `yaml:"functions"` // canonical name -> translated name
	reverseFns map[string]string    // translated name (upper) -> canonical name
	reverseErr map[string]ErrorKind // translated code (upper) -> kind
}

// EnglishTranslationPackage returns the built-in identity package.
func EnglishTranslationPackage() *TranslationPackage {
	tp := &TranslationPackage{
		Language:   "enGB",
		ErrorCodes: map[string]string{},
		Functions:  map[string]string{},
	}
	tp.buildIndexes()
	return tp
}

// TranslationFromYAML parses a translation package from a YAML
// document of the form:
//
//	language: deDE
//	errors:
//	  "#VALUE!": "#WERT!"
//	functions:
//	  SUM: SUMME
func TranslationFromYAML(data []byte) (*TranslationPackage, error) {
	tp := &TranslationPackage{}
	if err := yaml.Unmarshal(data, tp); err != nil {
		return nil, NewApplicationError(InvalidArgument, "invalid translation package: "+err.Error())
	}
	tp.buildIndexes()
	return tp, nil
}

// buildIndexes computes the reverse lookup tables once, after loading.
func (tp *TranslationPackage) buildIndexes() {
	tp.reverseFns = make(map[string]string, len(tp.Functions))
	for canonical, translated := range tp.Functions {
		tp.reverseFns[strings.ToUpper(translated)] = strings.ToUpper(canonical)
	}
	tp.reverseErr = make(map[string]ErrorKind, len(errorCodeMapper)+len(tp.ErrorCodes))
	for kind, code := range errorCodeMapper {
		tp.reverseErr[code] = kind
	}
	for canonical, translated := range tp.ErrorCodes {
		if kind, ok := tp.reverseErr[strings.ToUpper(canonical)]; ok {
			tp.reverseErr[strings.ToUpper(translated)] = kind
		}
	}
}

// CanonicalFunctionName maps a (possibly localized) function name to
// its canonical form. Unknown names pass through uppercased, so
// unregistered functions still produce a stable hash.
func (tp *TranslationPackage) CanonicalFunctionName(name string) string {
	upper := strings.ToUpper(name)
	if canonical, ok := tp.reverseFns[upper]; ok {
		return canonical
	}
	return upper
}

// LocalizedFunctionName maps a canonical function name to the
// localized spelling, falling back to the canonical name.
func (tp *TranslationPackage) LocalizedFunctionName(canonical string) string {
	if translated, ok := tp.Functions[strings.ToUpper(canonical)]; ok {
		return translated
	}
	return strings.ToUpper(canonical)
}

// ErrorCode returns the translated code for an error kind.
func (tp *TranslationPackage) ErrorCode(kind ErrorKind) string {
	canonical := errorCodeMapper[kind]
	if translated, ok := tp.ErrorCodes[canonical]; ok {
		return translated
	}
	return canonical
}

// ErrorKindFromCode matches a cell text like "#DIV/0!" against the
// canonical and translated code tables. ok is false when the text is
// not a known error code.
func (tp *TranslationPackage) ErrorKindFromCode(text string) (ErrorKind, bool) {
	kind, ok := tp.reverseErr[strings.ToUpper(strings.TrimSpace(text))]
	return kind, ok
}
