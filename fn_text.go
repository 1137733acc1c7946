package probsheet

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// registerTextFunctions installs the string builtins.
func registerTextFunctions(r *FunctionRegistry) {
	r.Register(
		&FunctionDefinition{
			Name:           "CONCATENATE",
			Method:         fnCONCATENATE,
			Parameters:     []Parameter{{ArgType: ArgString}},
			RepeatLastArgs: 1,
		},
		&FunctionDefinition{
			Name:       "LEN",
			Method:     fnLEN,
			Parameters: []Parameter{{ArgType: ArgString}},
		},
		&FunctionDefinition{
			Name:   "LEFT",
			Method: fnLEFT,
			Parameters: []Parameter{
				{ArgType: ArgString},
				{ArgType: ArgInteger, Optional: true, DefaultValue: NewRaw(1)},
			},
		},
		&FunctionDefinition{
			Name:   "RIGHT",
			Method: fnRIGHT,
			Parameters: []Parameter{
				{ArgType: ArgString},
				{ArgType: ArgInteger, Optional: true, DefaultValue: NewRaw(1)},
			},
		},
		&FunctionDefinition{
			Name:   "MID",
			Method: fnMID,
			Parameters: []Parameter{
				{ArgType: ArgString},
				{ArgType: ArgInteger},
				{ArgType: ArgInteger},
			},
		},
		&FunctionDefinition{
			Name:       "TRIM",
			Method:     fnTRIM,
			Parameters: []Parameter{{ArgType: ArgString}},
		},
		&FunctionDefinition{
			Name:       "PROPER",
			Method:     fnPROPER,
			Parameters: []Parameter{{ArgType: ArgString}},
		},
		&FunctionDefinition{
			Name:       "CLEAN",
			Method:     fnCLEAN,
			Parameters: []Parameter{{ArgType: ArgString}},
		},
		&FunctionDefinition{
			Name:   "REPT",
			Method: fnREPT,
			Parameters: []Parameter{
				{ArgType: ArgString},
				{ArgType: ArgInteger},
			},
		},
		&FunctionDefinition{
			Name:   "SEARCH",
			Method: fnSEARCH,
			Parameters: []Parameter{
				{ArgType: ArgString},
				{ArgType: ArgString},
				{ArgType: ArgInteger, Optional: true, DefaultValue: NewRaw(1)},
			},
		},
		&FunctionDefinition{
			Name:   "FIND",
			Method: fnFIND,
			Parameters: []Parameter{
				{ArgType: ArgString},
				{ArgType: ArgString},
				{ArgType: ArgInteger, Optional: true, DefaultValue: NewRaw(1)},
			},
		},
		&FunctionDefinition{
			Name:   "SUBSTITUTE",
			Method: fnSUBSTITUTE,
			Parameters: []Parameter{
				{ArgType: ArgString},
				{ArgType: ArgString},
				{ArgType: ArgString},
				{ArgType: ArgInteger, Optional: true},
			},
		},
		&FunctionDefinition{
			Name:       "T",
			Method:     fnT,
			Parameters: []Parameter{{ArgType: ArgScalar}},
		},
		&FunctionDefinition{
			Name:       "UPPER",
			Method:     fnUPPER,
			Parameters: []Parameter{{ArgType: ArgString}},
		},
		&FunctionDefinition{
			Name:       "LOWER",
			Method:     fnLOWER,
			Parameters: []Parameter{{ArgType: ArgString}},
		},
		&FunctionDefinition{
			Name:   "EXACT",
			Method: fnEXACT,
			Parameters: []Parameter{
				{ArgType: ArgString},
				{ArgType: ArgString},
			},
		},
		&FunctionDefinition{
			Name:       "CHAR",
			Method:     fnCHAR,
			Parameters: []Parameter{{ArgType: ArgNumber}},
		},
		&FunctionDefinition{
			Name:       "UNICHAR",
			Method:     fnUNICHAR,
			Parameters: []Parameter{{ArgType: ArgNumber}},
		},
	)
}

func fnCONCATENATE(ctx *FunctionContext, args []Value) Value {
	var sb strings.Builder
	for _, arg := range args {
		s, _ := arg.(string)
		sb.WriteString(s)
	}
	return sb.String()
}

func fnLEN(ctx *FunctionContext, args []Value) Value {
	s, _ := args[0].(string)
	return NewRaw(float64(len([]rune(s))))
}

func fnLEFT(ctx *FunctionContext, args []Value) Value {
	s, _ := args[0].(string)
	n, ok := intArg(args[1])
	if !ok || n < 0 {
		return NewCellError(ErrorValue, "LEFT requires a non-negative count")
	}
	runes := []rune(s)
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[:n])
}

func fnRIGHT(ctx *FunctionContext, args []Value) Value {
	s, _ := args[0].(string)
	n, ok := intArg(args[1])
	if !ok || n < 0 {
		return NewCellError(ErrorValue, "RIGHT requires a non-negative count")
	}
	runes := []rune(s)
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[len(runes)-n:])
}

func fnMID(ctx *FunctionContext, args []Value) Value {
	s, _ := args[0].(string)
	start, ok1 := intArg(args[1])
	count, ok2 := intArg(args[2])
	if !ok1 || !ok2 || start < 1 || count < 0 {
		return NewCellError(ErrorValue, "MID requires start >= 1 and count >= 0")
	}
	runes := []rune(s)
	if start > len(runes) {
		return ""
	}
	end := start - 1 + count
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start-1 : end])
}

func fnTRIM(ctx *FunctionContext, args []Value) Value {
	s, _ := args[0].(string)
	// collapse runs of interior spaces, strip the outside
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

var properCaser = cases.Title(language.Und)

func fnPROPER(ctx *FunctionContext, args []Value) Value {
	s, _ := args[0].(string)
	return properCaser.String(s)
}

func fnCLEAN(ctx *FunctionContext, args []Value) Value {
	s, _ := args[0].(string)
	var sb strings.Builder
	for _, ch := range s {
		if ch >= 32 {
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}

func fnREPT(ctx *FunctionContext, args []Value) Value {
	s, _ := args[0].(string)
	n, ok := intArg(args[1])
	if !ok || n < 0 {
		return NewCellError(ErrorValue, "REPT requires a non-negative count")
	}
	return strings.Repeat(s, n)
}

// wildcardToRegexp converts spreadsheet wildcards (?, *) into an
// anchored regular expression, with ~ as the escape character.
func wildcardToRegexp(pattern string) *regexp.Regexp {
	var sb strings.Builder
	escaped := false
	for _, ch := range pattern {
		if escaped {
			sb.WriteString(regexp.QuoteMeta(string(ch)))
			escaped = false
			continue
		}
		switch ch {
		case '~':
			escaped = true
		case '?':
			sb.WriteString(".")
		case '*':
			sb.WriteString(".*")
		default:
			sb.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	return regexp.MustCompile("(?i)" + sb.String())
}

func fnSEARCH(ctx *FunctionContext, args []Value) Value {
	needle, _ := args[0].(string)
	haystack, _ := args[1].(string)
	start, ok := intArg(args[2])
	if !ok || start < 1 {
		return NewCellError(ErrorValue, "SEARCH start must be >= 1")
	}
	runes := []rune(haystack)
	if start > len(runes)+1 {
		return NewCellError(ErrorValue, "SEARCH start beyond text")
	}
	rest := string(runes[start-1:])

	var idx int
	if ctx.ev.cfg.UseRegularExpressions {
		re, err := regexp.Compile("(?i)" + needle)
		if err != nil {
			return NewCellError(ErrorValue, "invalid pattern")
		}
		loc := re.FindStringIndex(rest)
		if loc == nil {
			return NewCellError(ErrorValue, "SEARCH found no match")
		}
		idx = loc[0]
	} else if ctx.ev.cfg.UseWildcards {
		loc := wildcardToRegexp(needle).FindStringIndex(rest)
		if loc == nil {
			return NewCellError(ErrorValue, "SEARCH found no match")
		}
		idx = loc[0]
	} else {
		idx = strings.Index(strings.ToLower(rest), strings.ToLower(needle))
		if idx < 0 {
			return NewCellError(ErrorValue, "SEARCH found no match")
		}
	}
	return NewRaw(float64(len([]rune(rest[:idx])) + start))
}

func fnFIND(ctx *FunctionContext, args []Value) Value {
	needle, _ := args[0].(string)
	haystack, _ := args[1].(string)
	start, ok := intArg(args[2])
	if !ok || start < 1 {
		return NewCellError(ErrorValue, "FIND start must be >= 1")
	}
	runes := []rune(haystack)
	if start > len(runes)+1 {
		return NewCellError(ErrorValue, "FIND start beyond text")
	}
	rest := string(runes[start-1:])
	idx := strings.Index(rest, needle)
	if idx < 0 {
		return NewCellError(ErrorValue, "FIND found no match")
	}
	return NewRaw(float64(len([]rune(rest[:idx])) + start))
}

func fnSUBSTITUTE(ctx *FunctionContext, args []Value) Value {
	text, _ := args[0].(string)
	oldText, _ := args[1].(string)
	newText, _ := args[2].(string)
	if oldText == "" {
		return text
	}
	if args[3] == nil {
		return strings.ReplaceAll(text, oldText, newText)
	}
	instance, ok := intArg(args[3])
	if !ok || instance < 1 {
		return NewCellError(ErrorValue, "SUBSTITUTE instance must be >= 1")
	}
	count := 0
	pos := 0
	for {
		idx := strings.Index(text[pos:], oldText)
		if idx < 0 {
			return text
		}
		count++
		at := pos + idx
		if count == instance {
			return text[:at] + newText + text[at+len(oldText):]
		}
		pos = at + len(oldText)
	}
}

func fnT(ctx *FunctionContext, args []Value) Value {
	if s, ok := args[0].(string); ok {
		return s
	}
	return ""
}

func fnUPPER(ctx *FunctionContext, args []Value) Value {
	s, _ := args[0].(string)
	return strings.ToUpper(s)
}

func fnLOWER(ctx *FunctionContext, args []Value) Value {
	s, _ := args[0].(string)
	return strings.ToLower(s)
}

func fnEXACT(ctx *FunctionContext, args []Value) Value {
	l, _ := args[0].(string)
	r, _ := args[1].(string)
	// EXACT is case-sensitive regardless of engine configuration
	return l == r
}

func fnCHAR(ctx *FunctionContext, args []Value) Value {
	n, _ := args[0].(*RichNumber)
	code := int(n.Val)
	if float64(code) != n.Val || code < 1 || code >= 256 {
		return NewCellError(ErrorValue, "character code out of bounds")
	}
	return string(rune(code))
}

func fnUNICHAR(ctx *FunctionContext, args []Value) Value {
	n, _ := args[0].(*RichNumber)
	code := int(n.Val)
	if float64(code) != n.Val || code < 1 || code >= 1114112 {
		return NewCellError(ErrorValue, "character code out of bounds")
	}
	return string(rune(code))
}

// intArg reads an integer argument coerced earlier by the protocol.
func intArg(v Value) (int, bool) {
	n, ok := v.(*RichNumber)
	if !ok {
		return 0, false
	}
	return int(n.Val), true
}
