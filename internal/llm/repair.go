package llm

import (
	"fmt"
	"strings"
)

const (
	leftDoubleQuote  = "“"
	rightDoubleQuote = "”"
)

// repairFrom scans one JSON candidate starting at s[start] ('{' or '[') with a byte-level
// state machine and returns a repaired copy. It stops when the outermost container closes.
// complete is false when the input ends first.
//
// Repairs: trailing and doubled commas, mismatched or excess closers, smart and single
// quoted strings, unescaped inner quotes, raw control characters and invalid escapes in
// strings, bare words (None/True/False, unquoted keys and values).
//
// Scanning bytes is safe for the ASCII delimiters because UTF-8 never reuses ASCII bytes
// inside multi-byte sequences.
func repairFrom(s string, start int) (string, int, bool) {
	out := make([]byte, 0, len(s)-start+16)
	var stack []byte

	i := start
	for i < len(s) {
		b := s[i]
		switch {
		case b == '{' || b == '[':
			stack = append(stack, closerFor(b))
			out = append(out, b)
			i++

		case b == '}' || b == ']':
			depth := lastIndexByte(stack, b)
			if depth < 0 {
				// excess closer
				i++
				continue
			}
			for len(stack) > depth {
				out = trimTrailingComma(out)
				out = append(out, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			i++
			if len(stack) == 0 {
				return string(out), i, true
			}

		case b == ',':
			if last := lastSignificant(out); last == ',' || last == '{' || last == '[' {
				i++
				continue
			}
			out = append(out, b)
			i++

		case b == '"':
			var ok bool
			out, i, ok = readString(s, i+1, out, isASCIIQuote)
			if !ok {
				return string(out), len(s), false
			}

		case b == '\'':
			var ok bool
			out, i, ok = readString(s, i+1, out, isSingleQuote)
			if !ok {
				return string(out), len(s), false
			}

		case strings.HasPrefix(s[i:], leftDoubleQuote) || strings.HasPrefix(s[i:], rightDoubleQuote):
			var ok bool
			out, i, ok = readString(s, i+len(leftDoubleQuote), out, isSmartQuote)
			if !ok {
				return string(out), len(s), false
			}

		case isNumberByte(b):
			j := i
			for j < len(s) && (isNumberByte(s[j]) || s[j] == 'e' || s[j] == 'E') {
				j++
			}
			out = append(out, normalizeNumber(s[i:j])...)
			i = j

		case isWordByte(b):
			j := i
			for j < len(s) && (isWordByte(s[j]) || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			out = appendWord(out, s[i:j], nextSignificant(s, j) == ':')
			i = j

		default:
			out = append(out, b)
			i++
		}
	}
	return string(out), len(s), false
}

// normalizeNumber rewrites the number spellings JSON forbids: "+5", "01", ".5" and "5.".
func normalizeNumber(n string) string {
	sign := ""
	switch {
	case strings.HasPrefix(n, "+"):
		n = n[1:]
	case strings.HasPrefix(n, "-"):
		sign, n = "-", n[1:]
	}
	for len(n) > 1 && n[0] == '0' && n[1] >= '0' && n[1] <= '9' {
		n = n[1:]
	}
	if strings.HasPrefix(n, ".") {
		n = "0" + n
	}
	if k := strings.IndexByte(n, '.'); k >= 0 && (k == len(n)-1 || n[k+1] < '0' || n[k+1] > '9') {
		n = n[:k+1] + "0" + n[k+1:]
	}
	return sign + n
}

func closerFor(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}

func lastIndexByte(stack []byte, b byte) int {
	for k := len(stack) - 1; k >= 0; k-- {
		if stack[k] == b {
			return k
		}
	}
	return -1
}

// readString copies a string body starting just after its opening quote, re-quoting it
// with ASCII double quotes. isClose reports whether s[i:] starts with a closing delimiter
// and returns its width. A delimiter only closes the string when the next significant
// byte can follow a JSON string; otherwise it is escaped as content.
func readString(s string, i int, out []byte, isClose func(string) int) ([]byte, int, bool) {
	out = append(out, '"')
	for i < len(s) {
		if w := isClose(s[i:]); w > 0 {
			if closesString(s, i+w) {
				return append(out, '"'), i + w, true
			}
			if s[i] == '"' {
				out = append(out, '\\', '"')
			} else {
				out = append(out, s[i:i+w]...)
			}
			i += w
			continue
		}

		b := s[i]
		switch {
		case b == '\\':
			if i+1 >= len(s) {
				return out, len(s), false
			}
			next := s[i+1]
			switch next {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				out = append(out, b, next)
				i += 2
			case '\'':
				out = append(out, '\'')
				i += 2
			default:
				out = append(out, '\\', '\\')
				i++
			}
		case b == '"':
			// ASCII quote inside a single or smart quoted string
			out = append(out, '\\', '"')
			i++
		case b < 0x20:
			out = appendControl(out, b)
			i++
		default:
			out = append(out, b)
			i++
		}
	}
	return out, len(s), false
}

func isASCIIQuote(s string) int {
	if s[0] == '"' {
		return 1
	}
	return 0
}

func isSingleQuote(s string) int {
	if s[0] == '\'' {
		return 1
	}
	return 0
}

func isSmartQuote(s string) int {
	if strings.HasPrefix(s, rightDoubleQuote) || strings.HasPrefix(s, leftDoubleQuote) {
		return len(rightDoubleQuote)
	}
	return 0
}

// closesString reports whether a quote ending at i can close a string: end of input,
// a structural byte, or a line break before the next token.
func closesString(s string, i int) bool {
	j := i
	sawNewline := false
	for j < len(s) && isSpace(s[j]) {
		if s[j] == '\n' {
			sawNewline = true
		}
		j++
	}
	if j == len(s) {
		return true
	}
	switch s[j] {
	case ',', ':', '}', ']':
		return true
	}
	return sawNewline
}

func appendControl(out []byte, b byte) []byte {
	switch b {
	case '\n':
		return append(out, '\\', 'n')
	case '\r':
		return append(out, '\\', 'r')
	case '\t':
		return append(out, '\\', 't')
	default:
		return append(out, fmt.Sprintf("\\u%04x", b)...)
	}
}

// appendWord maps True/False/None to JSON literals and quotes other bare words.
func appendWord(out []byte, word string, isKey bool) []byte {
	if !isKey {
		switch word {
		case "true", "false", "null":
			return append(out, word...)
		case "True":
			return append(out, "true"...)
		case "False":
			return append(out, "false"...)
		case "None", "NaN", "undefined":
			return append(out, "null"...)
		}
	}
	out = append(out, '"')
	out = append(out, word...)
	return append(out, '"')
}

func trimTrailingComma(out []byte) []byte {
	k := len(out) - 1
	for k >= 0 && isSpace(out[k]) {
		k--
	}
	if k >= 0 && out[k] == ',' {
		return append(out[:k], out[k+1:]...)
	}
	return out
}

func lastSignificant(out []byte) byte {
	for k := len(out) - 1; k >= 0; k-- {
		if !isSpace(out[k]) {
			return out[k]
		}
	}
	return 0
}

func nextSignificant(s string, i int) byte {
	for i < len(s) {
		if !isSpace(s[i]) {
			return s[i]
		}
		i++
	}
	return 0
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isNumberByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == '-' || b == '+' || b == '.'
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}
