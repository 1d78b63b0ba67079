package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecodeReason classifies why a model reply could not be decoded.
type DecodeReason string

const (
	DecodeEmpty     DecodeReason = "empty"
	DecodeNoJSON    DecodeReason = "no_json"
	DecodeTruncated DecodeReason = "truncated"
	DecodeInvalid   DecodeReason = "invalid"
)

// DecodeFailure is returned by Decode when no repair yields valid JSON.
type DecodeFailure struct {
	Reason DecodeReason
	Offset int    // byte offset of the candidate that failed, -1 when none was found
	Text   string // the original input
	Err    error
}

func (f *DecodeFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("decode model reply: %s at offset %d: %v", f.Reason, f.Offset, f.Err)
	}
	return fmt.Sprintf("decode model reply: %s", f.Reason)
}

func (f *DecodeFailure) Unwrap() error {
	return f.Err
}

// Decode recovers a JSON value from model output. It strips code fences and surrounding
// prose, repairs common syntax defects, and parses with json.Number so re-encoding the
// result reproduces the same value. Input that ends inside an open object or array is
// reported as truncated rather than completed by guesswork.
func Decode(text string) (any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &DecodeFailure{Reason: DecodeEmpty, Offset: -1, Text: text}
	}
	if v, err := parseStrict(trimmed); err == nil {
		return v, nil
	}
	s := stripFences(trimmed)
	if s == "" {
		return nil, &DecodeFailure{Reason: DecodeEmpty, Offset: -1, Text: text}
	}
	if v, err := parseStrict(s); err == nil {
		return v, nil
	}

	d := &decoder{s: s, text: text, lastOffset: -1}

	// A reply that is itself a container is tried as a whole first, so a top-level
	// array is not mistaken for its first element.
	if s[0] == '{' || s[0] == '[' {
		c, ok, fail := d.try(0)
		if fail != nil {
			return nil, fail
		}
		if ok {
			return c.v, nil
		}
	}

	// Objects win over arrays, so prose such as "[note]" does not shadow the payload.
	// An array opened earlier that encloses the object is the payload itself.
	obj, found, fail := d.find('{', len(s), nil)
	if fail != nil {
		return nil, fail
	}
	if found {
		arr, wraps, fail := d.find('[', obj.start, func(c candidate) bool { return c.end >= obj.end })
		if fail != nil {
			return nil, fail
		}
		if wraps {
			return arr.v, nil
		}
		return obj.v, nil
	}
	arr, found, fail := d.find('[', len(s), nil)
	if fail != nil {
		return nil, fail
	}
	if found {
		return arr.v, nil
	}

	if d.lastErr != nil {
		return nil, &DecodeFailure{Reason: DecodeInvalid, Offset: d.lastOffset, Text: text, Err: d.lastErr}
	}
	return nil, &DecodeFailure{Reason: DecodeNoJSON, Offset: -1, Text: text}
}

type candidate struct {
	start, end int
	v          any
}

type decoder struct {
	s, text    string
	lastErr    error
	lastOffset int
}

// try repairs and parses the candidate opened at start. It returns a truncation failure
// only when the candidate runs off the end of input as well-formed JSON so far; an
// opener that is plainly prose ("{see note") is skipped instead.
func (d *decoder) try(start int) (candidate, bool, *DecodeFailure) {
	repaired, end, complete := repairFrom(d.s, start)
	if !complete {
		if isJSONPrefix(repaired) {
			return candidate{}, false, &DecodeFailure{Reason: DecodeTruncated, Offset: start, Text: d.text, Err: io.ErrUnexpectedEOF}
		}
		return candidate{start: start, end: start + 1}, false, nil
	}
	v, err := parseStrict(repaired)
	if err != nil {
		d.lastErr, d.lastOffset = err, start
		return candidate{start: start, end: end}, false, nil
	}
	return candidate{start: start, end: end, v: v}, true, nil
}

// find returns the first candidate opened by open before until that parses and that
// accept (when set) allows.
func (d *decoder) find(open byte, until int, accept func(candidate) bool) (candidate, bool, *DecodeFailure) {
	for pos := 0; pos < until; {
		k := strings.IndexByte(d.s[pos:until], open)
		if k < 0 {
			break
		}
		c, ok, fail := d.try(pos + k)
		if fail != nil {
			return candidate{}, false, fail
		}
		if ok && (accept == nil || accept(c)) {
			return c, true, nil
		}
		pos = c.end
	}
	return candidate{}, false, nil
}

// isJSONPrefix reports whether s is valid JSON up to the point where it ends.
func isJSONPrefix(s string) bool {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	for {
		if _, err := dec.Token(); err != nil {
			return err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF)
		}
	}
}

// IsDecodeFailure reports whether err is a DecodeFailure.
func IsDecodeFailure(err error) bool {
	var f *DecodeFailure
	return errors.As(err, &f)
}

// parseStrict parses exactly one JSON value with nothing but whitespace after it.
func parseStrict(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON value")
	}
	if v == nil {
		// a bare null carries no payload; treat like any other non-container
		return nil, errors.New("null reply")
	}
	return v, nil
}

// stripFences returns the body of a markdown code fence that opens before any JSON
// container, or s unchanged. The body runs to the last fence, so backticks inside string
// values survive. An unterminated fence yields everything after the opening line.
func stripFences(s string) string {
	i := strings.Index(s, "```")
	if i < 0 {
		return s
	}
	if c := strings.IndexAny(s, "{["); c >= 0 && c < i {
		return s
	}
	rest := s[i+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && isFenceTag(rest[:nl]) {
		rest = rest[nl+1:]
	}
	if j := strings.LastIndex(rest, "```"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

func isFenceTag(line string) bool {
	for _, r := range strings.TrimSpace(line) {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
