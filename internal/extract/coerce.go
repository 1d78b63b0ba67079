package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/panel-extractor/internal/layout"
)

// plain decimal or exponent notation; rejects units, hex, "NaN", "Inf" and thousands separators
var reNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

var errTypeMismatch = errors.New("type mismatch")

// Coerce converts one decoded item to a record of desc. A non-empty problems list means the
// item must be rejected as a unit. With lenient set, an optional field that fails coercion
// becomes nil and is reported as a warning instead.
func Coerce(item any, desc *layout.Descriptor, lenient bool) (Record, []string) {
	rec := Record{Layout: desc.ID, Values: make(map[string]any, len(desc.Fields))}

	obj, ok := item.(map[string]any)
	if !ok {
		return rec, []string{fmt.Sprintf("item is %s, not an object", kindOf(item))}
	}

	var problems []string
	used := make(map[string]bool, len(obj))
	for _, f := range desc.Fields {
		key, raw, present := lookup(obj, f.Name)
		if present {
			used[key] = true
		}

		var v any
		if present && raw != nil {
			var err error
			v, err = coerceValue(f, raw)
			if err != nil {
				switch {
				case f.Required:
					problems = append(problems, fmt.Sprintf("%s: %v", f.Name, err))
				case lenient:
					rec.Warnings = append(rec.Warnings, fmt.Sprintf("%s: %v; stored as null", f.Name, err))
				default:
					problems = append(problems, fmt.Sprintf("%s: %v", f.Name, err))
				}
				rec.Values[f.Name] = nil
				continue
			}
		}

		if v == nil && f.Required {
			if present {
				problems = append(problems, fmt.Sprintf("%s: required field is null", f.Name))
			} else {
				problems = append(problems, fmt.Sprintf("%s: required field is missing", f.Name))
			}
		}
		rec.Values[f.Name] = v
	}

	var unknown []string
	for k := range obj {
		if !used[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("dropped unknown field %q", k))
	}
	return rec, problems
}

// lookup finds name in obj, falling back to a case-insensitive match.
func lookup(obj map[string]any, name string) (string, any, bool) {
	if v, ok := obj[name]; ok {
		return name, v, true
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, name) {
			return k, obj[k], true
		}
	}
	return "", nil, false
}

// coerceValue converts raw to the Go type of f. A nil result with a nil error means the
// model wrote a placeholder such as "n/a".
func coerceValue(f layout.Field, raw any) (any, error) {
	switch f.Type {
	case layout.TypeString:
		return toString(raw)
	case layout.TypeInteger:
		return toInt(raw)
	case layout.TypeReal:
		return toFloat(raw)
	case layout.TypeStringList:
		return toStringList(raw)
	case layout.TypeRealList:
		return toFloatList(raw)
	default:
		return nil, fmt.Errorf("unsupported type %q", f.Type)
	}
}

func isPlaceholder(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "n/a", "-":
		return true
	}
	return false
}

func toString(raw any) (any, error) {
	switch t := raw.(type) {
	case string:
		s := strings.TrimSpace(t)
		if isPlaceholder(s) {
			return nil, nil
		}
		return s, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return nil, fmt.Errorf("%w: want string, got %s", errTypeMismatch, kindOf(raw))
	}
}

func toFloat(raw any) (any, error) {
	var s string
	switch t := raw.(type) {
	case json.Number:
		s = t.String()
	case float64:
		return t, nil
	case string:
		s = strings.TrimSpace(t)
		if isPlaceholder(s) {
			return nil, nil
		}
	default:
		return nil, fmt.Errorf("%w: want number, got %s", errTypeMismatch, kindOf(raw))
	}
	if !reNumber.MatchString(s) {
		return nil, fmt.Errorf("%w: %q is not a number", errTypeMismatch, s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %q is out of range", errTypeMismatch, s)
	}
	return f, nil
}

func toInt(raw any) (any, error) {
	if n, ok := raw.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	if s, ok := raw.(string); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, nil
		}
	}
	v, err := toFloat(raw)
	if err != nil || v == nil {
		if err != nil {
			err = fmt.Errorf("%w: want integer, got %s", errTypeMismatch, describe(raw))
		}
		return nil, err
	}
	f := v.(float64)
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("%w: %v is not a whole number", errTypeMismatch, f)
	}
	return int64(f), nil
}

func toStringList(raw any) (any, error) {
	switch t := raw.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return []string{}, nil
		}
		return []string{s}, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, el := range t {
			if el == nil {
				continue
			}
			switch el.(type) {
			case string, json.Number, float64, bool:
			default:
				return nil, fmt.Errorf("%w: element %d is %s", errTypeMismatch, i, kindOf(el))
			}
			s, _ := toString(el)
			if s == nil {
				continue
			}
			out = append(out, s.(string))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: want list of strings, got %s", errTypeMismatch, kindOf(raw))
	}
}

func toFloatList(raw any) (any, error) {
	switch t := raw.(type) {
	case json.Number, float64, string:
		v, err := toFloat(t)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return []float64{}, nil
		}
		return []float64{v.(float64)}, nil
	case []any:
		out := make([]float64, 0, len(t))
		for i, el := range t {
			if el == nil {
				continue
			}
			v, err := toFloat(el)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			if v == nil {
				continue
			}
			out = append(out, v.(float64))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: want list of numbers, got %s", errTypeMismatch, kindOf(raw))
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func describe(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return kindOf(v)
}
