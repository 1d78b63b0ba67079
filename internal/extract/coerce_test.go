package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/panel-extractor/internal/layout"
)

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     layout.SemanticType
		in      any
		want    any
		wantErr bool
	}{
		{"string trimmed", layout.TypeString, "  ON ", "ON", false},
		{"string from number", layout.TypeString, json.Number("42"), "42", false},
		{"string from bool", layout.TypeString, true, "true", false},
		{"string placeholder", layout.TypeString, "n/a", nil, false},
		{"string placeholder uppercase", layout.TypeString, "NULL", nil, false},
		{"string none kept", layout.TypeString, "NONE", "NONE", false},
		{"string na kept", layout.TypeString, "NA", "NA", false},
		{"string from object", layout.TypeString, map[string]any{}, nil, true},

		{"integer", layout.TypeInteger, json.Number("12"), int64(12), false},
		{"integer zero fraction", layout.TypeInteger, json.Number("12.0"), int64(12), false},
		{"integer from string", layout.TypeInteger, "12", int64(12), false},
		{"integer from decimal string", layout.TypeInteger, " 12.0 ", int64(12), false},
		{"integer fraction", layout.TypeInteger, json.Number("12.5"), nil, true},
		{"integer with unit", layout.TypeInteger, "12 pcs", nil, true},
		{"integer placeholder", layout.TypeInteger, "-", nil, false},
		{"integer double dash", layout.TypeInteger, "--", nil, true},

		{"real", layout.TypeReal, json.Number("23.5"), 23.5, false},
		{"real exponent", layout.TypeReal, json.Number("1e3"), 1000.0, false},
		{"real from string", layout.TypeReal, "-0.25", -0.25, false},
		{"real with unit", layout.TypeReal, "23°C", nil, true},
		{"real with percent", layout.TypeReal, "45%", nil, true},
		{"real decimal comma", layout.TypeReal, "12,5", nil, true},
		{"real NaN", layout.TypeReal, "NaN", nil, true},
		{"real hex", layout.TypeReal, "0x10", nil, true},
		{"real from bool", layout.TypeReal, false, nil, true},

		{"string list", layout.TypeStringList, []any{"Low oil", json.Number("3"), nil}, []string{"Low oil", "3"}, false},
		{"string list single", layout.TypeStringList, "Low oil", []string{"Low oil"}, false},
		{"string list empty string", layout.TypeStringList, "", []string{}, false},
		{"string list nested", layout.TypeStringList, []any{[]any{"x"}}, nil, true},

		{"real list", layout.TypeRealList, []any{json.Number("1.5"), "2"}, []float64{1.5, 2}, false},
		{"real list single", layout.TypeRealList, json.Number("4"), []float64{4}, false},
		{"real list unit", layout.TypeRealList, []any{"4%"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceValue(layout.Field{Name: "f", Type: tt.typ}, tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errTypeMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceItem(t *testing.T) {
	d := layoutByID(t, 7)

	t.Run("not an object", func(t *testing.T) {
		_, problems := Coerce([]any{"x"}, d, true)
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0], "array")
	})

	t.Run("case-insensitive keys and unknown fields", func(t *testing.T) {
		rec, problems := Coerce(map[string]any{
			"currentDateTime": "01.01.2024",
			"voltmeter_v":     json.Number("5"),
			"Note":            "glare",
		}, d, true)
		require.Empty(t, problems)
		assert.Equal(t, "01.01.2024", rec.Values["CurrentDateTime"])
		assert.Equal(t, 5.0, rec.Values["Voltmeter_V"])
		assert.Equal(t, []string{`dropped unknown field "Note"`}, rec.Warnings)
	})

	t.Run("required null", func(t *testing.T) {
		_, problems := Coerce(map[string]any{"CurrentDateTime": nil}, d, true)
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0], "null")
	})

	t.Run("required placeholder", func(t *testing.T) {
		_, problems := Coerce(map[string]any{"CurrentDateTime": "  "}, d, true)
		require.Len(t, problems, 1)
	})

	t.Run("absent optionals become null", func(t *testing.T) {
		rec, problems := Coerce(map[string]any{"CurrentDateTime": "01.01.2024"}, d, false)
		require.Empty(t, problems)
		assert.Len(t, rec.Values, len(d.Fields))
		assert.Nil(t, rec.Values["BlueLight_status"])
		assert.Contains(t, rec.Values, "BlueLight_status")
	})
}
