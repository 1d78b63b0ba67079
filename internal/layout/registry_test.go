package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	require.Equal(t, 10, reg.Len())
	assert.Equal(t, 11, reg.NoMatchID())

	tables := map[string]bool{}
	for _, d := range reg.All() {
		ts, ok := d.Field(FieldCurrentDateTime)
		require.True(t, ok, "layout %d", d.ID)
		assert.True(t, ts.Required)
		assert.Equal(t, TypeString, ts.Type)

		if alarms, ok := d.Field(FieldAlarmMessages); ok {
			assert.Equal(t, TypeStringList, alarms.Type)
		}
		assert.Equal(t, d.FieldNames(), d.Relation.Columns)
		assert.False(t, tables[d.Relation.Table], "duplicate table %s", d.Relation.Table)
		tables[d.Relation.Table] = true
	}
}

func TestAnalogMetersLayout(t *testing.T) {
	d, ok := DefaultRegistry().Get(7)
	require.True(t, ok)
	assert.Equal(t, "control_panel7", d.Relation.Table)
	assert.Len(t, d.Fields, 6)
	assert.Equal(t, []string{FieldCurrentDateTime}, d.RequiredFields())
}

func TestRegistryGetOutOfRange(t *testing.T) {
	reg := DefaultRegistry()
	for _, id := range []int{-1, 0, 11, 99} {
		_, ok := reg.Get(id)
		assert.False(t, ok, "id %d", id)
	}
}

func TestNewRegistrySortsAndCountsNoMatch(t *testing.T) {
	all := Builtin()
	reg, err := NewRegistry(all[3], all[1], all[0], all[2])
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Len())
	assert.Equal(t, 5, reg.NoMatchID())
	for i, d := range reg.All() {
		assert.Equal(t, i+1, d.ID)
	}
}

func TestNewRegistryRejectsInvalidDescriptors(t *testing.T) {
	valid := func() Descriptor {
		return newDescriptor(1, "meters", "Meters", "meters", "", []string{"a voltmeter"}, []Field{
			timestampField("clock"),
			num("Voltmeter_V", "volts"),
		})
	}

	tests := []struct {
		name   string
		mutate func(d *Descriptor)
	}{
		{"gap in ids", func(d *Descriptor) { d.ID = 2 }},
		{"missing timestamp", func(d *Descriptor) {
			d.Fields = d.Fields[1:]
			d.Relation.Columns = d.FieldNames()
		}},
		{"optional timestamp", func(d *Descriptor) { d.Fields[0].Required = false }},
		{"alarms not a list", func(d *Descriptor) {
			d.Fields = append(d.Fields, str(FieldAlarmMessages, "alarms"))
			d.Relation.Columns = d.FieldNames()
		}},
		{"bad table name", func(d *Descriptor) { d.Relation.Table = "drop table;" }},
		{"bad field name", func(d *Descriptor) {
			d.Fields[1].Name = "Volt meter"
			d.Relation.Columns = d.FieldNames()
		}},
		{"columns drift from fields", func(d *Descriptor) { d.Relation.Columns = []string{FieldCurrentDateTime} }},
		{"unknown type", func(d *Descriptor) { d.Fields[1].Type = "decimal" }},
		{"identity collision", func(d *Descriptor) {
			d.Fields[1].Name = IdentityColumn
			d.Relation.Columns = d.FieldNames()
		}},
		{"no diagnostics", func(d *Descriptor) { d.Diagnostics = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(&d)
			_, err := NewRegistry(d)
			require.Error(t, err)
		})
	}

	_, err := NewRegistry(valid())
	require.NoError(t, err)
}

func TestNewRegistryRejectsDuplicateTables(t *testing.T) {
	all := Builtin()
	second := all[1]
	second.Relation.Table = all[0].Relation.Table
	_, err := NewRegistry(all[0], second)
	require.Error(t, err)
}

func TestRegistryIsImmutable(t *testing.T) {
	descs := Builtin()
	reg, err := NewRegistry(descs...)
	require.NoError(t, err)

	descs[6].Fields[1].Name = "Changed"
	d, _ := reg.Get(7)
	assert.Equal(t, "Voltmeter_V", d.Fields[1].Name)
}

func TestItemSchema(t *testing.T) {
	d, _ := DefaultRegistry().Get(1)
	s := d.ItemSchema()

	assert.ElementsMatch(t, []string{FieldCurrentDateTime, "AdditivePercentage", "Company", FieldAlarmMessages}, s["required"])
	props := s["properties"].(map[string]any)
	assert.Equal(t, "integer", props["NumberOfTapes"].(map[string]any)["type"].([]string)[0])
	assert.Equal(t, "array", props["AdditivePercentage"].(map[string]any)["type"])
	assert.Equal(t, []string{"number", "null"}, props["HDPE_factor"].(map[string]any)["type"])

	env := d.EnvelopeSchema()
	items := env["properties"].(map[string]any)[ItemsKey].(map[string]any)
	assert.Equal(t, 1, items["minItems"])
}

func TestParseYAML(t *testing.T) {
	doc := []byte(`
layouts:
  - id: 1
    name: analog_meters
    table: control_panel7
    diagnostics: ["An analog voltmeter (V)"]
    fields:
      - {name: CurrentDateTime, type: string, required: true, description: when}
      - {name: Voltmeter_V, type: real}
      - {name: AlarmMessages, type: string_list, required: true}
`)
	descs, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, descs, 1)

	reg, err := NewRegistry(descs...)
	require.NoError(t, err)
	d, ok := reg.Get(1)
	require.True(t, ok)
	assert.Equal(t, "analog_meters", d.Title)
	assert.Equal(t, []string{"CurrentDateTime", "Voltmeter_V", "AlarmMessages"}, d.Relation.Columns)
	assert.Equal(t, TypeReal, d.Fields[1].Type)
}

func TestLoadEmptyPathUsesBuiltins(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, len(Builtin()), reg.Len())
}
