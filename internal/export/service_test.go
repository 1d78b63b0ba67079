package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/panel-extractor/internal/extract"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
	"github.com/joseph-ayodele/panel-extractor/internal/repository"
)

func TestExportXLSX(t *testing.T) {
	ctx := context.Background()
	store, err := repository.Open(ctx, repository.Config{
		Driver: repository.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "panels.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	reg := layout.DefaultRegistry()
	require.NoError(t, repository.NewProvisioner(store, nil).Provision(ctx, reg))
	repo := repository.NewRecordRepository(store, nil)

	meters, _ := reg.Get(7)
	require.NoError(t, repo.Persist(ctx, extract.Record{Layout: 7, Values: map[string]any{
		"CurrentDateTime":    "01.01.2024 10:00:00",
		"Voltmeter_V":        220.5,
		"Ammeter_A":          nil,
		"RedLight_status":    "ON",
		"YellowLight_status": nil,
		"BlueLight_status":   nil,
	}}, meters))

	alarms, _ := reg.Get(5)
	values := map[string]any{}
	for _, f := range alarms.Fields {
		values[f.Name] = nil
	}
	values["CurrentDateTime"] = "02.01.2024 08:00:00"
	values["AlarmMessages"] = []string{"Melt pressure high", "Zone 3 low"}
	require.NoError(t, repo.Persist(ctx, extract.Record{Layout: 5, Values: values}, alarms))

	data, err := NewService(repo, nil).ExportXLSX(ctx, reg, 0)
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	require.Len(t, wb.GetSheetList(), reg.Len())

	rows, err := wb.GetRows(SheetName(meters))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, append([]string{"id"}, meters.Relation.Columns...), rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "01.01.2024 10:00:00", rows[1][1])
	assert.Equal(t, "220.5", rows[1][2])

	rows, err = wb.GetRows(SheetName(alarms))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	col := -1
	for i, h := range rows[0] {
		if h == "AlarmMessages" {
			col = i
		}
	}
	require.GreaterOrEqual(t, col, 0)
	assert.Equal(t, "Melt pressure high; Zone 3 low", rows[1][col])

	empty, err := wb.GetRows(SheetName(reg.All()[0]))
	require.NoError(t, err)
	assert.Len(t, empty, 1)
}

func TestSheetName(t *testing.T) {
	d := &layout.Descriptor{ID: 10, Name: "a_very_long_layout_name_that_overflows"}
	assert.Len(t, SheetName(d), 31)
	assert.Equal(t, "7_analog_meters", SheetName(&layout.Descriptor{ID: 7, Name: "analog_meters"}))
}
