package repository

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"entgo.io/ent/dialect"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/panel-extractor/internal/common"
	"github.com/joseph-ayodele/panel-extractor/internal/extract"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "panels.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func provisioned(t *testing.T) (*Store, *layout.Registry) {
	t.Helper()
	s := openSQLite(t)
	reg := layout.DefaultRegistry()
	require.NoError(t, NewProvisioner(s, nil).Provision(context.Background(), reg))
	return s, reg
}

func meterRecord(ts string, volts any) extract.Record {
	return extract.Record{Layout: 7, Values: map[string]any{
		"CurrentDateTime":    ts,
		"Voltmeter_V":        volts,
		"Ammeter_A":          nil,
		"RedLight_status":    "ON",
		"YellowLight_status": nil,
		"BlueLight_status":   nil,
	}}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"}, nil)
	require.Error(t, err)
}

func TestProvisionIsIdempotentAndVerifies(t *testing.T) {
	s := openSQLite(t)
	reg := layout.DefaultRegistry()
	p := NewProvisioner(s, nil)
	ctx := context.Background()

	err := p.Verify(ctx, reg)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeSchemaDrift))
	assert.Contains(t, err.Error(), "control_panel1")

	require.NoError(t, p.Provision(ctx, reg))
	require.NoError(t, p.Provision(ctx, reg))
	require.NoError(t, p.Verify(ctx, reg))
	require.NoError(t, s.HealthCheck(ctx, 0))
}

func TestVerifyDetectsMissingColumn(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	_, err := s.DB().ExecContext(ctx, "CREATE TABLE control_panel7 (id INTEGER PRIMARY KEY AUTOINCREMENT, CurrentDateTime TEXT)")
	require.NoError(t, err)

	all := layout.Builtin()
	meters := all[6]
	meters.ID = 1
	reg, err := layout.NewRegistry(meters)
	require.NoError(t, err)

	err = NewProvisioner(s, nil).Verify(ctx, reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control_panel7")
}

func TestPersistAndList(t *testing.T) {
	s, reg := provisioned(t)
	repo := NewRecordRepository(s, nil)
	ctx := context.Background()
	meters, _ := reg.Get(7)

	require.NoError(t, repo.Persist(ctx, meterRecord("01.01.2024 10:00:00", 220.0), meters))
	require.NoError(t, repo.Persist(ctx, meterRecord("01.01.2024 10:05:00", 221.5), meters))

	rows, err := repo.List(ctx, meters, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].ID)
	if diff := cmp.Diff(meterRecord("01.01.2024 10:00:00", 220.0).Values, rows[0].Values); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}

	rows, err = repo.List(ctx, meters, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPersistEncodesLists(t *testing.T) {
	s, reg := provisioned(t)
	repo := NewRecordRepository(s, nil)
	ctx := context.Background()
	material, _ := reg.Get(1)

	values := map[string]any{}
	for _, f := range material.Fields {
		values[f.Name] = nil
	}
	values["CurrentDateTime"] = "01.01.2024 10:00:00"
	values["Company"] = "ACME"
	values["NumberOfTapes"] = int64(96)
	values["AdditivePercentage"] = []float64{1.5, 2}
	values["AlarmMessages"] = []string{}

	require.NoError(t, repo.Persist(ctx, extract.Record{Layout: 1, Values: values}, material))

	var alarms, additives string
	err := s.DB().QueryRowContext(ctx, "SELECT AlarmMessages, AdditivePercentage FROM control_panel1").Scan(&alarms, &additives)
	require.NoError(t, err)
	assert.Equal(t, "[]", alarms)
	assert.Equal(t, "[1.5,2]", additives)

	rows, err := repo.List(ctx, material, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []float64{1.5, 2}, rows[0].Values["AdditivePercentage"])
	assert.Equal(t, []string{}, rows[0].Values["AlarmMessages"])
	assert.Equal(t, int64(96), rows[0].Values["NumberOfTapes"])
}

func TestPersistFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("serialization", func(t *testing.T) {
		s, reg := provisioned(t)
		meters, _ := reg.Get(7)
		err := NewRecordRepository(s, nil).Persist(ctx, meterRecord("01.01.2024", "220"), meters)

		var f *PersistFailure
		require.ErrorAs(t, err, &f)
		assert.Equal(t, FailureSerialization, f.Kind)
		assert.Equal(t, "control_panel7", f.Relation)
	})

	t.Run("wrong layout", func(t *testing.T) {
		s, reg := provisioned(t)
		material, _ := reg.Get(1)
		err := NewRecordRepository(s, nil).Persist(ctx, meterRecord("01.01.2024", 1.0), material)

		var f *PersistFailure
		require.ErrorAs(t, err, &f)
		assert.Equal(t, FailureSerialization, f.Kind)
	})

	t.Run("constraint", func(t *testing.T) {
		s, reg := provisioned(t)
		_, err := s.DB().ExecContext(ctx, "CREATE UNIQUE INDEX meters_ts ON control_panel7 (CurrentDateTime)")
		require.NoError(t, err)
		meters, _ := reg.Get(7)
		repo := NewRecordRepository(s, nil)

		require.NoError(t, repo.Persist(ctx, meterRecord("01.01.2024", 1.0), meters))
		err = repo.Persist(ctx, meterRecord("01.01.2024", 2.0), meters)
		require.Error(t, err)
		assert.True(t, IsConstraint(err))

		rows, err := repo.List(ctx, meters, 0)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("connection", func(t *testing.T) {
		s, reg := provisioned(t)
		meters, _ := reg.Get(7)
		s.Close()

		err := NewRecordRepository(s, nil).Persist(ctx, meterRecord("01.01.2024", 1.0), meters)
		var f *PersistFailure
		require.ErrorAs(t, err, &f)
		assert.Equal(t, FailureConnection, f.Kind)
	})
}

func TestCreateTableSQL(t *testing.T) {
	meters, _ := layout.DefaultRegistry().Get(7)

	pg := CreateTableSQL(dialect.Postgres, meters)
	assert.True(t, strings.HasPrefix(pg, `CREATE TABLE IF NOT EXISTS "control_panel7" (`))
	assert.Contains(t, pg, `"id" BIGSERIAL PRIMARY KEY`)
	assert.Contains(t, pg, `"Voltmeter_V" DOUBLE PRECISION`)
	assert.Contains(t, pg, `"CurrentDateTime" TEXT`)

	my := CreateTableSQL(dialect.MySQL, meters)
	assert.Contains(t, my, "`id` BIGINT AUTO_INCREMENT PRIMARY KEY")
	assert.Contains(t, my, "`Voltmeter_V` DOUBLE")
	assert.NotContains(t, my, "DROP")
}
