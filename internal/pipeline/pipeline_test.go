package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/panel-extractor/constants"
	"github.com/joseph-ayodele/panel-extractor/internal/classify"
	"github.com/joseph-ayodele/panel-extractor/internal/extract"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
	"github.com/joseph-ayodele/panel-extractor/internal/repository"
)

const twoMeterReadings = `{"items":[
	{"CurrentDateTime":"01.01.2024 10:00:00","Voltmeter_V":220,"RedLight_status":"ON"},
	{"CurrentDateTime":"01.01.2024 10:00:05","Voltmeter_V":221.5,"Ammeter_A":3.2,"RedLight_status":"OFF"}
]}`

type harness struct {
	reg      *layout.Registry
	repo     repository.RecordRepository
	pipeline *Pipeline
	extracts atomic.Int32
}

type setup struct {
	reg       *layout.Registry
	classify  string
	extract   func() (string, error)
	cfg       Config
	persister func(repository.RecordRepository) Persister
	opts      []Option
}

func newHarness(t *testing.T, s setup) *harness {
	t.Helper()
	ctx := context.Background()
	if s.reg == nil {
		s.reg = layout.DefaultRegistry()
	}

	store, err := repository.Open(ctx, repository.Config{
		Driver: repository.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "panels.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, repository.NewProvisioner(store, nil).Provision(ctx, s.reg))

	h := &harness{reg: s.reg, repo: repository.NewRecordRepository(store, nil)}
	inv := llm.InvokerFunc(func(_ context.Context, req llm.Request) (string, error) {
		if !req.JSON {
			return s.classify, nil
		}
		h.extracts.Add(1)
		return s.extract()
	})

	ex, err := extract.New(inv, extract.Options{LenientOptional: true}, nil)
	require.NoError(t, err)
	var ps Persister = h.repo
	if s.persister != nil {
		ps = s.persister(h.repo)
	}
	h.pipeline = New(s.reg, classify.New(s.reg, inv, nil), ex, ps, s.cfg, nil, s.opts...)
	return h
}

func reply(s string) func() (string, error) {
	return func() (string, error) { return s, nil }
}

func (h *harness) rows(t *testing.T, id int) []repository.Row {
	t.Helper()
	d, ok := h.reg.Get(id)
	require.True(t, ok)
	rows, err := h.repo.List(context.Background(), d, 0)
	require.NoError(t, err)
	return rows
}

func TestRunPersistsEveryRecord(t *testing.T) {
	h := newHarness(t, setup{classify: "7", extract: reply(twoMeterReadings)})

	res := h.pipeline.Run(context.Background(), llm.Image{Name: "meters.jpg", SHA256: "abc"})
	assert.Equal(t, constants.OutcomePersisted, res.Outcome)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 7, res.LayoutID)
	assert.Equal(t, "control_panel7", res.Relation)
	assert.Equal(t, 2, res.Persisted)
	assert.Empty(t, res.Failures)
	assert.Empty(t, res.Raw)
	assert.Equal(t, "abc", res.SHA256)
	assert.NotEmpty(t, res.RunID)

	rows := h.rows(t, 7)
	require.Len(t, rows, 2)
	volts := []any{rows[0].Values["Voltmeter_V"], rows[1].Values["Voltmeter_V"]}
	assert.ElementsMatch(t, []any{220.0, 221.5}, volts)
}

func TestRunFencedReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"stray closing fence", twoMeterReadings + "\n```"},
		{"fenced", "```json\n" + twoMeterReadings + "\n```"},
		{"prose and fence", "Readings below.\n```json\n" + twoMeterReadings + "\n```\nLet me know."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, setup{classify: "7", extract: reply(tt.reply)})

			res := h.pipeline.Run(context.Background(), llm.Image{Name: "meters.jpg"})
			assert.Equal(t, constants.OutcomePersisted, res.Outcome, res.Detail)
			assert.Equal(t, 2, res.Persisted)
			assert.True(t, res.Complete())
			assert.Len(t, h.rows(t, 7), 2)
		})
	}
}

func TestResultComplete(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want bool
	}{
		{"all stored", Result{Outcome: constants.OutcomePersisted, Persisted: 2}, true},
		{"validation loss only", Result{Outcome: constants.OutcomePersisted, Persisted: 1,
			Failures: []RecordFailure{{Index: 1, Stage: constants.StageValidate}}}, true},
		{"nothing stored", Result{Outcome: constants.OutcomePersisted}, false},
		{"storage error", Result{Outcome: constants.OutcomePersisted, Persisted: 2,
			Failures: []RecordFailure{{Index: 2, Stage: constants.StagePersist}}}, false},
		{"rejected", Result{Outcome: constants.OutcomeRejected, Reason: constants.ReasonNoMatch}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Complete())
		})
	}
}

func TestRunNoMatchSkipsExtraction(t *testing.T) {
	reg, err := layout.NewRegistry(layout.Builtin()[:4]...)
	require.NoError(t, err)
	h := newHarness(t, setup{reg: reg, classify: "5", extract: reply(twoMeterReadings)})

	res := h.pipeline.Run(context.Background(), llm.Image{Name: "x.jpg"})
	assert.True(t, res.Rejected())
	assert.Equal(t, constants.ReasonNoMatch, res.Reason)
	assert.Zero(t, h.extracts.Load())
	assert.Zero(t, res.Persisted)
}

func TestRunClassifierFailure(t *testing.T) {
	h := newHarness(t, setup{classify: "the second one", extract: reply(twoMeterReadings)})

	res := h.pipeline.Run(context.Background(), llm.Image{})
	assert.True(t, res.Rejected())
	assert.Equal(t, constants.ReasonClassifierFailure, res.Reason)
	assert.Equal(t, "the second one", res.Raw)
	assert.NotEmpty(t, res.Detail)
	assert.Zero(t, h.extracts.Load())
}

func TestRunTruncatedReplyStoresNothing(t *testing.T) {
	raw := `{"items": [{"CurrentDateTime": "01.01.2024 10:00:00", "Voltmeter_V": 22`
	h := newHarness(t, setup{classify: "7", extract: reply(raw)})

	res := h.pipeline.Run(context.Background(), llm.Image{})
	assert.True(t, res.Rejected())
	assert.Equal(t, constants.ReasonUnparseableResponse, res.Reason)
	assert.Equal(t, raw, res.Raw)
	assert.Equal(t, 7, res.LayoutID)
	assert.Empty(t, h.rows(t, 7))
}

func TestRunExtractionTimeout(t *testing.T) {
	h := newHarness(t, setup{classify: "7", extract: func() (string, error) {
		return "", llm.ErrTimeout
	}})

	res := h.pipeline.Run(context.Background(), llm.Image{})
	assert.True(t, res.Rejected())
	assert.Equal(t, constants.ReasonInferenceTimeout, res.Reason)
}

func TestRunRejectsInvalidItemOnly(t *testing.T) {
	h := newHarness(t, setup{classify: "7", extract: reply(`{"items":[
		{"CurrentDateTime":"01.01.2024 10:00:00","Voltmeter_V":221.5},
		{"Voltmeter_V":219}
	]}`)})

	res := h.pipeline.Run(context.Background(), llm.Image{})
	assert.Equal(t, constants.OutcomePersisted, res.Outcome)
	assert.Equal(t, 1, res.Persisted)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Equal(t, constants.StageValidate, res.Failures[0].Stage)
	assert.Contains(t, res.Failures[0].Reason, "CurrentDateTime")
	assert.NotNil(t, res.Failures[0].Item)
	assert.NotEmpty(t, res.Raw)
	assert.Len(t, h.rows(t, 7), 1)
}

func TestRunPersistFailureDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t, setup{
		classify: "7",
		extract: reply(`{"items":[
			{"CurrentDateTime":"01.01.2024 10:00:00","Voltmeter_V":220},
			{"CurrentDateTime":"01.01.2024 10:00:01","Voltmeter_V":221},
			{"CurrentDateTime":"01.01.2024 10:00:02","Voltmeter_V":222}
		]}`),
		cfg: Config{PersistWorkers: 2},
		persister: func(repo repository.RecordRepository) Persister {
			return persistFunc(func(ctx context.Context, rec extract.Record, d *layout.Descriptor) error {
				if rec.Index == 1 {
					return &repository.PersistFailure{Kind: repository.FailureConstraint, Relation: d.Relation.Table, Err: errors.New("duplicate reading")}
				}
				return repo.Persist(ctx, rec, d)
			})
		},
	})

	res := h.pipeline.Run(context.Background(), llm.Image{})
	assert.Equal(t, constants.OutcomePersisted, res.Outcome)
	assert.Equal(t, 2, res.Persisted)
	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	assert.Equal(t, 1, f.Index)
	assert.Equal(t, constants.StagePersist, f.Stage)
	assert.Contains(t, f.Reason, "duplicate reading")
	assert.Equal(t, 221.0, f.Item.(map[string]any)["Voltmeter_V"])
	assert.Len(t, h.rows(t, 7), 2)
	assert.False(t, res.Complete())
}

type persistFunc func(ctx context.Context, rec extract.Record, d *layout.Descriptor) error

func (f persistFunc) Persist(ctx context.Context, rec extract.Record, d *layout.Descriptor) error {
	return f(ctx, rec, d)
}

func TestRunCorroboration(t *testing.T) {
	h := newHarness(t, setup{
		classify: "7",
		extract: reply(`{"items":[
			{"CurrentDateTime":"01.01.2024 10:00:00","Voltmeter_V":220},
			{"CurrentDateTime":"01.01.2024 10:00:05","Voltmeter_V":221,"Ammeter_A":3.1,"RedLight_status":"ON"}
		]}`),
		cfg: Config{MinVisibleRatio: 0.5},
	})

	res := h.pipeline.Run(context.Background(), llm.Image{})
	assert.Equal(t, 1, res.Persisted)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 0, res.Failures[0].Index)
	assert.Equal(t, constants.StageCorroborate, res.Failures[0].Stage)
}

func TestRunPath(t *testing.T) {
	h := newHarness(t, setup{classify: "7", extract: reply(twoMeterReadings)})
	ctx := context.Background()

	missing := h.pipeline.RunPath(ctx, filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, missing.Rejected())
	assert.Equal(t, constants.ReasonImageUnreadable, missing.Reason)

	path := filepath.Join(t.TempDir(), "meters.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	res := h.pipeline.RunPath(ctx, path)
	assert.Equal(t, constants.OutcomePersisted, res.Outcome)
	assert.Equal(t, path, res.Source)
	assert.Len(t, res.SHA256, 64)
}

func TestRunDeliversToSinksAndRecordsMetrics(t *testing.T) {
	promReg := prometheus.NewRegistry()
	metrics := NewMetrics(promReg)

	var (
		mu        sync.Mutex
		delivered []Result
	)
	sink := SinkFunc(func(_ context.Context, res Result) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, res)
		return errors.New("bus down")
	})
	h := newHarness(t, setup{
		classify: "7",
		extract:  reply(twoMeterReadings),
		opts:     []Option{WithMetrics(metrics), WithSinks(sink)},
	})

	res := h.pipeline.Run(context.Background(), llm.Image{})
	assert.Equal(t, constants.OutcomePersisted, res.Outcome)
	require.Len(t, delivered, 1)
	assert.Equal(t, res.RunID, delivered[0].RunID)

	assert.Equal(t, 1.0, counterValue(t, promReg, "panels_runs_total", "outcome", "PERSISTED"))
	assert.Equal(t, 2.0, counterValue(t, promReg, "panels_records_persisted_total", "relation", "control_panel7"))
}

func TestInstrumentInvoker(t *testing.T) {
	promReg := prometheus.NewRegistry()
	m := NewMetrics(promReg)
	inv := m.InstrumentInvoker("fake", llm.InvokerFunc(func(context.Context, llm.Request) (string, error) {
		return "", llm.ErrTimeout
	}))
	_, err := inv.Invoke(context.Background(), llm.Request{})
	assert.ErrorIs(t, err, llm.ErrTimeout)

	var nilMetrics *Metrics
	plain := llm.InvokerFunc(func(context.Context, llm.Request) (string, error) { return "ok", nil })
	out, err := nilMetrics.InstrumentInvoker("fake", plain).Invoke(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	mfs, err := promReg.Gather()
	require.NoError(t, err)
	var count uint64
	for _, mf := range mfs {
		if mf.GetName() != "panels_inference_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			count += metric.GetHistogram().GetSampleCount()
		}
	}
	assert.EqualValues(t, 1, count)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
