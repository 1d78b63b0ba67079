package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/panel-extractor/constants"
	"github.com/joseph-ayodele/panel-extractor/internal/classify"
	"github.com/joseph-ayodele/panel-extractor/internal/common"
	"github.com/joseph-ayodele/panel-extractor/internal/extract"
	"github.com/joseph-ayodele/panel-extractor/internal/ingest"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
)

const defaultPersistWorkers = 4

type Classifier interface {
	Classify(ctx context.Context, img llm.Image) (classify.Classification, error)
}

type Extractor interface {
	Extract(ctx context.Context, img llm.Image, desc *layout.Descriptor) (extract.Extraction, error)
}

// Persister stores one record. repository.RecordRepository satisfies it.
type Persister interface {
	Persist(ctx context.Context, rec extract.Record, desc *layout.Descriptor) error
}

// ImageReader loads a photograph from disk. ingest.FSIngestor satisfies it.
type ImageReader interface {
	ReadImage(path string) (llm.Image, error)
}

// Config tunes a pipeline.
type Config struct {
	// PersistWorkers bounds concurrent inserts per image. Zero means 4.
	PersistWorkers int
	// MinVisibleRatio drops records whose share of non-null fields, CurrentDateTime
	// excluded, is below it. Zero turns the check off.
	MinVisibleRatio float64
}

// Pipeline runs classify, extract and persist for one image at a time. It is safe for
// concurrent use when its collaborators are.
type Pipeline struct {
	reg        *layout.Registry
	classifier Classifier
	extractor  Extractor
	persister  Persister
	reader     ImageReader
	cfg        Config
	metrics    *Metrics
	sinks      []Sink
	logger     *slog.Logger
}

type Option func(*Pipeline)

func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithSinks(sinks ...Sink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, sinks...) }
}

func WithImageReader(r ImageReader) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.reader = r
		}
	}
}

func New(reg *layout.Registry, c Classifier, e Extractor, ps Persister, cfg Config, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PersistWorkers <= 0 {
		cfg.PersistWorkers = defaultPersistWorkers
	}
	p := &Pipeline{
		reg:        reg,
		classifier: c,
		extractor:  e,
		persister:  ps,
		cfg:        cfg,
		logger:     logger,
	}
	for _, o := range opts {
		o(p)
	}
	if p.reader == nil {
		p.reader = ingest.NewFSIngestor(logger)
	}
	return p
}

// RunPath reads the image at path and runs it. An unreadable file is a rejected result.
func (p *Pipeline) RunPath(ctx context.Context, path string) Result {
	img, err := p.reader.ReadImage(path)
	if err != nil {
		start := time.Now()
		res := p.newResult(ctx, llm.Image{Name: path}, start)
		p.logger.Warn("pipeline.read_failed", "run_id", res.RunID, "path", path, "error", err)
		res = p.reject(res, constants.ReasonImageUnreadable, "", err)
		return p.finish(ctx, res, start)
	}
	return p.Run(ctx, img)
}

// Run processes one image. It never panics on bad model output and never returns an error:
// every outcome, including a rejection, is described by the Result.
func (p *Pipeline) Run(ctx context.Context, img llm.Image) Result {
	start := time.Now()
	res := p.newResult(ctx, img, start)
	ctx = common.WithRunID(ctx, res.RunID)
	logger := p.logger.With("run_id", res.RunID, "image", img.Name)
	logger.Info("pipeline.start", "bytes", len(img.Data), "sha256", img.SHA256)

	cls, err := p.classifier.Classify(ctx, img)
	if err != nil {
		var f *classify.Failure
		raw := ""
		if errors.As(err, &f) {
			raw = f.Raw
		}
		logger.Warn("pipeline.rejected", "reason", constants.ReasonClassifierFailure, "error", err)
		return p.finish(ctx, p.reject(res, constants.ReasonClassifierFailure, raw, err), start)
	}
	if cls.NoMatch {
		logger.Info("pipeline.rejected", "reason", constants.ReasonNoMatch, "reply", cls.Raw)
		return p.finish(ctx, p.reject(res, constants.ReasonNoMatch, cls.Raw, nil), start)
	}

	desc, ok := p.reg.Get(cls.LayoutID)
	if !ok {
		logger.Error("pipeline.rejected", "reason", constants.ReasonUnknownLayout, "layout_id", cls.LayoutID)
		return p.finish(ctx, p.reject(res, constants.ReasonUnknownLayout, cls.Raw,
			fmt.Errorf("layout %d is not registered", cls.LayoutID)), start)
	}
	res.LayoutID = desc.ID
	res.Relation = desc.Relation.Table
	ctx = common.WithLayoutID(ctx, desc.ID)
	logger = logger.With("layout_id", desc.ID)
	logger.Info("pipeline.classified", "layout", desc.Name, "relation", desc.Relation.Table)

	ex, err := p.extractor.Extract(ctx, img, desc)
	if err != nil {
		reason := constants.ReasonInferenceFailed
		raw := ""
		var f *extract.Failure
		if errors.As(err, &f) {
			reason = f.Reason
			raw = f.Raw
		}
		logger.Warn("pipeline.rejected", "reason", reason, "error", err)
		return p.finish(ctx, p.reject(res, reason, raw, err), start)
	}

	for _, rej := range ex.Rejections {
		res.Failures = append(res.Failures, RecordFailure{
			Index:  rej.Index,
			Stage:  constants.StageValidate,
			Reason: strings.Join(rej.Problems, "; "),
			Item:   rej.Item,
		})
	}

	records := make([]extract.Record, 0, len(ex.Records))
	for _, rec := range ex.Records {
		if ratio, ok := p.corroborate(rec, desc); !ok {
			logger.Warn("pipeline.record.uncorroborated", "index", rec.Index, "visible_ratio", ratio)
			res.Failures = append(res.Failures, RecordFailure{
				Index:  rec.Index,
				Stage:  constants.StageCorroborate,
				Reason: fmt.Sprintf("only %.0f%% of fields visible, need %.0f%%", ratio*100, p.cfg.MinVisibleRatio*100),
				Item:   rec.Values,
			})
			continue
		}
		records = append(records, rec)
	}

	persisted, failures := p.persistAll(ctx, logger, records, desc)
	res.Persisted = persisted
	res.Failures = append(res.Failures, failures...)
	sort.SliceStable(res.Failures, func(i, j int) bool { return res.Failures[i].Index < res.Failures[j].Index })

	res.Outcome = constants.OutcomePersisted
	if len(res.Failures) > 0 {
		res.Raw = ex.Raw
	}
	return p.finish(ctx, res, start)
}

// persistAll stores records concurrently. A failed insert is reported and never cancels
// the others.
func (p *Pipeline) persistAll(ctx context.Context, logger *slog.Logger, records []extract.Record, desc *layout.Descriptor) (int, []RecordFailure) {
	var (
		mu        sync.Mutex
		persisted int
		failures  []RecordFailure
	)
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.PersistWorkers)
	for _, rec := range records {
		g.Go(func() error {
			err := p.persister.Persist(ctx, rec, desc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("pipeline.record.persist_failed", "index", rec.Index, "error", err)
				failures = append(failures, RecordFailure{
					Index:  rec.Index,
					Stage:  constants.StagePersist,
					Reason: err.Error(),
					Item:   rec.Values,
				})
				return nil
			}
			persisted++
			return nil
		})
	}
	_ = g.Wait()
	return persisted, failures
}

// corroborate checks the visible-field share of rec. It returns the share and whether the
// record may be stored.
func (p *Pipeline) corroborate(rec extract.Record, desc *layout.Descriptor) (float64, bool) {
	if p.cfg.MinVisibleRatio <= 0 {
		return 1, true
	}
	total, visible := 0, 0
	for _, f := range desc.Fields {
		if f.Name == layout.FieldCurrentDateTime {
			continue
		}
		total++
		if rec.Values[f.Name] != nil {
			visible++
		}
	}
	if total == 0 {
		return 1, true
	}
	ratio := float64(visible) / float64(total)
	return ratio, ratio >= p.cfg.MinVisibleRatio
}

func (p *Pipeline) newResult(ctx context.Context, img llm.Image, start time.Time) Result {
	return Result{
		RunID:     uuid.New().String(),
		TraceID:   common.TraceIDFromContext(ctx),
		Source:    img.Name,
		SHA256:    img.SHA256,
		StartedAt: start.UTC(),
	}
}

func (p *Pipeline) reject(res Result, reason constants.RejectReason, raw string, err error) Result {
	res.Outcome = constants.OutcomeRejected
	res.Reason = reason
	res.Raw = raw
	if err != nil {
		res.Detail = err.Error()
	}
	return res
}

func (p *Pipeline) finish(ctx context.Context, res Result, start time.Time) Result {
	res.Elapsed = time.Since(start)
	res.ElapsedMS = res.Elapsed.Milliseconds()
	p.metrics.observeRun(res)

	p.logger.Info("pipeline.done",
		"run_id", res.RunID,
		"image", res.Source,
		"outcome", res.Outcome,
		"reason", res.Reason,
		"layout_id", res.LayoutID,
		"persisted", res.Persisted,
		"failures", len(res.Failures),
		"elapsed_ms", res.ElapsedMS,
	)

	for _, s := range p.sinks {
		if err := s.Deliver(ctx, res); err != nil {
			p.logger.Warn("pipeline.sink_failed", "run_id", res.RunID, "error", err)
		}
	}
	return res
}
