package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/panel-extractor/constants"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
)

// Options tune coercion.
type Options struct {
	// LenientOptional turns coercion failures on optional fields into nulls with a warning.
	LenientOptional bool
}

// Extractor is the single schema-driven field extractor. One instance serves every layout.
type Extractor struct {
	invoker llm.Invoker
	opts    Options
	logger  *slog.Logger

	envelope *llm.Schema

	mu      sync.Mutex
	schemas map[string]*compiledLayout // keyed by relation table
}

type compiledLayout struct {
	item *llm.Schema
	hint string
}

// New builds an extractor around invoker.
func New(invoker llm.Invoker, opts Options, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	env, err := llm.CompileSchema(layout.ItemsEnvelopeSchema())
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return &Extractor{
		invoker:  invoker,
		opts:     opts,
		logger:   logger,
		envelope: env,
		schemas:  map[string]*compiledLayout{},
	}, nil
}

func (e *Extractor) compiled(desc *layout.Descriptor) (*compiledLayout, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.schemas[desc.Relation.Table]; ok {
		return c, nil
	}
	item, err := llm.CompileSchema(desc.ItemSchema())
	if err != nil {
		return nil, fmt.Errorf("compile item schema for %s: %w", desc.Name, err)
	}
	c := &compiledLayout{item: item, hint: SchemaHint(desc)}
	e.schemas[desc.Relation.Table] = c
	return c, nil
}

// Extract reads desc's fields off img. A returned error is always *Failure; item-level
// problems are reported in Extraction.Rejections and never fail the call.
func (e *Extractor) Extract(ctx context.Context, img llm.Image, desc *layout.Descriptor) (Extraction, error) {
	start := time.Now()
	schemas, err := e.compiled(desc)
	if err != nil {
		return Extraction{}, &Failure{Reason: constants.ReasonSchemaViolation, Err: err}
	}

	e.logger.Info("extract.start", "image", img.Name, "layout_id", desc.ID, "layout", desc.Name)

	raw, err := e.invoker.Invoke(ctx, llm.Request{
		System:       SystemPrompt,
		Instructions: BuildInstructions(desc, img.CapturedAt),
		SchemaHint:   schemas.hint,
		Image:        img,
		JSON:         true,
	})
	if err != nil {
		reason := constants.ReasonInferenceFailed
		if llm.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = constants.ReasonInferenceTimeout
		}
		e.logger.Error("extract.inference_failed",
			"image", img.Name, "layout_id", desc.ID, "reason", reason, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Extraction{}, &Failure{Reason: reason, Err: err}
	}

	doc, err := llm.Decode(raw)
	if err != nil {
		e.logger.Warn("extract.unparseable", "image", img.Name, "layout_id", desc.ID, "error", err, "raw_len", len(raw))
		return Extraction{}, &Failure{Reason: constants.ReasonUnparseableResponse, Raw: raw, Err: err}
	}

	if err := e.envelope.Validate(doc); err != nil {
		e.logger.Warn("extract.missing_items", "image", img.Name, "layout_id", desc.ID, "error", err)
		return Extraction{}, &Failure{Reason: constants.ReasonMissingItems, Raw: raw, Err: err}
	}
	items := doc.(map[string]any)[layout.ItemsKey].([]any)

	out := Extraction{Layout: desc.ID, Raw: raw}
	for i, item := range items {
		rec, problems := Coerce(item, desc, e.opts.LenientOptional)
		rec.Index = i
		if len(problems) == 0 {
			if err := schemas.item.Validate(rec.Values); err != nil {
				problems = append(problems, err.Error())
			}
		}
		if len(problems) > 0 {
			rej := ItemRejection{Index: i, Item: item, Problems: problems}
			e.logger.Warn("extract.item_rejected",
				"image", img.Name, "layout_id", desc.ID, "index", i, "problems", problems,
			)
			out.Rejections = append(out.Rejections, rej)
			continue
		}
		if len(rec.Warnings) > 0 {
			e.logger.Info("extract.item_warnings", "image", img.Name, "layout_id", desc.ID, "index", i, "warnings", rec.Warnings)
		}
		out.Records = append(out.Records, rec)
	}

	e.logger.Info("extract.ok",
		"image", img.Name,
		"layout_id", desc.ID,
		"items", len(items),
		"records", len(out.Records),
		"rejected", len(out.Rejections),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
