package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/panel-extractor/internal/classify"
	"github.com/joseph-ayodele/panel-extractor/internal/common"
	"github.com/joseph-ayodele/panel-extractor/internal/extract"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
	"github.com/joseph-ayodele/panel-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/panel-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/panel-extractor/internal/pipeline"
	"github.com/joseph-ayodele/panel-extractor/internal/repository"
)

// NewInvoker builds the configured model provider.
func NewInvoker(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Invoker, error) {
	switch cfg.Provider {
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai", "":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown LLM provider %q", cfg.Provider), common.ErrInvalidInput)
	}
}

// Components is the wired pipeline and what it was built from.
type Components struct {
	Registry   *layout.Registry
	Records    repository.RecordRepository
	Classifier *classify.Classifier
	Extractor  *extract.Extractor
	Pipeline   *pipeline.Pipeline
}

// BuildPipeline wires classifier, extractor and persistence around inv.
func BuildPipeline(cfg *common.Config, reg *layout.Registry, store *repository.Store, inv llm.Invoker, logger *slog.Logger, opts ...pipeline.Option) (*Components, error) {
	records := repository.NewRecordRepository(store, logger)
	classifier := classify.New(reg, inv, logger)
	extractor, err := extract.New(inv, extract.Options{LenientOptional: cfg.LLM.LenientOptional}, logger)
	if err != nil {
		return nil, err
	}
	p := pipeline.New(reg, classifier, extractor, records, pipeline.Config{
		PersistWorkers:  cfg.Pipeline.PersistWorkers,
		MinVisibleRatio: cfg.Pipeline.MinVisibleRatio,
	}, logger, opts...)
	return &Components{
		Registry:   reg,
		Records:    records,
		Classifier: classifier,
		Extractor:  extractor,
		Pipeline:   p,
	}, nil
}
