package bus

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/panel-extractor/internal/pipeline"
)

// DefaultSubject carries pipeline results when none is configured.
const DefaultSubject = "panels.results"

type publisher interface {
	Publish(subject string, payload any) error
}

// ResultSink publishes every pipeline result as JSON.
type ResultSink struct {
	pub     publisher
	subject string
}

func NewResultSink(pub publisher, subject string) *ResultSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &ResultSink{pub: pub, subject: subject}
}

// Deliver implements pipeline.Sink.
func (s *ResultSink) Deliver(ctx context.Context, res pipeline.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.pub.Publish(s.subject, res); err != nil {
		return fmt.Errorf("publish %s to %s: %w", res.RunID, s.subject, err)
	}
	return nil
}
