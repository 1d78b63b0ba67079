package pipeline

import (
	"context"
	"time"

	"github.com/joseph-ayodele/panel-extractor/constants"
)

// RecordFailure is one record that did not reach its relation. Other records of the same
// image are unaffected.
type RecordFailure struct {
	Index  int                    `json:"index"`
	Stage  constants.FailureStage `json:"stage"`
	Reason string                 `json:"reason"`
	Item   any                    `json:"item,omitempty"`
}

// Result is the terminal report of one pipeline run.
type Result struct {
	RunID     string                 `json:"run_id"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Source    string                 `json:"source"`
	SHA256    string                 `json:"sha256,omitempty"`
	Outcome   constants.Outcome      `json:"outcome"`
	LayoutID  int                    `json:"layout_id,omitempty"`
	Relation  string                 `json:"relation,omitempty"`
	Persisted int                    `json:"persisted"`
	Failures  []RecordFailure        `json:"failures,omitempty"`
	Reason    constants.RejectReason `json:"reason,omitempty"`
	Detail    string                 `json:"detail,omitempty"`
	Raw       string                 `json:"raw,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	Elapsed   time.Duration          `json:"-"`
	ElapsedMS int64                  `json:"elapsed_ms"`
}

// Rejected reports whether the image ended without an extraction.
func (r Result) Rejected() bool {
	return r.Outcome == constants.OutcomeRejected
}

// Complete reports whether the run stored rows and lost none to storage errors. Only
// complete runs are safe to skip when the same image is seen again.
func (r Result) Complete() bool {
	if r.Outcome != constants.OutcomePersisted || r.Persisted == 0 {
		return false
	}
	for _, f := range r.Failures {
		if f.Stage == constants.StagePersist {
			return false
		}
	}
	return true
}

// Sink receives every finished result. Delivery errors are logged and never change the result.
type Sink interface {
	Deliver(ctx context.Context, res Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res Result) error

func (f SinkFunc) Deliver(ctx context.Context, res Result) error {
	return f(ctx, res)
}
