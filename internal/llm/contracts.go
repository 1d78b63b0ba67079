package llm

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/joseph-ayodele/panel-extractor/internal/common"
)

// Image is one decoded photograph handed to the model.
type Image struct {
	Name       string // file name or upload name, for logs only
	MIME       string
	Data       []byte
	SHA256     string // hex digest, empty when unknown
	CapturedAt time.Time
}

// Request is a single inference call: instructions plus an attached image.
type Request struct {
	// System frames the model's role.
	System string
	// Instructions is the task text.
	Instructions string
	// SchemaHint is an optional machine-readable shape (JSON Schema text).
	SchemaHint string
	Image      Image
	// JSON asks the provider for a JSON-only reply when it supports that.
	JSON bool
}

// Invoker is the model-inference collaborator: image and instructions in, raw text out.
// Implementations must return promptly when ctx is done and report timeouts so that
// IsTimeout recognizes them.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, req Request) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ErrTimeout marks an inference call that ran out of time.
var ErrTimeout = common.ErrTimeout

// IsTimeout reports whether err came from a deadline: context, network or provider.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
