package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/panel-extractor/internal/layout"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
)

// FailureKind says why a classification produced no usable answer.
type FailureKind string

const (
	KindUnparseable FailureKind = "unparseable"
	KindOutOfRange  FailureKind = "out_of_range"
	KindInference   FailureKind = "inference"
	KindTimeout     FailureKind = "timeout"
)

// Failure is a classifier failure. It is distinct from a "no match" answer, which is a
// valid classification.
type Failure struct {
	Kind FailureKind
	Raw  string // model reply, empty when inference failed
	Err  error
}

func (f *Failure) Error() string {
	switch {
	case f.Err != nil:
		return fmt.Sprintf("classifier %s: %v", f.Kind, f.Err)
	case f.Raw != "":
		return fmt.Sprintf("classifier %s: reply %q", f.Kind, truncate(f.Raw, 120))
	default:
		return fmt.Sprintf("classifier %s", f.Kind)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Classification is a valid classifier answer: a known layout, or no match.
type Classification struct {
	LayoutID int  // 1..N, zero when NoMatch
	NoMatch  bool // the model answered N+1
	Raw      string
}

// Classifier maps an image to one of the registry's layouts with a single inference call.
type Classifier struct {
	reg     *layout.Registry
	invoker llm.Invoker
	prompt  string
	logger  *slog.Logger
}

// New builds a classifier. The enumeration prompt is rendered once from reg.
func New(reg *layout.Registry, invoker llm.Invoker, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		reg:     reg,
		invoker: invoker,
		prompt:  BuildPrompt(reg),
		logger:  logger,
	}
}

// Prompt returns the rendered enumeration instruction.
func (c *Classifier) Prompt() string {
	return c.prompt
}

// Classify asks the model which layout img shows. Errors are always *Failure.
func (c *Classifier) Classify(ctx context.Context, img llm.Image) (Classification, error) {
	start := time.Now()
	reply, err := c.invoker.Invoke(ctx, llm.Request{
		System:       c.prompt,
		Instructions: "Classify the attached control panel image. Reply with the category number only.",
		Image:        img,
	})
	if err != nil {
		kind := KindInference
		if llm.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		c.logger.Error("classify.inference_failed",
			"image", img.Name, "kind", kind, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Classification{}, &Failure{Kind: kind, Err: err}
	}

	id, perr := ParseReply(reply)
	if perr != nil {
		c.logger.Warn("classify.unparseable", "image", img.Name, "reply", truncate(reply, 200))
		return Classification{}, &Failure{Kind: KindUnparseable, Raw: reply, Err: perr}
	}
	if id < 1 || id > c.reg.NoMatchID() {
		c.logger.Warn("classify.out_of_range", "image", img.Name, "answer", id, "max", c.reg.NoMatchID())
		return Classification{}, &Failure{Kind: KindOutOfRange, Raw: reply}
	}

	out := Classification{Raw: reply}
	if id == c.reg.NoMatchID() {
		out.NoMatch = true
	} else {
		out.LayoutID = id
	}
	c.logger.Info("classify.ok",
		"image", img.Name,
		"layout_id", out.LayoutID,
		"no_match", out.NoMatch,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// ParseReply normalizes a classifier reply and reads it as a single integer literal.
// Surrounding whitespace, backticks, quotes and one trailing period are tolerated.
func ParseReply(reply string) (int, error) {
	s := strings.TrimSuffix(strings.TrimSpace(reply), ".")
	s = strings.Trim(s, "`\"' \t\r\n")
	s = strings.TrimSpace(strings.TrimSuffix(s, "."))
	if s == "" {
		return 0, errors.New("empty reply")
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %w", err)
	}
	return id, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
