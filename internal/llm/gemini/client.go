package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/panel-extractor/internal/llm"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string // falls back to GEMINI_API_KEY, then GOOGLE_API_KEY
	Model       string // default gemini-2.0-flash
	Temperature float32
	Timeout     time.Duration // per call
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Client invokes Gemini models with an inline image part.
type Client struct {
	cfg      Config
	generate generateFunc
	logger   *slog.Logger
}

// NewClient creates a Gemini-backed llm.Invoker.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newClient(cfg, gc.Models.GenerateContent, logger), nil
}

func newClient(cfg Config, generate generateFunc, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, generate: generate, logger: logger}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Invoke implements llm.Invoker.
func (c *Client) Invoke(ctx context.Context, req llm.Request) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.logger.Info("llm.gemini.invoke.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"image", req.Image.Name,
		"image_bytes", len(req.Image.Data),
		"json", req.JSON,
	)

	parts := []*genai.Part{genai.NewPartFromText(req.Instructions)}
	if req.SchemaHint != "" {
		parts = append(parts, genai.NewPartFromText("JSON Schema:\n"+req.SchemaHint))
	}
	if len(req.Image.Data) > 0 {
		mt := req.Image.MIME
		if mt == "" {
			mt = llm.DetectMIME(req.Image.Name, req.Image.Data)
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, mt))
	}

	gcfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if req.System != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		gcfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.generate(ctx, c.cfg.Model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, gcfg)
	if err != nil {
		timeout := llm.IsTimeout(err) || ctx.Err() == context.DeadlineExceeded
		c.logger.Error("llm.gemini.invoke.error",
			"req_id", rid, "error", err, "timeout", timeout,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if timeout {
			return "", fmt.Errorf("gemini: %w: %w", llm.ErrTimeout, err)
		}
		return "", fmt.Errorf("gemini: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		c.logger.Error("llm.gemini.invoke.no_candidates", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("no candidates in gemini response")
	}

	text := resp.Text()
	c.logger.Info("llm.gemini.invoke.ok",
		"req_id", rid,
		"finish_reason", resp.Candidates[0].FinishReason,
		"content_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
