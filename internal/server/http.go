package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/panel-extractor/constants"
	"github.com/joseph-ayodele/panel-extractor/internal/common"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
	"github.com/joseph-ayodele/panel-extractor/internal/pipeline"
)

// Runner processes one uploaded image. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, img llm.Image) pipeline.Result
}

// Pinger reports storage health. *repository.Store satisfies it.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Handler serves the HTTP API.
type Handler struct {
	Runner   Runner
	Registry *layout.Registry
	DB       Pinger
	Gatherer prometheus.Gatherer // nil serves the default registry
	MaxBytes int64
	Logger   *slog.Logger
}

type errorResponse struct {
	Ok      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type layoutResponse struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	Relation    string         `json:"relation"`
	Diagnostics []string       `json:"diagnostics"`
	Fields      []layout.Field `json:"fields"`
}

// NewRouter mounts the API with the standard middleware stack.
func NewRouter(h *Handler, timeout time.Duration) http.Handler {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", h.metricsHandler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/images", h.handleImage)
		r.Get("/layouts", h.handleLayouts)
		r.Get("/layouts/{id}", h.handleLayout)
	})
}

func (h *Handler) metricsHandler() http.Handler {
	if h.Gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})
}

func (h *Handler) maxBytes() int64 {
	if h.MaxBytes > 0 {
		return h.MaxBytes
	}
	return constants.MaxImageMBDefault << 20
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.HealthCheck(r.Context(), 2*time.Second); err != nil {
			h.Logger.Warn("http.health.db_failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "layouts": h.Registry.Len()})
}

func (h *Handler) handleLayouts(w http.ResponseWriter, _ *http.Request) {
	out := make([]layoutResponse, 0, h.Registry.Len())
	for _, d := range h.Registry.All() {
		out = append(out, toLayoutResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleLayout(w http.ResponseWriter, r *http.Request) {
	var id int
	if _, err := fmt.Sscan(chi.URLParam(r, "id"), &id); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "layout id must be an integer")
		return
	}
	d, ok := h.Registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("layout %d is not registered", id))
		return
	}
	writeJSON(w, http.StatusOK, toLayoutResponse(d))
}

func toLayoutResponse(d *layout.Descriptor) layoutResponse {
	return layoutResponse{
		ID:          d.ID,
		Name:        d.Name,
		Title:       d.Title,
		Relation:    d.Relation.Table,
		Diagnostics: d.Diagnostics,
		Fields:      d.Fields,
	}
}

// handleImage accepts a raw image body or a multipart form with an "image" part and runs
// it synchronously. Rejected images answer 422 with the full result.
func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.readUpload(w, r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_IMAGE", err.Error())
		return
	}

	ctx := r.Context()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		ctx = common.WithTraceID(ctx, reqID)
	}
	res := h.Runner.Run(ctx, img)

	status := http.StatusOK
	if res.Rejected() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (llm.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes())
	name := r.URL.Query().Get("name")
	contentType := r.Header.Get("Content-Type")

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(contentType, "multipart/form-data") {
		name, contentType, data, err = readMultipart(r, h.maxBytes(), name)
	} else {
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		return llm.Image{}, err
	}
	if len(data) == 0 {
		return llm.Image{}, errors.New("empty image")
	}
	if name == "" {
		name = "upload"
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = llm.DetectMIME(filepath.Base(name), data)
	}
	sum := sha256.Sum256(data)
	return llm.Image{
		Name:       name,
		MIME:       contentType,
		Data:       data,
		SHA256:     hex.EncodeToString(sum[:]),
		CapturedAt: time.Now().UTC(),
	}, nil
}

func readMultipart(r *http.Request, maxBytes int64, name string) (string, string, []byte, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return "", "", nil, err
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return "", "", nil, fmt.Errorf("multipart field %q: %w", "image", err)
	}
	defer file.Close()
	if name == "" {
		name = header.Filename
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", "", nil, err
	}
	return name, header.Header.Get("Content-Type"), data, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Ok: false, Code: code, Message: message})
}
