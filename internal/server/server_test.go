package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/panel-extractor/constants"
	"github.com/joseph-ayodele/panel-extractor/internal/common"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
	"github.com/joseph-ayodele/panel-extractor/internal/pipeline"
)

type runnerFunc func(ctx context.Context, img llm.Image) pipeline.Result

func (f runnerFunc) Run(ctx context.Context, img llm.Image) pipeline.Result { return f(ctx, img) }

type pingFunc func() error

func (f pingFunc) HealthCheck(context.Context, time.Duration) error { return f() }

func newTestRouter(t *testing.T, run runnerFunc, ping pingFunc) http.Handler {
	t.Helper()
	h := &Handler{
		Runner:   run,
		Registry: layout.DefaultRegistry(),
		Gatherer: prometheus.NewRegistry(),
		MaxBytes: 1024,
	}
	if ping != nil {
		h.DB = ping
	}
	return NewRouter(h, time.Second)
}

func TestPostImageRawBody(t *testing.T) {
	var got llm.Image
	var traceID string
	router := newTestRouter(t, func(ctx context.Context, img llm.Image) pipeline.Result {
		got = img
		traceID = common.TraceIDFromContext(ctx)
		return pipeline.Result{RunID: "r1", Outcome: constants.OutcomePersisted, LayoutID: 7, Persisted: 2}
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/images?name=meters.jpg", strings.NewReader("jpegbytes"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "r1", res.RunID)
	assert.Equal(t, 2, res.Persisted)

	assert.Equal(t, "meters.jpg", got.Name)
	assert.Equal(t, "image/jpeg", got.MIME)
	assert.Equal(t, []byte("jpegbytes"), got.Data)
	assert.Len(t, got.SHA256, 64)
	assert.NotEmpty(t, traceID)
}

func TestPostImageMultipartRejected(t *testing.T) {
	var got llm.Image
	router := newTestRouter(t, func(_ context.Context, img llm.Image) pipeline.Result {
		got = img
		return pipeline.Result{Outcome: constants.OutcomeRejected, Reason: constants.ReasonNoMatch}
	}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "panel.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\nrest"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reason":"no_match"`)
	assert.Equal(t, "panel.png", got.Name)
	assert.Equal(t, "image/png", got.MIME)
}

func TestPostImageBadRequests(t *testing.T) {
	router := newTestRouter(t, func(context.Context, llm.Image) pipeline.Result {
		t.Fatal("runner must not be called")
		return pipeline.Result{}
	}, nil)

	for name, tc := range map[string]struct {
		body string
		code int
	}{
		"empty":     {"", http.StatusBadRequest},
		"too large": {strings.Repeat("x", 1025), http.StatusRequestEntityTooLarge},
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/images", strings.NewReader(tc.body)))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestLayoutsEndpoints(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/layouts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var all []layoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 10)
	assert.Equal(t, "control_panel3", all[2].Relation)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/layouts/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Voltmeter_V")

	for path, code := range map[string]int{"/v1/layouts/11": http.StatusNotFound, "/v1/layouts/x": http.StatusBadRequest} {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, code, rec.Code, path)
	}
}

func TestHealthz(t *testing.T) {
	healthy := newTestRouter(t, nil, func() error { return nil })
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newTestRouter(t, nil, func() error { return errors.New("connection refused") })
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthMonitor(t *testing.T) {
	var fail bool
	m := NewHealthMonitor(func(context.Context) error {
		if fail {
			return errors.New("relation control_panel3 missing")
		}
		return nil
	}, nil)
	ctx := context.Background()

	status := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := m.Server().Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.True(t, m.Refresh(ctx))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status())

	fail = true
	assert.False(t, m.Refresh(ctx))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status())
}

func TestNewInvokerRejectsUnknownProvider(t *testing.T) {
	_, err := NewInvoker(context.Background(), common.LLMConfig{Provider: "llama"}, nil)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeConfig))

	inv, err := NewInvoker(context.Background(), common.LLMConfig{Provider: "openai", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, inv)
}
