package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/panel-extractor/constants"
	"github.com/joseph-ayodele/panel-extractor/internal/pipeline"
)

type recorder struct {
	subject string
	payload []byte
	err     error
}

func (r *recorder) Publish(subject string, payload any) error {
	if r.err != nil {
		return r.err
	}
	r.subject = subject
	data, err := json.Marshal(payload)
	r.payload = data
	return err
}

func TestResultSinkPublishesJSON(t *testing.T) {
	rec := &recorder{}
	sink := NewResultSink(rec, "")

	err := sink.Deliver(context.Background(), pipeline.Result{
		RunID:     "r1",
		Outcome:   constants.OutcomeRejected,
		Reason:    constants.ReasonNoMatch,
		ElapsedMS: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultSubject, rec.subject)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.payload, &got))
	assert.Equal(t, "r1", got["run_id"])
	assert.Equal(t, "REJECTED", got["outcome"])
	assert.Equal(t, "no_match", got["reason"])
	assert.EqualValues(t, 12, got["elapsed_ms"])
}

func TestResultSinkErrors(t *testing.T) {
	sink := NewResultSink(&recorder{err: errors.New("no responders")}, "line.a")
	err := sink.Deliver(context.Background(), pipeline.Result{RunID: "r2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line.a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewResultSink(&recorder{}, "x").Deliver(ctx, pipeline.Result{}), context.Canceled)
}

func TestPublisherRequiresConnection(t *testing.T) {
	p := &Publisher{}
	assert.Error(t, p.Publish("x", map[string]string{}))
	p.Close()
}
