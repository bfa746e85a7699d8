package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fillScope/internal/model"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{12, time.Hour},
		{200, time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(time.Second, time.Hour, tt.attempts), tt.attempts)
	}
}

func TestRecorderDeduplicatesByJobID(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder()

	payload := json.RawMessage(`{"eventId": "abc"}`)
	require.NoError(t, r.Publish(ctx, "q", "a", payload, Options{JobID: "a-1"}))
	require.NoError(t, r.Publish(ctx, "q", "a", payload, Options{JobID: "a-1"}))
	require.NoError(t, r.Publish(ctx, "other", "a", payload, Options{JobID: "a-1"}))
	require.NoError(t, r.Publish(ctx, "q", "a", payload, Options{Delay: time.Second}))

	pubs := r.Publications()
	require.Len(t, pubs, 3)
	assert.Equal(t, string(payload), string(pubs[0].Data))
	assert.Len(t, r.Named("a"), 3)
}

func TestPublishJSON(t *testing.T) {
	r := NewRecorder()
	err := PublishJSON(context.Background(), r, "q", "n", model.CreateFillJob{EventID: "x"}, Options{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventId":"x"}`, string(r.Publications()[0].Data))
}

func TestJobDecode(t *testing.T) {
	job := Job{Name: "create-fill", Data: json.RawMessage(`{"eventId":"x"}`)}
	var payload model.CreateFillJob
	require.NoError(t, job.Decode(&payload))
	assert.Equal(t, "x", payload.EventID)

	bad := Job{Name: "create-fill", Data: json.RawMessage(`{`)}
	assert.Error(t, bad.Decode(&payload))
}

func TestWorkerTerminalClassification(t *testing.T) {
	w := &Worker{opts: WorkerOptions{}.withDefaults()}

	assert.True(t, w.isTerminal(ErrUnknownJob))
	assert.True(t, w.isTerminal(model.ErrUnsupportedAsset))
	assert.False(t, w.isTerminal(errors.New("connection reset")))
}

func TestDispatchRecoversPanics(t *testing.T) {
	w := &Worker{handlers: map[string]Handler{
		"boom": HandlerFunc(func(context.Context, Job) error { panic("bad") }),
	}}

	err := w.dispatch(context.Background(), &Job{Name: "boom"})
	assert.ErrorContains(t, err, "handler panic")

	err = w.dispatch(context.Background(), &Job{Name: "missing"})
	assert.ErrorIs(t, err, ErrUnknownJob)
}
