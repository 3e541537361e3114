package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pressbot/core/conversation"
)

func TestExporterCounters(t *testing.T) {
	e := New()

	e.Transition(conversation.PhaseIdle, conversation.PhaseRegistering)
	e.Transition(conversation.PhaseIdle, conversation.PhaseRegistering)
	e.PersistFailure("set_phase")
	e.Reloaded(3, 2)
	e.PlaceholderCommit(conversation.CommitReport{Attempted: 3, Succeeded: 2, Failures: []conversation.CommitFailure{{Name: "B"}}})
	e.Published(nil)
	e.Published(errors.New("disk"))
	e.Update("message", 20*time.Millisecond, nil)
	e.RateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(e.transitions.WithLabelValues("idle", "registering")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.persistFailures.WithLabelValues("set_phase")))
	assert.Equal(t, 3.0, testutil.ToFloat64(e.reloadRows.WithLabelValues("restored")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.reloadRows.WithLabelValues("purged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.commits.WithLabelValues("partial")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.commitItems.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.commitItems.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.publishes.WithLabelValues("fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.updates.WithLabelValues("message", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.rateLimited))
}

func TestExporterObservesManager(t *testing.T) {
	e := New()
	m := conversation.NewManager(nopStore{}, conversation.WithObserver(e))
	require.NoError(t, m.SetPhase(t.Context(), 1, conversation.PhaseUploadingTemplate))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.transitions.WithLabelValues("idle", "uploading_template")))
}

func TestExporterHandler(t *testing.T) {
	e := New()
	e.Transition(conversation.PhaseIdle, conversation.PhaseCreatingContent)

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `pressbot_state_transitions_total{from="idle",to="creating_content"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

type nopStore struct{}

func (nopStore) UpsertState(context.Context, conversation.Row) error     { return nil }
func (nopStore) ListStates(context.Context) ([]conversation.Row, error) { return nil, nil }
func (nopStore) DeleteState(context.Context, int64) error               { return nil }
