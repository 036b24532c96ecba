package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agent-bridge/internal/dispatch"
	"agent-bridge/internal/models"
)

func timedPayload() *models.CalendarPayload {
	start := time.Date(2025, 8, 21, 10, 0, 0, 0, models.JST)
	return &models.CalendarPayload{
		Summary: "商談",
		Start:   models.EventTime{At: start},
		End:     models.EventTime{At: start.Add(30 * time.Minute)},
	}
}

func TestCreateEventDryRun(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	c := NewCalendarClient(CalendarConfig{BaseURL: srv.URL, DryRun: true}, StaticTokenSource{AccessToken: "t"}, zap.NewNop())

	result, err := c.CreateEvent(context.Background(), timedPayload())
	require.NoError(t, err)
	assert.Equal(t, "dry_evt_123", result.ID)
	assert.Equal(t, "https://example.invalid", result.Link)
	assert.True(t, result.DryRun)
	assert.Equal(t, 0, hits, "dry run must not reach the network")
}

func TestCreateEventSuccess(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"evt_1","htmlLink":"https://calendar.example/evt_1"}`))
	}))
	defer srv.Close()

	c := NewCalendarClient(CalendarConfig{BaseURL: srv.URL}, StaticTokenSource{AccessToken: "tok"}, zap.NewNop())

	result, err := c.CreateEvent(context.Background(), timedPayload())
	require.NoError(t, err)
	assert.Equal(t, "evt_1", result.ID)
	assert.Equal(t, "https://calendar.example/evt_1", result.Link)
	assert.False(t, result.DryRun)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "商談", gotBody["summary"])
	start, ok := gotBody["start"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2025-08-21T10:00:00+09:00", start["dateTime"])
	assert.Equal(t, "Asia/Tokyo", start["timeZone"])
}

func TestCreateEventAllDayBody(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"id":"evt_2","htmlLink":"https://calendar.example/evt_2"}`))
	}))
	defer srv.Close()

	c := NewCalendarClient(CalendarConfig{BaseURL: srv.URL}, StaticTokenSource{AccessToken: "tok"}, zap.NewNop())

	day := time.Date(2025, 8, 27, 0, 0, 0, 0, models.JST)
	payload := &models.CalendarPayload{
		Summary: "有休",
		Start:   models.EventTime{At: day, AllDay: true},
		End:     models.EventTime{At: day.AddDate(0, 0, 1), AllDay: true},
	}

	_, err := c.CreateEvent(context.Background(), payload)
	require.NoError(t, err)

	start, ok := gotBody["start"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2025-08-27", start["date"])
	assert.NotContains(t, start, "dateTime")

	end, ok := gotBody["end"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2025-08-28", end["date"])
}

func TestCreateEventAuthErrorNoRetry(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401}}`))
	}))
	defer srv.Close()

	c := NewCalendarClient(CalendarConfig{BaseURL: srv.URL}, StaticTokenSource{AccessToken: "expired"}, zap.NewNop())

	_, err := c.CreateEvent(context.Background(), timedPayload())
	require.Error(t, err)

	ue, ok := dispatch.AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, dispatch.KindAuth, ue.Kind)
	assert.False(t, ue.Retryable)
	assert.Equal(t, 1, hits, "auth failures must not be retried")
}

func TestCreateEventRetriesRateLimit(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id":"evt_3","htmlLink":"https://calendar.example/evt_3"}`))
	}))
	defer srv.Close()

	c := NewCalendarClient(CalendarConfig{BaseURL: srv.URL}, StaticTokenSource{AccessToken: "tok"}, zap.NewNop())

	result, err := c.CreateEvent(context.Background(), timedPayload())
	require.NoError(t, err)
	assert.Equal(t, "evt_3", result.ID)
	assert.Equal(t, 2, hits)
}

func TestCreateEventTransientExhaustsRetries(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCalendarClient(CalendarConfig{BaseURL: srv.URL}, StaticTokenSource{AccessToken: "tok"}, zap.NewNop())

	_, err := c.CreateEvent(context.Background(), timedPayload())
	require.Error(t, err)

	ue, ok := dispatch.AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, dispatch.KindTransient, ue.Kind)
	assert.Equal(t, 2, hits)
}

func TestCreateEventPermissionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewCalendarClient(CalendarConfig{BaseURL: srv.URL}, StaticTokenSource{AccessToken: "tok"}, zap.NewNop())

	_, err := c.CreateEvent(context.Background(), timedPayload())
	ue, ok := dispatch.AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, dispatch.KindPermission, ue.Kind)
}
