package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agent-bridge/internal/classifier"
	"agent-bridge/internal/dispatch"
	"agent-bridge/internal/models"
	"agent-bridge/internal/notify"
	"agent-bridge/internal/storage"
)

type stubCalendar struct {
	created []*models.CalendarPayload
	err     error
}

func (s *stubCalendar) CreateEvent(_ context.Context, payload *models.CalendarPayload) (*models.EventResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, payload)
	return &models.EventResult{ID: "dry_evt_123", Link: "https://example.invalid", DryRun: true}, nil
}

type stubSheets struct {
	appended [][][]string
	err      error
}

func (s *stubSheets) AppendRows(_ context.Context, values [][]string) (*models.AppendResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.appended = append(s.appended, values)
	return &models.AppendResult{Updated: len(values), DryRun: true}, nil
}

type testEnv struct {
	server   *Server
	calendar *stubCalendar
	sheets   *stubSheets
	store    *storage.MemoryStorage
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	now := time.Date(2025, 8, 20, 9, 0, 0, 0, models.JST)
	rules := classifier.NewRuleClassifierWithClock(func() time.Time { return now })

	cal := &stubCalendar{}
	sh := &stubSheets{}
	store := storage.NewMemoryStorage()
	d := dispatch.New(rules, nil, cal, sh, store, zap.NewNop())

	srv := New(cfg, d, cal, sh, notify.New("", zap.NewNop()), store, zap.NewNop())
	return &testEnv{server: srv, calendar: cal, sheets: sh, store: store}
}

func (e *testEnv) request(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Config{DryRun: true})

	rec, body := env.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["dry_run"])
}

func TestIntentRouteMemo(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, body := env.request(t, http.MethodPost, "/intent/route", `{"text":"メモ：顧客Aに折返し"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "memo", body["intent"])

	payload, ok := body["suggested_payload"].(map[string]any)
	require.True(t, ok)
	values, ok := payload["values"].([]any)
	require.True(t, ok)
	require.Len(t, values, 1)
	row := values[0].([]any)
	assert.Equal(t, "2025-08-20 09:00:00", row[0])
	assert.Equal(t, "memo", row[1])
	assert.Equal(t, "顧客Aに折返し", row[2])
}

func TestIntentRouteUnknownOmitsPayload(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, body := env.request(t, http.MethodPost, "/intent/route", `{"text":"よろしく"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unknown", body["intent"])
	assert.NotContains(t, body, "suggested_payload")
}

func TestExecuteDispatchesCalendar(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, body := env.request(t, http.MethodPost, "/execute", `{"text":"明日10時に商談30分"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "calendar", body["tool"])
	require.Len(t, env.calendar.created, 1)
	assert.Equal(t, "商談", env.calendar.created[0].Summary)
}

func TestExecuteUnknownIntent(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, body := env.request(t, http.MethodPost, "/execute", `{"text":"こんにちは"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "意図が不明です。", body["hint"])
}

func TestExecuteBridgeSecret(t *testing.T) {
	env := newTestEnv(t, Config{BridgeSecret: "s3cret"})

	rec, body := env.request(t, http.MethodPost, "/execute", `{"text":"メモ：テスト"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body["error"])

	rec, body = env.request(t, http.MethodPost, "/execute", `{"text":"メモ：テスト"}`,
		map[string]string{"X-Bridge-Secret": "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
}

func TestExecuteUpstreamErrorMapped(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.calendar.err = dispatch.NewAuthError("Google Calendarへの予定登録", "401 from upstream")

	rec, body := env.request(t, http.MethodPost, "/execute", `{"text":"明日10時に商談30分"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Google連携の有効期限が切れています。再度連携をやり直してください。", body["message"])
}

func TestCreateEventValidation(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, body := env.request(t, http.MethodPost, "/calendar/events", `{"summary":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "開始・終了の日時や必須項目を見直してください。", body["message"])
	assert.Empty(t, env.calendar.created)
}

func TestCreateEventTimed(t *testing.T) {
	env := newTestEnv(t, Config{})

	payload := `{"summary":"商談","start":"2025-08-21T10:00:00+09:00","end":"2025-08-21T10:30:00+09:00"}`
	rec, body := env.request(t, http.MethodPost, "/calendar/events", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "Google Calendarへの予定登録", body["action"])
	require.Len(t, env.calendar.created, 1)
	assert.False(t, env.calendar.created[0].AllDay())
}

func TestCreateEventAllDay(t *testing.T) {
	env := newTestEnv(t, Config{})

	payload := `{"summary":"有休","start":{"date":"2025-08-27"},"end":{"date":"2025-08-28"}}`
	rec, _ := env.request(t, http.MethodPost, "/calendar/events", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.calendar.created, 1)
	assert.True(t, env.calendar.created[0].AllDay())
	assert.Equal(t, "2025-08-27", env.calendar.created[0].Start.At.Format(models.DateLayout))
}

func TestSheetsAppendAcceptsSingleRow(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, body := env.request(t, http.MethodPost, "/sheets/append", `{"values":["a","b","c"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	require.Len(t, env.sheets.appended, 1)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, env.sheets.appended[0])
}

func TestSheetsAppendAcceptsRowList(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, _ := env.request(t, http.MethodPost, "/sheets/append", `{"values":[["a","b","c"],["d","e","f"]]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.sheets.appended, 1)
	assert.Len(t, env.sheets.appended[0], 2)
}

func TestSheetsAppendRejectsBadShape(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, body := env.request(t, http.MethodPost, "/sheets/append", `{"values":42}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "values は行の配列で指定してください。", body["message"])
}

func TestNotifyRequiresText(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, body := env.request(t, http.MethodPost, "/notify", `{"text":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "text を入力してください。", body["message"])
}

func TestListNotes(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec, body := env.request(t, http.MethodGet, "/notes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	notes, ok := body["notes"].([]any)
	require.True(t, ok)
	assert.Empty(t, notes)

	// Routing a memo leaves a local record behind.
	env.request(t, http.MethodPost, "/execute", `{"text":"メモ：棚卸し"}`, nil)

	_, body = env.request(t, http.MethodGet, "/notes", "", nil)
	notes, ok = body["notes"].([]any)
	require.True(t, ok)
	require.Len(t, notes, 1)
	note := notes[0].(map[string]any)
	assert.Equal(t, "棚卸し", note["body"])
}
