package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agent-bridge/internal/classifier"
	"agent-bridge/internal/models"
	"agent-bridge/internal/storage"
)

// CalendarService creates events downstream of classification. The
// implementation must accept both timed and all-day payload shapes and
// support a dry-run mode.
type CalendarService interface {
	CreateEvent(ctx context.Context, payload *models.CalendarPayload) (*models.EventResult, error)
}

// SheetService appends ordered rows downstream of classification.
type SheetService interface {
	AppendRows(ctx context.Context, values [][]string) (*models.AppendResult, error)
}

// FallbackClassifier is the optional secondary classification path
// consulted only when the rules come back unknown.
type FallbackClassifier interface {
	Classify(ctx context.Context, text string) (models.IntentResult, error)
}

// ErrUnknownIntent is returned by Execute when neither the rules nor
// the fallback could determine an intent.
var ErrUnknownIntent = errors.New("intent could not be determined")

// ExecuteResult names the tool an utterance was routed to and carries
// the upstream result.
type ExecuteResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

// Dispatcher glues the classifier to the outbound services and mirrors
// routed notes and events into local storage.
type Dispatcher struct {
	rules    classifier.Classifier
	fallback FallbackClassifier
	calendar CalendarService
	sheets   SheetService
	store    storage.Storage
	logger   *zap.Logger
}

// New builds a dispatcher. fallback may be nil.
func New(rules classifier.Classifier, fallback FallbackClassifier, calendar CalendarService, sheets SheetService, store storage.Storage, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		rules:    rules,
		fallback: fallback,
		calendar: calendar,
		sheets:   sheets,
		store:    store,
		logger:   logger,
	}
}

// Classify runs the rule pipeline and, when it returns unknown, the
// fallback classifier. Fallback failures are logged and swallowed; the
// rule result stands.
func (d *Dispatcher) Classify(ctx context.Context, text string) models.IntentResult {
	result := d.rules.Classify(text)
	if result.Intent != models.IntentUnknown || d.fallback == nil {
		return result
	}

	fb, err := d.fallback.Classify(ctx, text)
	if err != nil {
		d.logger.Warn("fallback classification failed", zap.Error(err))
		return result
	}
	if fb.Intent == models.IntentUnknown {
		return result
	}
	return fb
}

// Execute classifies text and routes the suggested payload to the
// matching service. Upstream failures come back as *UpstreamError.
func (d *Dispatcher) Execute(ctx context.Context, text string) (*ExecuteResult, error) {
	result := d.Classify(ctx, text)

	switch result.Intent {
	case models.IntentCalendar:
		payload, ok := result.Calendar()
		if !ok {
			return nil, ErrUnknownIntent
		}
		created, err := d.calendar.CreateEvent(ctx, payload)
		if err != nil {
			return nil, err
		}
		d.recordEvent(ctx, payload)
		return &ExecuteResult{Tool: "calendar", Result: created}, nil

	case models.IntentMemo:
		payload, ok := result.Memo()
		if !ok {
			return nil, ErrUnknownIntent
		}
		appended, err := d.sheets.AppendRows(ctx, payload.Values)
		if err != nil {
			return nil, err
		}
		d.recordNotes(ctx, payload.Values)
		return &ExecuteResult{Tool: "sheets", Result: appended}, nil

	default:
		return nil, ErrUnknownIntent
	}
}

// recordEvent mirrors a dispatched event into local storage.
// Best-effort: storage problems never fail the dispatch.
func (d *Dispatcher) recordEvent(ctx context.Context, payload *models.CalendarPayload) {
	rec := &models.EventRecord{
		ID:        uuid.New().String(),
		Summary:   payload.Summary,
		Start:     payload.Start.At,
		End:       payload.End.At,
		AllDay:    payload.AllDay(),
		CreatedAt: time.Now().In(models.JST),
	}
	if err := d.store.SaveEvent(ctx, rec); err != nil {
		d.logger.Warn("failed to record event locally",
			zap.Error(err),
			zap.String("summary", rec.Summary))
	}
}

func (d *Dispatcher) recordNotes(ctx context.Context, values [][]string) {
	for _, row := range values {
		if len(row) < 3 {
			continue
		}
		note := &models.Note{
			ID:        uuid.New().String(),
			Body:      row[2],
			Tag:       row[1],
			CreatedAt: time.Now().In(models.JST),
		}
		if err := d.store.SaveNote(ctx, note); err != nil {
			d.logger.Warn("failed to record note locally", zap.Error(err))
		}
	}
}
