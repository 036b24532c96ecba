package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"agent-bridge/internal/dispatch"
	"agent-bridge/internal/models"
)

const (
	calendarAction  = "Google Calendarへの予定登録"
	defaultCalendar = "primary"

	// Deterministic dry-run stub identifiers.
	dryRunEventID   = "dry_evt_123"
	dryRunEventLink = "https://example.invalid"
)

// CalendarConfig configures the calendar adapter. Zero values fall back
// to the public endpoint, the primary calendar and a 5s timeout.
type CalendarConfig struct {
	BaseURL    string
	CalendarID string
	DryRun     bool
	Timeout    time.Duration
}

// CalendarClient creates events through the Calendar REST API.
type CalendarClient struct {
	httpClient *http.Client
	baseURL    string
	calendarID string
	tokens     TokenSource
	dryRun     bool
	logger     *zap.Logger
}

func NewCalendarClient(cfg CalendarConfig, tokens TokenSource, logger *zap.Logger) *CalendarClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/calendar/v3"
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = defaultCalendar
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &CalendarClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		calendarID: cfg.CalendarID,
		tokens:     tokens,
		dryRun:     cfg.DryRun,
		logger:     logger,
	}
}

// CreateEvent inserts the event, or returns the deterministic stub in
// dry-run mode without touching the network.
func (c *CalendarClient) CreateEvent(ctx context.Context, payload *models.CalendarPayload) (*models.EventResult, error) {
	if c.dryRun {
		c.logger.Info("dry run: skipping calendar insert",
			zap.String("summary", payload.Summary))
		return &models.EventResult{ID: dryRunEventID, Link: dryRunEventLink, DryRun: true}, nil
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
	data, err := postJSON(ctx, c.httpClient, c.tokens, calendarAction, endpoint, eventBody(payload))
	if err != nil {
		return nil, err
	}

	var created struct {
		ID       string `json:"id"`
		HTMLLink string `json:"htmlLink"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, dispatch.NewUnknownError(calendarAction, err.Error())
	}

	c.logger.Info("calendar event created",
		zap.String("id", created.ID),
		zap.String("summary", payload.Summary))
	return &models.EventResult{ID: created.ID, Link: created.HTMLLink}, nil
}

// eventBody renders the event wire shape: nested date objects for
// all-day events, dateTime plus timezone otherwise.
func eventBody(payload *models.CalendarPayload) map[string]any {
	body := map[string]any{
		"summary":     payload.Summary,
		"description": payload.Description,
	}
	if payload.AllDay() {
		body["start"] = map[string]string{"date": payload.Start.At.Format(models.DateLayout)}
		body["end"] = map[string]string{"date": payload.End.At.Format(models.DateLayout)}
	} else {
		body["start"] = map[string]string{
			"dateTime": payload.Start.At.Format(models.TimedLayout),
			"timeZone": models.TimeZoneName,
		}
		body["end"] = map[string]string{
			"dateTime": payload.End.At.Format(models.TimedLayout),
			"timeZone": models.TimeZoneName,
		}
	}
	return body
}
