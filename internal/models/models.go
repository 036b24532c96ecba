package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// JST is the fixed UTC+9 reference zone. All date and time resolution
// in the bridge happens in this zone regardless of the host timezone.
var JST = time.FixedZone("JST", 9*60*60)

const (
	// TimeZoneName is the IANA name sent with timed calendar events.
	TimeZoneName = "Asia/Tokyo"

	// TimedLayout renders instants as ISO-8601 with the +09:00 offset.
	TimedLayout = "2006-01-02T15:04:05-07:00"

	// DateLayout renders all-day event dates.
	DateLayout = "2006-01-02"

	// MemoTimestampLayout renders the timestamp column of memo rows.
	MemoTimestampLayout = "2006-01-02 15:04:05"
)

// Intent is the classified purpose of an utterance. The set is closed;
// routing switches exhaustively over these three values.
type Intent string

const (
	IntentCalendar Intent = "calendar"
	IntentMemo     Intent = "memo"
	IntentUnknown  Intent = "unknown"
)

// IntentResult is the classifier output. SuggestedPayload holds a
// *CalendarPayload or *MemoPayload matching Intent, and is nil when the
// intent is unknown.
type IntentResult struct {
	Intent           Intent `json:"intent"`
	SuggestedPayload any    `json:"suggested_payload,omitempty"`
}

// Calendar returns the suggested payload as a calendar event, if that
// is what the classifier produced.
func (r IntentResult) Calendar() (*CalendarPayload, bool) {
	p, ok := r.SuggestedPayload.(*CalendarPayload)
	return p, ok
}

// Memo returns the suggested payload as memo rows, if that is what the
// classifier produced.
func (r IntentResult) Memo() (*MemoPayload, bool) {
	p, ok := r.SuggestedPayload.(*MemoPayload)
	return p, ok
}

// MemoPayload is the sheet-append suggestion: ordered rows of
// [timestamp, "memo", body].
type MemoPayload struct {
	Values [][]string `json:"values"`
}

// CalendarPayload is the event-creation suggestion. Timed events carry
// +09:00 ISO datetimes; all-day events carry date-only start and an
// exclusive end date one day later.
type CalendarPayload struct {
	Summary     string    `json:"summary"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Description string    `json:"description,omitempty"`
}

// AllDay reports whether the payload describes an all-day event.
func (p *CalendarPayload) AllDay() bool { return p.Start.AllDay }

// EventTime is one endpoint of an event window. Timed endpoints
// serialize as ISO-8601 strings, all-day endpoints as {"date": ...}
// objects matching the calendar service convention.
type EventTime struct {
	At     time.Time
	AllDay bool
}

func (t EventTime) MarshalJSON() ([]byte, error) {
	if t.AllDay {
		return json.Marshal(struct {
			Date string `json:"date"`
		}{t.At.Format(DateLayout)})
	}
	return json.Marshal(t.At.Format(TimedLayout))
}

func (t *EventTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		at, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse event time %q: %w", s, err)
		}
		t.At = at.In(JST)
		t.AllDay = false
		return nil
	}

	var obj struct {
		Date     string `json:"date"`
		DateTime string `json:"dateTime"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("parse event time: %w", err)
	}
	switch {
	case obj.DateTime != "":
		at, err := time.Parse(time.RFC3339, obj.DateTime)
		if err != nil {
			return fmt.Errorf("parse event time %q: %w", obj.DateTime, err)
		}
		t.At = at.In(JST)
		t.AllDay = false
	case obj.Date != "":
		at, err := time.ParseInLocation(DateLayout, obj.Date, JST)
		if err != nil {
			return fmt.Errorf("parse event date %q: %w", obj.Date, err)
		}
		t.At = at
		t.AllDay = true
	default:
		return fmt.Errorf("event time is missing both date and dateTime")
	}
	return nil
}

// IsZero reports whether the endpoint was left unset.
func (t EventTime) IsZero() bool { return t.At.IsZero() }

// EventResult is the calendar service's answer to an event creation.
type EventResult struct {
	ID     string `json:"id"`
	Link   string `json:"link"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// AppendResult is the sheet service's answer to a row append.
type AppendResult struct {
	Updated int  `json:"updated"`
	DryRun  bool `json:"dry_run,omitempty"`
}
