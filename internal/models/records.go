package models

import "time"

// Note is a memo row mirrored into local storage when it is routed to
// the sheet service.
type Note struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Tag       string    `json:"tag"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRecord is a calendar event mirrored into local storage when it
// is routed to the calendar service.
type EventRecord struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	AllDay    bool      `json:"all_day"`
	CreatedAt time.Time `json:"created_at"`
}
