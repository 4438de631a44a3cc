package models

import "time"

// BuildEvent describes one completed panel build for the event stream.
type BuildEvent struct {
	RunID      string    `json:"run_id"`
	View       string    `json:"view"`
	Symbols    []string  `json:"symbols"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Interval   string    `json:"interval"`
	Rows       int       `json:"rows"`
	DurationMS int64     `json:"duration_ms"`
}
