package mq

import (
	"time"
)

// RunCompletedEvent is published once per pipeline run, whether it committed or failed
type RunCompletedEvent struct {
	EventID             string    `json:"event_id"`
	RunID               string    `json:"run_id"`
	State               string    `json:"state"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
	Requested           int       `json:"requested"`
	Fetched             int       `json:"fetched"`
	Normalized          int       `json:"normalized"`
	Cleaned             int       `json:"cleaned"`
	Inserted            int64     `json:"inserted"`
	Duplicates          int64     `json:"duplicates"`
	Anomalies           int       `json:"anomalies"`
	UnresolvedBotanists []string  `json:"unresolved_botanists,omitempty"`
	ExportLocation      string    `json:"export_location,omitempty"`
	Error               string    `json:"error,omitempty"`
}

// ArchiveCompletedEvent is published after plant_metric has been rolled up and emptied
type ArchiveCompletedEvent struct {
	EventID        string    `json:"event_id"`
	RunID          string    `json:"run_id"`
	PlantsArchived int       `json:"plants_archived"`
	FinishedAt     time.Time `json:"finished_at"`
}

// TriggerMessage requests a pipeline run. All fields are optional.
type TriggerMessage struct {
	RequestID   string `json:"request_id"`
	RequestedBy string `json:"requested_by"`
}
