package model

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one pass of the pipeline over an extract.
type Run struct {
	ID           string     `json:"id"`
	Extract      string     `json:"extract"`
	Status       RunStatus  `json:"status"`
	Persons      int        `json:"persons"`
	Households   int        `json:"households"`
	DoublingUp   int        `json:"doubling_up"`
	Ambiguous    int        `json:"ambiguous"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
