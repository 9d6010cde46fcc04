package status

import (
	"time"

	"github.com/google/uuid"
)

// ImportPhase represents the current phase of an import run
type ImportPhase string

const (
	// ImportPhaseRunning means an import is currently in progress
	ImportPhaseRunning ImportPhase = "Running"

	// ImportPhaseComplete means the import completed successfully
	ImportPhaseComplete ImportPhase = "Complete"

	// ImportPhaseFailed means the import failed
	ImportPhaseFailed ImportPhase = "Failed"
)

// ImportStatus represents the persisted state of the most recent import run
type ImportStatus struct {
	// Phase represents the current import phase
	Phase ImportPhase `json:"phase"`

	// Message provides additional information about the import status
	Message string `json:"message,omitempty"`

	// RunID identifies the import run
	RunID uuid.UUID `json:"runId"`

	// TestMode records which environment the run targeted
	TestMode bool `json:"testMode"`

	// StartedAt is when the run started
	StartedAt *time.Time `json:"startedAt,omitempty"`

	// FinishedAt is when the run finished, nil while running
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// RecordCount is the number of records the run yielded
	RecordCount int `json:"recordCount,omitempty"`

	// FailedPrefixes lists prefixes that did not complete
	FailedPrefixes []string `json:"failedPrefixes,omitempty"`
}
