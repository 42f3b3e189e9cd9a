package order

import (
	"time"

	"github.com/google/uuid"
)

// SyncAction identifies which sync operation produced a log entry.
type SyncAction string

const (
	SyncActionImport SyncAction = "import"
	SyncActionSync   SyncAction = "sync"
	SyncActionPush   SyncAction = "push"
	SyncActionStatus SyncAction = "status"
)

// SyncOutcome is the result of a sync operation.
type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomeFailure SyncOutcome = "failure"
	SyncOutcomeSkipped SyncOutcome = "skipped"
)

// SyncLogEntry is one record in the append-only sync audit trail.
type SyncLogEntry struct {
	ID         uuid.UUID
	EntityType string
	EntityID   string
	Action     SyncAction
	Outcome    SyncOutcome
	Message    string
	CreatedAt  time.Time
}

// NewSyncLogEntry creates a log entry for an order sync operation.
func NewSyncLogEntry(entityType, entityID string, action SyncAction, outcome SyncOutcome, message string) *SyncLogEntry {
	return &SyncLogEntry{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Outcome:    outcome,
		Message:    message,
		CreatedAt:  time.Now(),
	}
}
