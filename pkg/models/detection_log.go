package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/listinglab/clover/pkg/database"
)

// Detection log action types
const (
	ActionTypeEvaluateRecord = "evaluate_record"
	ActionTypeFullScan       = "full_scan"
	ActionTypeResolveGroup   = "resolve_group"
)

// DetectionLogEntry records a single detection run or a group resolution.
// Exactly one entry is written per action, whether or not it found anything.
type DetectionLogEntry struct {
	ID                string                            `json:"id" db:"id"`
	ActionType        string                            `json:"action_type" db:"action_type"`
	ActorID           *string                           `json:"actor_id,omitempty" db:"actor_id"`
	AffectedRecordIDs pq.StringArray                    `json:"affected_record_ids" db:"affected_record_ids"`
	Details           database.JSONB[map[string]any]    `json:"details" db:"details"`
	CreatedAt         time.Time                         `json:"created_at" db:"created_at"`
}
