package models

import (
	"time"

	"github.com/lib/pq"
)

// Classification is the outcome of scoring a pair of listings.
type Classification string

const (
	ClassificationUnique    Classification = "unique"
	ClassificationPotential Classification = "potential"
	ClassificationDuplicate Classification = "duplicate"
)

// SignalScores holds the per-signal sub-scores for a pair, each in [0,1].
type SignalScores struct {
	Lexical  float64 `json:"lexical"`
	Semantic float64 `json:"semantic"`
	Visual   float64 `json:"visual"`

	// Per-field lexical detail, used for explanation tags
	Title       float64 `json:"title"`
	Address     float64 `json:"address"`
	Description float64 `json:"description"`
	Rent        float64 `json:"rent"`
	Size        float64 `json:"size"`
}

// SimilarityResult is the ephemeral per-pair output of the detector. Only
// results clearing the overall threshold are ever persisted (as groups).
type SimilarityResult struct {
	MatchedRecordID string         `json:"matched_record_id"`
	Confidence      float64        `json:"confidence"`
	Classification  Classification `json:"classification"`
	Scores          SignalScores   `json:"scores"`
	Reasons         []string       `json:"reasons"`
}

// DuplicateGroup statuses
const (
	DuplicateGroupStatusPending   = "pending"
	DuplicateGroupStatusConfirmed = "confirmed"
	DuplicateGroupStatusDismissed = "dismissed"
)

// DuplicateGroup is a persisted cluster of listings believed to describe the
// same real-world unit. Mutated only by human resolution; never deleted.
type DuplicateGroup struct {
	ID              string     `json:"id" db:"id"`
	ConfidenceScore float64    `json:"confidence_score" db:"confidence_score"`
	Status          string     `json:"status" db:"status"`
	Notes           *string    `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy      *string    `json:"resolved_by,omitempty" db:"resolved_by"`
}

// DuplicateGroupMember links a listing into a group with the per-pair reasons
// observed when the group was formed.
type DuplicateGroupMember struct {
	GroupID           string         `json:"group_id" db:"group_id"`
	RecordID          string         `json:"record_id" db:"record_id"`
	SimilarityReasons pq.StringArray `json:"similarity_reasons" db:"similarity_reasons"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}

// DuplicateGroupWithMembers is the review-facing shape of a group.
type DuplicateGroupWithMembers struct {
	DuplicateGroup
	Members []DuplicateGroupMember `json:"members"`
}

// ResolveGroupRequest is the request to confirm or dismiss a group.
type ResolveGroupRequest struct {
	Status string  `json:"status" validate:"required,oneof=confirmed dismissed"`
	Notes  *string `json:"notes,omitempty"`
}
