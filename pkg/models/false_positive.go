package models

import "time"

// FalsePositivePair marks two listings that were reviewed and found distinct.
// The pair is stored normalized (RecordAID < RecordBID) so that lookups are
// order-independent.
type FalsePositivePair struct {
	RecordAID string    `json:"record_a_id" db:"record_a_id"`
	RecordBID string    `json:"record_b_id" db:"record_b_id"`
	CreatedBy *string   `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewFalsePositivePair normalizes the id order before construction.
func NewFalsePositivePair(recordA, recordB string, createdBy *string) FalsePositivePair {
	if recordB < recordA {
		recordA, recordB = recordB, recordA
	}
	return FalsePositivePair{
		RecordAID: recordA,
		RecordBID: recordB,
		CreatedBy: createdBy,
	}
}

// PairKey returns the canonical key for an unordered pair of record ids.
func PairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
