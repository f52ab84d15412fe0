package models

// EvaluationResponse is the response body for an incremental evaluation of a
// single record, matches ranked by descending confidence.
type EvaluationResponse struct {
	RecordID string             `json:"record_id"`
	Matches  []SimilarityResult `json:"matches"`
}

// FullScanSummary summarizes a completed full scan.
type FullScanSummary struct {
	RecordsScanned int `json:"records_scanned"`
	PairsCompared  int `json:"pairs_compared"`
	GroupsCreated  int `json:"groups_created"`
	GroupsSkipped  int `json:"groups_skipped"`
	SignalFailures int `json:"signal_failures"`
}
