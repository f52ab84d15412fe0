// Package detection aggregates the lexical, semantic and visual signals into
// pairwise confidence scores and orchestrates incremental and full scans.
package detection

import (
	"github.com/listinglab/clover/pkg/models"
)

// WeightProfile holds the signal weights and classification thresholds. The
// same profile drives both incremental evaluations and full scans so the two
// paths can never disagree about what counts as a duplicate.
type WeightProfile struct {
	LexicalWeight  float64
	SemanticWeight float64
	VisualWeight   float64

	// OverallThreshold gates persistence and result inclusion; pairs below
	// it are reported as unique and never stored.
	OverallThreshold float64
	// DuplicateThreshold promotes a candidate match to "duplicate".
	DuplicateThreshold float64
	// PotentialThreshold is the floor of the "potential" band.
	PotentialThreshold float64

	CandidatePoolSize int
}

// DefaultProfile returns the stock calibration.
func DefaultProfile() WeightProfile {
	return WeightProfile{
		LexicalWeight:      0.25,
		SemanticWeight:     0.50,
		VisualWeight:       0.25,
		OverallThreshold:   0.70,
		DuplicateThreshold: 0.85,
		PotentialThreshold: 0.55,
		CandidatePoolSize:  500,
	}
}

// Aggregate combines the per-signal scores into a single confidence. A
// missing signal scored 0 simply contributes nothing; weights are not
// renormalized around it, so absent evidence always lowers confidence.
func (p WeightProfile) Aggregate(scores models.SignalScores) float64 {
	return p.LexicalWeight*scores.Lexical +
		p.SemanticWeight*scores.Semantic +
		p.VisualWeight*scores.Visual
}

// Classify maps a confidence to its classification band.
func (p WeightProfile) Classify(confidence float64) models.Classification {
	switch {
	case confidence >= p.DuplicateThreshold:
		return models.ClassificationDuplicate
	case confidence >= p.PotentialThreshold:
		return models.ClassificationPotential
	default:
		return models.ClassificationUnique
	}
}
