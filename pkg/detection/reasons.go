package detection

import "github.com/listinglab/clover/pkg/models"

// Sub-signal thresholds for explanation tags. These annotate review output
// only; classification is decided by the aggregate confidence alone.
const (
	titleTagThreshold    = 0.85
	addressTagThreshold  = 0.90
	semanticTagThreshold = 0.85
	visualTagThreshold   = 0.95
	rentTagThreshold     = 0.95
	sizeTagThreshold     = 0.95
)

// explanationTags derives the human-readable reasons attached to a result.
func explanationTags(scores models.SignalScores) []string {
	var reasons []string
	if scores.Title >= titleTagThreshold {
		reasons = append(reasons, "near-identical titles")
	}
	if scores.Address >= addressTagThreshold {
		reasons = append(reasons, "matching address")
	}
	if scores.Semantic >= semanticTagThreshold {
		reasons = append(reasons, "semantically similar descriptions")
	}
	if scores.Visual >= visualTagThreshold {
		reasons = append(reasons, "shared or near-identical photos")
	}
	if scores.Rent >= rentTagThreshold {
		reasons = append(reasons, "matching rent")
	}
	if scores.Size >= sizeTagThreshold {
		reasons = append(reasons, "matching living area")
	}
	return reasons
}
