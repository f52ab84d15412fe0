package detection

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/listinglab/clover/internal/repositories"
	"github.com/listinglab/clover/pkg/auth"
	"github.com/listinglab/clover/pkg/database"
	"github.com/listinglab/clover/pkg/embedding"
	"github.com/listinglab/clover/pkg/events"
	"github.com/listinglab/clover/pkg/imagehash"
	"github.com/listinglab/clover/pkg/lexical"
	"github.com/listinglab/clover/pkg/metrics"
	"github.com/listinglab/clover/pkg/models"
	"github.com/listinglab/clover/pkg/normalize"
	"github.com/listinglab/clover/pkg/tracing"
)

// Deps bundles the collaborators a Detector needs. All of them are injected;
// the detector holds no global state.
type Deps struct {
	Listings       repositories.ListingRepository
	FalsePositives repositories.FalsePositiveRepository
	Groups         repositories.DuplicateGroupRepository
	DetectionLog   repositories.DetectionLogRepository
	Embeddings     *embedding.Service
	Images         *imagehash.Service
	Authorizer     auth.Authorizer
	Locker         Locker
	Emitter        events.Emitter
	Logger         ectologger.Logger
}

// Options tunes a Detector.
type Options struct {
	Profile      WeightProfile
	FieldWeights lexical.FieldWeights
	// Concurrency bounds the signal pre-pass of a full scan.
	Concurrency int
	LockTTL     time.Duration
}

// Detector runs pairwise duplicate detection over listings.
type Detector struct {
	listings       repositories.ListingRepository
	falsePositives repositories.FalsePositiveRepository
	groups         repositories.DuplicateGroupRepository
	detectionLog   repositories.DetectionLogRepository
	embeddings     *embedding.Service
	images         *imagehash.Service
	scorer         *lexical.Scorer
	authorizer     auth.Authorizer
	locker         Locker
	emitter        events.Emitter
	logger         ectologger.Logger

	profile      WeightProfile
	fieldWeights lexical.FieldWeights
	concurrency  int
	lockTTL      time.Duration
}

// NewDetector creates a detector
func NewDetector(deps Deps, opts Options) *Detector {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if opts.Profile == (WeightProfile{}) {
		opts.Profile = DefaultProfile()
	}
	if opts.FieldWeights == (lexical.FieldWeights{}) {
		opts.FieldWeights = lexical.DefaultFieldWeights()
	}

	return &Detector{
		listings:       deps.Listings,
		falsePositives: deps.FalsePositives,
		groups:         deps.Groups,
		detectionLog:   deps.DetectionLog,
		embeddings:     deps.Embeddings,
		images:         deps.Images,
		scorer:         lexical.NewScorer(),
		authorizer:     deps.Authorizer,
		locker:         deps.Locker,
		emitter:        deps.Emitter,
		logger:         deps.Logger,
		profile:        opts.Profile,
		fieldWeights:   opts.FieldWeights,
		concurrency:    opts.Concurrency,
		lockTTL:        opts.LockTTL,
	}
}

// Profile returns the active weight profile.
func (d *Detector) Profile() WeightProfile {
	return d.profile
}

// recordSignals carries everything derived from one listing for comparison.
type recordSignals struct {
	listing    *models.Listing
	normalized normalize.NormalizedListing
	vectors    embedding.Vectors
	hashes     []uint64
}

func (d *Detector) signalsFor(ctx context.Context, l *models.Listing) *recordSignals {
	return &recordSignals{
		listing:    l,
		normalized: normalize.Listing(*l),
		vectors:    d.embeddings.VectorsFor(ctx, l),
		hashes:     d.images.HashesFor(ctx, l),
	}
}

// comparePair scores one pair of records. Degraded signals arrive here as
// zeros; the comparison itself cannot fail.
func (d *Detector) comparePair(a, b *recordSignals) models.SimilarityResult {
	lex, fields := d.scorer.Compare(a.normalized, b.normalized, d.fieldWeights)

	scores := models.SignalScores{
		Lexical:     lex,
		Semantic:    d.embeddings.Score(a.vectors, b.vectors),
		Visual:      d.images.Score(a.hashes, b.hashes),
		Title:       fields.Title,
		Address:     fields.Address,
		Description: fields.Description,
		Rent:        fields.Rent,
		Size:        fields.Size,
	}

	confidence := d.profile.Aggregate(scores)
	metrics.PairsCompared.Inc()

	return models.SimilarityResult{
		MatchedRecordID: b.listing.ID,
		Confidence:      confidence,
		Classification:  d.profile.Classify(confidence),
		Scores:          scores,
		Reasons:         explanationTags(scores),
	}
}

// EvaluateRecord compares one listing against its candidate pool and returns
// every match in the potential band or above, ranked by descending
// confidence. Matches clearing the overall threshold are persisted as
// pending duplicate groups; the run is recorded in the detection log.
func (d *Detector) EvaluateRecord(ctx context.Context, recordID, actorID string) (*models.EvaluationResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "detection.Detector.EvaluateRecord")
	defer span.End()

	start := time.Now()

	target, err := d.listings.Get(ctx, recordID)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("incremental", "error").Inc()
		return nil, err
	}

	pool, err := d.listings.Candidates(ctx, target.OwnerID, d.profile.CandidatePoolSize)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("incremental", "error").Inc()
		return nil, err
	}

	excluded, err := d.excludedPartners(ctx, target.ID)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("incremental", "error").Inc()
		return nil, err
	}

	targetSignals := d.signalsFor(ctx, target)

	matches := make([]models.SimilarityResult, 0)
	for i := range pool {
		candidate := &pool[i]
		if candidate.ID == target.ID || excluded[candidate.ID] {
			continue
		}

		result := d.comparePair(targetSignals, d.signalsFor(ctx, candidate))
		if result.Classification != models.ClassificationUnique {
			matches = append(matches, result)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	// every match is returned to the caller, but only matches clearing the
	// overall threshold are persisted as pending groups
	groupsCreated := 0
	affected := []string{target.ID}
	for _, m := range matches {
		affected = append(affected, m.MatchedRecordID)
		if m.Confidence >= d.profile.OverallThreshold && d.ensureGroup(ctx, target.ID, m) {
			groupsCreated++
		}
	}

	d.writeLog(ctx, &models.DetectionLogEntry{
		ActionType:        models.ActionTypeEvaluateRecord,
		ActorID:           optional(actorID),
		AffectedRecordIDs: affected,
		Details: database.NewJSONB(map[string]any{
			"pairs_compared": len(pool),
			"matches":        len(matches),
			"groups_created": groupsCreated,
			"duration_ms":    time.Since(start).Milliseconds(),
		}),
	})

	metrics.ScansTotal.WithLabelValues("incremental", "success").Inc()
	metrics.ScanDuration.WithLabelValues("incremental").Observe(time.Since(start).Seconds())

	return &models.EvaluationResponse{
		RecordID: target.ID,
		Matches:  matches,
	}, nil
}

// ensureGroup persists a pending group for a matched pair unless one already
// exists. Persistence failures are logged and absorbed; a storage hiccup must
// not fail the evaluation that found the match.
func (d *Detector) ensureGroup(ctx context.Context, targetID string, match models.SimilarityResult) bool {
	recordIDs := []string{targetID, match.MatchedRecordID}

	exists, err := d.groups.HasPendingWithMembers(ctx, recordIDs)
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Warn("Pending group lookup failed, skipping group creation")
		return false
	}
	if exists {
		return false
	}

	group := &models.DuplicateGroup{ConfidenceScore: match.Confidence}
	members := []models.DuplicateGroupMember{
		{RecordID: targetID, SimilarityReasons: match.Reasons},
		{RecordID: match.MatchedRecordID, SimilarityReasons: match.Reasons},
	}

	if err := d.groups.Create(ctx, group, members); err != nil {
		d.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"record_ids": recordIDs,
		}).Warn("Failed to persist duplicate group")
		return false
	}

	metrics.GroupsCreated.Inc()
	d.emitter.GroupCreated(ctx, group, recordIDs)
	return true
}

// excludedPartners returns the set of records that were reviewed as distinct
// from the given record.
func (d *Detector) excludedPartners(ctx context.Context, recordID string) (map[string]bool, error) {
	pairs, err := d.falsePositives.ListForRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if p.RecordAID == recordID {
			excluded[p.RecordBID] = true
		} else {
			excluded[p.RecordAID] = true
		}
	}
	return excluded, nil
}

func (d *Detector) writeLog(ctx context.Context, entry *models.DetectionLogEntry) {
	if err := d.detectionLog.Create(ctx, entry); err != nil {
		d.logger.WithContext(ctx).WithError(err).Error("Failed to write detection log entry")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
