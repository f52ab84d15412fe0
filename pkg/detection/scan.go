package detection

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"golang.org/x/sync/errgroup"

	"github.com/listinglab/clover/pkg/auth"
	"github.com/listinglab/clover/pkg/database"
	"github.com/listinglab/clover/pkg/metrics"
	"github.com/listinglab/clover/pkg/models"
	"github.com/listinglab/clover/pkg/tracing"
)

// RunFullScan compares every cross-owner listing pair and persists a pending
// duplicate group for each pair clearing the overall threshold. The scan is
// privileged: the actor must hold the full-scan grant. Concurrent scans are
// deduplicated best effort through the distributed lock. Per-pair failures
// are tallied in the summary rather than aborting the run.
func (d *Detector) RunFullScan(ctx context.Context, actorID string) (*models.FullScanSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "detection.Detector.RunFullScan")
	defer span.End()

	if err := d.authorizer.Authorize(ctx, actorID, auth.ActionFullScan); err != nil {
		metrics.ScansTotal.WithLabelValues("full", "denied").Inc()
		return nil, err
	}

	lock, err := d.locker.Acquire(ctx, fullScanLockKey, d.lockTTL)
	if err != nil {
		if errors.Is(err, ErrScanInProgress) {
			return nil, httperror.NewHTTPError(http.StatusConflict, "a full scan is already running")
		}
		metrics.ScansTotal.WithLabelValues("full", "error").Inc()
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			d.logger.WithContext(ctx).WithError(err).Warn("Failed to release full scan lock")
		}
	}()

	start := time.Now()
	d.logger.WithContext(ctx).WithFields(map[string]any{"actor_id": actorID}).Info("Starting full duplicate scan")

	listings, err := d.listings.ListAll(ctx)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("full", "error").Inc()
		return nil, err
	}

	excluded, err := d.excludedPairs(ctx)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("full", "error").Inc()
		return nil, err
	}

	signals, err := d.prepareSignals(ctx, listings)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("full", "error").Inc()
		return nil, err
	}

	summary := models.FullScanSummary{RecordsScanned: len(listings)}
	for _, s := range signals {
		if s.vectors.Combined.IsZero() && s.listing.CombinedText() != "" {
			summary.SignalFailures++
		}
		if len(s.hashes) == 0 && len(s.listing.ImageURLs) > 0 {
			summary.SignalFailures++
		}
	}

	var affected []string

	for i := 0; i < len(signals); i++ {
		// cancellation is honored between outer iterations so an aborted
		// scan stops promptly without leaving a half-compared pair
		if err := ctx.Err(); err != nil {
			metrics.ScansTotal.WithLabelValues("full", "cancelled").Inc()
			return nil, err
		}

		for j := i + 1; j < len(signals); j++ {
			a, b := signals[i], signals[j]
			if a.listing.OwnerID == b.listing.OwnerID {
				continue
			}
			if ka, kb := models.PairKey(a.listing.ID, b.listing.ID); excluded[ka+"|"+kb] {
				continue
			}

			result := d.comparePair(a, b)
			summary.PairsCompared++

			if result.Confidence < d.profile.OverallThreshold {
				continue
			}

			if d.ensureGroup(ctx, a.listing.ID, result) {
				summary.GroupsCreated++
				affected = append(affected, a.listing.ID, result.MatchedRecordID)
			} else {
				summary.GroupsSkipped++
			}
		}
	}

	entry := &models.DetectionLogEntry{
		ActionType:        models.ActionTypeFullScan,
		ActorID:           optional(actorID),
		AffectedRecordIDs: affected,
		Details: database.NewJSONB(map[string]any{
			"records_scanned": summary.RecordsScanned,
			"pairs_compared":  summary.PairsCompared,
			"groups_created":  summary.GroupsCreated,
			"groups_skipped":  summary.GroupsSkipped,
			"signal_failures": summary.SignalFailures,
			"duration_ms":     time.Since(start).Milliseconds(),
		}),
	}
	d.writeLog(ctx, entry)
	d.emitter.ScanCompleted(ctx, entry.ID, actorID, summary)

	metrics.ScansTotal.WithLabelValues("full", "success").Inc()
	metrics.ScanDuration.WithLabelValues("full").Observe(time.Since(start).Seconds())

	d.logger.WithContext(ctx).WithFields(map[string]any{
		"records_scanned": summary.RecordsScanned,
		"pairs_compared":  summary.PairsCompared,
		"groups_created":  summary.GroupsCreated,
		"duration":        time.Since(start).String(),
	}).Info("Full duplicate scan completed")

	return &summary, nil
}

// prepareSignals derives embeddings and image hashes for every record before
// the pairwise loop. Doing this once up front keeps external calls linear in
// the number of records; only the cosine and Hamming comparisons are
// quadratic.
func (d *Detector) prepareSignals(ctx context.Context, listings []models.Listing) ([]*recordSignals, error) {
	signals := make([]*recordSignals, len(listings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i := range listings {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			signals[i] = d.signalsFor(gctx, &listings[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return signals, nil
}

func (d *Detector) excludedPairs(ctx context.Context) (map[string]bool, error) {
	pairs, err := d.falsePositives.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		a, b := models.PairKey(p.RecordAID, p.RecordBID)
		excluded[a+"|"+b] = true
	}
	return excluded, nil
}
