package detection

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listinglab/clover/pkg/auth"
	"github.com/listinglab/clover/pkg/embedding"
	"github.com/listinglab/clover/pkg/events"
	"github.com/listinglab/clover/pkg/httpclient"
	"github.com/listinglab/clover/pkg/imagehash"
	"github.com/listinglab/clover/pkg/logging"
	"github.com/listinglab/clover/pkg/models"
)

// fakeListings serves listings from memory, most recently updated first.
type fakeListings struct {
	listings []models.Listing
}

func (f *fakeListings) Get(_ context.Context, id string) (*models.Listing, error) {
	for i := range f.listings {
		if f.listings[i].ID == id {
			l := f.listings[i]
			return &l, nil
		}
	}
	return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "listing %s not found", id)
}

func (f *fakeListings) ListAll(_ context.Context) ([]models.Listing, error) {
	out := make([]models.Listing, len(f.listings))
	copy(out, f.listings)
	return out, nil
}

func (f *fakeListings) Candidates(_ context.Context, excludeOwnerID string, limit int) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range f.listings {
		if l.OwnerID != excludeOwnerID {
			out = append(out, l)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeListings) UpdateEmbedding(_ context.Context, recordID string, embedding models.Vector, fingerprint string) error {
	for i := range f.listings {
		if f.listings[i].ID == recordID {
			f.listings[i].Embedding = embedding
			f.listings[i].TextFingerprint = &fingerprint
		}
	}
	return nil
}

type fakeGroups struct {
	mu      sync.Mutex
	groups  []models.DuplicateGroup
	members map[string][]models.DuplicateGroupMember
	nextID  int
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{members: make(map[string][]models.DuplicateGroupMember)}
}

func (f *fakeGroups) Create(_ context.Context, group *models.DuplicateGroup, members []models.DuplicateGroupMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	group.ID = fmt.Sprintf("group-%d", f.nextID)
	group.Status = models.DuplicateGroupStatusPending
	f.groups = append(f.groups, *group)
	f.members[group.ID] = members
	return nil
}

func (f *fakeGroups) Get(_ context.Context, id string) (*models.DuplicateGroupWithMembers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.ID == id {
			return &models.DuplicateGroupWithMembers{DuplicateGroup: g, Members: f.members[id]}, nil
		}
	}
	return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "duplicate group %s not found", id)
}

func (f *fakeGroups) ListByStatus(_ context.Context, status string, _, _ int) ([]models.DuplicateGroupWithMembers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DuplicateGroupWithMembers
	for _, g := range f.groups {
		if g.Status == status {
			out = append(out, models.DuplicateGroupWithMembers{DuplicateGroup: g, Members: f.members[g.ID]})
		}
	}
	return out, nil
}

func (f *fakeGroups) HasPendingWithMembers(_ context.Context, recordIDs []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.Status != models.DuplicateGroupStatusPending {
			continue
		}
		have := make(map[string]bool)
		for _, m := range f.members[g.ID] {
			have[m.RecordID] = true
		}
		all := true
		for _, id := range recordIDs {
			if !have[id] {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGroups) UpdateStatus(_ context.Context, id, status string, notes *string, resolvedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.groups {
		if f.groups[i].ID == id {
			f.groups[i].Status = status
			f.groups[i].Notes = notes
			f.groups[i].ResolvedBy = &resolvedBy
			return nil
		}
	}
	return httperror.NewHTTPErrorf(http.StatusNotFound, "duplicate group %s not found", id)
}

type fakeFalsePositives struct {
	pairs []models.FalsePositivePair
}

func (f *fakeFalsePositives) Create(_ context.Context, pair models.FalsePositivePair) error {
	f.pairs = append(f.pairs, models.NewFalsePositivePair(pair.RecordAID, pair.RecordBID, pair.CreatedBy))
	return nil
}

func (f *fakeFalsePositives) ListForRecord(_ context.Context, recordID string) ([]models.FalsePositivePair, error) {
	var out []models.FalsePositivePair
	for _, p := range f.pairs {
		if p.RecordAID == recordID || p.RecordBID == recordID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeFalsePositives) ListAll(_ context.Context) ([]models.FalsePositivePair, error) {
	return f.pairs, nil
}

type fakeDetectionLog struct {
	mu      sync.Mutex
	entries []models.DetectionLogEntry
}

func (f *fakeDetectionLog) Create(_ context.Context, entry *models.DetectionLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = fmt.Sprintf("log-%d", len(f.entries)+1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeDetectionLog) List(_ context.Context, _, _ int) ([]models.DetectionLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, nil
}

type fakeLock struct{ released bool }

func (l *fakeLock) Release(context.Context) error {
	l.released = true
	return nil
}

type fakeLocker struct {
	busy bool
	last *fakeLock
}

func (f *fakeLocker) Acquire(context.Context, string, time.Duration) (Lock, error) {
	if f.busy {
		return nil, ErrScanInProgress
	}
	f.last = &fakeLock{}
	return f.last, nil
}

type denyAuthorizer struct{}

func (denyAuthorizer) Authorize(_ context.Context, _, action string) error {
	return httperror.NewHTTPErrorf(http.StatusForbidden, "actor is not authorized for %s", action)
}

// scriptedEmbedder returns a distinct orthogonal basis vector per unseen
// text, so unrelated texts score 0 and identical texts score 1. Specific
// texts can be pinned to explicit vectors.
type scriptedEmbedder struct {
	mu      sync.Mutex
	vectors map[string]models.Vector
	next    int
	err     error
}

func newScriptedEmbedder() *scriptedEmbedder {
	return &scriptedEmbedder{vectors: make(map[string]models.Vector)}
}

func (s *scriptedEmbedder) pin(text string, vec models.Vector) {
	s.vectors[text] = vec
}

func (s *scriptedEmbedder) Embed(_ context.Context, text string) (models.Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	vec := make(models.Vector, 256)
	vec[s.next%256] = 1
	s.next++
	s.vectors[text] = vec
	return vec, nil
}

type fakeFetcher struct {
	mu     sync.Mutex
	images map[string][]byte
	calls  int
}

func (f *fakeFetcher) Get(_ context.Context, url string) (*httpclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	body, ok := f.images[url]
	if !ok {
		return nil, errors.New("unreachable url")
	}
	return &httpclient.Response{StatusCode: 200, Body: body, ContentType: "image/png"}, nil
}

type memoryHashStore struct {
	mu     sync.Mutex
	hashes map[string]models.ImageHash
}

func (m *memoryHashStore) Get(_ context.Context, recordID, url string) (*models.ImageHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.hashes[recordID+"|"+url]; ok {
		return &h, nil
	}
	return nil, nil
}

func (m *memoryHashStore) Upsert(_ context.Context, hash models.ImageHash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes == nil {
		m.hashes = make(map[string]models.ImageHash)
	}
	m.hashes[hash.RecordID+"|"+hash.URL] = hash
	return nil
}

// testEnv bundles a detector with its fakes.
type testEnv struct {
	detector *Detector
	listings *fakeListings
	groups   *fakeGroups
	fps      *fakeFalsePositives
	log      *fakeDetectionLog
	embedder *scriptedEmbedder
	fetcher  *fakeFetcher
	locker   *fakeLocker
}

func newTestEnv(listings []models.Listing) *testEnv {
	logger := logging.NewNopLogger()
	env := &testEnv{
		listings: &fakeListings{listings: listings},
		groups:   newFakeGroups(),
		fps:      &fakeFalsePositives{},
		log:      &fakeDetectionLog{},
		embedder: newScriptedEmbedder(),
		fetcher:  &fakeFetcher{images: make(map[string][]byte)},
		locker:   &fakeLocker{},
	}

	embeds := embedding.NewService(env.embedder, env.listings, logger)
	images := imagehash.NewService(env.fetcher, imagehash.NewStdDecoder(), &memoryHashStore{}, time.Minute, logger)

	env.detector = NewDetector(Deps{
		Listings:       env.listings,
		FalsePositives: env.fps,
		Groups:         env.groups,
		DetectionLog:   env.log,
		Embeddings:     embeds,
		Images:         images,
		Authorizer:     auth.AllowAll{},
		Locker:         env.locker,
		Emitter:        events.Nop{},
		Logger:         logger,
	}, Options{})
	return env
}

func encodePNG(t *testing.T, seed uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*7+y*3) + seed})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func baseListing(id, owner string) models.Listing {
	return models.Listing{
		ID:          id,
		OwnerID:     owner,
		Title:       "Bright 2-room flat near the park",
		Description: "Freshly renovated apartment with balcony and fitted kitchen.",
		Street:      "Hauptstrasse",
		HouseNumber: "5",
		City:        "Berlin",
		ZipCode:     "10115",
		Rent:        floatPtr(1200),
		Size:        floatPtr(85),
		Bedrooms:    intPtr(2),
		Bathrooms:   intPtr(1),
	}
}

func TestEvaluateRecordDuplicate(t *testing.T) {
	// Scenario: identical title and address, rent differing by 2%, one
	// shared photo. Must classify as duplicate with high confidence.
	a := baseListing("rec-a", "owner-1")
	a.ImageURLs = []string{"https://img.example.com/a.png"}
	b := baseListing("rec-b", "owner-2")
	b.Rent = floatPtr(1224)
	b.ImageURLs = []string{"https://img.example.com/b.png"}

	env := newTestEnv([]models.Listing{a, b})
	photo := encodePNG(t, 0)
	env.fetcher.images["https://img.example.com/a.png"] = photo
	env.fetcher.images["https://img.example.com/b.png"] = photo

	resp, err := env.detector.EvaluateRecord(context.Background(), "rec-a", "actor-1")
	require.NoError(t, err)
	require.Len(t, resp.Matches, 1)

	match := resp.Matches[0]
	assert.Equal(t, "rec-b", match.MatchedRecordID)
	assert.Equal(t, models.ClassificationDuplicate, match.Classification)
	assert.GreaterOrEqual(t, match.Confidence, 0.85)
	assert.LessOrEqual(t, match.Confidence, 1.0)
	assert.Contains(t, match.Reasons, "near-identical titles")
	assert.Contains(t, match.Reasons, "matching address")
	assert.Contains(t, match.Reasons, "shared or near-identical photos")

	// the match is persisted as a pending group and logged
	require.Len(t, env.groups.groups, 1)
	assert.Equal(t, models.DuplicateGroupStatusPending, env.groups.groups[0].Status)
	require.Len(t, env.log.entries, 1)
	assert.Equal(t, models.ActionTypeEvaluateRecord, env.log.entries[0].ActionType)
}

func TestEvaluateRecordPotential(t *testing.T) {
	// Scenario: dissimilar titles and descriptions, no photos, identical
	// address, near-identical rent and size. Semantic similarity is pinned
	// to 0.9, landing the pair in the potential band.
	a := baseListing("rec-a", "owner-1")
	b := baseListing("rec-b", "owner-2")
	b.Title = "Cozy rooftop apartment in central location"
	b.Description = "Charming top floor unit, recently refurbished, great transport links."
	b.Rent = floatPtr(1210)

	env := newTestEnv([]models.Listing{a, b})
	env.embedder.pin(a.CombinedText(), models.Vector{1, 0})
	env.embedder.pin(b.CombinedText(), models.Vector{0.9, 0.4358898944})
	env.embedder.pin(a.Title, models.Vector{1, 0})
	env.embedder.pin(b.Title, models.Vector{0.9, 0.4358898944})

	resp, err := env.detector.EvaluateRecord(context.Background(), "rec-a", "actor-1")
	require.NoError(t, err)
	require.Len(t, resp.Matches, 1)

	match := resp.Matches[0]
	assert.Equal(t, models.ClassificationPotential, match.Classification)
	assert.GreaterOrEqual(t, match.Confidence, 0.55)
	assert.LessOrEqual(t, match.Confidence, 0.75)
}

func TestEvaluateRecordSemanticFailureDoesNotPromote(t *testing.T) {
	// Scenario: embedding inference fails for both records. The semantic
	// signal contributes 0 and the pair must not be promoted on the
	// remaining signals alone.
	a := baseListing("rec-a", "owner-1")
	b := baseListing("rec-b", "owner-2")

	env := newTestEnv([]models.Listing{a, b})
	env.embedder.err = errors.New("inference unavailable")

	resp, err := env.detector.EvaluateRecord(context.Background(), "rec-a", "actor-1")
	require.NoError(t, err)

	// identical text and numerics, but lexical alone caps confidence at the
	// lexical weight, far below the potential band
	assert.Empty(t, resp.Matches)
	assert.Empty(t, env.groups.groups)
}

func TestEvaluateRecordExcludesSameOwnerAndFalsePositives(t *testing.T) {
	a := baseListing("rec-a", "owner-1")
	sameOwner := baseListing("rec-same", "owner-1")
	reviewed := baseListing("rec-reviewed", "owner-2")

	env := newTestEnv([]models.Listing{a, sameOwner, reviewed})
	require.NoError(t, env.fps.Create(context.Background(), models.NewFalsePositivePair("rec-a", "rec-reviewed", nil)))

	resp, err := env.detector.EvaluateRecord(context.Background(), "rec-a", "actor-1")
	require.NoError(t, err)
	assert.Empty(t, resp.Matches)
}

func TestEvaluateRecordRanksByConfidence(t *testing.T) {
	a := baseListing("rec-a", "owner-1")
	closeMatch := baseListing("rec-close", "owner-2")
	looser := baseListing("rec-loose", "owner-3")
	looser.Rent = floatPtr(1500)
	looser.Size = floatPtr(70)

	env := newTestEnv([]models.Listing{a, closeMatch, looser})

	resp, err := env.detector.EvaluateRecord(context.Background(), "rec-a", "actor-1")
	require.NoError(t, err)
	require.Len(t, resp.Matches, 2)
	assert.Equal(t, "rec-close", resp.Matches[0].MatchedRecordID)
	assert.GreaterOrEqual(t, resp.Matches[0].Confidence, resp.Matches[1].Confidence)
}

func TestEvaluateRecordNotFound(t *testing.T) {
	env := newTestEnv(nil)
	_, err := env.detector.EvaluateRecord(context.Background(), "rec-missing", "actor-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestRunFullScan(t *testing.T) {
	// 50 records, exactly one true duplicate pair.
	listings := make([]models.Listing, 0, 50)
	for i := 0; i < 48; i++ {
		l := models.Listing{
			ID:          fmt.Sprintf("rec-%02d", i),
			OwnerID:     fmt.Sprintf("owner-%02d", i),
			Title:       fmt.Sprintf("Listing number %02d in district %02d", i, i),
			Description: fmt.Sprintf("A one of a kind unit, reference %02d.", i),
			Street:      fmt.Sprintf("Street %02d", i),
			City:        "Berlin",
			ZipCode:     fmt.Sprintf("1%04d", i),
			Rent:        floatPtr(float64(700 + i*37)),
			Size:        floatPtr(float64(40 + i)),
		}
		listings = append(listings, l)
	}
	dupA := baseListing("rec-dup-a", "owner-a")
	dupB := baseListing("rec-dup-b", "owner-b")
	listings = append(listings, dupA, dupB)

	env := newTestEnv(listings)

	summary, err := env.detector.RunFullScan(context.Background(), "admin-1")
	require.NoError(t, err)

	assert.Equal(t, 50, summary.RecordsScanned)
	assert.Equal(t, 1, summary.GroupsCreated)
	require.Len(t, env.groups.groups, 1)
	members := env.groups.members[env.groups.groups[0].ID]
	require.Len(t, members, 2)

	require.Len(t, env.log.entries, 1)
	entry := env.log.entries[0]
	assert.Equal(t, models.ActionTypeFullScan, entry.ActionType)
	assert.Equal(t, 50, entry.Details.GetValue()["records_scanned"])

	require.NotNil(t, env.locker.last)
	assert.True(t, env.locker.last.released)
}

func TestRunFullScanIsIdempotent(t *testing.T) {
	dupA := baseListing("rec-dup-a", "owner-a")
	dupB := baseListing("rec-dup-b", "owner-b")
	env := newTestEnv([]models.Listing{dupA, dupB})

	first, err := env.detector.RunFullScan(context.Background(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.GroupsCreated)

	second, err := env.detector.RunFullScan(context.Background(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.GroupsCreated)
	assert.Equal(t, 1, second.GroupsSkipped)
	assert.Len(t, env.groups.groups, 1)
}

func TestRunFullScanSkipsFalsePositives(t *testing.T) {
	dupA := baseListing("rec-dup-a", "owner-a")
	dupB := baseListing("rec-dup-b", "owner-b")
	env := newTestEnv([]models.Listing{dupA, dupB})
	require.NoError(t, env.fps.Create(context.Background(), models.NewFalsePositivePair("rec-dup-b", "rec-dup-a", nil)))

	summary, err := env.detector.RunFullScan(context.Background(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.PairsCompared)
	assert.Empty(t, env.groups.groups)
}

func TestRunFullScanAuthorizationDenied(t *testing.T) {
	env := newTestEnv(nil)
	env.detector.authorizer = denyAuthorizer{}

	_, err := env.detector.RunFullScan(context.Background(), "intruder")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Empty(t, env.log.entries)
}

func TestRunFullScanLockContention(t *testing.T) {
	env := newTestEnv(nil)
	env.locker.busy = true

	_, err := env.detector.RunFullScan(context.Background(), "admin-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
}

func TestRunFullScanHonorsCancellation(t *testing.T) {
	dupA := baseListing("rec-dup-a", "owner-a")
	dupB := baseListing("rec-dup-b", "owner-b")
	env := newTestEnv([]models.Listing{dupA, dupB})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.detector.RunFullScan(ctx, "admin-1")
	require.ErrorIs(t, err, context.Canceled)
}
