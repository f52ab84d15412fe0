package imagehash

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listinglab/clover/pkg/httpclient"
	"github.com/listinglab/clover/pkg/logging"
	"github.com/listinglab/clover/pkg/models"
)

type memoryHashStore struct {
	hashes map[string]models.ImageHash
}

func newMemoryHashStore() *memoryHashStore {
	return &memoryHashStore{hashes: make(map[string]models.ImageHash)}
}

func (m *memoryHashStore) Get(_ context.Context, recordID, url string) (*models.ImageHash, error) {
	if h, ok := m.hashes[recordID+"|"+url]; ok {
		return &h, nil
	}
	return nil, nil
}

func (m *memoryHashStore) Upsert(_ context.Context, hash models.ImageHash) error {
	m.hashes[hash.RecordID+"|"+hash.URL] = hash
	return nil
}

// gradientPNG renders a horizontal gradient with a stable difference hash.
func gradientPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 4)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestService(t *testing.T, transport *httpmock.MockTransport) (*Service, *memoryHashStore) {
	t.Helper()
	client := httpclient.NewClient(httpclient.Config{
		MaxResponseSize: 1 << 20,
		Transport:       transport,
	}, logging.NewNopLogger())
	store := newMemoryHashStore()
	service := NewService(client, NewStdDecoder(), store, time.Minute, logging.NewNopLogger())
	return service, store
}

func registerImage(transport *httpmock.MockTransport, url string, body []byte) {
	transport.RegisterResponder("GET", url, func(*http.Request) (*http.Response, error) {
		resp := httpmock.NewBytesResponse(200, body)
		resp.Header.Set("Content-Type", "image/png")
		return resp, nil
	})
}

func TestHashesFor(t *testing.T) {
	transport := httpmock.NewMockTransport()
	service, store := newTestService(t, transport)

	registerImage(transport, "https://img.example.com/a.png", gradientPNG(t))

	listing := &models.Listing{ID: "rec-1", ImageURLs: []string{"https://img.example.com/a.png"}}

	hashes := service.HashesFor(context.Background(), listing)
	require.Len(t, hashes, 1)
	assert.Contains(t, store.hashes, "rec-1|https://img.example.com/a.png")

	// Hashing is deterministic for identical bytes.
	again := service.HashesFor(context.Background(), listing)
	require.Len(t, again, 1)
	assert.Equal(t, hashes[0], again[0])

	// The second pass was served from cache, not re-fetched.
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestHashesForUsesPersistentCacheAcrossServices(t *testing.T) {
	transport := httpmock.NewMockTransport()
	service, store := newTestService(t, transport)

	registerImage(transport, "https://img.example.com/a.png", gradientPNG(t))

	listing := &models.Listing{ID: "rec-1", ImageURLs: []string{"https://img.example.com/a.png"}}
	first := service.HashesFor(context.Background(), listing)
	require.Len(t, first, 1)

	// A fresh service instance with an empty memory cache but the same store
	// must not hit the network either.
	client := httpclient.NewClient(httpclient.Config{Transport: transport}, logging.NewNopLogger())
	fresh := NewService(client, NewStdDecoder(), store, time.Minute, logging.NewNopLogger())

	second := fresh.HashesFor(context.Background(), listing)
	require.Len(t, second, 1)
	assert.Equal(t, first[0], second[0])
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestHashesForSkipsFailedImages(t *testing.T) {
	transport := httpmock.NewMockTransport()
	service, _ := newTestService(t, transport)

	registerImage(transport, "https://img.example.com/good.png", gradientPNG(t))
	transport.RegisterResponder("GET", "https://img.example.com/missing.png",
		httpmock.NewStringResponder(404, "not found"))
	transport.RegisterResponder("GET", "https://img.example.com/page.html",
		func(*http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(200, "<html></html>")
			resp.Header.Set("Content-Type", "text/html")
			return resp, nil
		})
	transport.RegisterResponder("GET", "https://img.example.com/corrupt.png",
		func(*http.Request) (*http.Response, error) {
			resp := httpmock.NewBytesResponse(200, []byte{0x00, 0x01})
			resp.Header.Set("Content-Type", "image/png")
			return resp, nil
		})

	listing := &models.Listing{ID: "rec-1", ImageURLs: []string{
		"https://img.example.com/missing.png",
		"https://img.example.com/page.html",
		"https://img.example.com/corrupt.png",
		"https://img.example.com/good.png",
	}}

	hashes := service.HashesFor(context.Background(), listing)
	assert.Len(t, hashes, 1)
}

func TestHashesForNoImages(t *testing.T) {
	transport := httpmock.NewMockTransport()
	service, _ := newTestService(t, transport)

	listing := &models.Listing{ID: "rec-1"}
	hashes := service.HashesFor(context.Background(), listing)
	assert.Empty(t, hashes)
	assert.Equal(t, 0.0, service.Score(hashes, []uint64{42}))
}

func TestDecoderIsDeterministicAcrossSizes(t *testing.T) {
	decoder := NewStdDecoder()
	data := gradientPNG(t)

	g1, err := decoder.Decode(data)
	require.NoError(t, err)
	g2, err := decoder.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, g1, g2)

	// A gradient brightening to the right never sets a "left brighter" bit.
	assert.Equal(t, uint64(0), DifferenceHash(g1))
}
