package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listinglab/clover/pkg/models"
)

func TestOpenAIEmbedderParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25,-1]}],"model":"text-embedding-3-small"}`))
	}))
	defer srv.Close()

	embedder := NewOpenAIEmbedder("test-key", "", srv.URL+"/v1", time.Second)

	vec, err := embedder.Embed(context.Background(), "bright two room flat")
	require.NoError(t, err)
	assert.Equal(t, models.Vector{0.5, 0.25, -1}, vec)
}

func TestOpenAIEmbedderBoundsRequestDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	embedder := NewOpenAIEmbedder("test-key", "", srv.URL+"/v1", 30*time.Millisecond)

	start := time.Now()
	_, err := embedder.Embed(context.Background(), "bright two room flat")
	elapsed := time.Since(start)

	require.Error(t, err)
	// the deadline, not the slow server, must end the call
	assert.Less(t, elapsed, 400*time.Millisecond)
}
