package httpclient

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listinglab/clover/pkg/logging"
)

func newMockedClient(maxSize int64) (*Client, *httpmock.MockTransport) {
	transport := httpmock.NewMockTransport()
	client := NewClient(Config{
		MaxResponseSize: maxSize,
		Transport:       transport,
	}, logging.NewNopLogger())
	return client, transport
}

func TestGet(t *testing.T) {
	client, transport := newMockedClient(1024)

	transport.RegisterResponder("GET", "https://img.example.com/photo.jpg",
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(200, "fake-image-bytes")
			resp.Header.Set("Content-Type", "image/jpeg")
			return resp, nil
		})

	resp, err := client.Get(context.Background(), "https://img.example.com/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.ContentType)
	assert.Equal(t, []byte("fake-image-bytes"), resp.Body)
}

func TestGetRejectsOversizedResponse(t *testing.T) {
	client, transport := newMockedClient(16)

	transport.RegisterResponder("GET", "https://img.example.com/huge.jpg",
		httpmock.NewStringResponder(200, strings.Repeat("x", 64)))

	_, err := client.Get(context.Background(), "https://img.example.com/huge.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestGetPropagatesTransportError(t *testing.T) {
	client, transport := newMockedClient(1024)

	transport.RegisterResponder("GET", "https://img.example.com/gone.jpg",
		httpmock.NewErrorResponder(assert.AnError))

	_, err := client.Get(context.Background(), "https://img.example.com/gone.jpg")
	require.Error(t, err)
}
