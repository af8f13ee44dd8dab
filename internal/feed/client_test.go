package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMapKey = "secret-map-key"

var testBound = orb.Bound{Min: orb.Point{-83.35, 32.04}, Max: orb.Point{-78.54, 35.21}}

func newTestClient(baseURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(testMapKey, baseURL, testBound, 2, 5*time.Second, logger)
}

func TestFetchProduct(t *testing.T) {
	const payload = viirsHeader + "\n"

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, payload)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	body, err := c.FetchProduct(context.Background(), "VIIRS_SNPP_NRT")
	require.NoError(t, err)
	assert.Equal(t, payload, body)

	// /{key}/{product}/{bbox}/{days}
	assert.Equal(t, "/"+testMapKey+"/VIIRS_SNPP_NRT/-83.35,32.04,-78.54,35.21/2", gotPath)
}

func TestFetchProduct_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid MAP_KEY.", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FetchProduct(context.Background(), "VIIRS_SNPP_NRT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "Invalid MAP_KEY.")
}

func TestFetchProduct_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := newTestClient(srv.URL)
	_, err := c.FetchProduct(ctx, "VIIRS_SNPP_NRT")
	require.Error(t, err)
	// Transport errors embed the URL; the key must not leak.
	assert.NotContains(t, err.Error(), testMapKey)
}

func TestRedact(t *testing.T) {
	c := newTestClient("https://example.com/api/area/csv")
	u := c.areaURL("VIIRS_SNPP_NRT")

	assert.Contains(t, u, testMapKey)
	redacted := c.Redact(u)
	assert.NotContains(t, redacted, testMapKey)
	assert.Contains(t, redacted, "****")
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("x", 500) + "\n\ttail"
	s := Snippet(long)
	assert.LessOrEqual(t, len(s), 120)

	assert.Equal(t, "a b c", Snippet("a\n b\t\tc"))
}
