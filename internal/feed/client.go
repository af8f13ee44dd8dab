package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// maxPayloadBytes bounds how much of a feed response is read. The SC bbox at
// 10 days is well under a megabyte; anything larger is upstream misbehavior.
const maxPayloadBytes = 32 << 20

// snippetLen is how much of a payload gets logged on failures.
const snippetLen = 120

// Client fetches FIRMS area CSV for one region bounding box.
type Client struct {
	mapKey     string
	baseURL    string
	bbox       string
	days       int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a FIRMS area API client bounded to the given box.
func NewClient(mapKey, baseURL string, bound orb.Bound, days int, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		mapKey:  mapKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		bbox: strings.Join([]string{
			formatCoord(bound.Min[0]), formatCoord(bound.Min[1]),
			formatCoord(bound.Max[0]), formatCoord(bound.Max[1]),
		}, ","),
		days:       days,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchProduct retrieves the raw CSV payload for one product. The request is
// bounded by the client timeout and the passed context; failures carry a
// redacted URL and a truncated body where available.
func (c *Client) FetchProduct(ctx context.Context, product string) (string, error) {
	u := c.areaURL(product)
	c.logger.Info("fetching FIRMS product", "product", product, "days", c.days, "url", c.Redact(u))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create request for %s: %w", product, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", product, c.redactErr(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return "", fmt.Errorf("read %s response: %w", product, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d: %s", product, resp.StatusCode, Snippet(string(body)))
	}

	return string(body), nil
}

// areaURL builds /api/area/csv/{key}/{product}/{bbox}/{days}.
func (c *Client) areaURL(product string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%d", c.baseURL, c.mapKey, product, c.bbox, c.days)
}

// Redact masks the map key in a URL or message before logging.
func (c *Client) Redact(s string) string {
	if c.mapKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.mapKey, "****")
}

// redactErr rewraps a transport error with the map key masked; URL errors
// embed the full request URL.
func (c *Client) redactErr(err error) error {
	return fmt.Errorf("%s", c.Redact(err.Error()))
}

// Snippet returns the leading portion of a payload with whitespace collapsed,
// for diagnostic logging of unexpected responses.
func Snippet(s string) string {
	if len(s) > snippetLen {
		s = s[:snippetLen]
	}
	return strings.Join(strings.Fields(s), " ")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
