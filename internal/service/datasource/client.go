package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"SensorPull/internal/domain/models"
	"SensorPull/internal/domain/repository"
	xhttp "SensorPull/pkg/http"
	"SensorPull/pkg/util"
)

// Client fetches samples from the data source REST API:
//
//	GET {base}/datasources/{id}/data?since=<RFC3339Nano>  ->  {"data":[{"x":...,"y":...}]}
//
// Bar sources decode x as a category key; the caller passes the effective category.
type Client struct {
	http *xhttp.Client
	now  func() time.Time
}

// Option configures Client.
type Option func(*Client)

// WithNow overrides the clock used to stamp FetchedAt.
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a fetch client on top of an HTTP client configured with the API base URL.
func New(httpClient *xhttp.Client, opts ...Option) *Client {
	c := &Client{
		http: httpClient,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ repository.FetchClient = (*Client)(nil)

type dataResponse struct {
	Data []rawSample `json:"data"`
}

type rawSample struct {
	X json.RawMessage `json:"x"`
	Y *float64        `json:"y"`
}

// Fetch returns samples of source newer than since. Every failure is a *models.FetchError.
func (c *Client) Fetch(ctx context.Context, source models.DataSource, since models.Watermark) (models.Batch, error) {
	query := url.Values{}
	if !since.Position.IsZero() {
		query.Set("since", since.Position.UTC().Format(time.RFC3339Nano))
	}

	var resp dataResponse
	path := fmt.Sprintf("datasources/%d/data", source.ID)
	if err := c.http.GetJSON(ctx, path, query, &resp); err != nil {
		return models.Batch{}, &models.FetchError{SourceID: source.ID, Err: err}
	}

	categorical := source.Category == models.CategoryBar
	samples := make([]models.Sample, 0, len(resp.Data))
	for i, raw := range resp.Data {
		s, err := decodeSample(raw, categorical)
		if err != nil {
			return models.Batch{}, &models.FetchError{SourceID: source.ID, Err: fmt.Errorf("sample %d: %w", i, err)}
		}
		samples = append(samples, s)
	}

	return models.Batch{
		Source:    source,
		Samples:   samples,
		FetchedAt: c.now(),
	}, nil
}

func decodeSample(raw rawSample, categorical bool) (models.Sample, error) {
	if raw.Y == nil {
		return models.Sample{}, errors.New("missing y")
	}
	if len(raw.X) == 0 || string(raw.X) == "null" {
		return models.Sample{}, errors.New("missing x")
	}

	x := strings.TrimSpace(string(raw.X))
	quoted := strings.HasPrefix(x, `"`)
	if quoted {
		var s string
		if err := json.Unmarshal(raw.X, &s); err != nil {
			return models.Sample{}, fmt.Errorf("decode x: %w", err)
		}
		x = s
	}

	if categorical {
		return models.Sample{Key: x, Y: *raw.Y}, nil
	}

	if t, ok := timeOf(x, quoted); ok {
		return models.Sample{Time: t, Y: *raw.Y}, nil
	}
	return models.Sample{}, fmt.Errorf("x %q is not a timestamp", x)
}

// timeOf reads a timeseries x. Numbers are always unix milliseconds, so relative
// axes starting at 0 decode as instants near the epoch. Strings may also be RFC3339.
func timeOf(x string, quoted bool) (time.Time, bool) {
	if quoted {
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return t, true
		}
	}
	v, err := strconv.ParseFloat(x, 64)
	if err != nil {
		return time.Time{}, false
	}
	return util.FromUnixMillis(v)
}
