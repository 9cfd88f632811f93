// Package cloudflare implements the upstream client for the Cloudflare
// GraphQL Analytics API: query construction, the HTTP call with bounded
// retries, and response normalization.
package cloudflare

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/edgestats/edgestats/internal/logging"
	"github.com/edgestats/edgestats/internal/resilience"
	"github.com/edgestats/edgestats/internal/secrets"
)

const (
	// DefaultEndpoint is the Cloudflare GraphQL Analytics endpoint.
	DefaultEndpoint = "https://api.cloudflare.com/client/v4/graphql"

	fetchTimeout = 15 * time.Second
	checkTimeout = 10 * time.Second
)

// TimeRange selects the analytics window. The set is closed; anything
// else coerces to Range24h.
type TimeRange string

const (
	Range24h TimeRange = "24"
	Range7d  TimeRange = "7"
	Range30d TimeRange = "30"
)

// NormalizeRange coerces arbitrary input to a supported range, falling
// back to the 24-hour window. Silent fallback is intentional: a bad range
// selector is not worth an error to the dashboard.
func NormalizeRange(s string) TimeRange {
	switch TimeRange(s) {
	case Range24h, Range7d, Range30d:
		return TimeRange(s)
	default:
		return Range24h
	}
}

// days returns the lookback in days for the range's date filter.
func (r TimeRange) days() int {
	switch r {
	case Range7d:
		return 7
	case Range30d:
		return 30
	default:
		return 1
	}
}

// ErrMissingCredentials is returned before any network I/O when the token
// is absent.
var ErrMissingCredentials = errors.New("cloudflare credentials are not configured")

// TransportError wraps network-level failures after retries are exhausted.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cloudflare transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError carries an errors payload reported by the remote service.
type UpstreamError struct {
	Detail string
}

func (e *UpstreamError) Error() string {
	return "cloudflare reported an error: " + e.Detail
}

// ShapeError marks a response missing the expected nested path. Distinct
// from TransportError so callers can tell a bad deploy from a bad network.
type ShapeError struct {
	Detail string
}

func (e *ShapeError) Error() string {
	msg := "unexpected response from Cloudflare API"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Credentials is the decrypted credential view handed to the client per
// call. The token only ever lives here transiently.
type Credentials struct {
	ZoneID       string
	Token        string
	AccountEmail string
}

// CredentialSource yields current credentials; the vault-backed
// implementation lives in the analytics package.
type CredentialSource interface {
	Credentials() (Credentials, error)
}

// Client fetches zone analytics over the GraphQL API.
type Client struct {
	endpoint string
	http     *http.Client
	creds    CredentialSource
	exec     *resilience.Executor[[]byte]
	now      func() time.Time
}

// NewClient builds a client with mandatory TLS verification and the
// bounded retry policy (3 attempts, 1s/2s backoff, transport errors only).
func NewClient(creds CredentialSource, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	breakerCfg := resilience.DefaultBreakerConfig("cloudflare")
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{},
		creds:    creds,
		exec:     resilience.NewExecutor[[]byte](resilience.DefaultRetryConfig, &breakerCfg),
		now:      time.Now,
	}
}

// FetchMetrics runs the analytics query for the given range and returns a
// normalized snapshot.
func (c *Client) FetchMetrics(ctx context.Context, timeRange TimeRange) (*Snapshot, error) {
	creds, err := c.creds.Credentials()
	if err != nil {
		return nil, err
	}

	query := buildAnalyticsQuery(creds.ZoneID, c.dateFilter(timeRange))
	body, err := c.post(ctx, creds, query, fetchTimeout)
	if err != nil {
		return nil, err
	}
	return c.parseAnalytics(body)
}

// TestConnection issues a minimal identity query and returns the account
// email the remote service reports.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	creds, err := c.creds.Credentials()
	if err != nil {
		return "", err
	}

	body, err := c.post(ctx, creds, `{ viewer { user { email } } }`, checkTimeout)
	if err != nil {
		return "", err
	}

	parsed := gjson.ParseBytes(body)
	if errs := parsed.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		return "", &UpstreamError{Detail: errs.Raw}
	}
	email := parsed.Get("data.viewer.user.email")
	if !email.Exists() {
		return "", &ShapeError{}
	}
	return email.String(), nil
}

// post sends the GraphQL query, retrying transport failures. A well-formed
// HTTP response of any status is final.
func (c *Client) post(ctx context.Context, creds Credentials, query string, timeout time.Duration) ([]byte, error) {
	if creds.Token == "" {
		return nil, ErrMissingCredentials
	}

	payload, err := sjson.Set("", "query", query)
	if err != nil {
		return nil, fmt.Errorf("build request body: %w", err)
	}

	body, err := c.exec.Execute(ctx, func() ([]byte, error) {
		// The timeout bounds each attempt, not the whole retry loop.
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, reqErr := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader([]byte(payload)))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Authorization", "Bearer "+creds.Token)
		req.Header.Set("X-Auth-Email", creds.AccountEmail)
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		defer resp.Body.Close()
		return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	})
	if err != nil {
		logging.Debugf("cloudflare: request failed after retries: %v", err)
		return nil, &TransportError{Err: err}
	}
	return body, nil
}

// parseAnalytics validates the response shape and derives the snapshot.
func (c *Client) parseAnalytics(body []byte) (*Snapshot, error) {
	parsed := gjson.ParseBytes(body)

	group := parsed.Get("data.viewer.zones.0.httpRequests1dGroups.0")
	if !group.Exists() {
		detail := ""
		if errs := parsed.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
			detail = errs.Raw
		}
		return nil, &ShapeError{Detail: detail}
	}

	sum := group.Get("sum")
	requests := sum.Get("requests").Int()
	bandwidth := sum.Get("bytes").Int()
	cachedBytes := sum.Get("cachedBytes").Int()
	encrypted := sum.Get("encryptedRequests").Int()

	return &Snapshot{
		UniqueVisitors:       group.Get("uniq.uniques").Int(),
		TotalRequests:        requests,
		PageViews:            sum.Get("pageViews").Int(),
		BandwidthBytes:       bandwidth,
		CachedBandwidthBytes: cachedBytes,
		CacheRatioPct:        ratioPct(cachedBytes, bandwidth),
		ThreatsBlocked:       sum.Get("threats").Int(),
		HTTPSPct:             ratioPct(encrypted, requests),
		Bandwidth:            FormatBytes(bandwidth),
		CachedBandwidth:      FormatBytes(cachedBytes),
		FetchedAt:            c.now().UTC(),
	}, nil
}

// dateFilter formats today minus the range lookback as a calendar date.
func (c *Client) dateFilter(timeRange TimeRange) string {
	return c.now().UTC().AddDate(0, 0, -timeRange.days()).Format("2006-01-02")
}

// buildAnalyticsQuery scopes a single aggregate query to the zone.
func buildAnalyticsQuery(zoneID, dateFilter string) string {
	return fmt.Sprintf(`{
  viewer {
    zones(filter: {zoneTag: %q}) {
      httpRequests1dGroups(limit: 1, filter: {date_geq: %q}) {
        sum {
          requests
          pageViews
          bytes
          cachedBytes
          threats
          encryptedRequests
        }
        uniq {
          uniques
        }
      }
    }
  }
}`, zoneID, dateFilter)
}

// StaticCredentials is a CredentialSource over fixed values, used by the
// check command and tests.
type StaticCredentials Credentials

// Credentials implements CredentialSource.
func (s StaticCredentials) Credentials() (Credentials, error) {
	if s.Token == "" {
		return Credentials{}, ErrMissingCredentials
	}
	if !secrets.ValidZoneID(s.ZoneID) {
		return Credentials{}, fmt.Errorf("invalid zone id %q", s.ZoneID)
	}
	return Credentials(s), nil
}
