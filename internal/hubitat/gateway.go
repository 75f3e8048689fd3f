// Package hubitat keeps a local mirror of a Hubitat hub's devices in sync
// with the hub's Maker API and queues commands back to it.
package hubitat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRequestTimeout bounds every outbound request to the hub.
const DefaultRequestTimeout = 20 * time.Second

// Getter fetches a URL and returns its decoded JSON body, or nil.
type Getter interface {
	Get(ctx context.Context, rawURL string) any
}

// Gateway performs single GET requests against the hub. Every failure is
// reported as a nil result; the caller retries on its next cycle.
type Gateway struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewGateway creates a gateway with the given per-request timeout.
func NewGateway(timeout time.Duration, logger zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Gateway{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger.With().Str("component", "gateway").Logger(),
	}
}

// Get issues a GET and decodes the JSON response. It returns nil on
// timeout, connection failure, non-2xx status or undecodable body.
func (g *Gateway) Get(ctx context.Context, rawURL string) any {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		g.logger.Warn().Err(err).Str("url", redact(rawURL)).Msg("building request")
		return nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Debug().Err(err).Str("url", redact(rawURL)).Msg("request failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Debug().Int("status", resp.StatusCode).Str("url", redact(rawURL)).Msg("unexpected status")
		return nil
	}

	var value any
	if err := json.NewDecoder(resp.Body).Decode(&value); err != nil {
		g.logger.Debug().Err(err).Str("url", redact(rawURL)).Msg("decoding response")
		return nil
	}

	g.logger.Trace().Str("url", redact(rawURL)).Msg("request ok")
	return value
}

// redact hides the access token in log output.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[unparseable url]"
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
