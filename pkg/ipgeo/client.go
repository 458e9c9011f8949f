// Package ipgeo approximates a visitor's position from their IP address using
// an ipapi.co-compatible service.
package ipgeo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/moveis-planejados/lead-api/internal/resilience"
)

const defaultBaseURL = "https://ipapi.co"

// ErrUnroutable is returned for loopback, private and otherwise local
// addresses, which no geolocation service can place.
var ErrUnroutable = eris.New("ipgeo: address is not publicly routable")

// Client resolves IP addresses to approximate locations.
type Client interface {
	// Lookup locates a public IP address.
	Lookup(ctx context.Context, ip string) (*Location, error)
	// Self locates the public address the request leaves from.
	Self(ctx context.Context) (*Location, error)
}

// Location is the approximate position of an address.
type Location struct {
	IP        string  `json:"ip"`
	City      string  `json:"city"`
	Region    string  `json:"region"`
	Country   string  `json:"country_code"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type lookupResponse struct {
	Location
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the service base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles lookups to rps requests per second. Zero disables it.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an IP geolocation client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 3 * time.Second},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, ip string) (*Location, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return nil, eris.Wrapf(err, "ipgeo: parse address %q", ip)
	}
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return nil, eris.Wrapf(ErrUnroutable, "ipgeo: %s", addr)
	}
	return c.fetch(ctx, c.baseURL+"/"+addr.String()+"/json/")
}

func (c *httpClient) Self(ctx context.Context) (*Location, error) {
	return c.fetch(ctx, c.baseURL+"/json/")
}

func (c *httpClient) fetch(ctx context.Context, url string) (*Location, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "ipgeo: rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ipgeo: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ipgeo: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ipgeo: read response")
	}
	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("ipgeo: unexpected status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var out lookupResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "ipgeo: unmarshal response")
	}
	if out.Error {
		return nil, eris.Errorf("ipgeo: lookup failed: %s", out.Reason)
	}
	return &out.Location, nil
}
