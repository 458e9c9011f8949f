// Package wordpress talks to the site's WordPress REST endpoints: the store
// directory and the lead inbox.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/moveis-planejados/lead-api/internal/model"
	"github.com/moveis-planejados/lead-api/internal/resilience"
)

const (
	storesPath = "/wp-json/api/v1/lojas"
	leadsPath  = "/wp-json/api/v1/leads"
)

// Client defines the WordPress operations used by lead intake.
type Client interface {
	// ListStores returns the store directory.
	ListStores(ctx context.Context) ([]Store, error)
	// CreateLead stores a lead in the CMS lead inbox.
	CreateLead(ctx context.Context, lead LeadRecord) (*CreateLeadResponse, error)
}

// Float decodes a coordinate published either as a JSON number or as a
// string; empty values decode to zero.
type Float float64

// UnmarshalJSON accepts a number, a numeric string, an empty string or null.
func (f *Float) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return eris.Wrapf(err, "wordpress: decode coordinate %q", s)
	}
	*f = Float(v)
	return nil
}

// Store is one entry of the store directory as WordPress publishes it.
type Store struct {
	ID        model.StoreID `json:"id"`
	Name      string        `json:"nome"`
	City      string        `json:"cidade"`
	State     string        `json:"estado"`
	Address   string        `json:"endereco"`
	Phone     string        `json:"telefone"`
	Email     string        `json:"email"`
	Hours     string        `json:"horario"`
	Images    []string      `json:"imagens"`
	Latitude  Float         `json:"latitude"`
	Longitude Float         `json:"longitude"`
}

// Record converts the directory entry to the service's store model.
func (s Store) Record() model.StoreRecord {
	return model.StoreRecord{
		ID:      s.ID,
		Name:    s.Name,
		City:    s.City,
		State:   s.State,
		Address: s.Address,
		Phone:   s.Phone,
		Email:   s.Email,
		Hours:   s.Hours,
		Images:  s.Images,
		Coordinate: model.Coordinate{
			Lat: float64(s.Latitude),
			Lng: float64(s.Longitude),
		},
	}
}

type storesResponse struct {
	Success bool    `json:"success"`
	Stores  []Store `json:"lojas"`
}

// LeadRecord is the normalized lead posted to the CMS.
type LeadRecord struct {
	Name             string  `json:"nome"`
	Email            string  `json:"email"`
	Phone            string  `json:"telefone"`
	City             string  `json:"cidade"`
	State            string  `json:"estado"`
	Interests        string  `json:"interesse"`
	InvestmentRange  string  `json:"expectativa_investimento"`
	StoreRegionLabel string  `json:"loja_regiao"`
	Message          string  `json:"mensagem"`
	Origin           string  `json:"origem"`
	StoreID          *int    `json:"loja_id,omitempty"`
	CRMCardID        *string `json:"pipefy_card_id,omitempty"`
}

// CreateLeadResponse is the CMS answer to a lead post.
type CreateLeadResponse struct {
	Success bool          `json:"success"`
	ID      model.StoreID `json:"id"`
}

// Option configures the client.
type Option func(*httpClient)

// WithToken sends a bearer token with lead posts.
func WithToken(token string) Option {
	return func(c *httpClient) {
		c.token = token
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a WordPress client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ListStores(ctx context.Context) ([]Store, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+storesPath, nil)
	if err != nil {
		return nil, eris.Wrap(err, "wordpress: create request")
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "list stores")
	if err != nil {
		return nil, err
	}

	var resp storesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "wordpress: unmarshal stores")
	}
	if !resp.Success {
		return nil, eris.New("wordpress: store directory reported failure")
	}
	return resp.Stores, nil
}

func (c *httpClient) CreateLead(ctx context.Context, lead LeadRecord) (*CreateLeadResponse, error) {
	payload, err := json.Marshal(lead)
	if err != nil {
		return nil, eris.Wrap(err, "wordpress: marshal lead")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+leadsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "wordpress: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	body, err := c.do(req, "create lead")
	if err != nil {
		return nil, err
	}

	// Any 2xx means the lead was stored; the body is informational unless it
	// explicitly reports a refusal.
	var raw struct {
		Success *bool         `json:"success"`
		ID      model.StoreID `json:"id"`
		Message string        `json:"message"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		zap.L().Debug("wordpress: lead response not decoded", zap.Int("bytes", len(body)), zap.Error(err))
		return &CreateLeadResponse{Success: true}, nil
	}
	if raw.Success != nil && !*raw.Success {
		return nil, eris.Errorf("wordpress: create lead: refused: %s", truncate(raw.Message, 512))
	}
	return &CreateLeadResponse{Success: true, ID: raw.ID}, nil
}

// do sends req and returns the body of a 2xx response.
func (c *httpClient) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "wordpress: %s", op)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "wordpress: %s: read response", op)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := eris.New(fmt.Sprintf("wordpress: %s: unexpected status %d: %s", op, resp.StatusCode, truncate(string(body), 512)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}
	return body, nil
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
