// Package pipefy creates cards in Pipefy pipes through its GraphQL API.
package pipefy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/moveis-planejados/lead-api/internal/resilience"
)

const defaultEndpoint = "https://api.pipefy.com/graphql"

const createCardMutation = `mutation CreateCard($input: CreateCardInput!) {
  createCard(input: $input) {
    card { id title }
  }
}`

// Client defines the Pipefy operations used by lead intake.
type Client interface {
	// CreateCard creates a card and returns its id.
	CreateCard(ctx context.Context, input CreateCardInput) (string, error)
}

// FieldValue is one field_id/field_value pair on a card.
type FieldValue struct {
	FieldID    string `json:"field_id"`
	FieldValue string `json:"field_value"`
}

// CreateCardInput is the GraphQL CreateCardInput.
type CreateCardInput struct {
	PipeID           string       `json:"pipe_id"`
	Title            string       `json:"title,omitempty"`
	FieldsAttributes []FieldValue `json:"fields_attributes"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type createCardResponse struct {
	Data struct {
		CreateCard *struct {
			Card *struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"card"`
		} `json:"createCard"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Option configures the client.
type Option func(*httpClient)

// WithEndpoint overrides the GraphQL endpoint (for testing).
func WithEndpoint(url string) Option {
	return func(c *httpClient) {
		c.endpoint = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles calls to rps requests per second. Zero disables it.
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
	token    string
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a Pipefy client authenticated with a bearer token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:    token,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
		limiter:  rate.NewLimiter(5, 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) CreateCard(ctx context.Context, input CreateCardInput) (string, error) {
	if input.PipeID == "" {
		return "", eris.New("pipefy: pipe id is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "pipefy: rate limit")
		}
	}

	body, err := json.Marshal(graphQLRequest{
		Query:     createCardMutation,
		Variables: map[string]any{"input": input},
	})
	if err != nil {
		return "", eris.Wrap(err, "pipefy: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "pipefy: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "pipefy: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "pipefy: read response")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("pipefy: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return "", statusErr
	}

	var result createCardResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", eris.Wrap(err, "pipefy: unmarshal response")
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			msgs[i] = e.Message
		}
		return "", eris.Errorf("pipefy: graphql errors: %s", strings.Join(msgs, "; "))
	}
	if result.Data.CreateCard == nil || result.Data.CreateCard.Card == nil || result.Data.CreateCard.Card.ID == "" {
		return "", eris.New("pipefy: response has no card id")
	}
	return result.Data.CreateCard.Card.ID, nil
}
