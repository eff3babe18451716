// Package query integrates against the external retrieval/answer service the
// assistant dispatches free-text questions to.
//
// The service is an opaque collaborator with two endpoints selected by the
// session's role: /student_query (filter-scoped document retrieval) and
// /rag_query (general agent answering). Both accept a JSON POST and respond
// with a JSON object carrying an "answer" string. The client treats a missing
// or empty answer as the fixed [FallbackAnswer] rather than an error; only
// transport failures and non-2xx statuses are errors.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FallbackAnswer is returned when the service responds successfully but
// without a usable answer.
const FallbackAnswer = "Sorry, I couldn't find an answer."

const (
	studentPath = "/student_query"
	agentPath   = "/rag_query"

	defaultTimeout = 60 * time.Second
)

// StudentRequest is the body for a student-mode dispatch. All filter fields
// are required; "ALL" is the permissive wildcard the service understands.
type StudentRequest struct {
	Batch          string `json:"batch"`
	Branch         string `json:"branch"`
	Semester       string `json:"semester"`
	DocType        string `json:"doc_type"`
	Question       string `json:"question"`
	TargetLanguage string `json:"target_language"`
}

// AgentRequest is the body for an agent-mode (free-text) dispatch.
type AgentRequest struct {
	Question       string `json:"question"`
	TargetLanguage string `json:"target_language"`
}

// answerResponse is the subset of the service response the client consumes.
type answerResponse struct {
	Answer string `json:"answer"`
}

// Service is the dispatch boundary the dialogue controller depends on.
// Implementations must be safe for concurrent use.
type Service interface {
	// StudentQuery dispatches a filter-scoped student question and returns
	// the answer text.
	StudentQuery(ctx context.Context, req StudentRequest) (string, error)

	// AgentQuery dispatches a free-text question and returns the answer text.
	AgentQuery(ctx context.Context, req AgentRequest) (string, error)
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Useful in tests and
// when the caller needs custom transport settings.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBreaker enables a circuit breaker around dispatches. After tripAfter
// consecutive failures the client returns [ErrServiceUnavailable] without
// contacting the service until cooldown elapses. Zero values pick defaults.
func WithBreaker(tripAfter int, cooldown time.Duration) Option {
	return func(c *Client) {
		c.breaker = newBreaker(tripAfter, cooldown)
	}
}

// Client is the HTTP implementation of [Service].
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *breaker
}

var _ Service = (*Client)(nil)

// NewClient creates a [Client] for the service at baseURL
// (e.g. "http://localhost:8000"). A trailing slash is trimmed.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StudentQuery implements [Service].
func (c *Client) StudentQuery(ctx context.Context, req StudentRequest) (string, error) {
	return c.post(ctx, studentPath, req)
}

// AgentQuery implements [Service].
func (c *Client) AgentQuery(ctx context.Context, req AgentRequest) (string, error) {
	return c.post(ctx, agentPath, req)
}

// post sends body as JSON and extracts the answer field. Non-2xx statuses
// are errors; a 2xx body without an answer yields [FallbackAnswer].
func (c *Client) post(ctx context.Context, path string, body any) (string, error) {
	if c.breaker != nil {
		if !c.breaker.allow() {
			return "", ErrServiceUnavailable
		}
		answer, err := c.do(ctx, path, body)
		c.breaker.record(err)
		return answer, err
	}
	return c.do(ctx, path, body)
}

func (c *Client) do(ctx context.Context, path string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("query: encode %s request: %w", path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("query: build %s request: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("query: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for the error message; the service
		// reports failures as JSON but we must not rely on that.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("query: %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var ar answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", fmt.Errorf("query: decode %s response: %w", path, err)
	}
	if strings.TrimSpace(ar.Answer) == "" {
		return FallbackAnswer, nil
	}
	return ar.Answer, nil
}
