// Package draft generates enquiry emails on behalf of visitors using an LLM,
// with a deterministic fallback when the model is unreachable.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ldrpitr/samvaad/internal/observe"
	"github.com/ldrpitr/samvaad/pkg/provider/llm"
)

// systemPrompt instructs the model to answer in the SUBJECT:/BODY: format
// that [parseEmail] understands.
const systemPrompt = `You are an expert email writer for an Indian engineering college administration. Write professional, concise emails for students and faculty.

RULES:
1. Generate both EMAIL SUBJECT and EMAIL BODY
2. Direct, clear communication
3. Formal but friendly tone
4. End email body with "Best regards," only
5. Keep email body under 150 words for speed
6. Address common college scenarios professionally
7. Subject should be concise and descriptive (max 8-10 words)

RESPONSE FORMAT:
SUBJECT: [Your subject line here]

BODY:
[Your email body here]

Best regards,`

const (
	// defaultSubject is used whenever no subject can be extracted.
	defaultSubject = "Important Notice"

	// Prompt length bounds, matching the public API contract.
	minPromptLen = 10
	maxPromptLen = 500

	generationTimeout = 30 * time.Second
	maxTokens         = 400
	temperature       = 0.4
)

// ErrPromptLength is returned when the prompt is outside the accepted
// length bounds.
var ErrPromptLength = fmt.Errorf("draft: prompt must be between %d and %d characters", minPromptLen, maxPromptLen)

// Email is a drafted email ready for the client to place in a mailto link or
// compose window.
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`

	// Fallback is true when the model was unavailable and the deterministic
	// template was used instead.
	Fallback bool `json:"fallback"`

	// GenerationTime is how long the draft took, in seconds.
	GenerationTime float64 `json:"generation_time"`
}

// Drafter turns a short free-text prompt into a drafted email.
type Drafter struct {
	provider llm.Provider
	metrics  *observe.Metrics
	timeout  time.Duration
}

// Option configures a [Drafter].
type Option func(*Drafter)

// WithMetrics attaches conversation metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Drafter) { d.metrics = m }
}

// WithTimeout overrides the generation timeout.
func WithTimeout(t time.Duration) Option {
	return func(d *Drafter) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// New creates a [Drafter] over the given provider.
func New(provider llm.Provider, opts ...Option) *Drafter {
	d := &Drafter{provider: provider, timeout: generationTimeout}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Draft generates an email for prompt. Model failures never propagate: the
// deterministic fallback email is returned instead, flagged as such. Only an
// invalid prompt or a missing provider yields an error.
func (d *Drafter) Draft(ctx context.Context, prompt string) (*Email, error) {
	prompt = strings.TrimSpace(prompt)
	// Bounds count characters, not bytes: prompts arrive in Indic scripts too.
	if n := utf8.RuneCountInString(prompt); n < minPromptLen || n > maxPromptLen {
		return nil, ErrPromptLength
	}
	if d.provider == nil {
		return nil, errors.New("draft: no LLM provider configured")
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})

	var email *Email
	source := "model"
	if err != nil || resp == nil || strings.TrimSpace(resp.Content) == "" {
		email = fallbackEmail(prompt)
		source = "fallback"
	} else {
		subject, body := parseEmail(resp.Content)
		email = &Email{Subject: subject, Body: body}
	}
	email.GenerationTime = time.Since(start).Seconds()

	if d.metrics != nil {
		d.metrics.Drafts.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	}
	return email, nil
}

// parseEmail extracts the subject and body from a model response in the
// SUBJECT:/BODY: format, degrading gracefully for responses that only
// partially follow it.
func parseEmail(content string) (subject, body string) {
	content = strings.TrimSpace(content)

	if marker, ok := findMarker(content, "BODY:", "Body:"); ok {
		head, tail, _ := strings.Cut(content, marker)
		if sm, ok := findMarker(head, "SUBJECT:", "Subject:"); ok {
			_, after, _ := strings.Cut(head, sm)
			if s := strings.TrimSpace(after); s != "" {
				return s, strings.TrimSpace(tail)
			}
		}
		return defaultSubject, strings.TrimSpace(tail)
	}

	if marker, ok := findMarker(content, "SUBJECT:", "Subject:"); ok {
		_, after, _ := strings.Cut(content, marker)
		line, rest, _ := strings.Cut(after, "\n")
		if s := strings.TrimSpace(line); s != "" {
			return s, strings.TrimSpace(rest)
		}
		return defaultSubject, strings.TrimSpace(rest)
	}

	// No markers at all: a short, unpunctuated first line reads like a
	// subject; anything else is all body.
	line, rest, found := strings.Cut(content, "\n")
	line = strings.TrimSpace(line)
	if found && line != "" && len(line) < 80 && !strings.ContainsAny(line[len(line)-1:], ".?!") {
		return line, strings.TrimSpace(rest)
	}
	return defaultSubject, content
}

// findMarker returns the first of the candidate markers present in s.
func findMarker(s string, candidates ...string) (string, bool) {
	for _, c := range candidates {
		if strings.Contains(s, c) {
			return c, true
		}
	}
	return "", false
}

// fallbackEmail is the deterministic draft used when the model is
// unavailable.
func fallbackEmail(prompt string) *Email {
	topic := prompt
	if runes := []rune(topic); len(runes) > 50 {
		topic = string(runes[:50])
	}
	body := fmt.Sprintf("Dear Recipient,\n\nThis is a notice regarding: %q...\n\nFurther details will be communicated shortly.\n\nBest regards,", topic)
	return &Email{Subject: defaultSubject, Body: body, Fallback: true}
}
