package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"audionest/internal/domain/narrative"
)

const (
	DefaultChatURL   = "https://api.groq.com/openai/v1/chat/completions"
	DefaultChatModel = "llama-3.3-70b-versatile"

	defaultTimeout = 30 * time.Second
	defaultBackoff = 500 * time.Millisecond
	maxErrorBody   = 512
)

const systemPrompt = `You are a professional audiobook director. For the passage you are given, decide how it should be voiced.
Return ONLY a JSON object with these keys:
- "sceneType": one of narration, dialogue, description, action
- "character": a short lowercase tag for who is speaking, "narrator" for narration (e.g. narrator, hero, heroine, villain, old_wizard, child)
- "gender": one of male, female, neutral
- "age": one of child, young_adult, adult, elderly
- "emotion": one of neutral, joyful, terrified, angry, excited, sad, mysterious, happy, scared
- "isDialogue": true if the passage is mostly spoken words
- "speakerName": the speaker's name if the text gives it, otherwise omit`

type ChatConfig struct {
	URL               string
	APIKey            string
	Model             string
	Timeout           time.Duration
	Retries           int
	RequestsPerSecond float64
	Backoff           time.Duration
}

// ChatAnnotator calls an OpenAI compatible chat completions endpoint, such as
// Groq, asking for a JSON object answer.
type ChatAnnotator struct {
	cfg     ChatConfig
	client  *http.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

type ChatOption func(*ChatAnnotator)

func WithHTTPClient(c *http.Client) ChatOption {
	return func(a *ChatAnnotator) { a.client = c }
}

func WithLogger(l logrus.FieldLogger) ChatOption {
	return func(a *ChatAnnotator) { a.log = l }
}

func NewChatAnnotator(cfg ChatConfig, opts ...ChatOption) (*ChatAnnotator, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultChatURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must not be negative: %d", cfg.Retries)
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	a := &ChatAnnotator{
		cfg:     cfg,
		client:  &http.Client{},
		limiter: rate.NewLimiter(limit, 1),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// retryableError marks failures worth another attempt.
type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

func (a *ChatAnnotator) Annotate(ctx context.Context, req Request) (narrative.Annotation, error) {
	if strings.TrimSpace(req.Text) == "" {
		return narrative.Default(), fmt.Errorf("%w: empty paragraph", ErrAnnotationFailed)
	}

	body, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return narrative.Default(), fmt.Errorf("%w: %w", ErrAnnotationFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, a.cfg.Backoff<<(attempt-1)); err != nil {
				break
			}
		}
		if err := a.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		annotation, err := a.attempt(ctx, body)
		if err == nil {
			return annotation, nil
		}
		lastErr = err

		var retryable retryableError
		if !errors.As(err, &retryable) {
			break
		}
		a.log.WithError(err).WithField("attempt", attempt+1).Debug("Annotation attempt failed")
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return narrative.Default(), fmt.Errorf("%w: %w", ErrAnnotationFailed, lastErr)
}

func (a *ChatAnnotator) buildRequest(req Request) chatRequest {
	var user strings.Builder
	if req.PreviousContext != "" {
		user.WriteString("Previous passage (context only):\n")
		user.WriteString(req.PreviousContext)
		user.WriteString("\n\n")
	}
	user.WriteString("Passage to direct:\n")
	user.WriteString(req.Text)

	return chatRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user.String()},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.2,
	}
}

func (a *ChatAnnotator) attempt(ctx context.Context, body []byte) (narrative.Annotation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return narrative.Annotation{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return narrative.Annotation{}, retryableError{err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return narrative.Annotation{}, retryableError{fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("annotation service returned %d: %s", resp.StatusCode, truncate(string(respBody), maxErrorBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return narrative.Annotation{}, retryableError{err}
		}
		return narrative.Annotation{}, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return narrative.Annotation{}, retryableError{fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return narrative.Annotation{}, retryableError{errors.New("response has no choices")}
	}

	content := stripFences(parsed.Choices[0].Message.Content)
	annotation, err := narrative.ParseWire([]byte(content))
	if err != nil {
		return narrative.Annotation{}, retryableError{err}
	}
	return annotation, nil
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
