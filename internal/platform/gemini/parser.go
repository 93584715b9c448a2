package gemini

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/phrazzld/cumo/internal/calendar"
	"github.com/phrazzld/cumo/internal/config"
	"google.golang.org/genai"
)

// Parser statuses
const (
	StatusReady        = "ready"
	StatusMissingModel = "missing_model"
	StatusNotLoaded    = "not_loaded"
)

//go:embed prompt.tmpl
var promptSource string

var promptTemplate = template.Must(template.New("event").Parse(promptSource))

// promptData represents the data passed to the prompt template
type promptData struct {
	Now  string
	Zone string
	Text string
}

// contentGenerator is the part of the genai client the parser uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Parser turns free text into an event payload using Gemini.
type Parser struct {
	logger    *slog.Logger
	config    config.LLMConfig
	baseDelay time.Duration
	now       func() time.Time

	mu           sync.Mutex
	generator    contentGenerator
	initErr      error
	newGenerator func(ctx context.Context) (contentGenerator, error)
}

// NewParser creates a parser for cfg. No network call is made until the
// first Parse.
func NewParser(cfg config.LLMConfig, logger *slog.Logger) *Parser {
	p := &Parser{
		logger:    logger.With("component", "gemini_parser"),
		config:    cfg,
		baseDelay: time.Duration(cfg.RetryDelaySeconds) * time.Second,
		now:       time.Now,
	}
	p.newGenerator = p.newGenaiGenerator
	return p
}

func (p *Parser) newGenaiGenerator(ctx context.Context) (contentGenerator, error) {
	if p.config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is not configured", ErrUnavailable)
	}
	if p.config.ModelName == "" {
		return nil, fmt.Errorf("%w: model name is not configured", ErrUnavailable)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.config.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrUnavailable, err)
	}
	return client.Models, nil
}

// Status reports whether the parser is ready, failed to initialize
// (missing_model) or has not been used yet (not_loaded).
func (p *Parser) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.generator != nil:
		return StatusReady
	case p.initErr != nil:
		return StatusMissingModel
	default:
		return StatusNotLoaded
	}
}

// load builds the client once. A failure is remembered and returned on
// every later call.
func (p *Parser) load(ctx context.Context) (contentGenerator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generator != nil {
		return p.generator, nil
	}
	if p.initErr != nil {
		return nil, p.initErr
	}

	gen, err := p.newGenerator(ctx)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		p.initErr = err
		p.logger.WarnContext(ctx, "natural language parser unavailable", "error", err)
		return nil, err
	}

	p.generator = gen
	p.logger.InfoContext(ctx, "natural language parser ready", "model", p.config.ModelName)
	return gen, nil
}

// Parse converts text into an event payload.
func (p *Parser) Parse(ctx context.Context, text string) (calendar.EventPayload, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return calendar.EventPayload{}, ErrEmptyText
	}

	gen, err := p.load(ctx)
	if err != nil {
		return calendar.EventPayload{}, err
	}

	prompt, err := p.createPrompt(text)
	if err != nil {
		return calendar.EventPayload{}, err
	}

	return p.callWithRetry(ctx, gen, prompt)
}

func (p *Parser) createPrompt(text string) (string, error) {
	now := p.now()
	zone, _ := now.Zone()

	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, promptData{
		Now:  now.Format("Monday 2006-01-02T15:04:05-07:00"),
		Zone: zone,
		Text: text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// callWithRetry calls the API up to MaxRetries+1 times, backing off
// exponentially with jitter between failed calls.
func (p *Parser) callWithRetry(ctx context.Context, gen contentGenerator, prompt string) (calendar.EventPayload, error) {
	maxRetries := p.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	genConfig := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	for attempt := 0; ; attempt++ {
		resp, err := gen.GenerateContent(ctx, p.config.ModelName, contents, genConfig)
		if err == nil {
			payload, perr := decodeResponse(resp)
			if perr != nil {
				p.logger.WarnContext(ctx, "unusable Gemini response", "error", perr)
				return calendar.EventPayload{}, perr
			}
			p.logger.DebugContext(ctx, "parsed event text", "attempt", attempt+1)
			return payload, nil
		}

		p.logger.WarnContext(ctx, "Gemini API call failed",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1,
			"error", err)

		if ctx.Err() != nil {
			return calendar.EventPayload{}, ctx.Err()
		}
		if attempt >= maxRetries {
			return calendar.EventPayload{}, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * [0.5, 1.0)
		backoff := float64(p.baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return calendar.EventPayload{}, fmt.Errorf("%w: %v", ErrTransientFailure, ctx.Err())
		}
	}
}

func decodeResponse(resp *genai.GenerateContentResponse) (calendar.EventPayload, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return calendar.EventPayload{}, fmt.Errorf("%w: no candidates", ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return calendar.EventPayload{}, ErrContentBlocked
	}
	if candidate.Content == nil {
		return calendar.EventPayload{}, fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	raw := strings.TrimSpace(text.String())
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var payload calendar.EventPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return calendar.EventPayload{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if payload.Start == "" {
		return calendar.EventPayload{}, fmt.Errorf("%w: no start in response", ErrInvalidResponse)
	}
	return payload, nil
}
