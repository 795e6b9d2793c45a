// Package research provides the LLM-backed research step of the maintenance agent.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	svcmetrics "MarketBrain/internal/service/metrics"
	"MarketBrain/internal/service/ratelimit"
)

const (
	DefaultModel = "gemini-2.5-flash"
	sourceName   = "gemini"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string // overrides the API endpoint, used by tests
	Timeout time.Duration
}

// Gemini implements service.Researcher, and through Analyst the signal
// generator and pattern detector.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *ratelimit.Limiter
}

func NewGemini(ctx context.Context, cfg Config, limiter *ratelimit.Limiter) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Gemini{client: client, model: cfg.Model, timeout: cfg.Timeout, limiter: limiter}, nil
}

// Research sends topic as a single prompt and returns the trimmed answer.
func (g *Gemini) Research(ctx context.Context, topic string) (string, error) {
	return g.generate(ctx, topic)
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, sourceName); err != nil {
			return "", fmt.Errorf("failed to wait for request limit: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	began := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	svcmetrics.Observe(sourceName, began, err)
	if err != nil {
		return "", fmt.Errorf("gemini API request failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}
