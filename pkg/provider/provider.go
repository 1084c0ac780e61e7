// Package provider adapts model-provider SDKs to the collab.Querier
// contract. Adapters own authentication and response parsing; they never
// retry on the engine's behalf, and any failure surfaces as an error the
// engine treats as a missing contribution.
package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/raihan/conclave/pkg/collab"
)

// defaultConfidence is reported when a participant omits the confidence
// trailer from its answer.
const defaultConfidence = 75.0

// confidencePattern matches the self-report trailer participants are
// prompted to append.
var confidencePattern = regexp.MustCompile(`(?mi)^CONFIDENCE:\s*(\d{1,3})\s*$`)

// Provider is a thin client wrapper for one model provider
type Provider interface {
	// Complete runs one prompt against the given model and returns the
	// raw answer text with token usage.
	Complete(ctx context.Context, model, prompt string) (text string, tokens int, err error)

	// Name returns the provider name
	Name() string
}

// Factory creates providers by name
type Factory struct{}

// New creates a provider for the given name
func (f *Factory) New(name, apiKey string) (Provider, error) {
	switch name {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	case "static":
		return NewStaticProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// Querier routes engine queries to the provider matching each
// participant and parses the self-reported confidence trailer. It
// implements collab.Querier.
type Querier struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewQuerier creates a Querier with no registered providers
func NewQuerier() *Querier {
	return &Querier{
		providers: make(map[string]Provider),
	}
}

// Register makes a provider available for routing
func (q *Querier) Register(p Provider) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.providers[p.Name()] = p
}

// Query implements collab.Querier
func (q *Querier) Query(ctx context.Context, participant *collab.LLMParticipant, prompt string) (*collab.QueryResult, error) {
	q.mu.RLock()
	p, ok := q.providers[participant.Provider]
	q.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider registered for %s", participant.Provider)
	}

	text, tokens, err := p.Complete(ctx, participant.Model, prompt)
	if err != nil {
		return nil, err
	}

	content, confidence := ExtractConfidence(text)

	return &collab.QueryResult{
		Content:    content,
		TokenCount: tokens,
		Confidence: confidence,
	}, nil
}

// ExtractConfidence strips the trailing confidence self-report from an
// answer and returns the remaining content with the parsed value.
// Answers without the trailer keep their full text and report the
// default confidence.
func ExtractConfidence(text string) (content string, confidence float64) {
	matches := confidencePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(text), defaultConfidence
	}

	// Use the last trailer; models occasionally echo the instruction.
	last := matches[len(matches)-1]
	value, err := strconv.Atoi(text[last[2]:last[3]])
	if err != nil || value < 0 || value > 100 {
		return strings.TrimSpace(text), defaultConfidence
	}

	content = strings.TrimSpace(text[:last[0]] + text[last[1]:])
	return content, float64(value)
}
