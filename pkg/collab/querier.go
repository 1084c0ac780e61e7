package collab

import (
	"context"
)

// QueryResult is what a participant returns for one round prompt
type QueryResult struct {
	Content    string
	TokenCount int
	Confidence float64 // self-reported, 0-100
}

// Querier is the narrow contract through which the engine reaches model
// providers. Implementations may fail or time out; the engine treats any
// failure identically to "no contribution this round". Retry, if any,
// belongs to the implementation, never to the engine.
type Querier interface {
	Query(ctx context.Context, participant *LLMParticipant, prompt string) (*QueryResult, error)
}

// QuerierFunc adapts a function to the Querier interface
type QuerierFunc func(ctx context.Context, participant *LLMParticipant, prompt string) (*QueryResult, error)

// Query implements Querier
func (f QuerierFunc) Query(ctx context.Context, participant *LLMParticipant, prompt string) (*QueryResult, error) {
	return f(ctx, participant, prompt)
}

// PatternCache is an optional best-effort optimization hook. Engine
// correctness never depends on it being present or on its answers.
type PatternCache interface {
	// LookupSimilar returns a cached result for a similar prompt, or
	// ok=false when there is no usable match.
	LookupSimilar(prompt string) (result string, ok bool)

	// Store records a finished result for future lookups.
	Store(prompt, result string)
}
