package provider

import (
	"context"
	"fmt"
	"hash/fnv"
)

// StaticProvider is a deterministic offline provider used for dry runs
// and local development. It answers every prompt with a canned response
// whose confidence is derived from a stable hash of the prompt, so
// repeated runs produce identical sessions.
type StaticProvider struct{}

// NewStaticProvider creates a static provider
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// Name returns the provider name
func (p *StaticProvider) Name() string {
	return "static"
}

// Complete returns a deterministic canned answer
func (p *StaticProvider) Complete(_ context.Context, model, prompt string) (string, int, error) {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	h.Write([]byte(model))

	// Keep confidence in a plausible band.
	confidence := 60 + h.Sum32()%36

	text := fmt.Sprintf("Offline response from %s.\n\nCONFIDENCE: %d", model, confidence)
	tokens := (len(prompt) + len(text) + 3) / 4

	return text, tokens, nil
}
