package collab

import (
	"sync"
	"time"
)

// EventType identifies a session lifecycle event
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventRoundCompleted   EventType = "round_completed"
	EventSessionCompleted EventType = "session_completed"
	EventError            EventType = "error"
)

// SessionStartedPayload accompanies session_started
type SessionStartedPayload struct {
	SessionID    string    `json:"session_id"`
	Initiator    string    `json:"initiator"`
	Participants []string  `json:"participants"`
	MaxRounds    int       `json:"max_rounds"`
	TimeBudget   int64     `json:"time_budget_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// SuggestedPatch describes one improvement surfaced by a round
type SuggestedPatch struct {
	Priority    Priority `json:"priority"`
	Description string   `json:"description"`
}

// EngagementMetrics measures participation within a round
type EngagementMetrics struct {
	ContributionRate float64 `json:"contribution_rate"` // responded / queried
	CritiqueCoverage float64 `json:"critique_coverage"` // contributions carrying critique refs
}

// RoundOutcome is the telemetry struct carried by round_completed
type RoundOutcome struct {
	SessionID         string            `json:"session_id"`
	RoundID           string            `json:"round_id"`
	RoundNumber       int               `json:"round_number"`
	RoundType         RoundType         `json:"round_type"`
	Status            RoundStatus       `json:"status"`
	ConsensusLevel    ConsensusLevel    `json:"consensus_level"`
	ConsensusStrength float64           `json:"consensus_strength"` // 0-100
	QualityScore      float64           `json:"quality_score"`
	DissentIndicators []string          `json:"dissent_indicators,omitempty"`
	SuggestedPatches  []SuggestedPatch  `json:"suggested_patches,omitempty"`
	Engagement        EngagementMetrics `json:"engagement"`
	Duration          time.Duration     `json:"duration"`
	Timestamp         time.Time         `json:"timestamp"`
}

// SessionCompletedPayload accompanies session_completed
type SessionCompletedPayload struct {
	SessionID      string         `json:"session_id"`
	Outcome        SessionStatus  `json:"outcome"`
	QualityScore   float64        `json:"quality_score"`
	ConsensusLevel ConsensusLevel `json:"consensus_level"`
	RoundCount     int            `json:"round_count"`
	TotalTokens    int            `json:"total_tokens"`
	Duration       time.Duration  `json:"duration"`
	Timestamp      time.Time      `json:"timestamp"`
}

// ErrorPayload accompanies error events
type ErrorPayload struct {
	SessionID string    `json:"session_id,omitempty"`
	Err       error     `json:"-"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHandler consumes one emitted event payload
type EventHandler func(payload interface{})

// Emitter broadcasts session lifecycle events to subscribers. Delivery is
// synchronous and in transition order: consumers observing the stream see
// events in the order the corresponding state changes occurred, each
// delivered at most once per occurrence. The engine has no dependency on
// who, if anyone, is listening.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

// NewEmitter creates an event emitter with no subscribers
func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[EventType][]EventHandler),
	}
}

// On registers a handler for an event type
func (e *Emitter) On(event EventType, handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners[event] = append(e.listeners[event], handler)
}

// Off removes all handlers for an event type
func (e *Emitter) Off(event EventType) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.listeners, event)
}

// Emit delivers an event to all registered handlers in registration order
func (e *Emitter) Emit(event EventType, payload interface{}) {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.listeners[event]))
	copy(handlers, e.listeners[event])
	e.mu.RUnlock()

	for _, handler := range handlers {
		handler(payload)
	}
}

// RemoveAllListeners drops every subscription
func (e *Emitter) RemoveAllListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = make(map[EventType][]EventHandler)
}
