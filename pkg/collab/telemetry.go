package collab

import (
	"sync"
)

// defaultOutcomeCap bounds the per-session outcome buffer
const defaultOutcomeCap = 64

// TelemetrySummary is a rolling view over buffered round outcomes
type TelemetrySummary struct {
	SessionCount   int     `json:"session_count"`
	RoundCount     int     `json:"round_count"`
	TimeoutRounds  int     `json:"timeout_rounds"`
	AvgConsensus   float64 `json:"avg_consensus_strength"`
	AvgQuality     float64 `json:"avg_quality"`
	AvgEngagement  float64 `json:"avg_engagement"`
	PendingPatches int     `json:"pending_patches"`
	DissentSignals int     `json:"dissent_signals"`
}

// TelemetryAggregator buffers per-round outcomes per session and exposes
// rolling summaries. It is append-only observability state: the protocol
// never reads it back, and buffers survive session teardown until
// explicitly dropped.
type TelemetryAggregator struct {
	mu       sync.RWMutex
	capacity int
	outcomes map[string][]RoundOutcome
}

// NewTelemetryAggregator creates an aggregator with the default
// per-session buffer capacity.
func NewTelemetryAggregator() *TelemetryAggregator {
	return NewTelemetryAggregatorWithCapacity(defaultOutcomeCap)
}

// NewTelemetryAggregatorWithCapacity creates an aggregator whose
// per-session buffers are bounded at capacity; older outcomes fall off
// the front.
func NewTelemetryAggregatorWithCapacity(capacity int) *TelemetryAggregator {
	if capacity < 1 {
		capacity = defaultOutcomeCap
	}
	return &TelemetryAggregator{
		capacity: capacity,
		outcomes: make(map[string][]RoundOutcome),
	}
}

// Record buffers one round outcome for its session
func (a *TelemetryAggregator) Record(outcome RoundOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := append(a.outcomes[outcome.SessionID], outcome)
	if len(buf) > a.capacity {
		buf = buf[len(buf)-a.capacity:]
	}
	a.outcomes[outcome.SessionID] = buf
}

// Outcomes returns a copy of the buffered outcomes for one session in
// record order.
func (a *TelemetryAggregator) Outcomes(sessionID string) []RoundOutcome {
	a.mu.RLock()
	defer a.mu.RUnlock()

	buf := a.outcomes[sessionID]
	out := make([]RoundOutcome, len(buf))
	copy(out, buf)
	return out
}

// SessionSummary summarizes one session's buffered outcomes
func (a *TelemetryAggregator) SessionSummary(sessionID string) TelemetrySummary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return summarize(map[string][]RoundOutcome{sessionID: a.outcomes[sessionID]})
}

// Summary summarizes every buffered outcome across all sessions
func (a *TelemetryAggregator) Summary() TelemetrySummary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return summarize(a.outcomes)
}

// Drop discards the buffer for one session
func (a *TelemetryAggregator) Drop(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.outcomes, sessionID)
}

func summarize(outcomes map[string][]RoundOutcome) TelemetrySummary {
	var s TelemetrySummary
	var consensusTotal, qualityTotal, engagementTotal float64

	for _, buf := range outcomes {
		if len(buf) == 0 {
			continue
		}
		s.SessionCount++
		for _, o := range buf {
			s.RoundCount++
			if o.Status == RoundTimedOut {
				s.TimeoutRounds++
			}
			consensusTotal += o.ConsensusStrength
			qualityTotal += o.QualityScore
			engagementTotal += o.Engagement.ContributionRate
			s.PendingPatches += len(o.SuggestedPatches)
			s.DissentSignals += len(o.DissentIndicators)
		}
	}

	if s.RoundCount > 0 {
		s.AvgConsensus = consensusTotal / float64(s.RoundCount)
		s.AvgQuality = qualityTotal / float64(s.RoundCount)
		s.AvgEngagement = engagementTotal / float64(s.RoundCount)
	}

	return s
}
