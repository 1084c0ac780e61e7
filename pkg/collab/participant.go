package collab

import (
	"sync"
	"sync/atomic"
	"time"
)

// ParticipantRole describes what a participant is expected to contribute
type ParticipantRole string

const (
	RoleProposer    ParticipantRole = "proposer"
	RoleCritic      ParticipantRole = "critic"
	RoleSynthesizer ParticipantRole = "synthesizer"
	RoleValidator   ParticipantRole = "validator"
	RoleGeneralist  ParticipantRole = "generalist"
)

// LLMParticipant is one external model-backed agent available to sessions.
// Identity, provider, model and role are read-only after registration; the
// load counter is the only field mutated concurrently and is updated
// atomically around each in-flight call.
type LLMParticipant struct {
	ID        string          `json:"id"`
	Provider  string          `json:"provider"`
	Model     string          `json:"model"`
	Role      ParticipantRole `json:"role"`
	Strengths []string        `json:"strengths,omitempty"`
	Active    bool            `json:"active"`

	load int64 // in-flight call count, atomic

	historyMu sync.Mutex
	history   []PerformanceRecord
}

// Load returns the participant's current number of in-flight calls.
func (p *LLMParticipant) Load() int {
	return int(atomic.LoadInt64(&p.load))
}

// acquire marks one in-flight call against this participant.
func (p *LLMParticipant) acquire() {
	atomic.AddInt64(&p.load, 1)
}

// release marks one in-flight call finished.
func (p *LLMParticipant) release() {
	atomic.AddInt64(&p.load, -1)
}

// RecordPerformance appends one entry to the rolling history. The history
// is capped; older entries fall off the front.
func (p *LLMParticipant) RecordPerformance(rec PerformanceRecord) {
	const historyCap = 50

	p.historyMu.Lock()
	defer p.historyMu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	p.history = append(p.history, rec)
	if len(p.history) > historyCap {
		p.history = p.history[len(p.history)-historyCap:]
	}
}

// History returns a copy of the rolling performance history.
func (p *LLMParticipant) History() []PerformanceRecord {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()

	out := make([]PerformanceRecord, len(p.history))
	copy(out, p.history)
	return out
}
