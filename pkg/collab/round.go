package collab

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// contributionPreviewLen bounds the per-contribution excerpt included in
// a multi-contribution synthesis.
const contributionPreviewLen = 500

// reiterationQualityThreshold is the validate-round quality below which
// the engine recommends another propose round.
const reiterationQualityThreshold = 70.0

// Round encapsulates one bounded phase of a session: it owns its own
// timer, collects contributions while active, and on a terminal
// transition computes a RoundOutput. Rounds are created fresh per
// iteration and never reused.
type Round struct {
	ID        string
	SessionID string
	Number    int
	Type      RoundType
	Purpose   string
	TimeLimit time.Duration
	StartTime time.Time
	EndTime   time.Time

	mu            sync.Mutex
	status        RoundStatus
	contributions []Contribution
	output        *RoundOutput

	engine *ConsensusEngine
	timer  *Timer
}

// OpenRound creates a round in pending status and immediately activates
// it. The round id is derived from the session id, sequence number and
// round type.
func OpenRound(sessionID string, number int, roundType RoundType, purpose string, timeLimit time.Duration) (*Round, error) {
	if number < 1 {
		return nil, fmt.Errorf("round number must be >= 1, got %d", number)
	}
	if !roundType.Valid() {
		return nil, fmt.Errorf("unknown round type: %s", roundType)
	}

	r := &Round{
		ID:        fmt.Sprintf("%s-r%d-%s", sessionID, number, roundType),
		SessionID: sessionID,
		Number:    number,
		Type:      roundType,
		Purpose:   purpose,
		TimeLimit: timeLimit,
		status:    RoundPending,
		engine:    NewConsensusEngine(),
	}

	r.mu.Lock()
	r.status = RoundActive
	r.StartTime = time.Now()
	r.mu.Unlock()

	return r, nil
}

// Status returns the round's current lifecycle state.
func (r *Round) Status() RoundStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// AddContribution appends a contribution to the round. The contribution
// is stamped with this round's id. Rounds in a non-active status reject
// further contributions with an InvalidStateError.
func (r *Round) AddContribution(c Contribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoundActive {
		return NewInvalidStateError("round", string(r.status), "add contribution to")
	}

	c.RoundID = r.ID
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	r.contributions = append(r.contributions, c)

	return nil
}

// Contributions returns a copy of the contributions received so far.
func (r *Round) Contributions() []Contribution {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Contribution, len(r.contributions))
	copy(out, r.contributions)
	return out
}

// Close transitions the round to completed and generates its output.
// Closing an already-terminal round is a caller contract violation.
func (r *Round) Close() (*RoundOutput, error) {
	return r.finish(RoundCompleted)
}

// MarkTimeout transitions the round to timeout and generates its output
// from whatever contributions arrived before the deadline.
func (r *Round) MarkTimeout() (*RoundOutput, error) {
	return r.finish(RoundTimedOut)
}

func (r *Round) finish(terminal RoundStatus) (*RoundOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.IsTerminal() {
		return nil, NewInvalidStateError("round", string(r.status), "close")
	}

	r.status = terminal
	r.EndTime = time.Now()
	r.output = r.generateOutput()
	if r.timer != nil {
		r.timer.Cancel()
	}

	return r.output, nil
}

// attachTimer hands the round its countdown timer. Called once by the
// session manager before fan-out begins; the round cancels the timer on
// any terminal transition.
func (r *Round) attachTimer(t *Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timer = t
}

// Output returns the round's computed output, or nil while the round is
// still active. Repeated calls on a terminal round return the identical
// output.
func (r *Round) Output() *RoundOutput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output
}

// Duration returns the round's wall-clock duration so far, or its final
// duration once terminal.
func (r *Round) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// generateOutput computes the RoundOutput as a pure function of the
// contribution multiset. Caller must hold r.mu.
func (r *Round) generateOutput() *RoundOutput {
	out := &RoundOutput{
		ContributionIDs: make([]string, 0, len(r.contributions)),
		Emergence:       []EmergenceIndicator{},
	}
	for _, c := range r.contributions {
		out.ContributionIDs = append(out.ContributionIDs, c.ID)
	}

	switch len(r.contributions) {
	case 0:
		out.SynthesizedText = fmt.Sprintf("[%s round %d produced no contributions before its deadline]", r.Type, r.Number)
		out.ConsensusLevel = ConsensusForced
		out.QualityScore = 0

	case 1:
		out.SynthesizedText = r.contributions[0].Content
		out.ConsensusLevel = ConsensusUnanimous
		out.AgreementScore = r.engine.AgreementScore(r.contributions)
		out.QualityScore = r.engine.Quality(r.contributions)

	default:
		out.SynthesizedText = r.synthesize()
		out.ConsensusLevel = r.engine.Level(r.contributions)
		out.AgreementScore = r.engine.AgreementScore(r.contributions)
		out.QualityScore = r.engine.Quality(r.contributions)
	}

	out.NextRound = r.recommendNext(out.QualityScore)

	return out
}

// synthesize builds the minimal structured concatenation: one labeled
// block per contribution with a bounded preview. A smarter semantic merge
// is a pluggable external hook, not required here.
func (r *Round) synthesize() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Synthesis of %d contributions (%s round %d):\n", len(r.contributions), r.Type, r.Number))

	for i, c := range r.contributions {
		preview := c.Content
		if len(preview) > contributionPreviewLen {
			cut := contributionPreviewLen
			for cut > 0 && !utf8.RuneStart(preview[cut]) {
				cut--
			}
			preview = preview[:cut] + "..."
		}
		sb.WriteString(fmt.Sprintf("\n--- %d. %s (confidence %.0f%%) ---\n%s\n", i+1, c.ParticipantID, c.Confidence, preview))
	}

	return sb.String()
}

// recommendNext follows the fixed propose, critique, synthesize,
// validate cycle. After validate, quality below the reiteration threshold
// recommends propose again; otherwise the recommendation is empty and the
// cycle terminates.
func (r *Round) recommendNext(quality float64) RoundType {
	if r.Type != RoundValidate {
		return r.Type.NextInCycle()
	}
	if quality < reiterationQualityThreshold {
		return RoundPropose
	}
	return ""
}
