package collab

import (
	"time"
)

// SessionStatus represents the lifecycle state of a collaborative session
type SessionStatus string

const (
	SessionInitializing     SessionStatus = "initializing"
	SessionActive           SessionStatus = "active"
	SessionConsensusReached SessionStatus = "consensus_reached"
	SessionTimeout          SessionStatus = "timeout"
	SessionFailed           SessionStatus = "failed"
	SessionCompleted        SessionStatus = "completed"
)

// statusRank orders session statuses so that transitions are monotone.
// Branch statuses (consensus_reached, timeout, failed) share a rank: a
// session picks exactly one of them before post-processing.
func statusRank(s SessionStatus) int {
	switch s {
	case SessionInitializing:
		return 0
	case SessionActive:
		return 1
	case SessionConsensusReached, SessionTimeout, SessionFailed:
		return 2
	case SessionCompleted:
		return 3
	default:
		return -1
	}
}

// IsTerminal reports whether the status ends the session's round loop.
func (s SessionStatus) IsTerminal() bool {
	return statusRank(s) >= 2
}

// RoundType identifies the collaboration phase a round runs
type RoundType string

const (
	RoundPropose    RoundType = "propose"
	RoundCritique   RoundType = "critique"
	RoundSynthesize RoundType = "synthesize"
	RoundValidate   RoundType = "validate"
)

// roundCycle is the fixed default ordering of round types within a session
var roundCycle = []RoundType{RoundPropose, RoundCritique, RoundSynthesize, RoundValidate}

// NextInCycle returns the round type that follows t in the fixed cycle.
// After validate the cycle wraps back to propose.
func (t RoundType) NextInCycle() RoundType {
	for i, rt := range roundCycle {
		if rt == t {
			return roundCycle[(i+1)%len(roundCycle)]
		}
	}
	return RoundPropose
}

// Valid reports whether t is one of the four known round types.
func (t RoundType) Valid() bool {
	for _, rt := range roundCycle {
		if rt == t {
			return true
		}
	}
	return false
}

// RoundStatus represents the lifecycle state of a single round
type RoundStatus string

const (
	RoundPending   RoundStatus = "pending"
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
	RoundTimedOut  RoundStatus = "timeout"
)

// IsTerminal reports whether the round can no longer accept contributions.
func (s RoundStatus) IsTerminal() bool {
	return s == RoundCompleted || s == RoundTimedOut
}

// ConsensusLevel is the categorical agreement strength of one round
type ConsensusLevel string

const (
	ConsensusUnanimous         ConsensusLevel = "unanimous"
	ConsensusQualifiedMajority ConsensusLevel = "qualified_majority"
	ConsensusSimpleMajority    ConsensusLevel = "simple_majority"
	ConsensusForced            ConsensusLevel = "forced_consensus"
)

// Priority is a participant-selection hint carried on requests
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// CollaborationRequest is the input contract for one session
type CollaborationRequest struct {
	Prompt                string   `json:"prompt"`
	Context               []string `json:"context,omitempty"`
	Requirements          []string `json:"requirements,omitempty"`
	Constraints           []string `json:"constraints,omitempty"`
	PreferredParticipants []string `json:"preferred_participants,omitempty"`
	MaxRounds             int      `json:"max_rounds,omitempty"`
	TimeLimitMs           int64    `json:"time_limit_ms,omitempty"`
	ConsensusThreshold    float64  `json:"consensus_threshold,omitempty"`
	TokenBudget           int      `json:"token_budget,omitempty"`
	Priority              Priority `json:"priority,omitempty"`
}

// TimeLimit returns the requested session budget as a duration.
func (r CollaborationRequest) TimeLimit() time.Duration {
	return time.Duration(r.TimeLimitMs) * time.Millisecond
}

// PerformanceRecord is one entry in a participant's rolling history
type PerformanceRecord struct {
	SessionID  string    `json:"session_id"`
	RoundType  RoundType `json:"round_type"`
	Confidence float64   `json:"confidence"`
	Tokens     int       `json:"tokens"`
	Succeeded  bool      `json:"succeeded"`
	Timestamp  time.Time `json:"timestamp"`
}

// ContributionMetadata holds per-contribution bookkeeping
type ContributionMetadata struct {
	ProcessingTime time.Duration `json:"processing_time"`
	RetryCount     int           `json:"retry_count"`
	QualityScore   float64       `json:"quality_score,omitempty"`
	NoveltyScore   float64       `json:"novelty_score,omitempty"`
}

// Contribution is one participant's response within one round.
// Immutable once appended to a round.
type Contribution struct {
	ID            string               `json:"id"`
	RoundID       string               `json:"round_id"`
	ParticipantID string               `json:"participant_id"`
	Provider      string               `json:"provider"`
	Content       string               `json:"content"`
	Confidence    float64              `json:"confidence"` // self-reported, 0-100
	BuildsUpon    []string             `json:"builds_upon,omitempty"`
	Critiques     []string             `json:"critiques,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
	TokenCount    int                  `json:"token_count"`
	Metadata      ContributionMetadata `json:"metadata"`
}

// EmergenceIndicator is reserved for future semantic analysis; the engine
// never populates it today but carries it on round outputs.
type EmergenceIndicator struct {
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	Strength    float64 `json:"strength"`
}

// RoundOutput is the computed result of one terminal round
type RoundOutput struct {
	SynthesizedText string               `json:"synthesized_text"`
	ContributionIDs []string             `json:"contribution_ids"`
	ConsensusLevel  ConsensusLevel       `json:"consensus_level"`
	AgreementScore  float64              `json:"agreement_score"` // 0.0-1.0 confidence proxy
	QualityScore    float64              `json:"quality_score"`   // 0-100
	Emergence       []EmergenceIndicator `json:"emergence,omitempty"`
	NextRound       RoundType            `json:"next_round,omitempty"` // empty means terminal
}

// SynthesisStepKind enumerates the closed set of synthesis-log actions
type SynthesisStepKind string

const (
	StepMerge    SynthesisStepKind = "merge"
	StepResolve  SynthesisStepKind = "resolve"
	StepEnhance  SynthesisStepKind = "enhance"
	StepValidate SynthesisStepKind = "validate"
)

// SynthesisStep records one action taken while assembling the final output
type SynthesisStep struct {
	Kind      SynthesisStepKind `json:"kind"`
	Reasoning string            `json:"reasoning"`
	RoundID   string            `json:"round_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// TokenUsageMetrics accounts for token consumption across a session.
// TotalTokens always equals the sum of TokensPerParticipant and the sum
// of TokensPerRound.
type TokenUsageMetrics struct {
	TotalTokens          int            `json:"total_tokens"`
	TokensPerParticipant map[string]int `json:"tokens_per_participant"`
	TokensPerRound       map[string]int `json:"tokens_per_round"`
	Efficiency           float64        `json:"efficiency"` // quality per token
	BudgetUtilization    float64        `json:"budget_utilization"`
	EstimatedCost        float64        `json:"estimated_cost"`
}

// CollaborativeOutput is the final synthesized decision artifact
type CollaborativeOutput struct {
	Content        string            `json:"content"`
	Sources        []Contribution    `json:"sources"`
	RoundOutputs   []RoundOutput     `json:"round_outputs"`
	QualityScore   float64           `json:"quality_score"`
	ConsensusLevel ConsensusLevel    `json:"consensus_level"`
	SynthesisLog   []SynthesisStep   `json:"synthesis_log"`
	TokenUsage     TokenUsageMetrics `json:"token_usage"`
}

// SessionMetrics summarizes one finished session
type SessionMetrics struct {
	TotalDuration          time.Duration      `json:"total_duration"`
	RoundCount             int                `json:"round_count"`
	ContributionCount      int                `json:"contribution_count"`
	ConsensusAchieved      bool               `json:"consensus_achieved"`
	TimeToConsensus        time.Duration      `json:"time_to_consensus"`
	QualityImprovement     float64            `json:"quality_improvement"`
	TokenEfficiency        float64            `json:"token_efficiency"`
	ParticipantUtilization map[string]float64 `json:"participant_utilization"`
	EmergenceScore         float64            `json:"emergence_score"`
}

// CollaborativeSession is one end-to-end run of the protocol.
// Owned exclusively by the SessionManager that created it.
type CollaborativeSession struct {
	ID           string                `json:"id"`
	Initiator    string                `json:"initiator"`
	Participants []*LLMParticipant     `json:"participants"`
	Rounds       []*Round              `json:"rounds"`
	Request      CollaborationRequest  `json:"request"`
	TimeBudget   time.Duration         `json:"time_budget"`
	Threshold    float64               `json:"consensus_threshold"` // percentage
	Status       SessionStatus         `json:"status"`
	Outcome      SessionStatus         `json:"outcome,omitempty"` // the branch reached before completion
	StartTime    time.Time             `json:"start_time"`
	EndTime      time.Time             `json:"end_time,omitempty"`
	Metrics      SessionMetrics        `json:"metrics"`
	Output       *CollaborativeOutput  `json:"output,omitempty"`
}

// transition moves the session status forward. Backward transitions are a
// contract violation and return InvalidStateError.
func (s *CollaborativeSession) transition(next SessionStatus) error {
	if statusRank(next) < statusRank(s.Status) {
		return NewInvalidStateError("session", string(s.Status), string(next))
	}
	// Failed sessions stay failed; only consensus and timeout branches
	// proceed to completion.
	if s.Status == SessionFailed && next == SessionCompleted {
		return NewInvalidStateError("session", string(s.Status), string(next))
	}
	s.Status = next
	if next.IsTerminal() && next != SessionCompleted && s.Outcome == "" {
		s.Outcome = next
	}
	return nil
}

// RemainingTime returns how much of the session budget is left.
func (s *CollaborativeSession) RemainingTime() time.Duration {
	elapsed := time.Since(s.StartTime)
	if elapsed >= s.TimeBudget {
		return 0
	}
	return s.TimeBudget - elapsed
}
