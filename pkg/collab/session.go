package collab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/raihan/conclave/internal/metrics"
)

// estimatedCostPerToken is a flat blended-rate estimate used for the
// cost field of TokenUsageMetrics. Provider-accurate pricing belongs to
// the provider adapters, not the engine.
const estimatedCostPerToken = 0.000003

// lowConfidenceDissent marks a contribution as a dissent signal
const lowConfidenceDissent = 50.0

// ManagerConfig configures a session Manager
type ManagerConfig struct {
	Registry *Registry
	Querier  Querier
	Cache    PatternCache     // optional
	Metrics  *metrics.Metrics // optional
	Logger   zerolog.Logger

	MaxParticipants  int           // cap on participants per session
	MinTimeLimit     time.Duration // smallest acceptable session budget
	DefaultTimeLimit time.Duration // budget when the request omits one
	RoundTimeLimit   time.Duration // per-round cap before session clamping
	DefaultMaxRounds int           // rounds when the request omits a limit
	DefaultThreshold float64       // consensus threshold percentage
	BaselineQuality  float64       // single-agent baseline for improvement metric
}

// applyDefaults fills zero-valued config fields
func (c *ManagerConfig) applyDefaults() {
	if c.MaxParticipants <= 0 {
		c.MaxParticipants = 5
	}
	if c.MinTimeLimit <= 0 {
		c.MinTimeLimit = 10 * time.Second
	}
	if c.DefaultTimeLimit <= 0 {
		c.DefaultTimeLimit = 60 * time.Second
	}
	if c.RoundTimeLimit <= 0 {
		c.RoundTimeLimit = 15 * time.Second
	}
	if c.DefaultMaxRounds <= 0 {
		c.DefaultMaxRounds = len(roundCycle)
	}
	if c.DefaultThreshold <= 0 {
		c.DefaultThreshold = 66
	}
}

// Manager is the top-level orchestrator: it validates requests, selects
// participants, drives the round sequence under the session deadline and
// assembles the final CollaborativeOutput. Sessions are exclusively owned
// by the Manager that created them.
type Manager struct {
	cfg       ManagerConfig
	registry  *Registry
	querier   Querier
	cache     PatternCache
	metrics   *metrics.Metrics
	emitter   *Emitter
	telemetry *TelemetryAggregator
	tm        *TimeManager
	logger    zerolog.Logger
}

// NewManager creates a session Manager
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	cfg.applyDefaults()

	return &Manager{
		cfg:       cfg,
		registry:  cfg.Registry,
		querier:   cfg.Querier,
		cache:     cfg.Cache,
		metrics:   cfg.Metrics,
		emitter:   NewEmitter(),
		telemetry: NewTelemetryAggregator(),
		tm:        NewTimeManager(),
		logger:    cfg.Logger,
	}, nil
}

// Emitter exposes the lifecycle event stream
func (m *Manager) Emitter() *Emitter {
	return m.emitter
}

// Telemetry exposes the round-outcome aggregator
func (m *Manager) Telemetry() *TelemetryAggregator {
	return m.telemetry
}

// ValidateRequest checks the input contract. It fails with a
// ValidationError before any session state is created.
func (m *Manager) ValidateRequest(req CollaborationRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return NewValidationError("prompt", "cannot be empty")
	}
	if req.MaxRounds < 0 {
		return NewValidationError("max_rounds", "must be at least 1")
	}
	if req.TimeLimitMs != 0 && req.TimeLimit() < m.cfg.MinTimeLimit {
		return NewValidationError("time_limit_ms",
			fmt.Sprintf("must be at least %d ms for one fan-out round", m.cfg.MinTimeLimit.Milliseconds()))
	}
	if req.ConsensusThreshold < 0 || req.ConsensusThreshold > 100 {
		return NewValidationError("consensus_threshold", "must be within [0,100]")
	}
	return nil
}

// SelectParticipants chooses up to min(registry size, configured max)
// participants. Entries matching the preferred list win when given;
// otherwise all active participants are taken in ascending load order.
// This is a load-balancing heuristic, not a scheduler.
func (m *Manager) SelectParticipants(req CollaborationRequest) []*LLMParticipant {
	limit := m.cfg.MaxParticipants
	if n := m.registry.Count(); n < limit {
		limit = n
	}

	selected := make([]*LLMParticipant, 0, limit)
	taken := make(map[string]struct{})

	for _, id := range req.PreferredParticipants {
		if len(selected) >= limit {
			break
		}
		p := m.registry.Get(id)
		if p == nil || !p.Active {
			continue
		}
		if _, dup := taken[p.ID]; dup {
			continue
		}
		selected = append(selected, p)
		taken[p.ID] = struct{}{}
	}

	for _, p := range m.registry.ListActive() {
		if len(selected) >= limit {
			break
		}
		if _, dup := taken[p.ID]; dup {
			continue
		}
		selected = append(selected, p)
		taken[p.ID] = struct{}{}
	}

	return selected
}

// StartSession validates the request, selects participants and drives the
// full round sequence under the session deadline. It runs synchronously:
// by the time it returns, the session has reached a terminal status.
// Callers always receive either a session with an output (possibly
// reflecting timeout or degraded participation) or a structured error,
// never a hang.
func (m *Manager) StartSession(ctx context.Context, initiator string, req CollaborationRequest) (*CollaborativeSession, error) {
	if err := m.ValidateRequest(req); err != nil {
		m.emitter.Emit(EventError, ErrorPayload{Err: err, Message: err.Error(), Timestamp: time.Now()})
		return nil, err
	}

	if req.MaxRounds == 0 {
		req.MaxRounds = m.cfg.DefaultMaxRounds
	}
	if req.TimeLimitMs == 0 {
		req.TimeLimitMs = m.cfg.DefaultTimeLimit.Milliseconds()
	}
	if req.ConsensusThreshold == 0 {
		req.ConsensusThreshold = m.cfg.DefaultThreshold
	}

	session := &CollaborativeSession{
		ID:           uuid.NewString(),
		Initiator:    initiator,
		Participants: m.SelectParticipants(req),
		Request:      req,
		TimeBudget:   req.TimeLimit(),
		Threshold:    req.ConsensusThreshold,
		Status:       SessionInitializing,
		StartTime:    time.Now(),
	}

	logger := m.logger.With().Str("session_id", session.ID).Logger()
	logger.Info().
		Int("participants", len(session.Participants)).
		Int("max_rounds", req.MaxRounds).
		Int64("budget_ms", req.TimeLimitMs).
		Msg("Session starting")

	if m.metrics != nil {
		m.metrics.SessionsStarted.Inc()
		m.metrics.SessionsActive.Inc()
		defer m.metrics.SessionsActive.Dec()
	}

	if err := session.transition(SessionActive); err != nil {
		return nil, NewInternalError("session activation", err)
	}

	participantIDs := make([]string, 0, len(session.Participants))
	for _, p := range session.Participants {
		participantIDs = append(participantIDs, p.ID)
	}
	m.emitter.Emit(EventSessionStarted, SessionStartedPayload{
		SessionID:    session.ID,
		Initiator:    initiator,
		Participants: participantIDs,
		MaxRounds:    req.MaxRounds,
		TimeBudget:   req.TimeLimitMs,
		Timestamp:    session.StartTime,
	})

	var cachedPrecedent string
	if m.cache != nil {
		if hit, ok := m.cache.LookupSimilar(req.Prompt); ok {
			cachedPrecedent = hit
			logger.Debug().Msg("Pattern cache hit for prompt")
		}
	}

	if err := m.run(ctx, session, cachedPrecedent, logger); err != nil {
		return session, err
	}

	return session, nil
}

// run executes the round loop and the final synthesis. A panic raised
// along the way, whether in aggregation or in a subscriber's event
// handler, surfaces as an InternalError with the session marked failed
// so callers never observe a crash.
func (m *Manager) run(ctx context.Context, session *CollaborativeSession, cachedPrecedent string, logger zerolog.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = m.failSession(session, NewInternalError("session execution", fmt.Errorf("panic: %v", rec)), logger)
		}
	}()

	sessionTimer := m.tm.Start(session.TimeBudget, TimerCallbacks{
		OnWarning: func(remaining time.Duration) {
			logger.Warn().Dur("remaining", remaining).Msg("Session budget running low")
		},
	})
	defer sessionTimer.Cancel()

	m.executeRounds(ctx, session, sessionTimer, logger)
	return m.finalize(session, cachedPrecedent, logger)
}

// executeRounds iterates the fixed round-type cycle, bounded by the
// request's round count and by the session deadline. Each round's
// recommendation selects the next type; an empty recommendation ends the
// cycle early.
func (m *Manager) executeRounds(ctx context.Context, session *CollaborativeSession, sessionTimer *Timer, logger zerolog.Logger) {
	roundType := RoundPropose

	for number := 1; number <= session.Request.MaxRounds; number++ {
		remaining := session.RemainingTime()
		if remaining <= 0 || sessionTimer.IsExpired() || ctx.Err() != nil {
			_ = session.transition(SessionTimeout)
			logger.Info().Int("rounds_completed", len(session.Rounds)).Msg("Session budget exhausted before next round")
			return
		}

		limit := m.cfg.RoundTimeLimit
		if remaining < limit {
			limit = remaining
		}

		round, output := m.runRound(ctx, session, number, roundType, limit, sessionTimer, logger)
		session.Rounds = append(session.Rounds, round)

		outcome := m.buildRoundOutcome(session, round, output)
		m.telemetry.Record(outcome)
		m.emitter.Emit(EventRoundCompleted, outcome)

		if m.metrics != nil {
			m.metrics.RoundsTotal.WithLabelValues(string(round.Type), string(round.Status())).Inc()
			m.metrics.RoundDuration.WithLabelValues(string(round.Type)).Observe(round.Duration().Seconds())
		}

		if sessionTimer.IsExpired() || ctx.Err() != nil {
			_ = session.transition(SessionTimeout)
			logger.Info().Int("round", number).Msg("Session deadline fired mid-round")
			return
		}

		if output == nil || output.NextRound == "" {
			return
		}
		roundType = output.NextRound
	}
}

// participantResult is one settled fan-out call
type participantResult struct {
	participant *LLMParticipant
	result      *QueryResult
	err         error
	elapsed     time.Duration
}

// runRound fans the round prompt out to every selected participant
// concurrently and waits for all calls to settle or for the round timer,
// whichever comes first. A call still in flight when the timer fires
// contributes nothing; its result is discarded if it arrives later.
func (m *Manager) runRound(ctx context.Context, session *CollaborativeSession, number int, roundType RoundType, limit time.Duration, sessionTimer *Timer, logger zerolog.Logger) (*Round, *RoundOutput) {
	round, err := OpenRound(session.ID, number, roundType, purposeFor(roundType), limit)
	if err != nil {
		// Round types and numbers are engine-controlled, so this path
		// only fires on a programming error.
		logger.Error().Err(err).Msg("Failed to open round")
		return &Round{ID: fmt.Sprintf("%s-r%d-%s", session.ID, number, roundType), SessionID: session.ID, Number: number, Type: roundType, status: RoundTimedOut}, nil
	}

	timer := m.tm.Start(limit, TimerCallbacks{})
	round.attachTimer(timer)

	prompt := m.buildPrompt(session, round)
	results := make(chan participantResult, len(session.Participants))

	for _, p := range session.Participants {
		p.acquire()
		go func(p *LLMParticipant) {
			defer p.release()

			qctx, cancel := context.WithTimeout(ctx, limit)
			defer cancel()

			start := time.Now()
			res, qerr := m.querier.Query(qctx, p, prompt)
			// Buffered channel: a late result parks here and is dropped
			// with the round, never blocking this goroutine.
			results <- participantResult{participant: p, result: res, err: qerr, elapsed: time.Since(start)}
		}(p)
	}

	settled := 0
	expired := false

collect:
	for settled < len(session.Participants) {
		select {
		case pr := <-results:
			settled++
			m.acceptResult(session, round, pr, logger)

		case <-timer.Expired():
			expired = true
			break collect

		case <-sessionTimer.Expired():
			expired = true
			break collect

		case <-ctx.Done():
			expired = true
			break collect
		}
	}

	var output *RoundOutput
	if expired {
		output, err = round.MarkTimeout()
	} else {
		output, err = round.Close()
	}
	if err != nil {
		logger.Error().Err(err).Str("round_id", round.ID).Msg("Round close contract violation")
	}

	logger.Info().
		Str("round_id", round.ID).
		Str("type", string(roundType)).
		Str("status", string(round.Status())).
		Int("contributions", len(round.Contributions())).
		Msg("Round finished")

	return round, output
}

// acceptResult converts one settled call into a contribution, or records
// the failure as a missing contribution. A single participant's failure
// never aborts the round.
func (m *Manager) acceptResult(session *CollaborativeSession, round *Round, pr participantResult, logger zerolog.Logger) {
	if pr.err != nil {
		perr := NewParticipantError(pr.participant.ID, pr.err)
		logger.Warn().Err(perr).Str("round_id", round.ID).Msg("Participant contributed nothing this round")
		pr.participant.RecordPerformance(PerformanceRecord{
			SessionID: session.ID,
			RoundType: round.Type,
			Succeeded: false,
		})
		if m.metrics != nil {
			m.metrics.ParticipantErrors.WithLabelValues(pr.participant.ID).Inc()
		}
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		id = uuid.NewString()
	}

	contribution := Contribution{
		ID:            id,
		ParticipantID: pr.participant.ID,
		Provider:      pr.participant.Provider,
		Content:       pr.result.Content,
		Confidence:    clampConfidence(pr.result.Confidence),
		TokenCount:    pr.result.TokenCount,
		Metadata: ContributionMetadata{
			ProcessingTime: pr.elapsed,
		},
	}

	if err := round.AddContribution(contribution); err != nil {
		// Round went terminal between settle and append: treat as a late
		// arrival and drop it.
		logger.Debug().Str("participant", pr.participant.ID).Msg("Dropping late contribution")
		return
	}

	pr.participant.RecordPerformance(PerformanceRecord{
		SessionID:  session.ID,
		RoundType:  round.Type,
		Confidence: contribution.Confidence,
		Tokens:     contribution.TokenCount,
		Succeeded:  true,
	})
	if m.metrics != nil {
		m.metrics.ContributionsTotal.Inc()
		m.metrics.TokensTotal.Add(float64(contribution.TokenCount))
	}
}

// finalize assembles the CollaborativeOutput, fills session metrics and
// drives the status machine to its resting state.
func (m *Manager) finalize(session *CollaborativeSession, cachedPrecedent string, logger zerolog.Logger) error {
	output, err := m.GenerateCollaborativeOutput(session, cachedPrecedent)
	if err != nil {
		return m.failSession(session, NewInternalError("output synthesis", err), logger)
	}

	session.Output = output

	if session.Status != SessionTimeout {
		final := finalRoundOutput(session)
		if final != nil && final.AgreementScore*100.0 >= session.Threshold {
			_ = session.transition(SessionConsensusReached)
		}
	}

	session.EndTime = time.Now()
	m.UpdateSessionMetrics(session)
	_ = session.transition(SessionCompleted)

	if m.cache != nil && output.Content != "" {
		m.cache.Store(session.Request.Prompt, output.Content)
	}

	outcome := session.Outcome
	if outcome == "" {
		outcome = SessionCompleted
	}
	m.emitter.Emit(EventSessionCompleted, SessionCompletedPayload{
		SessionID:      session.ID,
		Outcome:        outcome,
		QualityScore:   output.QualityScore,
		ConsensusLevel: output.ConsensusLevel,
		RoundCount:     len(session.Rounds),
		TotalTokens:    output.TokenUsage.TotalTokens,
		Duration:       session.EndTime.Sub(session.StartTime),
		Timestamp:      session.EndTime,
	})

	if m.metrics != nil {
		m.metrics.SessionsFinished.WithLabelValues(string(outcome)).Inc()
		m.metrics.SessionDuration.Observe(session.EndTime.Sub(session.StartTime).Seconds())
	}

	logger.Info().
		Str("outcome", string(outcome)).
		Float64("quality", output.QualityScore).
		Str("consensus", string(output.ConsensusLevel)).
		Int("rounds", len(session.Rounds)).
		Msg("Session finished")

	return nil
}

// failSession moves the session to its failed resting state, surfaces
// the structured error to subscribers and returns it. Sessions that
// already reached a terminal status keep it.
func (m *Manager) failSession(session *CollaborativeSession, ierr error, logger zerolog.Logger) error {
	_ = session.transition(SessionFailed)
	if session.EndTime.IsZero() {
		session.EndTime = time.Now()
	}
	m.emitter.Emit(EventError, ErrorPayload{
		SessionID: session.ID,
		Err:       ierr,
		Message:   ierr.Error(),
		Timestamp: time.Now(),
	})
	if m.metrics != nil {
		m.metrics.SessionsFinished.WithLabelValues(string(SessionFailed)).Inc()
	}
	logger.Error().Err(ierr).Msg("Session failed")
	return ierr
}

// GenerateCollaborativeOutput concatenates round outputs in execution
// order. The last round's synthesized text is authoritative; earlier
// rounds are retained as sources and synthesis-log entries. Token totals
// always equal the sum of the per-participant and per-round breakdowns.
func (m *Manager) GenerateCollaborativeOutput(session *CollaborativeSession, cachedPrecedent string) (*CollaborativeOutput, error) {
	output := &CollaborativeOutput{
		Sources:      []Contribution{},
		RoundOutputs: []RoundOutput{},
		SynthesisLog: []SynthesisStep{},
		TokenUsage: TokenUsageMetrics{
			TokensPerParticipant: make(map[string]int),
			TokensPerRound:       make(map[string]int),
		},
	}

	if cachedPrecedent != "" {
		output.SynthesisLog = append(output.SynthesisLog, SynthesisStep{
			Kind:      StepEnhance,
			Reasoning: "consulted cached precedent for a similar prompt",
			Timestamp: time.Now(),
		})
	}

	qualitySum := 0.0
	qualityCount := 0

	for _, round := range session.Rounds {
		for _, c := range round.Contributions() {
			output.Sources = append(output.Sources, c)
			output.TokenUsage.TotalTokens += c.TokenCount
			output.TokenUsage.TokensPerParticipant[c.ParticipantID] += c.TokenCount
			output.TokenUsage.TokensPerRound[round.ID] += c.TokenCount
		}

		ro := round.Output()
		if ro == nil {
			continue
		}
		output.RoundOutputs = append(output.RoundOutputs, *ro)
		output.SynthesisLog = append(output.SynthesisLog, SynthesisStep{
			Kind:      stepKindFor(round.Type),
			Reasoning: fmt.Sprintf("%s round %d closed %s with consensus %s", round.Type, round.Number, round.Status(), ro.ConsensusLevel),
			RoundID:   round.ID,
			Timestamp: round.EndTime,
		})

		output.Content = ro.SynthesizedText
		qualitySum += ro.QualityScore
		qualityCount++
	}

	final := finalRoundOutput(session)
	switch {
	case final != nil:
		output.QualityScore = final.QualityScore
		output.ConsensusLevel = final.ConsensusLevel
	case qualityCount > 0:
		output.QualityScore = qualitySum / float64(qualityCount)
		output.ConsensusLevel = ConsensusForced
	default:
		output.ConsensusLevel = ConsensusForced
		output.Content = "[session produced no round outputs]"
	}

	if output.TokenUsage.TotalTokens > 0 {
		output.TokenUsage.Efficiency = output.QualityScore / float64(output.TokenUsage.TotalTokens)
	}
	if session.Request.TokenBudget > 0 {
		output.TokenUsage.BudgetUtilization = float64(output.TokenUsage.TotalTokens) / float64(session.Request.TokenBudget)
	}
	output.TokenUsage.EstimatedCost = float64(output.TokenUsage.TotalTokens) * estimatedCostPerToken

	return output, nil
}

// UpdateSessionMetrics fills SessionMetrics from the accumulated rounds
// and timing data.
func (m *Manager) UpdateSessionMetrics(session *CollaborativeSession) {
	sm := SessionMetrics{
		TotalDuration:          session.EndTime.Sub(session.StartTime),
		RoundCount:             len(session.Rounds),
		ParticipantUtilization: make(map[string]float64),
	}

	contributionsByParticipant := make(map[string]int)
	for _, round := range session.Rounds {
		for _, c := range round.Contributions() {
			sm.ContributionCount++
			contributionsByParticipant[c.ParticipantID]++
		}
	}

	if sm.RoundCount > 0 {
		for _, p := range session.Participants {
			sm.ParticipantUtilization[p.ID] =
				float64(contributionsByParticipant[p.ID]) / float64(sm.RoundCount)
		}
	}

	sm.ConsensusAchieved = session.Outcome == SessionConsensusReached
	if sm.ConsensusAchieved {
		sm.TimeToConsensus = sm.TotalDuration
	}

	if session.Output != nil {
		sm.TokenEfficiency = session.Output.TokenUsage.Efficiency
		if m.cfg.BaselineQuality > 0 {
			sm.QualityImprovement = session.Output.QualityScore - m.cfg.BaselineQuality
		}
	}

	session.Metrics = sm
}

// buildRoundOutcome derives the telemetry struct for round_completed
func (m *Manager) buildRoundOutcome(session *CollaborativeSession, round *Round, output *RoundOutput) RoundOutcome {
	contributions := round.Contributions()

	outcome := RoundOutcome{
		SessionID:   session.ID,
		RoundID:     round.ID,
		RoundNumber: round.Number,
		RoundType:   round.Type,
		Status:      round.Status(),
		Duration:    round.Duration(),
		Timestamp:   time.Now(),
	}

	if output != nil {
		outcome.ConsensusLevel = output.ConsensusLevel
		outcome.ConsensusStrength = output.AgreementScore * 100.0
		outcome.QualityScore = output.QualityScore
	}

	queried := len(session.Participants)
	if queried > 0 {
		outcome.Engagement.ContributionRate = float64(len(contributions)) / float64(queried)
	}

	critiquing := 0
	var minConf, maxConf float64
	for i, c := range contributions {
		if len(c.Critiques) > 0 {
			critiquing++
		}
		if i == 0 || c.Confidence < minConf {
			minConf = c.Confidence
		}
		if c.Confidence > maxConf {
			maxConf = c.Confidence
		}
		if c.Confidence < lowConfidenceDissent {
			outcome.DissentIndicators = append(outcome.DissentIndicators,
				fmt.Sprintf("participant %s reported low confidence (%.0f%%)", c.ParticipantID, c.Confidence))
		}
	}
	if len(contributions) > 1 && maxConf-minConf > 40 {
		outcome.DissentIndicators = append(outcome.DissentIndicators,
			fmt.Sprintf("confidence spread of %.0f points across contributions", maxConf-minConf))
	}
	if len(contributions) > 0 {
		outcome.Engagement.CritiqueCoverage = float64(critiquing) / float64(len(contributions))
	}

	if outcome.Engagement.ContributionRate < 1.0 {
		outcome.SuggestedPatches = append(outcome.SuggestedPatches, SuggestedPatch{
			Priority:    PriorityHigh,
			Description: "re-engage participants that contributed nothing this round",
		})
	}
	if output != nil && output.QualityScore < reiterationQualityThreshold {
		outcome.SuggestedPatches = append(outcome.SuggestedPatches, SuggestedPatch{
			Priority:    PriorityMedium,
			Description: "schedule another propose iteration to raise quality",
		})
	}

	return outcome
}

// buildPrompt composes the per-round prompt from the request and the
// preceding round's synthesis.
func (m *Manager) buildPrompt(session *CollaborativeSession, round *Round) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s round %d] %s\n\n", round.Type, round.Number, round.Purpose))
	sb.WriteString("Task:\n")
	sb.WriteString(session.Request.Prompt)
	sb.WriteString("\n")

	writeList := func(header string, items []string) {
		if len(items) == 0 {
			return
		}
		sb.WriteString("\n" + header + ":\n")
		for _, item := range items {
			sb.WriteString("- " + item + "\n")
		}
	}
	writeList("Context", session.Request.Context)
	writeList("Requirements", session.Request.Requirements)
	writeList("Constraints", session.Request.Constraints)

	if prev := previousRoundOutput(session); prev != nil {
		sb.WriteString("\nPrevious round synthesis:\n")
		sb.WriteString(prev.SynthesizedText)
		sb.WriteString("\n")
	}

	sb.WriteString("\nEnd your answer with a line \"CONFIDENCE: <0-100>\" reporting how confident you are.\n")

	return sb.String()
}

// purposeFor returns the human-readable purpose string for a round type
func purposeFor(t RoundType) string {
	switch t {
	case RoundPropose:
		return "Propose an initial solution to the task."
	case RoundCritique:
		return "Critique the proposals from the previous round."
	case RoundSynthesize:
		return "Synthesize the proposals and critiques into a unified answer."
	case RoundValidate:
		return "Validate the synthesized answer against the requirements."
	default:
		return "Contribute to the task."
	}
}

// stepKindFor maps a round type to its synthesis-log action
func stepKindFor(t RoundType) SynthesisStepKind {
	switch t {
	case RoundPropose:
		return StepMerge
	case RoundCritique:
		return StepResolve
	case RoundSynthesize:
		return StepEnhance
	case RoundValidate:
		return StepValidate
	default:
		return StepMerge
	}
}

// finalRoundOutput returns the last round's output, or nil when the
// session has no rounds or the last round produced none.
func finalRoundOutput(session *CollaborativeSession) *RoundOutput {
	if len(session.Rounds) == 0 {
		return nil
	}
	return session.Rounds[len(session.Rounds)-1].Output()
}

// previousRoundOutput returns the most recent terminal round's output
func previousRoundOutput(session *CollaborativeSession) *RoundOutput {
	for i := len(session.Rounds) - 1; i >= 0; i-- {
		if out := session.Rounds[i].Output(); out != nil {
			return out
		}
	}
	return nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
