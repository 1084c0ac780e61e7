package collab

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedQuerier answers instantly with a fixed confidence per participant
func fixedQuerier(confidences map[string]float64) Querier {
	return QuerierFunc(func(ctx context.Context, p *LLMParticipant, prompt string) (*QueryResult, error) {
		conf, ok := confidences[p.ID]
		if !ok {
			conf = 75
		}
		return &QueryResult{
			Content:    fmt.Sprintf("answer from %s", p.ID),
			TokenCount: 100,
			Confidence: conf,
		}, nil
	})
}

// blockingQuerier waits for context cancellation and reports the error
func blockingQuerier() Querier {
	return QuerierFunc(func(ctx context.Context, p *LLMParticipant, prompt string) (*QueryResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

// sleepyQuerier ignores its context and answers after a long fixed delay,
// guaranteeing the round deadline fires first.
func sleepyQuerier(delay time.Duration) Querier {
	return QuerierFunc(func(ctx context.Context, p *LLMParticipant, prompt string) (*QueryResult, error) {
		time.Sleep(delay)
		return &QueryResult{Content: "too late", TokenCount: 10, Confidence: 80}, nil
	})
}

type fakeCache struct {
	mu       sync.Mutex
	lookups  []string
	stored   map[string]string
	lookupOK bool
	hit      string
}

func (c *fakeCache) LookupSimilar(prompt string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups = append(c.lookups, prompt)
	return c.hit, c.lookupOK
}

func (c *fakeCache) Store(prompt, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stored == nil {
		c.stored = make(map[string]string)
	}
	c.stored[prompt] = result
}

func testManager(t *testing.T, querier Querier, participantIDs ...string) *Manager {
	t.Helper()

	registry := NewRegistry()
	providers := []string{"anthropic", "openai", "static"}
	for i, id := range participantIDs {
		require.NoError(t, registry.Register(&LLMParticipant{
			ID:       id,
			Provider: providers[i%len(providers)],
			Model:    "test-model",
			Role:     RoleGeneralist,
			Active:   true,
		}))
	}

	manager, err := NewManager(ManagerConfig{
		Registry:         registry,
		Querier:          querier,
		Logger:           zerolog.Nop(),
		MinTimeLimit:     time.Millisecond,
		DefaultTimeLimit: 5 * time.Second,
		RoundTimeLimit:   time.Second,
	})
	require.NoError(t, err)
	return manager
}

func TestNewManager(t *testing.T) {
	t.Run("requires a registry", func(t *testing.T) {
		_, err := NewManager(ManagerConfig{Querier: fixedQuerier(nil)})
		assert.Error(t, err)
	})

	t.Run("requires a querier", func(t *testing.T) {
		_, err := NewManager(ManagerConfig{Registry: NewRegistry()})
		assert.Error(t, err)
	})
}

func TestValidateRequest(t *testing.T) {
	m := testManager(t, fixedQuerier(nil), "p1")

	cases := []struct {
		name  string
		req   CollaborationRequest
		field string
	}{
		{"empty prompt", CollaborationRequest{Prompt: "  "}, "prompt"},
		{"negative rounds", CollaborationRequest{Prompt: "task", MaxRounds: -1}, "max_rounds"},
		{"budget below minimum", CollaborationRequest{Prompt: "task", TimeLimitMs: -5}, "time_limit_ms"},
		{"threshold above range", CollaborationRequest{Prompt: "task", ConsensusThreshold: 101}, "consensus_threshold"},
		{"threshold below range", CollaborationRequest{Prompt: "task", ConsensusThreshold: -1}, "consensus_threshold"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.ValidateRequest(tc.req)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tc.field)
		})
	}

	t.Run("zero values mean defaults and pass", func(t *testing.T) {
		assert.NoError(t, m.ValidateRequest(CollaborationRequest{Prompt: "task"}))
	})
}

func TestSelectParticipants(t *testing.T) {
	t.Run("preferred participants come first", func(t *testing.T) {
		m := testManager(t, fixedQuerier(nil), "a", "b", "c")
		selected := m.SelectParticipants(CollaborationRequest{
			PreferredParticipants: []string{"c", "missing", "c"},
		})
		require.NotEmpty(t, selected)
		assert.Equal(t, "c", selected[0].ID)

		ids := map[string]int{}
		for _, p := range selected {
			ids[p.ID]++
		}
		assert.Equal(t, 1, ids["c"])
	})

	t.Run("caps at the configured maximum", func(t *testing.T) {
		m := testManager(t, fixedQuerier(nil), "a", "b", "c", "d", "e", "f", "g")
		selected := m.SelectParticipants(CollaborationRequest{})
		assert.Len(t, selected, 5)
	})

	t.Run("skips inactive participants", func(t *testing.T) {
		m := testManager(t, fixedQuerier(nil), "a", "b")
		require.NoError(t, m.registry.Deactivate("b"))

		selected := m.SelectParticipants(CollaborationRequest{PreferredParticipants: []string{"b"}})
		require.Len(t, selected, 1)
		assert.Equal(t, "a", selected[0].ID)
	})
}

func TestStartSessionConsensus(t *testing.T) {
	m := testManager(t, fixedQuerier(map[string]float64{"p1": 92, "p2": 88, "p3": 90}), "p1", "p2", "p3")

	session, err := m.StartSession(context.Background(), "test", CollaborationRequest{
		Prompt:      "design a rate limiter",
		TimeLimitMs: 5000,
	})
	require.NoError(t, err)
	require.NotNil(t, session)

	t.Run("session rests at completed with a consensus outcome", func(t *testing.T) {
		assert.Equal(t, SessionCompleted, session.Status)
		assert.Equal(t, SessionConsensusReached, session.Outcome)
		assert.False(t, session.EndTime.IsZero())
	})

	t.Run("full cycle runs once when validate quality holds", func(t *testing.T) {
		require.Len(t, session.Rounds, 4)
		types := make([]RoundType, 0, 4)
		for _, round := range session.Rounds {
			types = append(types, round.Type)
			assert.Equal(t, RoundCompleted, round.Status())
		}
		assert.Equal(t, []RoundType{RoundPropose, RoundCritique, RoundSynthesize, RoundValidate}, types)
	})

	t.Run("output aggregates every contribution", func(t *testing.T) {
		out := session.Output
		require.NotNil(t, out)
		assert.Len(t, out.Sources, 12) // 3 participants x 4 rounds
		assert.Equal(t, ConsensusUnanimous, out.ConsensusLevel)
		assert.NotEmpty(t, out.Content)
		assert.Len(t, out.RoundOutputs, 4)
	})

	t.Run("token totals reconcile across breakdowns", func(t *testing.T) {
		usage := session.Output.TokenUsage
		assert.Equal(t, 1200, usage.TotalTokens)

		perParticipant := 0
		for _, n := range usage.TokensPerParticipant {
			perParticipant += n
		}
		perRound := 0
		for _, n := range usage.TokensPerRound {
			perRound += n
		}
		assert.Equal(t, usage.TotalTokens, perParticipant)
		assert.Equal(t, usage.TotalTokens, perRound)
		assert.Greater(t, usage.EstimatedCost, 0.0)
	})

	t.Run("session metrics are filled", func(t *testing.T) {
		sm := session.Metrics
		assert.Equal(t, 4, sm.RoundCount)
		assert.Equal(t, 12, sm.ContributionCount)
		assert.True(t, sm.ConsensusAchieved)
		assert.Greater(t, sm.TimeToConsensus, time.Duration(0))
		assert.InDelta(t, 1.0, sm.ParticipantUtilization["p1"], 1e-9)

		for _, p := range session.Participants {
			assert.Len(t, p.History(), 4)
		}
	})

	t.Run("telemetry buffered one outcome per round", func(t *testing.T) {
		outcomes := m.Telemetry().Outcomes(session.ID)
		require.Len(t, outcomes, 4)
		assert.Equal(t, 1, outcomes[0].RoundNumber)
		assert.InDelta(t, 90.0, outcomes[0].ConsensusStrength, 1e-9)
		assert.InDelta(t, 1.0, outcomes[0].Engagement.ContributionRate, 1e-9)
	})
}

func TestStartSessionEvents(t *testing.T) {
	m := testManager(t, fixedQuerier(map[string]float64{"p1": 90}), "p1")

	var mu sync.Mutex
	var started []SessionStartedPayload
	var rounds []RoundOutcome
	var completed []SessionCompletedPayload

	m.Emitter().On(EventSessionStarted, func(payload interface{}) {
		mu.Lock()
		defer mu.Unlock()
		started = append(started, payload.(SessionStartedPayload))
	})
	m.Emitter().On(EventRoundCompleted, func(payload interface{}) {
		mu.Lock()
		defer mu.Unlock()
		rounds = append(rounds, payload.(RoundOutcome))
	})
	m.Emitter().On(EventSessionCompleted, func(payload interface{}) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, payload.(SessionCompletedPayload))
	})

	session, err := m.StartSession(context.Background(), "tester", CollaborationRequest{Prompt: "task"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, started, 1)
	assert.Equal(t, session.ID, started[0].SessionID)
	assert.Equal(t, "tester", started[0].Initiator)
	assert.Equal(t, []string{"p1"}, started[0].Participants)

	require.Len(t, rounds, len(session.Rounds))
	for i, outcome := range rounds {
		assert.Equal(t, i+1, outcome.RoundNumber)
		assert.Equal(t, session.ID, outcome.SessionID)
	}

	require.Len(t, completed, 1)
	assert.Equal(t, SessionConsensusReached, completed[0].Outcome)
	assert.Equal(t, len(session.Rounds), completed[0].RoundCount)
	assert.Equal(t, session.Output.TokenUsage.TotalTokens, completed[0].TotalTokens)
}

func TestStartSessionSubscriberPanic(t *testing.T) {
	t.Run("panic mid-session fails the session with a structured error", func(t *testing.T) {
		m := testManager(t, fixedQuerier(map[string]float64{"p1": 90}), "p1")
		m.Emitter().On(EventRoundCompleted, func(payload interface{}) {
			panic("subscriber bug")
		})

		var errored []ErrorPayload
		m.Emitter().On(EventError, func(payload interface{}) {
			errored = append(errored, payload.(ErrorPayload))
		})

		session, err := m.StartSession(context.Background(), "test", CollaborationRequest{Prompt: "task"})
		require.Error(t, err)

		var ierr *InternalError
		require.ErrorAs(t, err, &ierr)

		require.NotNil(t, session)
		assert.Equal(t, SessionFailed, session.Status)
		assert.Equal(t, SessionFailed, session.Outcome)
		assert.False(t, session.EndTime.IsZero())

		require.Len(t, errored, 1)
		assert.Equal(t, session.ID, errored[0].SessionID)
	})

	t.Run("panic in completion handler still returns a structured error", func(t *testing.T) {
		m := testManager(t, fixedQuerier(map[string]float64{"p1": 90}), "p1")
		m.Emitter().On(EventSessionCompleted, func(payload interface{}) {
			panic("subscriber bug")
		})

		session, err := m.StartSession(context.Background(), "test", CollaborationRequest{Prompt: "task"})
		require.Error(t, err)

		var ierr *InternalError
		require.ErrorAs(t, err, &ierr)
		require.NotNil(t, session)
	})
}

func TestStartSessionPartialFailure(t *testing.T) {
	// p2 always errors; its silence must not abort the round.
	querier := QuerierFunc(func(ctx context.Context, p *LLMParticipant, prompt string) (*QueryResult, error) {
		if p.ID == "p2" {
			return nil, fmt.Errorf("provider unavailable")
		}
		return &QueryResult{Content: "answer", TokenCount: 50, Confidence: 90}, nil
	})
	m := testManager(t, querier, "p1", "p2")

	session, err := m.StartSession(context.Background(), "test", CollaborationRequest{Prompt: "task"})
	require.NoError(t, err)

	t.Run("rounds complete despite the failing participant", func(t *testing.T) {
		assert.Equal(t, SessionCompleted, session.Status)
		for _, round := range session.Rounds {
			assert.Equal(t, RoundCompleted, round.Status())
			assert.Len(t, round.Contributions(), 1)
		}
	})

	t.Run("failure is recorded as degraded engagement", func(t *testing.T) {
		outcomes := m.Telemetry().Outcomes(session.ID)
		require.NotEmpty(t, outcomes)
		assert.InDelta(t, 0.5, outcomes[0].Engagement.ContributionRate, 1e-9)
		require.NotEmpty(t, outcomes[0].SuggestedPatches)
		assert.Equal(t, PriorityHigh, outcomes[0].SuggestedPatches[0].Priority)
	})

	t.Run("failing participant accrues failed history", func(t *testing.T) {
		p2 := m.registry.Get("p2")
		history := p2.History()
		require.NotEmpty(t, history)
		assert.False(t, history[0].Succeeded)
	})
}

func TestStartSessionTimeout(t *testing.T) {
	m := testManager(t, sleepyQuerier(3*time.Second), "p1", "p2")

	start := time.Now()
	session, err := m.StartSession(context.Background(), "test", CollaborationRequest{
		Prompt:      "task",
		TimeLimitMs: 80,
	})
	require.NoError(t, err)

	t.Run("returns promptly after the budget", func(t *testing.T) {
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("outcome is timeout and session still completes", func(t *testing.T) {
		assert.Equal(t, SessionCompleted, session.Status)
		assert.Equal(t, SessionTimeout, session.Outcome)
	})

	t.Run("the interrupted round is marked timeout", func(t *testing.T) {
		require.NotEmpty(t, session.Rounds)
		assert.Equal(t, RoundTimedOut, session.Rounds[0].Status())
		assert.Empty(t, session.Rounds[0].Contributions())
	})

	t.Run("output reflects the empty rounds", func(t *testing.T) {
		require.NotNil(t, session.Output)
		assert.Equal(t, ConsensusForced, session.Output.ConsensusLevel)
		assert.Equal(t, 0, session.Output.TokenUsage.TotalTokens)
	})
}

func TestStartSessionContextCancel(t *testing.T) {
	m := testManager(t, blockingQuerier(), "p1")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	session, err := m.StartSession(ctx, "test", CollaborationRequest{
		Prompt:      "task",
		TimeLimitMs: 10_000,
	})
	require.NoError(t, err)
	assert.Equal(t, SessionTimeout, session.Outcome)
	assert.Equal(t, SessionCompleted, session.Status)
}

func TestStartSessionReiteration(t *testing.T) {
	// Low confidence keeps validate quality under the reiteration
	// threshold, so the cycle restarts until the round budget runs out.
	m := testManager(t, fixedQuerier(map[string]float64{"p1": 30}), "p1")

	session, err := m.StartSession(context.Background(), "test", CollaborationRequest{
		Prompt:    "task",
		MaxRounds: 5,
	})
	require.NoError(t, err)

	require.Len(t, session.Rounds, 5)
	assert.Equal(t, RoundValidate, session.Rounds[3].Type)
	assert.Equal(t, RoundPropose, session.Rounds[4].Type)
	assert.Equal(t, SessionCompleted, session.Status)
	assert.NotEqual(t, SessionConsensusReached, session.Outcome)
}

func TestStartSessionValidation(t *testing.T) {
	m := testManager(t, fixedQuerier(nil), "p1")

	var errorEvents []ErrorPayload
	m.Emitter().On(EventError, func(payload interface{}) {
		errorEvents = append(errorEvents, payload.(ErrorPayload))
	})

	session, err := m.StartSession(context.Background(), "test", CollaborationRequest{Prompt: ""})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Nil(t, session)
	assert.Len(t, errorEvents, 1)
}

func TestStartSessionPatternCache(t *testing.T) {
	t.Run("stores the final content under the prompt", func(t *testing.T) {
		cache := &fakeCache{}
		m := testManager(t, fixedQuerier(map[string]float64{"p1": 90}), "p1")
		m.cache = cache

		session, err := m.StartSession(context.Background(), "test", CollaborationRequest{Prompt: "cache me"})
		require.NoError(t, err)

		assert.Equal(t, []string{"cache me"}, cache.lookups)
		assert.Equal(t, session.Output.Content, cache.stored["cache me"])
	})

	t.Run("a cache hit is logged in the synthesis trail", func(t *testing.T) {
		cache := &fakeCache{lookupOK: true, hit: "precedent"}
		m := testManager(t, fixedQuerier(map[string]float64{"p1": 90}), "p1")
		m.cache = cache

		session, err := m.StartSession(context.Background(), "test", CollaborationRequest{Prompt: "again"})
		require.NoError(t, err)

		require.NotEmpty(t, session.Output.SynthesisLog)
		assert.Equal(t, StepEnhance, session.Output.SynthesisLog[0].Kind)
	})
}

func TestStartSessionPreferredParticipants(t *testing.T) {
	m := testManager(t, fixedQuerier(nil), "a", "b", "c")

	session, err := m.StartSession(context.Background(), "test", CollaborationRequest{
		Prompt:                "task",
		PreferredParticipants: []string{"b"},
	})
	require.NoError(t, err)

	require.NotEmpty(t, session.Participants)
	assert.Equal(t, "b", session.Participants[0].ID)
}

func TestBuildPrompt(t *testing.T) {
	m := testManager(t, fixedQuerier(nil), "p1")

	session := &CollaborativeSession{
		ID: "s1",
		Request: CollaborationRequest{
			Prompt:       "design a cache",
			Context:      []string{"read-heavy workload"},
			Requirements: []string{"O(1) lookup"},
			Constraints:  []string{"no external services"},
		},
	}
	round, err := OpenRound("s1", 1, RoundPropose, purposeFor(RoundPropose), time.Second)
	require.NoError(t, err)

	prompt := m.buildPrompt(session, round)
	assert.Contains(t, prompt, "design a cache")
	assert.Contains(t, prompt, "read-heavy workload")
	assert.Contains(t, prompt, "O(1) lookup")
	assert.Contains(t, prompt, "no external services")
	assert.Contains(t, prompt, "CONFIDENCE:")

	t.Run("later rounds carry the previous synthesis", func(t *testing.T) {
		require.NoError(t, round.AddContribution(Contribution{ID: "c1", ParticipantID: "p1", Provider: "anthropic", Content: "use an LRU", Confidence: 80}))
		_, err := round.Close()
		require.NoError(t, err)
		session.Rounds = append(session.Rounds, round)

		next, err := OpenRound("s1", 2, RoundCritique, purposeFor(RoundCritique), time.Second)
		require.NoError(t, err)

		prompt := m.buildPrompt(session, next)
		assert.Contains(t, prompt, "Previous round synthesis")
		assert.Contains(t, prompt, "use an LRU")
	})
}
