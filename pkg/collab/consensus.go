package collab

// Consensus thresholds over the agreement proxy (0.0-1.0).
const (
	unanimousThreshold         = 0.90
	qualifiedMajorityThreshold = 0.66
	simpleMajorityThreshold    = 0.51
)

// Quality score bonus caps.
const (
	participationBonusCap  = 30.0
	participationBonusStep = 10.0
	diversityBonusStep     = 5.0
)

// ConsensusEngine converts a round's contribution set into an agreement
// score and a categorical consensus level.
//
// The agreement score is a confidence-based proxy: the mean of the
// contributions' self-reported confidences divided by 100. It is not
// semantic agreement between the texts. The proxy is preserved exactly for
// behavioral compatibility; replacing it with a semantic measure would
// change observable consensus outcomes.
type ConsensusEngine struct{}

// NewConsensusEngine creates a ConsensusEngine
func NewConsensusEngine() *ConsensusEngine {
	return &ConsensusEngine{}
}

// AgreementScore returns the mean self-reported confidence of the
// contributions scaled into 0.0-1.0. Order-independent: it uses only
// aggregate statistics. Zero contributions score zero.
func (e *ConsensusEngine) AgreementScore(contributions []Contribution) float64 {
	if len(contributions) == 0 {
		return 0
	}
	return e.averageConfidence(contributions) / 100.0
}

// Level maps a contribution set to a categorical consensus level.
// Zero contributions force consensus; a single contribution trivially
// agrees with itself.
func (e *ConsensusEngine) Level(contributions []Contribution) ConsensusLevel {
	switch len(contributions) {
	case 0:
		return ConsensusForced
	case 1:
		return ConsensusUnanimous
	}

	score := e.AgreementScore(contributions)
	switch {
	case score >= unanimousThreshold:
		return ConsensusUnanimous
	case score >= qualifiedMajorityThreshold:
		return ConsensusQualifiedMajority
	case score >= simpleMajorityThreshold:
		return ConsensusSimpleMajority
	default:
		return ConsensusForced
	}
}

// Quality computes the round quality score (0-100):
// average confidence plus a participation bonus capped at 30 and a
// diversity bonus of 5 per distinct provider, clamped to 100.
func (e *ConsensusEngine) Quality(contributions []Contribution) float64 {
	if len(contributions) == 0 {
		return 0
	}

	quality := e.averageConfidence(contributions)

	participation := participationBonusStep * float64(len(contributions))
	if participation > participationBonusCap {
		participation = participationBonusCap
	}
	quality += participation

	quality += diversityBonusStep * float64(e.distinctProviders(contributions))

	if quality > 100 {
		quality = 100
	}
	return quality
}

// Strength returns the agreement proxy as a percentage (0-100), used to
// compare against a session's consensus threshold.
func (e *ConsensusEngine) Strength(contributions []Contribution) float64 {
	return e.AgreementScore(contributions) * 100.0
}

func (e *ConsensusEngine) averageConfidence(contributions []Contribution) float64 {
	total := 0.0
	for _, c := range contributions {
		total += c.Confidence
	}
	return total / float64(len(contributions))
}

func (e *ConsensusEngine) distinctProviders(contributions []Contribution) int {
	providers := make(map[string]struct{}, len(contributions))
	for _, c := range contributions {
		providers[c.Provider] = struct{}{}
	}
	return len(providers)
}
