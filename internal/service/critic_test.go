package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundState(meth, nov, sim, cit, clar float64, retries int) RoundState {
	return RoundState{
		Methodology: AgentResult{Score: meth},
		Novelty:     NoveltyResult{AgentResult: AgentResult{Score: nov}, SimilarityMax: sim},
		Citation:    AgentResult{Score: cit},
		Clarity:     AgentResult{Score: clar},
		Retries:     retries,
	}
}

func TestCritic_StrongPaperAccepted(t *testing.T) {
	outcome, decision := NewCritic(2).Evaluate(roundState(9.5, 9, 0.1, 8, 8.5, 0))

	assert.Equal(t, CriticFinalize, outcome.Status)
	assert.Empty(t, outcome.Issues)
	assert.Equal(t, 0, outcome.RetryCount)
	assert.Equal(t, DecisionAccept, decision.Decision)
	assert.Equal(t, ConfidenceHigh, decision.Confidence)
	assert.InDelta(t, 8.75, decision.AverageScore, 1e-9)
	assert.Equal(t, "Based on 4 review criteria with average score 8.8/10.", decision.Justification)
}

func TestCritic_CriticalMethodologyRequestsRetry(t *testing.T) {
	outcome, decision := NewCritic(2).Evaluate(roundState(2, 7, 0.2, 6, 8, 0))

	assert.Equal(t, CriticRetry, outcome.Status)
	assert.Equal(t, 1, outcome.RetryCount)
	assert.Contains(t, outcome.Issues, msgMethodologyCritical)
	assert.Contains(t, outcome.Issues, msgWrittenButWeakMethod)
	assert.Equal(t, DecisionWeakReject, decision.Decision)
	assert.Equal(t, ConfidenceMedium, decision.Confidence)
	assert.InDelta(t, 5.75, decision.AverageScore, 1e-9)
	assert.Equal(t, "Tentative decision based on current scores (retry 1/2).", decision.Justification)
}

func TestCritic_HardRejectAfterRetriesExhausted(t *testing.T) {
	outcome, decision := NewCritic(2).Evaluate(roundState(2, 7, 0.2, 6, 8, 2))

	assert.Equal(t, CriticFinalize, outcome.Status)
	assert.Equal(t, 2, outcome.RetryCount)
	assert.Equal(t, DecisionReject, decision.Decision)
	assert.Equal(t, ConfidenceHigh, decision.Confidence)
	assert.Contains(t, outcome.Issues, msgHardRejectMethodology)
	assert.Contains(t, decision.Justification, "Unresolved after 2 retries:")
}

func TestCritic_AverageIsMeanOfFourScores(t *testing.T) {
	cases := []RoundState{
		roundState(1, 2, 0, 3, 4, 0),
		roundState(10, 10, 0, 10, 10, 0),
		roundState(6.3, 7.1, 0.5, 5.9, 8.4, 1),
		roundState(7.3, 6.1, 0.2, 5.1, 8.2, 0),
		roundState(0, 0, 0, 0, 0, 0),
	}
	for _, st := range cases {
		_, decision := NewCritic(2).Evaluate(st)
		want := (st.Methodology.Score + st.Novelty.Score + st.Citation.Score + st.Clarity.Score) / 4
		assert.Equal(t, math.Round(want*100)/100, decision.AverageScore)
		require.Len(t, decision.Scores, 4)
		assert.Equal(t, st.Methodology.Score, decision.Scores[AgentMethodology])
		assert.Equal(t, st.Novelty.Score, decision.Scores[AgentNovelty])
		assert.Equal(t, st.Citation.Score, decision.Scores[AgentCitation])
		assert.Equal(t, st.Clarity.Score, decision.Scores[AgentClarity])
	}
}

func TestCritic_AverageRoundedToTwoDecimals(t *testing.T) {
	tests := []struct {
		state RoundState
		want  float64
	}{
		{roundState(7.33, 7, 0.1, 7, 7, 0), 7.08},
		{roundState(6.61, 8, 0.1, 8, 8, 0), 7.65},
		{roundState(9.99, 9.99, 0.1, 9.99, 9.98, 0), 9.99},
	}
	for _, tt := range tests {
		_, decision := NewCritic(2).Evaluate(tt.state)
		assert.Equal(t, tt.want, decision.AverageScore)
	}
}

func TestCritic_RetryOnlyWhileBudgetRemains(t *testing.T) {
	c := NewCritic(2)
	st := roundState(5, 9, 0.3, 3, 6, 0)

	for retries := 0; retries < 2; retries++ {
		st.Retries = retries
		outcome, _ := c.Evaluate(st)
		assert.Equal(t, CriticRetry, outcome.Status, "retries=%d", retries)
		assert.Equal(t, retries+1, outcome.RetryCount)
		assert.Equal(t, []string{msgNoveltyCitationConflict}, outcome.Issues)
	}

	st.Retries = 2
	outcome, decision := c.Evaluate(st)
	assert.Equal(t, CriticFinalize, outcome.Status)
	assert.Equal(t, 2, outcome.RetryCount)
	// 非 critical 冲突不阻止按均分定稿：avg=5.75，citation<5 -> Weak Reject
	assert.Equal(t, DecisionWeakReject, decision.Decision)
}

func TestCritic_NoIssuesAlwaysFinalizes(t *testing.T) {
	c := NewCritic(3)
	for retries := 0; retries <= 3; retries++ {
		outcome, _ := c.Evaluate(roundState(7, 7, 0.4, 7, 7, retries))
		assert.Equal(t, CriticFinalize, outcome.Status)
		assert.Equal(t, retries, outcome.RetryCount)
	}
}

func TestCritic_FinalLadder(t *testing.T) {
	tests := []struct {
		name       string
		state      RoundState
		decision   string
		confidence string
	}{
		{"accept", roundState(8, 8, 0.1, 8, 8, 0), DecisionAccept, ConfidenceHigh},
		{"high avg but weak novelty", roundState(9, 6, 0.1, 9, 9, 0), DecisionWeakAccept, ConfidenceMedium},
		{"weak accept", roundState(6, 6, 0.1, 6, 6, 0), DecisionWeakAccept, ConfidenceMedium},
		{"weak accept blocked by clarity", roundState(7, 7, 0.1, 7, 4, 0), DecisionWeakReject, ConfidenceMedium},
		{"weak reject", roundState(4, 4, 0.1, 4, 4, 0), DecisionWeakReject, ConfidenceMedium},
		{"reject", roundState(4, 3, 0.1, 3, 3, 0), DecisionReject, ConfidenceHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, decision := NewCritic(0).Evaluate(tt.state)
			assert.Equal(t, CriticFinalize, outcome.Status)
			assert.Equal(t, tt.decision, decision.Decision)
			assert.Equal(t, tt.confidence, decision.Confidence)
		})
	}
}

func TestCritic_TentativeLadder(t *testing.T) {
	tests := []struct {
		avg        float64
		decision   string
		confidence string
	}{
		{9, DecisionAccept, ConfidenceHigh},
		{8.5, DecisionAccept, ConfidenceHigh},
		{7.2, DecisionWeakAccept, ConfidenceMedium},
		{5, DecisionWeakReject, ConfidenceMedium},
		{4.99, DecisionRejectRetry, ConfidenceHigh},
	}
	for _, tt := range tests {
		decision, confidence := tentativeLadder(tt.avg)
		assert.Equal(t, tt.decision, decision, "avg=%v", tt.avg)
		assert.Equal(t, tt.confidence, confidence, "avg=%v", tt.avg)
	}
}

func TestCritic_HardRejectGate(t *testing.T) {
	tests := []struct {
		name  string
		state RoundState
		issue string
	}{
		{"methodology", roundState(3, 9, 0.1, 9, 6, 0), msgHardRejectMethodology},
		{"citation", roundState(9, 7, 0.1, 2, 9, 2), msgHardRejectCitation},
		{"similarity", roundState(9, 9, 0.995, 9, 9, 2), msgHardRejectSimilarity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, decision := NewCritic(2).Evaluate(tt.state)
			require.Equal(t, CriticFinalize, outcome.Status)
			assert.Equal(t, DecisionReject, decision.Decision)
			assert.Equal(t, ConfidenceHigh, decision.Confidence)
			assert.Contains(t, outcome.Issues, tt.issue)
		})
	}
}

func TestCritic_SubGateSimilarityFollowsLadder(t *testing.T) {
	// 0.96 命中 critical 但低于 hard reject 阈值；重试耗尽后按均分定稿
	outcome, decision := NewCritic(2).Evaluate(roundState(8, 3, 0.96, 8, 8, 2))

	assert.Equal(t, CriticFinalize, outcome.Status)
	assert.Equal(t, DecisionWeakAccept, decision.Decision)
	assert.Equal(t, ConfidenceMedium, decision.Confidence)
	assert.Equal(t, 6.75, decision.AverageScore)
	assert.Equal(t, []string{msgSimilarityCritical}, outcome.Issues)
	assert.Contains(t, decision.Justification, "Unresolved after 2 retries: "+msgSimilarityCritical)

	_, decision = NewCritic(1).Evaluate(roundState(9, 9, 0.96, 9, 9, 1))
	assert.Equal(t, DecisionAccept, decision.Decision)
	assert.Equal(t, ConfidenceHigh, decision.Confidence)
}

func TestCritic_ZeroRetriesFinalizesFirstRound(t *testing.T) {
	c := NewCritic(0)
	outcome, decision := c.Evaluate(roundState(2, 7, 0.2, 6, 8, 0))

	assert.Equal(t, CriticFinalize, outcome.Status)
	assert.Equal(t, 0, outcome.RetryCount)
	assert.Equal(t, DecisionReject, decision.Decision)
	assert.Contains(t, decision.Justification, "Unresolved after 0 retries: ")
	assert.NotContains(t, decision.Justification, "Issues:")
}

func TestNewCritic_NegativeRetriesClamped(t *testing.T) {
	assert.Equal(t, 0, NewCritic(-3).MaxRetries())
	assert.Equal(t, 4, NewCritic(4).MaxRetries())
}
