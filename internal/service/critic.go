package service

import (
	"fmt"
	"math"
	"strings"
)

const (
	msgNoveltyCitationConflict = "Contradiction: High novelty claimed but citation support is weak."
	msgWrittenButWeakMethod    = "Contradiction: Paper is well-written but methodology is fundamentally weak."
	msgMethodologyCritical     = "Critical: Methodology score below minimum acceptable threshold (2/10)."
	msgCitationCritical        = "Critical: Citation grounding is too weak for acceptance."
	msgSimilarityCritical      = "Critical: Extremely high similarity to existing work (possible overlap/plagiarism risk)."

	msgHardRejectMethodology = "Hard reject: methodology does not meet minimum scientific rigor."
	msgHardRejectCitation    = "Hard reject: insufficient literature grounding."
	msgHardRejectSimilarity  = "Hard reject: near-duplicate similarity detected."
)

// Critic 检查一轮结果，决定重试还是定稿。无状态，可并发使用
type Critic struct {
	maxRetries int
}

func NewCritic(maxRetries int) *Critic {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Critic{maxRetries: maxRetries}
}

func (c *Critic) MaxRetries() int {
	return c.maxRetries
}

// Evaluate 纯函数：RoundState -> (CriticOutcome, Decision)
func (c *Critic) Evaluate(state RoundState) (CriticOutcome, Decision) {
	issues := detectIssues(state)
	avg := averageScore(state)

	if len(issues) > 0 && state.Retries < c.maxRetries {
		next := state.Retries + 1
		decision, confidence := tentativeLadder(avg)
		return CriticOutcome{
				Status:     CriticRetry,
				Issues:     issues,
				RetryCount: next,
			}, Decision{
				Decision:      decision,
				Confidence:    confidence,
				AverageScore:  round2(avg),
				Scores:        scoreMap(state),
				Justification: fmt.Sprintf("Tentative decision based on current scores (retry %d/%d).", next, c.maxRetries),
			}
	}

	meth := state.Methodology.Score
	cit := state.Citation.Score
	sim := state.Novelty.SimilarityMax

	var decision, confidence string
	// hard reject 只看这三个条件；其余命中的规则只写进 justification
	if meth <= 3 || cit <= 2 || sim >= 0.99 {
		decision, confidence = DecisionReject, ConfidenceHigh
		if meth <= 3 {
			issues = append(issues, msgHardRejectMethodology)
		}
		if cit <= 2 {
			issues = append(issues, msgHardRejectCitation)
		}
		if sim >= 0.99 {
			issues = append(issues, msgHardRejectSimilarity)
		}
	} else {
		decision, confidence = finalLadder(avg, state)
	}

	// 定稿时仍有命中说明重试预算已用完（maxRetries=0 时为 0 次）
	justification := fmt.Sprintf("Based on 4 review criteria with average score %.1f/10.", avg)
	if len(issues) > 0 {
		justification += fmt.Sprintf(" Unresolved after %d retries: %s", state.Retries, strings.Join(issues, " "))
	}

	if issues == nil {
		issues = []string{}
	}
	return CriticOutcome{
			Status:     CriticFinalize,
			Issues:     issues,
			RetryCount: state.Retries,
		}, Decision{
			Decision:      decision,
			Confidence:    confidence,
			AverageScore:  round2(avg),
			Scores:        scoreMap(state),
			Justification: justification,
		}
}

// detectIssues 五条规则相互独立，命中的全部收集
func detectIssues(state RoundState) (issues []string) {
	meth := state.Methodology.Score
	nov := state.Novelty.Score
	cit := state.Citation.Score
	clar := state.Clarity.Score

	if nov >= 8 && cit <= 4 {
		issues = append(issues, msgNoveltyCitationConflict)
	}
	if meth <= 3 && clar >= 7 {
		issues = append(issues, msgWrittenButWeakMethod)
	}
	if meth <= 2 {
		issues = append(issues, msgMethodologyCritical)
	}
	if cit <= 2 {
		issues = append(issues, msgCitationCritical)
	}
	if state.Novelty.SimilarityMax >= 0.95 {
		issues = append(issues, msgSimilarityCritical)
	}
	return issues
}

func tentativeLadder(avg float64) (string, string) {
	switch {
	case avg >= 8.5:
		return DecisionAccept, ConfidenceHigh
	case avg >= 7.2:
		return DecisionWeakAccept, ConfidenceMedium
	case avg >= 5.0:
		return DecisionWeakReject, ConfidenceMedium
	default:
		return DecisionRejectRetry, ConfidenceHigh
	}
}

func finalLadder(avg float64, state RoundState) (string, string) {
	meth := state.Methodology.Score
	nov := state.Novelty.Score
	cit := state.Citation.Score
	clar := state.Clarity.Score

	switch {
	case avg >= 8.0 && math.Min(math.Min(meth, nov), math.Min(cit, clar)) >= 6.5:
		return DecisionAccept, ConfidenceHigh
	case avg >= 6.0 && math.Min(meth, math.Min(cit, clar)) >= 5:
		return DecisionWeakAccept, ConfidenceMedium
	case avg >= 4.0:
		return DecisionWeakReject, ConfidenceMedium
	default:
		return DecisionReject, ConfidenceHigh
	}
}

func averageScore(state RoundState) float64 {
	return (state.Methodology.Score + state.Novelty.Score + state.Citation.Score + state.Clarity.Score) / 4
}

func scoreMap(state RoundState) map[string]float64 {
	return map[string]float64{
		AgentMethodology: state.Methodology.Score,
		AgentNovelty:     state.Novelty.Score,
		AgentCitation:    state.Citation.Score,
		AgentClarity:     state.Clarity.Score,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
