package service

import (
	"context"
	"fmt"

	"paper-review/internal/metrics"

	"go.uber.org/zap"
)

const claritySystemPrompt = `You are a strict academic writing reviewer focused ONLY on clarity and structure.

Evaluate:
- Logical flow from problem to contribution
- Precision and readability of language
- Whether claims are understandable and not vague
- Section coherence (abstract, intro, methods, results, conclusion)

Scoring policy:
- 9-10: clear, coherent, publication-ready writing
- 7-8: mostly clear with minor clarity defects
- 4-6: important clarity issues that hurt comprehension
- 0-3: confusing, fragmented, or highly ambiguous writing

Return ONLY valid JSON:
{
  "score": number,
  "issues": [string],
  "suggestions": [string]
}`

type ClarityAgent struct {
	agentBase
}

func NewClarityAgent(scorer Scorer, logger *zap.Logger, m *metrics.Metrics) *ClarityAgent {
	return &ClarityAgent{agentBase: newAgentBase(AgentClarity, scorer, logger, m)}
}

func (a *ClarityAgent) Review(ctx context.Context, paper Paper) AgentResult {
	if a.scorer == nil {
		return a.Fallback(paper)
	}
	s := paper.Sections
	payload := fmt.Sprintf("Abstract:\n%s\n\nIntroduction:\n%s\n\nMethodology:\n%s\n\nResults:\n%s\n\nConclusion:\n%s",
		excerpt(s.Get(SectionAbstract), 2500),
		excerpt(s.Get(SectionIntroduction), 3500),
		excerpt(s.Get(SectionMethodology), 3500),
		excerpt(s.Get(SectionResults), 3500),
		excerpt(s.Get(SectionConclusion), 2500),
	)
	resp, err := a.scorer.Score(ctx, "Paper text:\n"+payload, claritySystemPrompt)
	if err != nil {
		a.noteFallback(paper.ID, err)
		return a.Fallback(paper)
	}
	return fromScore(resp)
}

// Fallback 每个结构缺陷扣 2 分，最低 1
func (a *ClarityAgent) Fallback(paper Paper) AgentResult {
	s := paper.Sections
	var issues, suggestions []string

	if wordCount(s.Get(SectionAbstract)) < 60 {
		issues = append(issues, "Abstract is too short to communicate full contribution.")
		suggestions = append(suggestions, "Expand abstract with objective, method, and key findings.")
	}
	if isBlank(s.Get(SectionConclusion)) {
		issues = append(issues, "Conclusion section is missing.")
		suggestions = append(suggestions, "Add a conclusion with limitations and future work.")
	}
	if wordCount(s.Get(SectionIntroduction)) < 120 {
		issues = append(issues, "Introduction lacks sufficient context and motivation.")
		suggestions = append(suggestions, "Strengthen problem framing and contribution statement.")
	}

	score := 10.0 - 2*float64(len(issues))
	if score < 1 {
		score = 1
	}
	return newResult(score, issues, suggestions)
}
