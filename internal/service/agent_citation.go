package service

import (
	"context"
	"fmt"

	"paper-review/internal/metrics"

	"go.uber.org/zap"
)

const citationSystemPrompt = `You are a strict peer reviewer focused ONLY on citation quality and literature grounding.

Evaluate using these standards:
- Prior work coverage breadth
- Correctness and relevance of citation context
- Presence of recent work (last 3-5 years)
- Whether claims are supported by references

Scoring policy:
- 9-10: comprehensive, current, and well-integrated citations
- 7-8: good but with some gaps
- 4-6: moderate weaknesses, missing important references
- 0-3: poor or largely absent citation support

Return ONLY valid JSON:
{
  "score": number,
  "issues": [string],
  "suggestions": [string]
}`

type CitationAgent struct {
	agentBase
}

func NewCitationAgent(scorer Scorer, logger *zap.Logger, m *metrics.Metrics) *CitationAgent {
	return &CitationAgent{agentBase: newAgentBase(AgentCitation, scorer, logger, m)}
}

func (a *CitationAgent) Review(ctx context.Context, paper Paper) AgentResult {
	relatedWork := paper.Sections.Get(SectionRelatedWork)
	references := paper.Sections.Get(SectionReferences)
	if isBlank(relatedWork) && isBlank(references) {
		return missingCitations()
	}
	if a.scorer == nil {
		return a.Fallback(paper)
	}

	payload := fmt.Sprintf("Introduction (excerpt):\n%s\n\nRelated Work (excerpt):\n%s\n\nReferences (excerpt):\n%s",
		excerpt(paper.Sections.Get(SectionIntroduction), 3000),
		excerpt(relatedWork, 6000),
		excerpt(references, 4000),
	)
	resp, err := a.scorer.Score(ctx, "Paper text:\n"+payload, citationSystemPrompt)
	if err != nil {
		a.noteFallback(paper.ID, err)
		return a.Fallback(paper)
	}
	return fromScore(resp)
}

// Fallback 基础分 5；没有 related work 叙述 -2，没有近年引用 -1；最低 1
func (a *CitationAgent) Fallback(paper Paper) AgentResult {
	relatedWork := paper.Sections.Get(SectionRelatedWork)
	references := paper.Sections.Get(SectionReferences)
	if isBlank(relatedWork) && isBlank(references) {
		return missingCitations()
	}

	issues := []string{"Automated citation review failed; fallback heuristic applied."}
	suggestions := []string{"Verify references include foundational and recent work."}
	score := 5.0

	if isBlank(relatedWork) {
		issues = append(issues, "No dedicated related-work narrative found.")
		score -= 2
	}
	if !hasRecentCitation(relatedWork + "\n" + references) {
		issues = append(issues, "No clearly recent citations detected.")
		score -= 1
	}
	if score < 1 {
		score = 1
	}
	return newResult(score, issues, suggestions)
}

func missingCitations() AgentResult {
	return newResult(1,
		[]string{"No related-work or references content detected."},
		[]string{
			"Add a dedicated related-work section and references list.",
			"Support major claims with explicit citations.",
		},
	)
}
