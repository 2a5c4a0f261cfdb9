package service

import (
	"context"
	"regexp"

	"paper-review/internal/metrics"

	"go.uber.org/zap"
)

const methodologySystemPrompt = `You are an academic peer reviewer specializing in research methodology.

Evaluate ONLY the methodology of the paper.

Rules:
- Be balanced and evidence-based
- Do not evaluate novelty or writing quality
- Penalize missing experimental detail, missing baselines, and weak evaluation design
- Allow partial credit when methodology is described but lacks depth
- Output MUST be valid JSON
- Output NOTHING except JSON

Scoring rubric:
- 9-10: rigorous, reproducible, strong experimental controls
- 7-8: good methodology with minor gaps
- 5-6: moderate weaknesses but usable methodology
- 3-4: serious weaknesses that threaten validity
- 0-2: fundamentally weak or non-reproducible methodology

JSON schema:
{
  "score": number (0 to 10),
  "issues": list of strings,
  "suggestions": list of strings
}`

const methodologyExcerptChars = 9000

var evaluationVocabRe = regexp.MustCompile(`(?i)\b(baselines?|experiments?|evaluat\w*|datasets?|metrics?|ablations?|benchmarks?|controls?)\b`)

type MethodologyAgent struct {
	agentBase
}

func NewMethodologyAgent(scorer Scorer, logger *zap.Logger, m *metrics.Metrics) *MethodologyAgent {
	return &MethodologyAgent{agentBase: newAgentBase(AgentMethodology, scorer, logger, m)}
}

func (a *MethodologyAgent) Review(ctx context.Context, paper Paper) AgentResult {
	text := paper.Sections.Get(SectionMethodology)
	if isBlank(text) {
		return missingMethodology()
	}
	if a.scorer == nil {
		return a.Fallback(paper)
	}

	resp, err := a.scorer.Score(ctx, "Methodology section (excerpt):\n"+excerpt(text, methodologyExcerptChars), methodologySystemPrompt)
	if err != nil {
		a.noteFallback(paper.ID, err)
		return a.Fallback(paper)
	}
	return fromScore(resp)
}

// Fallback 基础分 5；过短 -2，缺少实验评估描述 -1；最低 1
func (a *MethodologyAgent) Fallback(paper Paper) AgentResult {
	text := paper.Sections.Get(SectionMethodology)
	if isBlank(text) {
		return missingMethodology()
	}

	issues := []string{"Automated methodology review failed; fallback heuristic applied."}
	suggestions := []string{"Describe the experimental design, datasets and baselines in enough detail to reproduce."}
	score := 5.0

	if wordCount(text) < 120 {
		issues = append(issues, "Methodology section is too brief to assess rigor or reproducibility.")
		suggestions = append(suggestions, "Expand the methodology with procedures, parameters and assumptions.")
		score -= 2
	}
	if !evaluationVocabRe.MatchString(text) {
		issues = append(issues, "No evaluation design (baselines, datasets or metrics) detected.")
		suggestions = append(suggestions, "State how the method is evaluated and against which baselines.")
		score -= 1
	}
	if score < 1 {
		score = 1
	}
	return newResult(score, issues, suggestions)
}

func missingMethodology() AgentResult {
	return newResult(0,
		[]string{"Methodology section missing or empty."},
		[]string{"Include a clear methodology section."},
	)
}
