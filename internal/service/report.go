package service

import (
	"fmt"
	"strings"
	"time"
)

// RenderReviewMarkdown 评审结果的 Markdown 报告（CLI 输出和 /report 接口共用）
func RenderReviewMarkdown(title string, view *ReviewView) string {
	var b strings.Builder
	b.WriteString("# Paper Review Report\n\n")
	if title != "" {
		b.WriteString(fmt.Sprintf("- title: %s\n", title))
	}
	b.WriteString(fmt.Sprintf("- paper_id: %s\n", view.PaperID))
	if view.ReviewID != "" {
		b.WriteString(fmt.Sprintf("- review_id: %s\n", view.ReviewID))
	}
	status := "processing"
	if view.Complete() {
		status = "complete"
	} else if view.Failed() {
		status = "failed"
	}
	b.WriteString(fmt.Sprintf("- status: %s\n", status))
	b.WriteString(fmt.Sprintf("- rounds: %d\n", view.Rounds))
	if !view.UpdatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("- updated_at: %s\n", view.UpdatedAt.Format(time.RFC3339)))
	}
	b.WriteString("\n")

	if d := view.FinalDecision; d != nil {
		b.WriteString("## Decision\n\n")
		label := d.Decision
		if !view.Complete() {
			label += " (tentative)"
		}
		b.WriteString(fmt.Sprintf("**%s** (confidence: %s, average: %.2f/10)\n\n", label, d.Confidence, d.AverageScore))
		if d.Justification != "" {
			b.WriteString(d.Justification + "\n\n")
		}
	}

	b.WriteString("## Scores\n\n")
	b.WriteString("| Criterion | Score |\n")
	b.WriteString("| --- | ---: |\n")
	writeScoreRow(&b, "Methodology", view.Methodology)
	if view.Novelty != nil {
		b.WriteString(fmt.Sprintf("| Novelty | %.1f (max similarity %.2f) |\n", view.Novelty.Score, view.Novelty.SimilarityMax))
	} else {
		b.WriteString("| Novelty | - |\n")
	}
	writeScoreRow(&b, "Citation", view.Citation)
	writeScoreRow(&b, "Clarity", view.Clarity)
	b.WriteString("\n")

	writeFeedback(&b, "Methodology", view.Methodology)
	if view.Novelty != nil {
		writeFeedback(&b, "Novelty", &view.Novelty.AgentResult)
	}
	writeFeedback(&b, "Citation", view.Citation)
	writeFeedback(&b, "Clarity", view.Clarity)

	if c := view.Critic; c != nil && len(c.Issues) > 0 {
		b.WriteString("## Critic\n\n")
		b.WriteString(fmt.Sprintf("- status: %s\n- retry_count: %d\n\n", c.Status, c.RetryCount))
		for _, issue := range c.Issues {
			b.WriteString(fmt.Sprintf("- %s\n", issue))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeScoreRow(b *strings.Builder, name string, r *AgentResult) {
	if r == nil {
		b.WriteString(fmt.Sprintf("| %s | - |\n", name))
		return
	}
	b.WriteString(fmt.Sprintf("| %s | %.1f |\n", name, r.Score))
}

func writeFeedback(b *strings.Builder, name string, r *AgentResult) {
	if r == nil || (len(r.Issues) == 0 && len(r.Suggestions) == 0) {
		return
	}
	b.WriteString(fmt.Sprintf("### %s\n\n", name))
	if len(r.Issues) > 0 {
		b.WriteString("Issues:\n\n")
		for _, s := range r.Issues {
			b.WriteString(fmt.Sprintf("- %s\n", s))
		}
		b.WriteString("\n")
	}
	if len(r.Suggestions) > 0 {
		b.WriteString("Suggestions:\n\n")
		for _, s := range r.Suggestions {
			b.WriteString(fmt.Sprintf("- %s\n", s))
		}
		b.WriteString("\n")
	}
}
