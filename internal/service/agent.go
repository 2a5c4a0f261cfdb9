package service

import (
	"math"
	"strings"
	"unicode/utf8"

	"paper-review/internal/metrics"

	"go.uber.org/zap"
)

const maxListItems = 6

// agentBase 四个 agent 共用：打分调用 + 降级日志/指标
type agentBase struct {
	name    string
	scorer  Scorer
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func newAgentBase(name string, scorer Scorer, logger *zap.Logger, m *metrics.Metrics) agentBase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return agentBase{
		name:    name,
		scorer:  scorer,
		logger:  logger.With(zap.String("agent", name)),
		metrics: m,
	}
}

func (a agentBase) noteFallback(paperID string, err error) {
	a.logger.Warn("agent fallback", zap.String("paper_id", paperID), zap.Error(err))
	a.metrics.IncAgentFallback(a.name)
}

// fromScore 外部打分结果：score 裁剪到 [0,10] 并保留一位小数，列表最多 6 条
func fromScore(resp ScoreResponse) AgentResult {
	return newResult(round1(clamp(resp.Score, 0, 10)), resp.Issues, resp.Suggestions)
}

func newResult(score float64, issues, suggestions []string) AgentResult {
	return AgentResult{
		Score:       score,
		Issues:      truncateList(issues, maxListItems),
		Suggestions: truncateList(suggestions, maxListItems),
	}
}

func truncateList(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// excerpt 按字符（rune）截取前 n 个
func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
