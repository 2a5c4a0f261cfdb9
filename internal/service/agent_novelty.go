package service

import (
	"context"
	"fmt"
	"strings"

	"paper-review/internal/metrics"

	"go.uber.org/zap"
)

const (
	DefaultNoveltyTopK         = 10
	DefaultSimilarityThreshold = 0.80
)

// NoveltyAgent 用 abstract + introduction 的向量在历史论文段落中找最近邻
type NoveltyAgent struct {
	agentBase
	embedder  Embedder
	index     SimilaritySearcher
	topK      int
	threshold float64
}

func NewNoveltyAgent(embedder Embedder, index SimilaritySearcher, topK int, threshold float64, logger *zap.Logger, m *metrics.Metrics) *NoveltyAgent {
	if topK <= 0 {
		topK = DefaultNoveltyTopK
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &NoveltyAgent{
		agentBase: newAgentBase(AgentNovelty, nil, logger, m),
		embedder:  embedder,
		index:     index,
		topK:      topK,
		threshold: threshold,
	}
}

func noveltyQuery(paper Paper) string {
	return strings.TrimSpace(paper.Sections.Get(SectionAbstract) + "\n" + paper.Sections.Get(SectionIntroduction))
}

func (a *NoveltyAgent) Review(ctx context.Context, paper Paper) NoveltyResult {
	query := noveltyQuery(paper)
	if query == "" {
		return unanalyzableNovelty()
	}
	if a.embedder == nil || a.index == nil {
		a.noteFallback(paper.ID, fmt.Errorf("未配置 embedding 或相似度索引"))
		return a.Fallback(paper)
	}

	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		a.noteFallback(paper.ID, fmt.Errorf("生成查询向量失败: %w", err))
		return a.Fallback(paper)
	}
	results, err := a.index.Search(ctx, vec, a.topK, paper.ID)
	if err != nil {
		a.noteFallback(paper.ID, fmt.Errorf("相似度检索失败: %w", err))
		return a.Fallback(paper)
	}
	results = excludePaper(results, paper.ID)

	if len(results) == 0 {
		// 语料中没有可比较的论文：按高新颖性处理
		return NoveltyResult{
			AgentResult: newResult(9, nil, []string{
				"First paper in the system - novelty cannot be compared.",
				"Consider adding more context about the state of the field.",
			}),
			SimilarityMax: 0,
		}
	}

	maxSim := 0.0
	for _, r := range results {
		if r.Similarity > maxSim {
			maxSim = r.Similarity
		}
	}
	maxSim = clamp(maxSim, 0, 1)

	a.logger.Debug("novelty search",
		zap.String("paper_id", paper.ID),
		zap.Int("hits", len(results)),
		zap.Float64("similarity_max", maxSim),
	)

	if maxSim > a.threshold {
		return NoveltyResult{
			AgentResult: newResult(3,
				[]string{fmt.Sprintf("High similarity (%.2f) with existing academic work.", maxSim)},
				[]string{
					"Clearly articulate how this work differs from existing literature.",
					"Emphasize unique contributions or novel methodology.",
				}),
			SimilarityMax: round2(maxSim),
		}
	}
	return NoveltyResult{
		AgentResult: newResult(8, nil, []string{
			"Highlight the novelty explicitly in the introduction.",
			"Compare contributions clearly against prior work.",
		}),
		SimilarityMax: round2(maxSim),
	}
}

// Fallback 检索不可用时给中性分，不把"无法比较"当成高新颖性
func (a *NoveltyAgent) Fallback(paper Paper) NoveltyResult {
	if noveltyQuery(paper) == "" {
		return unanalyzableNovelty()
	}
	return NoveltyResult{
		AgentResult: newResult(5,
			[]string{"Novelty comparison unavailable; neutral score applied."},
			[]string{"Re-run the review once the similarity corpus is reachable."}),
		SimilarityMax: 0,
	}
}

// unanalyzableNovelty abstract 和 introduction 都为空：按最大重合处理
func unanalyzableNovelty() NoveltyResult {
	return NoveltyResult{
		AgentResult: newResult(0,
			[]string{"No abstract or introduction found for novelty analysis."},
			[]string{"Ensure the paper includes an abstract and introduction."}),
		SimilarityMax: 1.0,
	}
}

func excludePaper(results []SimilarSection, paperID string) []SimilarSection {
	exclude := normalizePaperID(paperID)
	if exclude == "" {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if normalizePaperID(r.PaperID) == exclude {
			continue
		}
		out = append(out, r)
	}
	return out
}
