package service

import (
	"context"
	"errors"
	"strings"
)

// 规范化后的 section 名称
const (
	SectionAbstract     = "abstract"
	SectionIntroduction = "introduction"
	SectionMethodology  = "methodology"
	SectionRelatedWork  = "related_work"
	SectionResults      = "results"
	SectionConclusion   = "conclusion"
	SectionReferences   = "references"
	SectionFullText     = "full_text"
)

// 四个评审 agent 的名称（也用作 scores map 的 key 和 metrics label）
const (
	AgentMethodology = "methodology"
	AgentNovelty     = "novelty"
	AgentCitation    = "citation"
	AgentClarity     = "clarity"
)

var (
	ErrPaperNotFound    = errors.New("论文不存在")
	ErrReviewNotFound   = errors.New("评审记录不存在")
	ErrEmptyPaper       = errors.New("论文内容为空")
	ErrReviewInProgress = errors.New("该论文的评审正在进行中")
	ErrQueueFull        = errors.New("评审队列已满")
	ErrWorkerClosed     = errors.New("评审 worker 已关闭")
)

// Sections section 名称 -> 内容；缺失的 key 等价于空字符串
type Sections map[string]string

func (s Sections) Get(name string) string {
	if s == nil {
		return ""
	}
	return s[name]
}

// Names 按固定顺序返回存在的 section 名称
func (s Sections) Names() []string {
	order := []string{
		SectionAbstract, SectionIntroduction, SectionRelatedWork, SectionMethodology,
		SectionResults, SectionConclusion, SectionReferences, SectionFullText,
	}
	out := make([]string, 0, len(s))
	seen := make(map[string]bool, len(s))
	for _, name := range order {
		if _, ok := s[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	for name := range s {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}

// Paper 一次评审 run 的输入，run 期间不可变
type Paper struct {
	ID       string   `json:"paper_id"`
	Sections Sections `json:"sections"`
}

// AgentResult 单个 agent 的评审结果
type AgentResult struct {
	Score       float64  `json:"score"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// NoveltyResult 新颖性结果额外带最大相似度
type NoveltyResult struct {
	AgentResult
	SimilarityMax float64 `json:"similarity_max"`
}

// RoundState 一轮 fan-out/join 的四个结果 + 当前重试次数（0 = 首轮）
type RoundState struct {
	Methodology AgentResult   `json:"methodology_review"`
	Novelty     NoveltyResult `json:"novelty_review"`
	Citation    AgentResult   `json:"citation_review"`
	Clarity     AgentResult   `json:"clarity_review"`
	Retries     int           `json:"retries"`
}

type CriticStatus string

const (
	CriticRetry    CriticStatus = "retry"
	CriticFinalize CriticStatus = "finalize"
)

type CriticOutcome struct {
	Status     CriticStatus `json:"status"`
	Issues     []string     `json:"issues"`
	RetryCount int          `json:"retry_count"`
}

const (
	DecisionAccept      = "Accept"
	DecisionWeakAccept  = "Weak Accept"
	DecisionWeakReject  = "Weak Reject"
	DecisionReject      = "Reject"
	DecisionRejectRetry = "Reject (Retry Needed)"

	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
)

// Decision 每轮都会产出；重试轮为暂定结论
type Decision struct {
	Decision      string             `json:"decision"`
	Confidence    string             `json:"confidence"`
	AverageScore  float64            `json:"average_score"`
	Scores        map[string]float64 `json:"scores"`
	Justification string             `json:"justification"`
}

// ReviewAgent 评审 agent：Review 必须是全函数（不返回错误），Fallback 为纯规则打分
type ReviewAgent interface {
	Review(ctx context.Context, paper Paper) AgentResult
	Fallback(paper Paper) AgentResult
}

type NoveltyReviewer interface {
	Review(ctx context.Context, paper Paper) NoveltyResult
	Fallback(paper Paper) NoveltyResult
}

// ChatClient 大模型对话调用
type ChatClient interface {
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Embedder 文本向量化
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SimilaritySearcher 相似段落检索
type SimilaritySearcher interface {
	Search(ctx context.Context, query []float64, topK int, excludePaperID string) ([]SimilarSection, error)
}

// normalizePaperID 用于 paper_id 比较：去空白 + 小写
func normalizePaperID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
