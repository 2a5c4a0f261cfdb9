package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"paper-review/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// review_logs.node_name
const (
	nodeMethodology   = "methodology_node"
	nodeNovelty       = "novelty_node"
	nodeCitation      = "citation_node"
	nodeClarity       = "clarity_node"
	nodeCritic        = "critic_node"
	nodeFinalDecision = "final_decision_node"
)

// ReviewView 供轮询客户端读取的评审结果（由 review_logs 重建）
type ReviewView struct {
	ReviewID      string         `json:"review_id"`
	PaperID       string         `json:"paper_id"`
	Status        string         `json:"status"`
	Verdict       string         `json:"verdict"`
	Notes         string         `json:"notes,omitempty"`
	Rounds        int            `json:"rounds"`
	Methodology   *AgentResult   `json:"methodology_review"`
	Novelty       *NoveltyResult `json:"novelty_review"`
	Citation      *AgentResult   `json:"citation_review"`
	Clarity       *AgentResult   `json:"clarity_review"`
	Critic        *CriticOutcome `json:"critic"`
	FinalDecision *Decision      `json:"final_decision"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Complete 只有最终结论（非 Pending）且四个结果齐全、critic 已定稿时才算完成；
// 重试轮的暂定结论一律视为处理中
func (v *ReviewView) Complete() bool {
	if v == nil || v.FinalDecision == nil {
		return false
	}
	decision := strings.TrimSpace(v.FinalDecision.Decision)
	if decision == "" || strings.EqualFold(decision, model.VerdictPending) {
		return false
	}
	if v.Methodology == nil || v.Novelty == nil || v.Citation == nil || v.Clarity == nil {
		return false
	}
	return v.Critic != nil && v.Critic.Status == CriticFinalize
}

func (v *ReviewView) Failed() bool {
	return v != nil && v.Status == model.ReviewStatusFailed
}

// ReviewStore reviews / review_logs 的读写
type ReviewStore struct {
	db *gorm.DB
}

func NewReviewStore(db *gorm.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

// Create 新建一次评审 run，verdict 为 Pending
func (s *ReviewStore) Create(ctx context.Context, paperID string) (*model.Review, error) {
	review := &model.Review{
		ID:         uuid.NewString(),
		PaperID:    paperID,
		ReviewerID: model.SystemReviewerID,
		Verdict:    model.VerdictPending,
		Status:     model.ReviewStatusProcessing,
	}
	if err := s.db.WithContext(ctx).Create(review).Error; err != nil {
		return nil, fmt.Errorf("创建评审记录失败: %w", err)
	}
	return review, nil
}

// AppendRound 记录一轮的四个结果、critic 输出和（暂定）结论
func (s *ReviewStore) AppendRound(ctx context.Context, reviewID string, report RoundReport) error {
	nodes := []struct {
		name   string
		output interface{}
	}{
		{nodeMethodology, report.State.Methodology},
		{nodeNovelty, report.State.Novelty},
		{nodeCitation, report.State.Citation},
		{nodeClarity, report.State.Clarity},
		{nodeCritic, report.Outcome},
		{nodeFinalDecision, report.Decision},
	}

	logs := make([]model.ReviewLog, 0, len(nodes))
	for _, n := range nodes {
		b, err := json.Marshal(n.output)
		if err != nil {
			return fmt.Errorf("序列化节点输出失败: node=%s: %w", n.name, err)
		}
		logs = append(logs, model.ReviewLog{
			ID:         uuid.NewString(),
			ReviewID:   reviewID,
			Round:      report.Round,
			NodeName:   n.name,
			NodeOutput: string(b),
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&logs).Error; err != nil {
			return fmt.Errorf("保存评审日志失败: %w", err)
		}
		if err := tx.Model(&model.Review{}).
			Where("id = ?", reviewID).
			Updates(map[string]interface{}{
				"rounds":      report.Round,
				"retry_count": report.Outcome.RetryCount,
			}).Error; err != nil {
			return fmt.Errorf("更新评审轮次失败: %w", err)
		}
		return nil
	})
}

// Finalize 写入最终 verdict 和 justification
func (s *ReviewStore) Finalize(ctx context.Context, reviewID string, decision Decision) error {
	err := s.db.WithContext(ctx).
		Model(&model.Review{}).
		Where("id = ?", reviewID).
		Updates(map[string]interface{}{
			"verdict": decision.Decision,
			"notes":   decision.Justification,
			"status":  model.ReviewStatusComplete,
		}).Error
	if err != nil {
		return fmt.Errorf("保存评审结论失败: %w", err)
	}
	return nil
}

func (s *ReviewStore) Fail(ctx context.Context, reviewID, reason string) error {
	err := s.db.WithContext(ctx).
		Model(&model.Review{}).
		Where("id = ?", reviewID).
		Updates(map[string]interface{}{
			"status": model.ReviewStatusFailed,
			"notes":  reason,
		}).Error
	if err != nil {
		return fmt.Errorf("更新评审状态失败: %w", err)
	}
	return nil
}

// Latest 按 paper_id 取最新一次评审并重建结果；不存在时返回 ErrReviewNotFound
func (s *ReviewStore) Latest(ctx context.Context, paperID string) (*ReviewView, error) {
	var review model.Review
	err := s.db.WithContext(ctx).
		Where("paper_id = ?", strings.TrimSpace(paperID)).
		Order("created_at DESC").
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("查询评审记录失败: %w", err)
	}

	var logs []model.ReviewLog
	if err := s.db.WithContext(ctx).
		Where("review_id = ?", review.ID).
		Order("round ASC, created_at ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询评审日志失败: %w", err)
	}

	view := &ReviewView{
		ReviewID:  review.ID,
		PaperID:   review.PaperID,
		Status:    review.Status,
		Verdict:   review.Verdict,
		Notes:     review.Notes,
		Rounds:    review.Rounds,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
	}
	// 按轮次升序覆盖，最终保留最新一轮的输出
	for _, l := range logs {
		if err := applyLog(view, l); err != nil {
			return nil, err
		}
	}

	// 日志缺少结论但 reviews 已有 verdict 时，用 verdict/notes 补一个
	if view.FinalDecision == nil && review.Verdict != "" && !strings.EqualFold(review.Verdict, model.VerdictPending) {
		view.FinalDecision = &Decision{
			Decision:      review.Verdict,
			Confidence:    ConfidenceMedium,
			Scores:        map[string]float64{},
			Justification: review.Notes,
		}
	}
	return view, nil
}

func applyLog(view *ReviewView, l model.ReviewLog) error {
	var target interface{}
	switch l.NodeName {
	case nodeMethodology:
		view.Methodology = &AgentResult{}
		target = view.Methodology
	case nodeNovelty:
		view.Novelty = &NoveltyResult{}
		target = view.Novelty
	case nodeCitation:
		view.Citation = &AgentResult{}
		target = view.Citation
	case nodeClarity:
		view.Clarity = &AgentResult{}
		target = view.Clarity
	case nodeCritic:
		view.Critic = &CriticOutcome{}
		target = view.Critic
	case nodeFinalDecision:
		view.FinalDecision = &Decision{}
		target = view.FinalDecision
	default:
		return nil
	}
	if err := json.Unmarshal([]byte(l.NodeOutput), target); err != nil {
		return fmt.Errorf("解析评审日志失败: node=%s round=%d: %w", l.NodeName, l.Round, err)
	}
	return nil
}
