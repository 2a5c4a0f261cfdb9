package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	// VerdictPending 评审未完成时 reviews.verdict 的占位值
	VerdictPending = "Pending"

	ReviewStatusProcessing = "processing"
	ReviewStatusComplete   = "complete"
	ReviewStatusFailed     = "failed"

	// SystemReviewerID AI 评审统一使用的 reviewer
	SystemReviewerID = "00000000-0000-0000-0000-000000000001"
)

// Review 一次评审 run（按 paper_id 查询，取最新一条）
type Review struct {
	ID        string         `gorm:"type:varchar(64);primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	PaperID    string `gorm:"type:varchar(64);not null;index" json:"paper_id"`
	ReviewerID string `gorm:"type:varchar(64)" json:"reviewer_id"`
	// 最终结论；finalize 之前保持 Pending
	Verdict string `gorm:"type:varchar(50);default:Pending" json:"verdict"`
	Notes   string `gorm:"type:text" json:"notes"`
	Status  string `gorm:"type:varchar(20);index" json:"status"`
	// 已完成的轮次数（critic 调用次数）
	Rounds     int `json:"rounds"`
	RetryCount int `json:"retry_count"`
}

// ReviewLog 每轮每个节点的输出（JSON），用于重建评审结果
type ReviewLog struct {
	ID        string    `gorm:"type:varchar(64);primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	ReviewID string `gorm:"type:varchar(64);not null;index" json:"review_id"`
	Round    int    `gorm:"index" json:"round"`
	// methodology_node / novelty_node / citation_node / clarity_node / critic_node / final_decision_node
	NodeName   string `gorm:"type:varchar(50);not null" json:"node_name"`
	NodeOutput string `gorm:"type:longtext" json:"node_output"`
}
