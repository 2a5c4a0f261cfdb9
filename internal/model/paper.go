package model

import (
	"time"

	"gorm.io/gorm"
)

// Paper 上传的论文
type Paper struct {
	ID        string         `gorm:"type:varchar(64);primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Title string `gorm:"type:varchar(500)" json:"title"`
	// 原始文件名（CLI/上传）
	FileName string `gorm:"type:varchar(500)" json:"file_name"`
	// 清洗后的全文长度，仅用于展示
	CharCount int `json:"char_count"`
}

// PaperSection 论文分段 + 向量（新颖性检索的语料）
// 一篇论文对应多条记录（每个 section 一条）
type PaperSection struct {
	ID        string    `gorm:"type:varchar(64);primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	PaperID     string `gorm:"type:varchar(64);not null;index" json:"paper_id"`
	SectionName string `gorm:"type:varchar(50);not null" json:"section_name"`
	Content     string `gorm:"type:longtext" json:"content"`
	// 向量以 JSON 数组存储；维度由 embedding provider 决定
	Embedding Vector `gorm:"type:longtext" json:"-"`
}
