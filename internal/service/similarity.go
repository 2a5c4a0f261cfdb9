package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"paper-review/internal/model"

	"gorm.io/gorm"
)

// SimilarSection 检索命中的段落
type SimilarSection struct {
	SectionID   string  `json:"section_id"`
	PaperID     string  `json:"paper_id"`
	SectionName string  `json:"section_name"`
	Similarity  float64 `json:"similarity"`
	Content     string  `json:"content"`
}

// CosineSimilarity 维度不一致时只比较公共前缀；任一向量范数为 0 时返回 0
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// SectionIndex 基于 paper_sections 表的相似度检索（全表扫描 + 内存排序）
type SectionIndex struct {
	db *gorm.DB
}

func NewSectionIndex(db *gorm.DB) *SectionIndex {
	return &SectionIndex{db: db}
}

// Search 返回相似度降序的前 topK 条；excludePaperID 的段落在 SQL 和结果集上各过滤一次。
// 语料为空时返回空切片而不是错误
func (i *SectionIndex) Search(ctx context.Context, query []float64, topK int, excludePaperID string) ([]SimilarSection, error) {
	if topK <= 0 {
		return []SimilarSection{}, nil
	}
	exclude := normalizePaperID(excludePaperID)

	q := i.db.WithContext(ctx).
		Model(&model.PaperSection{}).
		Select("id", "paper_id", "section_name", "content", "embedding")
	if exclude != "" {
		q = q.Where("LOWER(TRIM(paper_id)) <> ?", exclude)
	}

	var rows []model.PaperSection
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询段落向量失败: %w", err)
	}

	scored := make([]SimilarSection, 0, len(rows))
	for _, row := range rows {
		if exclude != "" && normalizePaperID(row.PaperID) == exclude {
			continue
		}
		// 空向量或无法解析的向量不参与比较
		if len(row.Embedding) == 0 {
			continue
		}
		scored = append(scored, SimilarSection{
			SectionID:   row.ID,
			PaperID:     row.PaperID,
			SectionName: row.SectionName,
			Similarity:  CosineSimilarity(query, row.Embedding),
			Content:     row.Content,
		})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Similarity > scored[b].Similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
