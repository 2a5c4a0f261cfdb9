package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"paper-review/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// 入库时同时向量化的 section 数
const ingestEmbedConcurrency = 4

type IngestResult struct {
	Paper    *model.Paper `json:"paper"`
	Sections Sections     `json:"-"`
	// 向量化失败的 section（以空向量入库，不参与相似度检索）
	EmbedFailures []string `json:"embed_failures,omitempty"`
}

// PaperService 论文入库与读取
type PaperService struct {
	db       *gorm.DB
	embedder Embedder
	logger   *zap.Logger
}

func NewPaperService(db *gorm.DB, embedder Embedder, logger *zap.Logger) *PaperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperService{db: db, embedder: embedder, logger: logger}
}

// Ingest 清洗 -> 切分 section -> 向量化 -> 入库（paper + 每个 section 一行）
func (s *PaperService) Ingest(ctx context.Context, title, fileName, raw string) (*IngestResult, error) {
	clean := CleanText(raw)
	if clean == "" {
		return nil, ErrEmptyPaper
	}
	sections := ParseSections(clean)

	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSpace(fileName)
	}
	if title == "" {
		title = "Untitled"
	}

	paper := &model.Paper{
		ID:        uuid.NewString(),
		Title:     title,
		FileName:  fileName,
		CharCount: utf8.RuneCountInString(clean),
	}

	rows, failures := s.embedSections(ctx, paper.ID, sections)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(paper).Error; err != nil {
			return fmt.Errorf("保存论文失败: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("保存论文段落失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("paper ingested",
		zap.String("paper_id", paper.ID),
		zap.Strings("sections", sections.Names()),
		zap.Int("embed_failures", len(failures)),
	)
	return &IngestResult{Paper: paper, Sections: sections, EmbedFailures: failures}, nil
}

func (s *PaperService) embedSections(ctx context.Context, paperID string, sections Sections) ([]model.PaperSection, []string) {
	names := sections.Names()
	rows := make([]model.PaperSection, len(names))
	var (
		mu       sync.Mutex
		failures []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestEmbedConcurrency)
	for i, name := range names {
		content := sections[name]
		rows[i] = model.PaperSection{
			ID:          uuid.NewString(),
			PaperID:     paperID,
			SectionName: name,
			Content:     content,
		}
		if s.embedder == nil {
			continue
		}
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, content)
			if err != nil {
				s.logger.Warn("section embedding failed",
					zap.String("paper_id", paperID),
					zap.String("section", name),
					zap.Error(err),
				)
				mu.Lock()
				failures = append(failures, name)
				mu.Unlock()
				return nil
			}
			rows[i].Embedding = model.Vector(vec)
			return nil
		})
	}
	_ = g.Wait()
	return rows, failures
}

func (s *PaperService) Get(ctx context.Context, paperID string) (*model.Paper, []model.PaperSection, error) {
	var paper model.Paper
	if err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(paperID)).First(&paper).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPaperNotFound
		}
		return nil, nil, fmt.Errorf("查询论文失败: %w", err)
	}

	var sections []model.PaperSection
	if err := s.db.WithContext(ctx).
		Select("id", "created_at", "paper_id", "section_name", "content").
		Where("paper_id = ?", paper.ID).
		Order("created_at ASC, id ASC").
		Find(&sections).Error; err != nil {
		return nil, nil, fmt.Errorf("查询论文段落失败: %w", err)
	}
	return &paper, sections, nil
}

// LoadPaper 组装评审输入
func (s *PaperService) LoadPaper(ctx context.Context, paperID string) (Paper, error) {
	paper, rows, err := s.Get(ctx, paperID)
	if err != nil {
		return Paper{}, err
	}
	sections := make(Sections, len(rows))
	for _, row := range rows {
		if _, dup := sections[row.SectionName]; !dup {
			sections[row.SectionName] = row.Content
		}
	}
	return Paper{ID: paper.ID, Sections: sections}, nil
}

func (s *PaperService) List(ctx context.Context, limit int) ([]model.Paper, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var papers []model.Paper
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&papers).Error; err != nil {
		return nil, fmt.Errorf("查询论文列表失败: %w", err)
	}
	return papers, nil
}
