package service

import (
	"context"
	"fmt"
	"time"

	"paper-review/internal/config"
	"paper-review/internal/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 评审队列长度（超过后 Submit 返回 ErrQueueFull）
const reviewQueueSize = 64

type ServiceContext struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	PaperService *PaperService
	ReviewStore  *ReviewStore
	Runner       *ReviewRunner
	Worker       *ReviewWorker
}

// LLMBackend 同时提供对话和向量化
type LLMBackend interface {
	ChatClient
	Embedder
}

func NewLLMBackend(ctx context.Context, cfg config.LLMConfig) (LLMBackend, error) {
	switch cfg.Provider {
	case "genai":
		return NewGenAIClient(ctx, cfg)
	case "azure", "":
		return NewAzureOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("不支持的 LLM provider: %s", cfg.Provider)
	}
}

func NewServiceContext(ctx context.Context, cfg *config.Config, conn *gorm.DB, logger *zap.Logger, m *metrics.Metrics) (*ServiceContext, error) {
	backend, err := NewLLMBackend(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	return NewServiceContextWithBackend(cfg, conn, backend, logger, m)
}

// NewServiceContextWithBackend 测试里注入假的 LLM 后端
func NewServiceContextWithBackend(cfg *config.Config, conn *gorm.DB, backend LLMBackend, logger *zap.Logger, m *metrics.Metrics) (*ServiceContext, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	embedder, err := NewCachedEmbedder(NewChunkedEmbedder(backend, maxEmbedCharsPerChunk), cfg.Review.EmbeddingCacheSize)
	if err != nil {
		return nil, err
	}
	scorer := NewLLMScorer(backend)
	index := NewSectionIndex(conn)

	agents := Agents{
		Methodology: NewMethodologyAgent(scorer, logger, m),
		Novelty:     NewNoveltyAgent(embedder, index, cfg.Review.NoveltyTopK, cfg.Review.SimilarityThreshold, logger, m),
		Citation:    NewCitationAgent(scorer, logger, m),
		Clarity:     NewClarityAgent(scorer, logger, m),
	}
	// novelty 串行做 embedding + 检索，给两倍的单次调用超时
	agentTimeout := 2 * time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	scheduler := NewScheduler(agents, NewCritic(cfg.Review.MaxRetries), agentTimeout, logger, m)

	store := NewReviewStore(conn)
	runner := NewReviewRunner(scheduler, store, cfg.Review.RerunAgentsOnRetry, logger, m)

	return &ServiceContext{
		Config:       cfg,
		Logger:       logger,
		Metrics:      m,
		PaperService: NewPaperService(conn, embedder, logger),
		ReviewStore:  store,
		Runner:       runner,
		Worker:       NewReviewWorker(runner, cfg.Review.Workers, reviewQueueSize, logger),
	}, nil
}

// Close 等待后台评审结束
func (s *ServiceContext) Close(ctx context.Context) error {
	if s.Worker == nil {
		return nil
	}
	return s.Worker.Shutdown(ctx)
}
