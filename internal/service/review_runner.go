package service

import (
	"context"
	"fmt"
	"time"

	"paper-review/internal/metrics"

	"go.uber.org/zap"
)

// ReviewRunResult 一次评审 run 的全部轮次
type ReviewRunResult struct {
	ReviewID string        `json:"review_id"`
	PaperID  string        `json:"paper_id"`
	Rounds   []RoundReport `json:"rounds"`
	Final    RoundReport   `json:"final"`
	Errors   []string      `json:"errors"`
	Duration time.Duration `json:"duration"`
}

type ReviewRunner struct {
	scheduler *Scheduler
	store     *ReviewStore
	// 重试轮是否重新调用四个 agent；false 时 critic 复用上一轮结果、只推进重试计数
	rerunOnRetry bool
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

func NewReviewRunner(scheduler *Scheduler, store *ReviewStore, rerunOnRetry bool, logger *zap.Logger, m *metrics.Metrics) *ReviewRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewRunner{
		scheduler:    scheduler,
		store:        store,
		rerunOnRetry: rerunOnRetry,
		logger:       logger,
		metrics:      m,
	}
}

// Run 循环执行轮次直到 critic 定稿；critic 最多调用 maxRetries+1 次
func (r *ReviewRunner) Run(ctx context.Context, paper Paper) (*ReviewRunResult, error) {
	start := time.Now()
	r.metrics.RunStarted()
	defer r.metrics.RunFinished()

	result := &ReviewRunResult{PaperID: paper.ID}
	if r.store != nil {
		review, err := r.store.Create(ctx, paper.ID)
		if err != nil {
			return nil, err
		}
		result.ReviewID = review.ID
	}

	log := r.logger.With(zap.String("paper_id", paper.ID), zap.String("review_id", result.ReviewID))
	maxRounds := r.scheduler.Critic().MaxRetries() + 1

	var prev *RoundState
	retries := 0
	for round := 1; round <= maxRounds; round++ {
		var reuse *RoundState
		if prev != nil && !r.rerunOnRetry {
			reuse = prev
		}

		report := r.scheduler.RunRound(ctx, paper, round, retries, reuse)
		result.Rounds = append(result.Rounds, report)
		result.Final = report

		if r.store != nil {
			if err := r.store.AppendRound(ctx, result.ReviewID, report); err != nil {
				// 轮次日志写失败不中断评审，最终结论仍会写入
				log.Error("persist round failed", zap.Int("round", round), zap.Error(err))
				result.Errors = append(result.Errors, fmt.Sprintf("round=%d persist failed: %v", round, err))
			}
		}

		if report.Outcome.Status == CriticFinalize {
			break
		}
		state := report.State
		prev = &state
		retries = report.Outcome.RetryCount
	}

	final := result.Final
	result.Duration = time.Since(start)
	if r.store != nil {
		if err := r.store.Finalize(ctx, result.ReviewID, final.Decision); err != nil {
			log.Error("persist decision failed", zap.Error(err))
			_ = r.store.Fail(ctx, result.ReviewID, err.Error())
			return result, err
		}
	}

	r.metrics.IncRun(final.Decision.Decision)
	log.Info("review finished",
		zap.Int("rounds", len(result.Rounds)),
		zap.Int("retry_count", final.Outcome.RetryCount),
		zap.String("decision", final.Decision.Decision),
		zap.String("confidence", final.Decision.Confidence),
		zap.Float64("average_score", final.Decision.AverageScore),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
