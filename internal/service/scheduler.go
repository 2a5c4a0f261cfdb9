package service

import (
	"context"
	"fmt"
	"time"

	"paper-review/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RoundStatus 一轮的状态：Pending -> Running -> Joined -> Done
type RoundStatus string

const (
	RoundPending RoundStatus = "Pending"
	RoundRunning RoundStatus = "Running"
	RoundJoined  RoundStatus = "Joined"
	RoundDone    RoundStatus = "Done"
)

// Agents 一轮 fan-out 的四个 agent
type Agents struct {
	Methodology ReviewAgent
	Novelty     NoveltyReviewer
	Citation    ReviewAgent
	Clarity     ReviewAgent
}

// RoundReport 一轮的完整产出
type RoundReport struct {
	Round    int           `json:"round"`
	Status   RoundStatus   `json:"status"`
	State    RoundState    `json:"state"`
	Outcome  CriticOutcome `json:"critic"`
	Decision Decision      `json:"final_decision"`
	// 重试轮未重新调用 agent，直接复用上一轮结果
	Reused   bool          `json:"reused"`
	Duration time.Duration `json:"duration"`
}

type Scheduler struct {
	agents       Agents
	critic       *Critic
	agentTimeout time.Duration
	logger       *zap.Logger
	metrics      *metrics.Metrics

	// 测试用：观察状态迁移
	onTransition func(round int, status RoundStatus)
}

func NewScheduler(agents Agents, critic *Critic, agentTimeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if critic == nil {
		critic = NewCritic(2)
	}
	return &Scheduler{
		agents:       agents,
		critic:       critic,
		agentTimeout: agentTimeout,
		logger:       logger,
		metrics:      m,
	}
}

func (s *Scheduler) Critic() *Critic {
	return s.critic
}

func (s *Scheduler) transition(round int, status RoundStatus) {
	if s.onTransition != nil {
		s.onTransition(round, status)
	}
}

// RunRound 执行一轮并调用一次 critic。reuse 非空时不重新 fan-out，直接用其结果
func (s *Scheduler) RunRound(ctx context.Context, paper Paper, round, retries int, reuse *RoundState) RoundReport {
	start := time.Now()
	report := RoundReport{Round: round, Status: RoundPending}
	s.transition(round, RoundPending)

	log := s.logger.With(zap.String("paper_id", paper.ID), zap.Int("round", round), zap.Int("retries", retries))
	log.Info("round start", zap.Bool("reuse", reuse != nil))

	var state RoundState
	if reuse != nil {
		state = *reuse
		report.Reused = true
	} else {
		report.Status = RoundRunning
		s.transition(round, RoundRunning)
		state = s.FanOut(ctx, paper)
	}
	state.Retries = retries

	report.Status = RoundJoined
	s.transition(round, RoundJoined)
	log.Info("round joined",
		zap.Float64("methodology", state.Methodology.Score),
		zap.Float64("novelty", state.Novelty.Score),
		zap.Float64("citation", state.Citation.Score),
		zap.Float64("clarity", state.Clarity.Score),
		zap.Float64("similarity_max", state.Novelty.SimilarityMax),
	)

	outcome, decision := s.critic.Evaluate(state)
	report.State = state
	report.Outcome = outcome
	report.Decision = decision
	report.Status = RoundDone
	report.Duration = time.Since(start)
	s.transition(round, RoundDone)

	log.Info("critic decision",
		zap.String("status", string(outcome.Status)),
		zap.Int("retry_count", outcome.RetryCount),
		zap.Strings("issues", outcome.Issues),
		zap.String("decision", decision.Decision),
		zap.Float64("average_score", decision.AverageScore),
	)
	s.metrics.IncRound(string(outcome.Status))
	s.metrics.ObserveRound(report.Duration)
	return report
}

// FanOut 并发执行四个 agent，全部返回后才返回（barrier）。
// agent panic 会被恢复并替换为该 agent 的 fallback 结果
func (s *Scheduler) FanOut(ctx context.Context, paper Paper) RoundState {
	var state RoundState
	var g errgroup.Group

	g.Go(func() error {
		state.Methodology = invokeAgent[AgentResult](ctx, s, AgentMethodology, paper, s.agents.Methodology)
		return nil
	})
	g.Go(func() error {
		state.Novelty = invokeAgent[NoveltyResult](ctx, s, AgentNovelty, paper, s.agents.Novelty)
		return nil
	})
	g.Go(func() error {
		state.Citation = invokeAgent[AgentResult](ctx, s, AgentCitation, paper, s.agents.Citation)
		return nil
	})
	g.Go(func() error {
		state.Clarity = invokeAgent[AgentResult](ctx, s, AgentClarity, paper, s.agents.Clarity)
		return nil
	})

	// 每个 goroutine 都返回 nil，Wait 只作为 barrier
	_ = g.Wait()
	return state
}

type reviewer[T any] interface {
	Review(ctx context.Context, paper Paper) T
	Fallback(paper Paper) T
}

func invokeAgent[T any](ctx context.Context, s *Scheduler, name string, paper Paper, agent reviewer[T]) (out T) {
	start := time.Now()
	if s.agentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.agentTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("agent panic, using fallback",
				zap.String("agent", name),
				zap.String("paper_id", paper.ID),
				zap.String("panic", fmt.Sprint(r)),
			)
			s.metrics.IncAgentFallback(name)
			out = safeFallback(s.logger, name, paper, agent)
		}
		s.metrics.ObserveAgent(name, time.Since(start))
	}()

	return agent.Review(ctx, paper)
}

// safeFallback fallback 本身再出错时返回零值结果，保证 join 总有四个结果
func safeFallback[T any](logger *zap.Logger, name string, paper Paper, agent reviewer[T]) (out T) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("agent fallback panic",
				zap.String("agent", name),
				zap.String("paper_id", paper.ID),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	return agent.Fallback(paper)
}
