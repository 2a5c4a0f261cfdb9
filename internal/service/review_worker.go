package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ReviewWorker 后台评审池：提交立即返回，评审在独立 goroutine 中执行，不支持取消
type ReviewWorker struct {
	runner *ReviewRunner
	logger *zap.Logger
	jobs   chan Paper

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func NewReviewWorker(runner *ReviewRunner, workers, queueSize int, logger *zap.Logger) *ReviewWorker {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &ReviewWorker{
		runner:   runner,
		logger:   logger,
		jobs:     make(chan Paper, queueSize),
		inflight: make(map[string]struct{}),
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.loop(i)
	}
	return w
}

// Submit 非阻塞提交；同一篇论文已在队列或执行中时返回 ErrReviewInProgress
func (w *ReviewWorker) Submit(paper Paper) error {
	key := normalizePaperID(paper.ID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWorkerClosed
	}
	if _, ok := w.inflight[key]; ok {
		return ErrReviewInProgress
	}
	select {
	case w.jobs <- paper:
		w.inflight[key] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *ReviewWorker) InFlight(paperID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.inflight[normalizePaperID(paperID)]
	return ok
}

func (w *ReviewWorker) loop(id int) {
	defer w.wg.Done()
	for paper := range w.jobs {
		w.run(id, paper)
	}
}

func (w *ReviewWorker) run(id int, paper Paper) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("review run panic",
				zap.Int("worker", id),
				zap.String("paper_id", paper.ID),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
		w.mu.Lock()
		delete(w.inflight, normalizePaperID(paper.ID))
		w.mu.Unlock()
	}()

	// 与请求生命周期无关：run 一旦开始就执行到结束
	if _, err := w.runner.Run(context.Background(), paper); err != nil {
		w.logger.Error("review run failed",
			zap.Int("worker", id),
			zap.String("paper_id", paper.ID),
			zap.Error(err),
		)
	}
}

// Shutdown 停止接收新任务并等待队列中的评审完成
func (w *ReviewWorker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("等待评审 worker 退出超时: %w", ctx.Err())
	}
}
