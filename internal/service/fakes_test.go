package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var errFake = errors.New("fake failure")

// fakeScorer 返回固定结果或错误，并记录调用
type fakeScorer struct {
	resp  ScoreResponse
	err   error
	mu    sync.Mutex
	calls []string
}

func (f *fakeScorer) Score(ctx context.Context, prompt, systemPrompt string) (ScoreResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return ScoreResponse{}, f.err
	}
	return f.resp, nil
}

func (f *fakeScorer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeEmbedder 按文本生成确定性向量；vectors 中有的直接返回
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   atomic.Int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	// 按字符类别统计，足够区分测试文本
	vec := make([]float64, 4)
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'm':
			vec[0]++
		case r >= 'n' && r <= 'z':
			vec[1]++
		case r >= '0' && r <= '9':
			vec[2]++
		default:
			vec[3]++
		}
	}
	return vec, nil
}

type fakeSearcher struct {
	results []SimilarSection
	err     error
	calls   atomic.Int32
	lastK   int
}

func (f *fakeSearcher) Search(ctx context.Context, query []float64, topK int, excludePaperID string) ([]SimilarSection, error) {
	f.calls.Add(1)
	f.lastK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// fakeBackend 同时实现 ChatClient 和 Embedder
type fakeBackend struct {
	fakeEmbedder
	reply   string
	chatErr error
	delay   time.Duration
}

func (f *fakeBackend) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.reply, nil
}

// stubAgent 可控延迟 / panic 的 agent
type stubAgent struct {
	result        AgentResult
	fallback      AgentResult
	delay         time.Duration
	panicReview   bool
	panicFallback bool
	// gate 非空时 Review 阻塞到 gate 关闭
	gate <-chan struct{}

	calls   atomic.Int32
	running *atomic.Int32
	peak    *atomic.Int32
}

func (s *stubAgent) Review(ctx context.Context, paper Paper) AgentResult {
	s.calls.Add(1)
	if s.running != nil {
		n := s.running.Add(1)
		defer s.running.Add(-1)
		for {
			old := s.peak.Load()
			if n <= old || s.peak.CompareAndSwap(old, n) {
				break
			}
		}
	}
	if s.gate != nil {
		<-s.gate
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panicReview {
		panic("review exploded")
	}
	return s.result
}

func (s *stubAgent) Fallback(paper Paper) AgentResult {
	if s.panicFallback {
		panic("fallback exploded")
	}
	return s.fallback
}

type stubNovelty struct {
	result      NoveltyResult
	fallback    NoveltyResult
	delay       time.Duration
	panicReview bool
	calls       atomic.Int32
}

func (s *stubNovelty) Review(ctx context.Context, paper Paper) NoveltyResult {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panicReview {
		panic("novelty exploded")
	}
	return s.result
}

func (s *stubNovelty) Fallback(paper Paper) NoveltyResult {
	return s.fallback
}

func scoredAgent(score float64) *stubAgent {
	return &stubAgent{result: AgentResult{Score: score, Issues: []string{}, Suggestions: []string{}}}
}

func scoredNovelty(score, sim float64) *stubNovelty {
	return &stubNovelty{result: NoveltyResult{AgentResult: AgentResult{Score: score}, SimilarityMax: sim}}
}

// fixedAgents 构造一组固定分数的 agent
func fixedAgents(meth, nov, sim, cit, clar float64) (Agents, []*stubAgent, *stubNovelty) {
	m, c, l := scoredAgent(meth), scoredAgent(cit), scoredAgent(clar)
	n := scoredNovelty(nov, sim)
	return Agents{Methodology: m, Novelty: n, Citation: c, Clarity: l}, []*stubAgent{m, c, l}, n
}
