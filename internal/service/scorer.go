package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	ErrNoJSON       = errors.New("模型输出中没有 JSON 对象")
	ErrMissingScore = errors.New("模型输出缺少 score 字段")
)

// ScoreResponse 打分调用的结构化输出（未裁剪）
type ScoreResponse struct {
	Score       float64
	Issues      []string
	Suggestions []string
}

// Scorer 单次打分调用；失败或输出不可解析时返回 error，由 agent 走 fallback
type Scorer interface {
	Score(ctx context.Context, prompt, systemPrompt string) (ScoreResponse, error)
}

// LLMScorer 基于 ChatClient 的打分实现
type LLMScorer struct {
	client ChatClient
}

func NewLLMScorer(client ChatClient) *LLMScorer {
	return &LLMScorer{client: client}
}

func (s *LLMScorer) Score(ctx context.Context, prompt, systemPrompt string) (ScoreResponse, error) {
	if s == nil || s.client == nil {
		return ScoreResponse{}, errors.New("未配置 LLM 客户端")
	}
	content, err := s.client.Complete(ctx, prompt, systemPrompt)
	if err != nil {
		return ScoreResponse{}, fmt.Errorf("LLM 调用失败: %w", err)
	}
	return ParseScoreResponse(content)
}

type rawScore struct {
	Score       *float64          `json:"score"`
	Issues      []json.RawMessage `json:"issues"`
	Suggestions []json.RawMessage `json:"suggestions"`
}

// ParseScoreResponse 从模型文本中解析 {score, issues, suggestions}
func ParseScoreResponse(text string) (ScoreResponse, error) {
	obj, err := ExtractJSON(text)
	if err != nil {
		return ScoreResponse{}, err
	}
	var raw rawScore
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return ScoreResponse{}, fmt.Errorf("解析打分结果失败: %w", err)
	}
	if raw.Score == nil {
		return ScoreResponse{}, ErrMissingScore
	}
	return ScoreResponse{
		Score:       *raw.Score,
		Issues:      stringItems(raw.Issues),
		Suggestions: stringItems(raw.Suggestions),
	}, nil
}

// stringItems 只保留字符串元素（模型偶尔会返回对象）
func stringItems(items []json.RawMessage) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

var codeFenceRe = regexp.MustCompile("^```(?:json)?|```$")

// ExtractJSON 取出模型输出中的第一个 JSON 对象：去掉代码围栏，截取 {...}，必要时用 jsonrepair 修复
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", ErrNoJSON
	}
	if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
		return s, nil
	}

	cleaned := strings.TrimSpace(codeFenceRe.ReplaceAllString(s, ""))
	start := strings.Index(cleaned, "{")
	if start < 0 {
		return "", ErrNoJSON
	}
	candidate := cleaned[start:]
	if end := strings.LastIndex(candidate, "}"); end > 0 {
		block := candidate[:end+1]
		if json.Valid([]byte(block)) {
			return block, nil
		}
		candidate = block
	}

	// 截断或格式错误（单引号、尾逗号等）
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	repaired = strings.TrimSpace(repaired)
	if !strings.HasPrefix(repaired, "{") || !json.Valid([]byte(repaired)) {
		return "", ErrNoJSON
	}
	return repaired, nil
}
