package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paper-review/internal/config"

	"google.golang.org/genai"
)

// GenAIClient Gemini 对话 + 向量（provider=genai）
type GenAIClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

func NewGenAIClient(ctx context.Context, cfg config.LLMConfig) (*GenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("未配置 GenAI api_key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 GenAI 客户端失败: %w", err)
	}
	return &GenAIClient{
		client:         client,
		model:          cfg.GenAIModel,
		embeddingModel: cfg.GenAIEmbeddingModel,
	}, nil
}

func (c *GenAIClient) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.7),
		MaxOutputTokens:  1500,
		ResponseMIMEType: "application/json",
	}
	if strings.TrimSpace(systemPrompt) != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("GenAI 生成失败: model=%s: %w", c.model, err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("GenAI 返回空内容: model=%s", c.model)
	}
	return text, nil
}

func (c *GenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI embedding 失败: model=%s: %w", c.embeddingModel, err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("GenAI 未返回 embedding")
	}

	values := result.Embeddings[0].Values
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out, nil
}
