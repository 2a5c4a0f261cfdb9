package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paper-review/internal/config"
)

// errDeploymentNotFound 404：换下一个 api-version 重试
var errDeploymentNotFound = errors.New("deployment 或 api-version 不存在")

// fallbackAPIVersions 配置的版本失败（404）后依次尝试
var fallbackAPIVersions = []string{"2024-10-21", "2024-02-01"}

type AzureOpenAIClient struct {
	Endpoint             string
	APIKey               string
	ChatDeployment       string
	EmbeddingDeployment  string
	ChatAPIVersions      []string
	EmbeddingAPIVersions []string
	Temperature          float64
	MaxTokens            int
	Client               *http.Client
}

func NewAzureOpenAIClient(cfg config.LLMConfig) *AzureOpenAIClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AzureOpenAIClient{
		Endpoint:             strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		APIKey:               cfg.APIKey,
		ChatDeployment:       strings.TrimSpace(cfg.ChatDeployment),
		EmbeddingDeployment:  strings.TrimSpace(cfg.EmbeddingDeployment),
		ChatAPIVersions:      candidateAPIVersions(cfg.ChatAPIVersion),
		EmbeddingAPIVersions: candidateAPIVersions(cfg.EmbeddingAPIVersion),
		Temperature:          0.7,
		MaxTokens:            1500,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func candidateAPIVersions(configured string) []string {
	out := make([]string, 0, 1+len(fallbackAPIVersions))
	for _, v := range append([]string{strings.TrimSpace(configured)}, fallbackAPIVersions...) {
		if v == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Complete chat/completions；404 时依次尝试备用 api-version，其他错误直接返回
func (c *AzureOpenAIClient) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	var messages []chatMessage
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	reqBody := chatCompletionRequest{
		Messages:    messages,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}

	var lastErr error
	for _, version := range c.ChatAPIVersions {
		url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", c.Endpoint, c.ChatDeployment, version)
		var resp chatCompletionResponse
		err := c.post(ctx, url, reqBody, &resp)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("响应中没有 choices")
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err
		if !errors.Is(err, errDeploymentNotFound) {
			break
		}
	}
	return "", fmt.Errorf("Azure chat 调用失败: deployment=%s, endpoint=%s, 已尝试 api-version: %s: %w",
		c.ChatDeployment, c.Endpoint, strings.Join(c.ChatAPIVersions, ", "), lastErr)
}

// Embed 单段文本向量化（长文本切块由 ChunkedEmbedder 负责）
func (c *AzureOpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	var lastErr error
	for _, version := range c.EmbeddingAPIVersions {
		url := fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s", c.Endpoint, c.EmbeddingDeployment, version)
		var resp embeddingResponse
		err := c.post(ctx, url, embeddingRequest{Input: text}, &resp)
		if err == nil {
			if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
				return nil, fmt.Errorf("响应中没有 embedding")
			}
			return resp.Data[0].Embedding, nil
		}
		lastErr = err
		if !errors.Is(err, errDeploymentNotFound) {
			break
		}
	}
	return nil, fmt.Errorf("Azure embeddings 调用失败: deployment=%s, endpoint=%s, 已尝试 api-version: %s: %w",
		c.EmbeddingDeployment, c.Endpoint, strings.Join(c.EmbeddingAPIVersions, ", "), lastErr)
}

func (c *AzureOpenAIClient) post(ctx context.Context, url string, body interface{}, out interface{}) error {
	if c.Endpoint == "" || c.APIKey == "" {
		return errors.New("未配置 Azure OpenAI endpoint 或 api_key")
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return errDeploymentNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		// 尝试解析错误信息
		var errResp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return fmt.Errorf("API返回错误: %d, %s", resp.StatusCode, errResp.Error.Message)
		}
		// 无法解析时返回原始body（截取前500字符避免过长）
		bodyStr := string(body)
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "..."
		}
		return fmt.Errorf("API返回错误: %d, %s", resp.StatusCode, bodyStr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
