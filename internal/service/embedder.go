package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const maxEmbedCharsPerChunk = 12000

// ChunkedEmbedder 长文本按词边界切块，分别向量化后按字符数加权平均
type ChunkedEmbedder struct {
	base     Embedder
	maxChars int
}

func NewChunkedEmbedder(base Embedder, maxChars int) *ChunkedEmbedder {
	if maxChars <= 0 {
		maxChars = maxEmbedCharsPerChunk
	}
	return &ChunkedEmbedder{base: base, maxChars: maxChars}
}

func (e *ChunkedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	chunks := splitForEmbedding(text, e.maxChars)
	if len(chunks) == 1 {
		return e.base.Embed(ctx, chunks[0])
	}

	vectors := make([][]float64, 0, len(chunks))
	weights := make([]float64, 0, len(chunks))
	total := 0.0
	for i, chunk := range chunks {
		vec, err := e.base.Embed(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("第 %d/%d 块向量化失败: %w", i+1, len(chunks), err)
		}
		w := float64(len(chunk))
		if w < 1 {
			w = 1
		}
		vectors = append(vectors, vec)
		weights = append(weights, w)
		total += w
	}
	return mergeWeighted(vectors, weights, total), nil
}

// mergeWeighted 以第一块的维度为准
func mergeWeighted(vectors [][]float64, weights []float64, total float64) []float64 {
	dim := len(vectors[0])
	merged := make([]float64, dim)
	for i, vec := range vectors {
		w := weights[i] / total
		for j := 0; j < dim && j < len(vec); j++ {
			merged[j] += vec[j] * w
		}
	}
	return merged
}

func splitForEmbedding(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current []string
	currentLen := 0
	for _, word := range strings.Fields(text) {
		wordLen := len(word) + 1
		if len(current) > 0 && currentLen+wordLen > maxChars {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{word}
			currentLen = len(word)
			continue
		}
		current = append(current, word)
		currentLen += wordLen
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	if len(chunks) == 0 {
		return []string{text[:maxChars]}
	}
	return chunks
}

// CachedEmbedder 按内容哈希缓存向量（重新评审同一篇论文时命中）
type CachedEmbedder struct {
	base  Embedder
	cache *lru.Cache[string, []float64]
}

func NewCachedEmbedder(base Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, fmt.Errorf("创建 embedding 缓存失败: %w", err)
	}
	return &CachedEmbedder{base: base, cache: cache}, nil
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := contentHash(text)
	if vec, ok := e.cache.Get(key); ok {
		return copyVector(vec), nil
	}
	vec, err := e.base.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, copyVector(vec))
	return vec, nil
}

func (e *CachedEmbedder) Len() int {
	return e.cache.Len()
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func copyVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
