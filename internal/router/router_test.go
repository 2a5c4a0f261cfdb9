package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"paper-review/internal/config"
	"paper-review/internal/db"
	"paper-review/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPaper = `Abstract
We present an automated reviewer for conference submissions.

1. Introduction
Peer review does not scale with submission volume.

2. Related Work
Earlier systems (Kim, 2023) scored papers with handcrafted features.

3. Methodology
We evaluate four agents on a held-out dataset against two baselines.

4. Conclusion
Automated review is feasible.

References
[1] Kim. Reviewing at scale. 2023.
`

// stubBackend 固定返回高分，向量为常量
type stubBackend struct{}

func (stubBackend) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return "```json\n{\"score\": 8.6, \"issues\": [], \"suggestions\": [\"Add ablations.\"]}\n```", nil
}

func (stubBackend) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{float64(len(text)%7) + 1, 1, 0.5}, nil
}

// gatedBackend 打开 blocked 后 Complete 阻塞到 gate 关闭
type gatedBackend struct {
	stubBackend
	blocked atomic.Bool
	gate    chan struct{}
}

func (b *gatedBackend) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if b.blocked.Load() {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return b.stubBackend.Complete(ctx, prompt, systemPrompt)
}

func newTestServer(t *testing.T) (*gin.Engine, *service.ServiceContext) {
	return newTestServerWithBackend(t, stubBackend{})
}

func newTestServerWithBackend(t *testing.T, backend service.LLMBackend) (*gin.Engine, *service.ServiceContext) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.OpenMemory()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.ApplyDefaults()
	svc, err := service.NewServiceContextWithBackend(&cfg, conn, backend, nil, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = svc.Close(context.Background())
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return SetupRouter(svc), svc
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t)
	w := doJSON(t, r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "message")
}

func TestUploadAndPollUntilComplete(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/upload", map[string]string{"title": "Auto Review", "text": testPaper})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	paperID, _ := body["paper_id"].(string)
	require.NotEmpty(t, paperID)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, "Auto Review", body["title"])
	assert.Contains(t, body["sections_stored"], "methodology")

	var status map[string]any
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/review/"+paperID+"/status", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			return false
		}
		status = map[string]any{}
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			return false
		}
		return status["status"] == "complete"
	}, 5*time.Second, 20*time.Millisecond)
	assert.EqualValues(t, 100, status["progress"])

	w = doJSON(t, r, http.MethodGet, "/api/review/"+paperID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	review := decode(t, w)
	decision, ok := review["final_decision"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, service.DecisionAccept, decision["decision"])
	for _, key := range []string{"methodology_review", "novelty_review", "citation_review", "clarity_review", "critic"} {
		assert.NotNil(t, review[key], key)
	}

	w = doJSON(t, r, http.MethodGet, "/api/review/"+paperID+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/markdown"))
	assert.Contains(t, w.Body.String(), "- title: Auto Review")
	assert.Contains(t, w.Body.String(), "**Accept**")

	w = doJSON(t, r, http.MethodGet, "/api/papers/"+paperID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["sections"], "references")

	w = doJSON(t, r, http.MethodGet, "/api/papers?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["papers"], 1)

	// 重新评审
	w = doJSON(t, r, http.MethodPost, "/api/review/"+paperID, nil)
	assert.Contains(t, []int{http.StatusAccepted, http.StatusConflict}, w.Code)
}

func TestMultipartUpload(t *testing.T) {
	r, _ := newTestServer(t)

	upload := func(name, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, _ = fw.Write([]byte(content))
		require.NoError(t, mw.WriteField("title", "From File"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := upload("paper.md", testPaper)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "From File", decode(t, w)["title"])

	w = upload("paper.pdf", "%PDF-1.7")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = upload("paper.txt", "   \n\n  ")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadRequiresText(t *testing.T) {
	r, _ := newTestServer(t)
	w := doJSON(t, r, http.MethodPost, "/api/upload", map[string]string{"title": "no text"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w), "error")
}

func TestUnknownPaper(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/api/review/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Review not found", decode(t, w)["error"])

	w = doJSON(t, r, http.MethodGet, "/api/review/missing/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/review/missing/report", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/review/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/papers/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusBeforeReviewStarts(t *testing.T) {
	r, svc := newTestServer(t)

	// 只入库不提交评审
	res, err := svc.PaperService.Ingest(context.Background(), "quiet", "", testPaper)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/api/review/"+res.Paper.ID+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "processing", body["status"])
	assert.EqualValues(t, 50, body["progress"])
}

func TestStatusProcessingWhileReReviewQueued(t *testing.T) {
	backend := &gatedBackend{gate: make(chan struct{})}
	r, svc := newTestServerWithBackend(t, backend)
	ctx := context.Background()

	res, err := svc.PaperService.Ingest(ctx, "rerun", "", testPaper)
	require.NoError(t, err)
	paper, err := svc.PaperService.LoadPaper(ctx, res.Paper.ID)
	require.NoError(t, err)
	_, err = svc.Runner.Run(ctx, paper)
	require.NoError(t, err)

	statusPath := "/api/review/" + res.Paper.ID + "/status"
	w := doJSON(t, r, http.MethodGet, statusPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "complete", decode(t, w)["status"])

	// 新一轮评审卡在打分调用上，上一轮的结论仍在库里
	backend.blocked.Store(true)
	released := false
	release := func() {
		if !released {
			released = true
			close(backend.gate)
		}
	}
	defer release()

	w = doJSON(t, r, http.MethodPost, "/api/review/"+res.Paper.ID, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, statusPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "processing", body["status"])
	assert.EqualValues(t, 75, body["progress"])
	assert.NotContains(t, body, "review")

	release()
	assert.Eventually(t, func() bool {
		return !svc.Worker.InFlight(res.Paper.ID)
	}, 5*time.Second, 10*time.Millisecond)

	w = doJSON(t, r, http.MethodGet, statusPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "complete", decode(t, w)["status"])
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/upload", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
