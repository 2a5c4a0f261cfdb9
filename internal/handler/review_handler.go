package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"paper-review/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 上传文本的大小上限
const maxUploadBytes = 10 << 20

type ReviewHandler struct {
	papers *service.PaperService
	store  *service.ReviewStore
	worker *service.ReviewWorker
	logger *zap.Logger
}

func NewReviewHandler(papers *service.PaperService, store *service.ReviewStore, worker *service.ReviewWorker, logger *zap.Logger) *ReviewHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewHandler{
		papers: papers,
		store:  store,
		worker: worker,
		logger: logger,
	}
}

// Upload 上传论文文本（multipart file 或 JSON {title, text}），入库后提交后台评审
func (h *ReviewHandler) Upload(c *gin.Context) {
	title, fileName, text, err := readUpload(c)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errUnsupportedFile) {
			status = http.StatusUnsupportedMediaType
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	result, err := h.papers.Ingest(c.Request.Context(), title, fileName, text)
	if err != nil {
		if errors.Is(err, service.ErrEmptyPaper) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	paper := service.Paper{ID: result.Paper.ID, Sections: result.Sections}
	if err := h.worker.Submit(paper); err != nil {
		h.logger.Warn("submit review failed", zap.String("paper_id", paper.ID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"paper_id": paper.ID,
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"paper_id":        paper.ID,
		"title":           result.Paper.Title,
		"sections_stored": result.Sections.Names(),
		"embed_failures":  result.EmbedFailures,
		"status":          "processing",
	})
}

// StartReview 对已入库的论文重新发起评审
func (h *ReviewHandler) StartReview(c *gin.Context) {
	paper, err := h.papers.LoadPaper(c.Request.Context(), c.Param("paper_id"))
	if err != nil {
		if errors.Is(err, service.ErrPaperNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "论文不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.worker.Submit(paper); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, service.ErrReviewInProgress) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"paper_id": paper.ID, "error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"paper_id": paper.ID,
		"status":   "processing",
	})
}

// GetReview 获取最新一次评审（含四项结果、critic 和结论）
func (h *ReviewHandler) GetReview(c *gin.Context) {
	view, err := h.store.Latest(c.Request.Context(), c.Param("paper_id"))
	if err != nil {
		if errors.Is(err, service.ErrReviewNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetStatus 轮询接口：没有评审记录 50，处理中 75，完成 100。
// 重新评审排队或执行期间，旧的结论不算完成
func (h *ReviewHandler) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()
	paperID := c.Param("paper_id")

	view, err := h.store.Latest(ctx, paperID)
	if err != nil {
		if !errors.Is(err, service.ErrReviewNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if _, _, perr := h.papers.Get(ctx, paperID); perr != nil {
			if errors.Is(perr, service.ErrPaperNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "论文不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": perr.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "processing", "progress": 50})
		return
	}

	switch {
	case h.worker.InFlight(paperID):
		c.JSON(http.StatusOK, gin.H{"status": "processing", "progress": 75})
	case view.Complete():
		c.JSON(http.StatusOK, gin.H{"status": "complete", "progress": 100, "review": view})
	case view.Failed():
		c.JSON(http.StatusOK, gin.H{"status": "failed", "progress": 100, "error": view.Notes})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "processing", "progress": 75})
	}
}

// GetReport Markdown 格式的评审报告
func (h *ReviewHandler) GetReport(c *gin.Context) {
	ctx := c.Request.Context()
	view, err := h.store.Latest(ctx, c.Param("paper_id"))
	if err != nil {
		if errors.Is(err, service.ErrReviewNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	title := ""
	if paper, _, err := h.papers.Get(ctx, view.PaperID); err == nil {
		title = paper.Title
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(service.RenderReviewMarkdown(title, view)))
}

var errUnsupportedFile = errors.New("仅支持纯文本或 Markdown 文件（PDF 请先转换为文本）")

func readUpload(c *gin.Context) (title, fileName, text string, err error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return "", "", "", fmt.Errorf("缺少上传文件: %w", err)
		}
		switch strings.ToLower(filepath.Ext(fh.Filename)) {
		case "", ".txt", ".md", ".markdown", ".text":
		default:
			return "", "", "", errUnsupportedFile
		}
		if fh.Size > maxUploadBytes {
			return "", "", "", fmt.Errorf("文件过大: %d bytes", fh.Size)
		}
		f, err := fh.Open()
		if err != nil {
			return "", "", "", fmt.Errorf("读取上传文件失败: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			return "", "", "", fmt.Errorf("读取上传文件失败: %w", err)
		}
		if !utf8.Valid(data) {
			return "", "", "", errUnsupportedFile
		}
		return c.PostForm("title"), fh.Filename, string(data), nil
	}

	var req struct {
		Title string `json:"title"`
		Text  string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", "", "", err
	}
	return req.Title, "", req.Text, nil
}
