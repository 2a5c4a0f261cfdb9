package handler

import (
	"errors"
	"net/http"
	"strconv"

	"paper-review/internal/service"

	"github.com/gin-gonic/gin"
)

type PaperHandler struct {
	papers *service.PaperService
}

func NewPaperHandler(papers *service.PaperService) *PaperHandler {
	return &PaperHandler{papers: papers}
}

// ListPapers 列出已上传的论文
func (h *PaperHandler) ListPapers(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}

	papers, err := h.papers.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"papers": papers,
	})
}

// GetPaper 获取论文及其 section 列表
func (h *PaperHandler) GetPaper(c *gin.Context) {
	paper, sections, err := h.papers.Get(c.Request.Context(), c.Param("paper_id"))
	if err != nil {
		if errors.Is(err, service.ErrPaperNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "论文不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	names := make([]string, 0, len(sections))
	for _, s := range sections {
		names = append(names, s.SectionName)
	}

	c.JSON(http.StatusOK, gin.H{
		"paper":    paper,
		"sections": names,
	})
}
