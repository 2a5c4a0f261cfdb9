package router

import (
	"net/http"
	"time"

	"paper-review/internal/handler"
	"paper-review/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func SetupRouter(svc *service.ServiceContext) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(svc.Logger))
	r.Use(gin.Recovery())

	// CORS：未配置来源时允许所有
	corsConfig := cors.DefaultConfig()
	if origins := svc.Config.Server.CORSOrigins; len(origins) > 0 {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", "Cache-Control"}
	r.Use(cors.New(corsConfig))

	// 初始化handlers
	reviewHandler := handler.NewReviewHandler(svc.PaperService, svc.ReviewStore, svc.Worker, svc.Logger)
	paperHandler := handler.NewPaperHandler(svc.PaperService)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "paper-review API is running"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API路由
	api := r.Group("/api")
	{
		api.POST("/upload", reviewHandler.Upload)

		// 评审相关
		review := api.Group("/review")
		{
			review.POST("/:paper_id", reviewHandler.StartReview)
			review.GET("/:paper_id", reviewHandler.GetReview)
			review.GET("/:paper_id/status", reviewHandler.GetStatus)
			review.GET("/:paper_id/report", reviewHandler.GetReport)
		}

		// 论文相关
		papers := api.Group("/papers")
		{
			papers.GET("", paperHandler.ListPapers)
			papers.GET("/:paper_id", paperHandler.GetPaper)
		}
	}

	return r
}

// requestLogger 用 zap 记录访问日志
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
