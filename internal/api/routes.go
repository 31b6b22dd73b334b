package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"group_chat/internal/api/handlers"
	"group_chat/internal/middleware"
	"group_chat/internal/service"
	"group_chat/pkg/config"
)

const uploadsPath = "/uploads"

func SetupRoutes(r *gin.Engine, services *service.Services, cfg config.ServerConfig, gatherer prometheus.Gatherer, logger *slog.Logger) {
	// 初始化 handlers
	wsHandler := handlers.NewWebSocketHandler(services.Chat, cfg.AllowedOrigins, logger)
	uploadHandler := handlers.NewUploadHandler(cfg.UploadDir, uploadsPath, cfg.MaxUploadMB<<20, logger)
	groupHandler := handlers.NewGroupHandler(services.Chat)

	r.Use(middleware.RequestLogger(logger.With("component", "http")), middleware.Recovery(logger))

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	// WebSocket 連接點
	r.GET("/ws/:username", wsHandler.HandleWebSocket)

	// 文件上傳以及上傳後的靜態訪問
	r.POST("/upload-file", uploadHandler.Upload)
	r.POST("/upload-file/", uploadHandler.Upload)
	r.Static(uploadsPath, cfg.UploadDir)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":      "ok",
				"connections": services.Hub.Count(),
			})
		})

		groups := api.Group("/groups/:group")
		{
			groups.GET("/messages", groupHandler.GetMessages)
			groups.GET("/members", groupHandler.GetMembers)
		}
	}
}
