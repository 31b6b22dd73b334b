package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UploadHandler 接收圖片和語音文件，只返回可供消息引用的 URL
type UploadHandler struct {
	dir       string
	urlPrefix string
	maxBytes  int64
	logger    *slog.Logger
}

func NewUploadHandler(dir, urlPrefix string, maxBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
		logger:    logger.With("component", "upload"),
	}
}

// Upload 保存 multipart 字段 "file"，文件名為隨機 UUID 加原擴展名
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		h.logger.Error("create upload dir", "dir", h.dir, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, filepath.Join(h.dir, name)); err != nil {
		h.logger.Error("save upload", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	h.logger.Info("file uploaded", "name", name, "size", file.Size)
	c.JSON(http.StatusOK, gin.H{"url": path.Join(h.urlPrefix, name)})
}
