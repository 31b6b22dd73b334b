package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"group_chat/internal/models"
	"group_chat/internal/service"
)

// GroupHandler 提供群組的只讀查詢
type GroupHandler struct {
	chat *service.ChatService
}

func NewGroupHandler(chat *service.ChatService) *GroupHandler {
	return &GroupHandler{chat: chat}
}

// GetMessages 返回群組的完整歷史，與 WebSocket 的 history 內容相同
func (h *GroupHandler) GetMessages(c *gin.Context) {
	messages, err := h.chat.History(c.Request.Context(), c.Param("group"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, models.NewHistoryEvent(messages))
}

// GetMembers 返回群組當前的在線用戶
func (h *GroupHandler) GetMembers(c *gin.Context) {
	c.JSON(http.StatusOK, models.NewUserListEvent(h.chat.Members(c.Param("group"))))
}
