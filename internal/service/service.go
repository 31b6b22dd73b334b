package service

import (
	"log/slog"

	"group_chat/internal/observability"
	"group_chat/internal/repository"
	"group_chat/pkg/config"
)

type Services struct {
	Hub  *Hub
	Chat *ChatService
}

func NewServices(repos *repository.Repositories, cfg config.ChatConfig, metrics *observability.Metrics, logger *slog.Logger) *Services {
	hub := NewHub(HubConfig{
		DefaultGroup: cfg.DefaultGroup,
		SystemSender: cfg.SystemSender,
		TimeLayout:   cfg.TimeLayout,
		SendBuffer:   cfg.SendBuffer,
	}, metrics, logger)

	return &Services{
		Hub:  hub,
		Chat: NewChatService(hub, repos.Message, cfg, metrics, logger),
	}
}
