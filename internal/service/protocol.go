package service

import (
	"errors"

	"group_chat/internal/models"
)

// 入站動作
const (
	ActionJoinGroup = "join_group"
	ActionSend      = "send"
	ActionEdit      = "edit"
	ActionDelete    = "delete"
	ActionPin       = "pin"
	ActionUnpin     = "unpin"
)

var (
	// ErrMalformed 表示入站消息無法解析、缺少必需字段或動作未知
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownConnection 表示連接已不在註冊表中
	ErrUnknownConnection = errors.New("unknown connection")
)

// Inbound 是客戶端發來的消息，各字段是否必需取決於 Action
type Inbound struct {
	Action         string         `json:"action"`
	Group          string         `json:"group,omitempty"`
	ID             *uint          `json:"id,omitempty"`
	Content        string         `json:"content,omitempty"`
	MsgType        models.MsgType `json:"msg_type,omitempty"`
	ReplyToSender  *string        `json:"reply_to_sender,omitempty"`
	ReplyToContent *string        `json:"reply_to_content,omitempty"`
	ForwardFrom    *string        `json:"forward_from,omitempty"`
}
