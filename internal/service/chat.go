package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"group_chat/internal/models"
	"group_chat/internal/observability"
	"group_chat/internal/repository"
	"group_chat/pkg/config"
)

// 動作處理結果，用於日誌和指標
const (
	resultOK        = "ok"
	resultIgnored   = "ignored"
	resultMalformed = "malformed"
	resultError     = "error"
	resultThrottled = "throttled"
)

// actionUnknown 是未知動作在指標中的標籤，客戶端不能借此製造新的時間序列
const actionUnknown = "unknown"

// frameLimitFactor 是傳輸層讀取上限相對於 chat.read_limit 的倍數。
// 介於兩者之間的幀作為格式錯誤丟棄，只有超過傳輸層上限的幀才會斷開連接。
const frameLimitFactor = 4

// ChatService 驅動每個連接的協議循環：
// 連接時註冊並私下發送默認群組的歷史，之後逐條處理入站動作，斷開時註銷。
//
// 對同一群組的存儲修改和隨後的廣播在同一個群組鎖內完成，
// 所以群組內所有連接看到的事件順序與存儲提交順序一致。
type ChatService struct {
	hub      *Hub
	messages repository.MessageRepository
	locks    *groupLocks
	cfg      config.ChatConfig
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func NewChatService(hub *Hub, messages repository.MessageRepository, cfg config.ChatConfig, metrics *observability.Metrics, logger *slog.Logger) *ChatService {
	return &ChatService{
		hub:      hub,
		messages: messages,
		locks:    newGroupLocks(),
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With("component", "chat"),
	}
}

// Serve 處理一個連接直到傳輸層關閉或 ctx 被取消，返回時連接已被註銷
func (s *ChatService) Serve(ctx context.Context, conn Conn, username string) {
	client := s.connect(ctx, conn, username)
	log := s.logger.With("conn", client.ID, "user", username)

	go client.writePump(s.cfg.WriteTimeout, s.cfg.PingInterval)

	done := make(chan struct{})
	defer func() {
		close(done)
		s.hub.Remove(client.ID)
		client.shutdown()
	}()
	go func() {
		select {
		case <-ctx.Done():
			client.shutdown()
		case <-done:
		}
	}()

	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit * frameLimitFactor)
	}
	conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		return nil
	})

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket unexpected close", "error", err)
			}
			return
		}

		if limiter != nil && !limiter.Allow() {
			s.metrics.Action("", resultThrottled)
			log.Warn("inbound message throttled")
			continue
		}

		s.handle(ctx, client, data)
	}
}

// History 返回群組的完整歷史
func (s *ChatService) History(ctx context.Context, group string) ([]models.Message, error) {
	return s.messages.ListByGroup(ctx, group)
}

// Members 返回群組當前的在線用戶
func (s *ChatService) Members(group string) []string {
	return s.hub.MembersOf(group)
}

// connect 在默認群組鎖內註冊並發送歷史，保證歷史快照和之後的 new 事件既不重複也不遺漏
func (s *ChatService) connect(ctx context.Context, conn Conn, username string) *Client {
	group := s.cfg.DefaultGroup
	unlock := s.locks.Lock(group)
	defer unlock()

	client := s.hub.Add(conn, username)
	if err := s.sendHistory(ctx, client, group); err != nil {
		s.logger.Error("load history on connect", "conn", client.ID, "user", username, "group", group, "error", err)
	}
	return client
}

func (s *ChatService) sendHistory(ctx context.Context, client *Client, group string) error {
	history, err := s.messages.ListByGroup(ctx, group)
	if err != nil {
		return err
	}
	s.hub.SendTo(client.ID, models.NewHistoryEvent(history))
	return nil
}

// handle 處理一條入站消息。任何錯誤都只影響這一條消息，連接保持打開。
func (s *ChatService) handle(ctx context.Context, client *Client, data []byte) {
	if s.cfg.ReadLimit > 0 && int64(len(data)) > s.cfg.ReadLimit {
		s.finish(client, "", resultMalformed, fmt.Errorf("%w: frame of %d bytes exceeds %d", ErrMalformed, len(data), s.cfg.ReadLimit))
		return
	}

	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		s.finish(client, "", resultMalformed, fmt.Errorf("%w: %v", ErrMalformed, err))
		return
	}

	var (
		applied bool
		err     error
	)
	switch in.Action {
	case ActionJoinGroup:
		applied, err = s.joinGroup(ctx, client, in)
	case ActionSend:
		applied, err = s.send(ctx, client, in)
	case ActionEdit:
		applied, err = s.edit(ctx, client, in)
	case ActionDelete:
		applied, err = s.delete(ctx, client, in)
	case ActionPin:
		applied, err = s.pin(ctx, client, in)
	case ActionUnpin:
		applied, err = s.unpin(ctx, client)
	default:
		err = fmt.Errorf("%w: unknown action %q", ErrMalformed, in.Action)
	}

	switch {
	case errors.Is(err, ErrMalformed):
		s.finish(client, in.Action, resultMalformed, err)
	case err != nil:
		s.finish(client, in.Action, resultError, err)
	case !applied:
		s.finish(client, in.Action, resultIgnored, nil)
	default:
		s.finish(client, in.Action, resultOK, nil)
	}
}

func (s *ChatService) finish(client *Client, action, result string, err error) {
	s.metrics.Action(actionLabel(action), result)
	log := s.logger.With("conn", client.ID, "user", client.Username, "action", action)
	switch result {
	case resultMalformed:
		log.Warn("dropping malformed message", "error", err)
	case resultError:
		log.Error("action failed", "error", err)
	case resultIgnored:
		log.Debug("action had no effect")
	}
}

// actionLabel 把入站動作映射到有限的指標標籤集合
func actionLabel(action string) string {
	switch action {
	case "", ActionJoinGroup, ActionSend, ActionEdit, ActionDelete, ActionPin, ActionUnpin:
		return action
	default:
		return actionUnknown
	}
}

func (s *ChatService) currentGroup(client *Client) (string, error) {
	group, ok := s.hub.Group(client.ID)
	if !ok {
		return "", ErrUnknownConnection
	}
	return group, nil
}

func (s *ChatService) joinGroup(ctx context.Context, client *Client, in Inbound) (bool, error) {
	group := strings.TrimSpace(in.Group)
	if group == "" {
		return false, fmt.Errorf("%w: join_group requires group", ErrMalformed)
	}

	unlock := s.locks.Lock(group)
	defer unlock()

	if _, ok := s.hub.SwitchGroup(client.ID, group); !ok {
		return false, ErrUnknownConnection
	}
	if err := s.sendHistory(ctx, client, group); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ChatService) send(ctx context.Context, client *Client, in Inbound) (bool, error) {
	if in.Content == "" {
		return false, fmt.Errorf("%w: send requires content", ErrMalformed)
	}
	if !in.MsgType.Valid() {
		return false, fmt.Errorf("%w: invalid msg_type %q", ErrMalformed, in.MsgType)
	}

	group, err := s.currentGroup(client)
	if err != nil {
		return false, err
	}
	unlock := s.locks.Lock(group)
	defer unlock()

	msg := &models.Message{
		Sender:         client.Username,
		Content:        in.Content,
		MsgType:        in.MsgType,
		GroupID:        group,
		ReplyToSender:  in.ReplyToSender,
		ReplyToContent: in.ReplyToContent,
		ForwardFrom:    in.ForwardFrom,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return false, err
	}
	s.hub.Send(group, models.NewMessageEvent(*msg))
	return true, nil
}

func (s *ChatService) edit(ctx context.Context, client *Client, in Inbound) (bool, error) {
	if in.ID == nil {
		return false, fmt.Errorf("%w: edit requires id", ErrMalformed)
	}

	group, err := s.currentGroup(client)
	if err != nil {
		return false, err
	}
	unlock := s.locks.Lock(group)
	defer unlock()

	msg, err := s.messages.Edit(ctx, *in.ID, client.Username, in.Content)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.hub.Send(group, models.NewEditEvent(msg.ID, msg.Content))
	return true, nil
}

func (s *ChatService) delete(ctx context.Context, client *Client, in Inbound) (bool, error) {
	if in.ID == nil {
		return false, fmt.Errorf("%w: delete requires id", ErrMalformed)
	}

	group, err := s.currentGroup(client)
	if err != nil {
		return false, err
	}
	unlock := s.locks.Lock(group)
	defer unlock()

	deleted, err := s.messages.Delete(ctx, *in.ID, client.Username)
	if err != nil || !deleted {
		return false, err
	}
	s.hub.Send(group, models.NewDeleteEvent(*in.ID))
	return true, nil
}

func (s *ChatService) pin(ctx context.Context, client *Client, in Inbound) (bool, error) {
	if in.ID == nil {
		return false, fmt.Errorf("%w: pin requires id", ErrMalformed)
	}

	group, err := s.currentGroup(client)
	if err != nil {
		return false, err
	}
	unlock := s.locks.Lock(group)
	defer unlock()

	// 目標不在此群組時，群組原有的置頂也已被清除，用 unpin 讓客戶端同步
	msg, err := s.messages.Pin(ctx, *in.ID, group)
	if errors.Is(err, repository.ErrPinCleared) {
		s.hub.Send(group, models.NewUnpinEvent())
		return false, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.hub.Send(group, models.NewPinEvent(msg.ID, msg.Content))
	return true, nil
}

func (s *ChatService) unpin(ctx context.Context, client *Client) (bool, error) {
	group, err := s.currentGroup(client)
	if err != nil {
		return false, err
	}
	unlock := s.locks.Lock(group)
	defer unlock()

	if err := s.messages.Unpin(ctx, group); err != nil {
		return false, err
	}
	s.hub.Send(group, models.NewUnpinEvent())
	return true, nil
}
