package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"group_chat/internal/models"
	"group_chat/internal/observability"
)

// ConnectionID 唯一標識註冊表中的一個連接
type ConnectionID string

// HubConfig 是連接註冊表的配置
type HubConfig struct {
	DefaultGroup string
	SystemSender string
	TimeLayout   string
	SendBuffer   int
}

// Hub 是連接註冊表，同時負責向群組廣播。
//
// 所有寫操作和廣播都持有同一把互斥鎖，廣播只把數據非阻塞地放進每個接收者的
// 發送隊列，因此持鎖時間很短，並且同一群組內所有連接看到的事件順序一致。
type Hub struct {
	mu      sync.RWMutex
	clients map[ConnectionID]*Client

	cfg     HubConfig
	now     func() time.Time
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewHub 創建並初始化新的連接註冊表
func NewHub(cfg HubConfig, metrics *observability.Metrics, logger *slog.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Hub{
		clients: make(map[ConnectionID]*Client),
		cfg:     cfg,
		now:     time.Now,
		metrics: metrics,
		logger:  logger.With("component", "hub"),
	}
}

// Add 把連接註冊到默認群組，並向該群組廣播加入通知和最新的成員列表
func (h *Hub) Add(conn Conn, username string) *Client {
	client := &Client{
		ID:       ConnectionID(uuid.NewString()),
		Username: username,
		conn:     conn,
		send:     make(chan []byte, h.cfg.SendBuffer),
		group:    h.cfg.DefaultGroup,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.metrics.ConnectionOpened()
	h.logger.Info("connection registered", "conn", client.ID, "user", username, "group", client.group)

	h.sendLocked(client.group, h.systemEvent(client.group, fmt.Sprintf("%s joined", username)))
	h.sendLocked(client.group, models.NewUserListEvent(h.membersLocked(client.group)))
	return client
}

// Remove 註銷連接並通知它最後所在的群組。連接不存在時什麼都不做。
func (h *Hub) Remove(id ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	// 持有寫鎖時關閉，廣播不會再向這個通道寫入
	close(client.send)
	h.metrics.ConnectionClosed()
	h.logger.Info("connection removed", "conn", id, "user", client.Username, "group", client.group)

	h.sendLocked(client.group, h.systemEvent(client.group, fmt.Sprintf("%s left", client.Username)))
	h.sendLocked(client.group, models.NewUserListEvent(h.membersLocked(client.group)))
}

// SwitchGroup 更新連接所在的群組，並刷新新舊兩個群組的成員列表。
// 返回原來的群組；連接不存在時 ok 為 false。
func (h *Hub) SwitchGroup(id ConnectionID, group string) (old string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[id]
	if !ok {
		return "", false
	}
	old = client.group
	client.group = group

	h.sendLocked(old, models.NewUserListEvent(h.membersLocked(old)))
	if group != old {
		h.sendLocked(group, models.NewUserListEvent(h.membersLocked(group)))
	}
	return old, true
}

// Group 返回連接當前所在的群組
func (h *Hub) Group(id ConnectionID) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[id]
	if !ok {
		return "", false
	}
	return client.group, true
}

// MembersOf 返回群組內去重並排序後的用戶名
func (h *Hub) MembersOf(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.membersLocked(group)
}

// Count 返回已註冊的連接數
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send 把 payload 推送給當前在 group 中的每個連接。
// 單個接收者失敗不會影響其他接收者，也不會返回錯誤。
func (h *Hub) Send(group string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendLocked(group, payload)
}

// SendTo 只推送給一個連接，例如歷史記錄
func (h *Hub) SendTo(id ConnectionID, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encode payload", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[id]; ok {
		h.deliverLocked(client, data)
	}
}

func (h *Hub) sendLocked(group string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encode payload", "group", group, "error", err)
		return
	}
	for _, client := range h.clients {
		if client.group == group {
			h.deliverLocked(client, data)
		}
	}
}

// deliverLocked 不會阻塞。隊列已滿說明對端太慢或已斷開，
// 丟棄這條消息並關閉其傳輸層，由該連接自己的讀循環完成註銷。
func (h *Hub) deliverLocked(client *Client, data []byte) {
	select {
	case client.send <- data:
		h.metrics.Delivered()
	default:
		h.metrics.Dropped()
		h.logger.Warn("send queue full, closing connection", "conn", client.ID, "user", client.Username, "group", client.group)
		client.shutdown()
	}
}

func (h *Hub) membersLocked(group string) []string {
	seen := make(map[string]struct{})
	users := []string{}
	for _, client := range h.clients {
		if client.group != group {
			continue
		}
		if _, dup := seen[client.Username]; dup {
			continue
		}
		seen[client.Username] = struct{}{}
		users = append(users, client.Username)
	}
	sort.Strings(users)
	return users
}

func (h *Hub) systemEvent(group, text string) models.MessageEvent {
	return models.NewMessageEvent(models.NewSystemMessage(group, h.cfg.SystemSender, text, h.cfg.TimeLayout, h.now()))
}
