package service

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn 是單個客戶端的雙向消息流，*websocket.Conn 滿足此接口
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client 代表註冊表中的一個連接
type Client struct {
	ID       ConnectionID
	Username string

	conn      Conn
	send      chan []byte // 由 Hub 在註銷時關閉
	group     string      // 受 Hub.mu 保護
	closeOnce sync.Once
}

// shutdown 關閉底層傳輸，可以重複調用
func (c *Client) shutdown() {
	if c.conn == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

// writePump 把發送隊列中的數據寫到連接上，並定期發送心跳。
// 隊列被關閉(連接已註銷)或寫入失敗時退出。
func (c *Client) writePump(writeTimeout, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
