package service

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"group_chat/internal/models"
)

// event 可以解碼任意出站事件
type event struct {
	Action   models.Action    `json:"action"`
	Message  models.Message   `json:"message"`
	Messages []models.Message `json:"messages"`
	ID       uint             `json:"id"`
	Content  string           `json:"content"`
	Users    []string         `json:"users"`
	Count    int              `json:"count"`
}

func decodeEvent(t *testing.T, data []byte) event {
	t.Helper()
	var e event
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

// drain 取出客戶端隊列中所有已排隊的事件
func drain(t *testing.T, c *Client) []event {
	t.Helper()
	var events []event
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return events
			}
			events = append(events, decodeEvent(t, data))
		default:
			return events
		}
	}
}

type fakeConn struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeConn) ReadMessage() (int, []byte, error) { select {} }
func (f *fakeConn) WriteMessage(int, []byte) error { return nil }
func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(appData string) error) {}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
