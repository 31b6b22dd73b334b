package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group_chat/internal/logger"
	"group_chat/internal/models"
)

func newTestHub(buffer int) *Hub {
	hub := NewHub(HubConfig{
		DefaultGroup: "general",
		SystemSender: "System",
		TimeLayout:   "15:04",
		SendBuffer:   buffer,
	}, nil, logger.Discard())
	hub.now = func() time.Time { return time.Date(2024, 5, 1, 18, 5, 0, 0, time.UTC) }
	return hub
}

func TestHubAddAnnouncesArrival(t *testing.T) {
	hub := newTestHub(16)
	alice := hub.Add(nil, "alice")

	events := drain(t, alice)
	require.Len(t, events, 2)

	assert.Equal(t, models.ActionNew, events[0].Action)
	assert.Equal(t, models.MsgTypeSystem, events[0].Message.MsgType)
	assert.Equal(t, uint(0), events[0].Message.ID)
	assert.Equal(t, "System", events[0].Message.Sender)
	assert.Equal(t, "alice joined", events[0].Message.Content)
	assert.Equal(t, "18:05", events[0].Message.Time)
	assert.False(t, events[0].Message.IsPinned)

	assert.Equal(t, models.ActionUserList, events[1].Action)
	assert.Equal(t, []string{"alice"}, events[1].Users)
	assert.Equal(t, 1, events[1].Count)

	group, ok := hub.Group(alice.ID)
	assert.True(t, ok)
	assert.Equal(t, "general", group)
}

func TestHubMembersAreDeduplicated(t *testing.T) {
	hub := newTestHub(16)
	hub.Add(nil, "bob")
	hub.Add(nil, "alice")
	hub.Add(nil, "alice")

	assert.Equal(t, []string{"alice", "bob"}, hub.MembersOf("general"))
	assert.Equal(t, 3, hub.Count())
	assert.Empty(t, hub.MembersOf("tech"))
}

func TestHubSwitchGroupRefreshesBothGroups(t *testing.T) {
	hub := newTestHub(16)
	alice := hub.Add(nil, "alice")
	bob := hub.Add(nil, "bob")
	carol := hub.Add(nil, "carol")
	_, ok := hub.SwitchGroup(carol.ID, "tech")
	require.True(t, ok)
	drain(t, alice)
	drain(t, bob)
	drain(t, carol)

	old, ok := hub.SwitchGroup(bob.ID, "tech")
	require.True(t, ok)
	assert.Equal(t, "general", old)

	aliceEvents := drain(t, alice)
	require.Len(t, aliceEvents, 1)
	assert.Equal(t, models.ActionUserList, aliceEvents[0].Action)
	assert.Equal(t, []string{"alice"}, aliceEvents[0].Users)

	carolEvents := drain(t, carol)
	require.Len(t, carolEvents, 1)
	assert.Equal(t, []string{"bob", "carol"}, carolEvents[0].Users)
	assert.Equal(t, 2, carolEvents[0].Count)

	bobEvents := drain(t, bob)
	require.Len(t, bobEvents, 1)
	assert.Equal(t, []string{"bob", "carol"}, bobEvents[0].Users)

	_, ok = hub.SwitchGroup("missing", "tech")
	assert.False(t, ok)
}

func TestHubSendIsScopedToGroup(t *testing.T) {
	hub := newTestHub(16)
	alice := hub.Add(nil, "alice")
	bob := hub.Add(nil, "bob")
	carol := hub.Add(nil, "carol")
	hub.SwitchGroup(carol.ID, "tech")
	drain(t, alice)
	drain(t, bob)
	drain(t, carol)

	hub.Send("general", models.NewDeleteEvent(7))

	for _, c := range []*Client{alice, bob} {
		events := drain(t, c)
		require.Len(t, events, 1)
		assert.Equal(t, models.ActionDelete, events[0].Action)
		assert.Equal(t, uint(7), events[0].ID)
	}
	assert.Empty(t, drain(t, carol))

	hub.SendTo(carol.ID, models.NewUnpinEvent())
	assert.Len(t, drain(t, carol), 1)
	assert.Empty(t, drain(t, alice))
}

func TestHubRemoveAnnouncesDeparture(t *testing.T) {
	hub := newTestHub(16)
	alice := hub.Add(nil, "alice")
	bob := hub.Add(nil, "bob")
	hub.SwitchGroup(bob.ID, "tech")
	carol := hub.Add(nil, "carol")
	hub.SwitchGroup(carol.ID, "tech")
	drain(t, alice)
	drain(t, carol)

	hub.Remove(bob.ID)

	events := drain(t, carol)
	require.Len(t, events, 2)
	assert.Equal(t, "bob left", events[0].Message.Content)
	assert.Equal(t, []string{"carol"}, events[1].Users)
	assert.Empty(t, drain(t, alice))

	_, open := <-bob.send
	for open {
		_, open = <-bob.send
	}
	assert.Equal(t, 2, hub.Count())

	assert.NotPanics(t, func() { hub.Remove(bob.ID) })
	assert.Empty(t, drain(t, carol))
}

func TestHubFullQueueDoesNotBlockOthers(t *testing.T) {
	hub := newTestHub(4)
	slowConn := &fakeConn{}
	slow := hub.Add(slowConn, "slow")
	fast := hub.Add(nil, "fast")
	drain(t, fast)

	done := make(chan struct{})
	go func() {
		hub.Send("general", models.NewUnpinEvent())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a full queue")
	}

	assert.Len(t, drain(t, fast), 1)
	assert.True(t, slowConn.isClosed())
	// 廣播不負責註銷
	_, ok := hub.Group(slow.ID)
	assert.True(t, ok)
}

func TestHubConcurrentMembership(t *testing.T) {
	hub := newTestHub(1024)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := hub.Add(nil, "user")
			if i%2 == 0 {
				hub.SwitchGroup(c.ID, "tech")
			}
			hub.Send("general", models.NewUnpinEvent())
			hub.MembersOf("tech")
			hub.Remove(c.ID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.Count())
}

func TestGroupLocksSerializeAndCleanUp(t *testing.T) {
	locks := newGroupLocks()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("general")
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locks.size())
}
