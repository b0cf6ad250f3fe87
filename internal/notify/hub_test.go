package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func update(data string) Notification {
	return Notification{Kind: KindMatchUpdate, Data: data}
}

func TestRegister_Idempotent(t *testing.T) {
	h := newTestHub()

	a := h.Register(1)
	b := h.Register(1)

	assert.Same(t, a, b)
	assert.NotSame(t, a, h.Register(2))
}

func TestNotify_CreatesMailbox(t *testing.T) {
	h := newTestHub()

	h.Notify(7, update("hello"))

	mb := h.Register(7)
	require.Equal(t, 1, mb.Len())
	n, ok := mb.TryPop()
	require.True(t, ok)
	assert.Equal(t, "hello", n.Data)
}

func TestMailbox_FIFO(t *testing.T) {
	mb := newMailbox()
	for _, s := range []string{"a", "b", "c"} {
		require.True(t, mb.Push(update(s)))
	}

	for _, want := range []string{"a", "b", "c"} {
		n, ok := mb.TryPop()
		require.True(t, ok)
		assert.Equal(t, want, n.Data)
	}
	_, ok := mb.TryPop()
	assert.False(t, ok)
}

func TestMailbox_CloseRejectsPush(t *testing.T) {
	mb := newMailbox()
	require.True(t, mb.Push(update("kept")))

	mb.Close()
	mb.Close()

	assert.False(t, mb.Push(update("lost")))
	n, ok := mb.TryPop()
	require.True(t, ok)
	assert.Equal(t, "kept", n.Data)
}

func TestNotifyTopic_OnlyMembers(t *testing.T) {
	h := newTestHub()
	topic := MatchTopic("m1")
	h.JoinTopic(topic, 1, 2)
	h.JoinTopic(topic, 3)
	h.Register(4)

	sent := h.NotifyTopic(topic, update("round 2"))

	assert.Equal(t, 3, sent)
	for _, u := range []UserID{1, 2, 3} {
		n, ok := h.Register(u).TryPop()
		require.True(t, ok, "user %d", u)
		assert.Equal(t, "match:m1", n.Topic)
	}
	assert.Equal(t, 0, h.Register(4).Len())
}

func TestLeaveTopic_StopsDelivery(t *testing.T) {
	h := newTestHub()
	topic := LobbyTopic("l1")
	h.JoinTopic(topic, 1, 2)

	h.LeaveTopic(topic, 2)
	h.NotifyTopic(topic, update("x"))

	assert.Equal(t, 1, h.Register(1).Len())
	assert.Equal(t, 0, h.Register(2).Len())
	assert.Equal(t, []UserID{1}, h.Members(topic))
}

func TestCloseTopic(t *testing.T) {
	h := newTestHub()
	topic := MatchTopic("m1")
	h.JoinTopic(topic, 1)

	h.CloseTopic(topic)

	assert.Equal(t, 0, h.NotifyTopic(topic, update("x")))
	assert.Empty(t, h.Members(topic))
	assert.Equal(t, 0, h.Register(1).Len())
}

func TestTopicsAreDistinct(t *testing.T) {
	h := newTestHub()
	h.JoinTopic(LobbyTopic("1"), 1)
	h.JoinTopic(MatchTopic("1"), 2)

	assert.Equal(t, []UserID{1}, h.Members(LobbyTopic("1")))
	assert.Equal(t, []UserID{2}, h.Members(MatchTopic("1")))
}

func TestPoll_ZeroTimeoutReturnsPromptly(t *testing.T) {
	h := newTestHub()

	start := time.Now()
	n := h.Poll(context.Background(), 1, 0)

	assert.True(t, n.IsNoUpdate())
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPoll_ReturnsQueuedWithoutWaiting(t *testing.T) {
	h := newTestHub()
	h.Notify(1, update("ready"))

	start := time.Now()
	n := h.Poll(context.Background(), 1, 10*time.Second)

	assert.Equal(t, "ready", n.Data)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPoll_WakesOnNotify(t *testing.T) {
	h := newTestHub()

	done := make(chan Notification, 1)
	go func() {
		done <- h.Poll(context.Background(), 1, 10*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	h.Notify(1, update("late"))

	select {
	case n := <-done:
		assert.Equal(t, "late", n.Data)
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not wake on notify")
	}
}

func TestPoll_TimesOut(t *testing.T) {
	h := newTestHub()

	n := h.Poll(context.Background(), 1, 30*time.Millisecond)

	assert.Equal(t, NoUpdate, n)
}

func TestPoll_ContextCancel(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Notification, 1)
	go func() {
		done <- h.Poll(ctx, 1, 10*time.Second)
	}()
	cancel()

	select {
	case n := <-done:
		assert.True(t, n.IsNoUpdate())
	case <-time.After(5 * time.Second):
		t.Fatal("poll ignored cancellation")
	}
}

func TestShutdown_ReleasesPollers(t *testing.T) {
	h := newTestHub()
	h.Register(1)

	done := make(chan Notification, 1)
	go func() {
		done <- h.Poll(context.Background(), 1, 10*time.Second)
	}()
	time.Sleep(10 * time.Millisecond)
	h.Shutdown()

	select {
	case n := <-done:
		assert.True(t, n.IsNoUpdate())
	case <-time.After(5 * time.Second):
		t.Fatal("poll not released by shutdown")
	}

	// Pushes after shutdown are dropped, not panics.
	h.Notify(1, update("late"))
}

func TestWithPollTimeout(t *testing.T) {
	h := New(WithPollTimeout(20 * time.Millisecond))
	assert.True(t, h.PollDefault(context.Background(), 1).IsNoUpdate())

	assert.Equal(t, DefaultPollTimeout, New(WithPollTimeout(0)).pollTimeout)
}

func TestHub_ConcurrentUse(t *testing.T) {
	h := newTestHub()
	topic := MatchTopic("busy")
	const users = 8
	const rounds = 50

	for u := range users {
		h.JoinTopic(topic, UserID(u))
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			for range rounds {
				h.NotifyTopic(topic, update("tick"))
			}
		})
	}

	received := make([]int, users)
	for u := range users {
		wg.Go(func() {
			for received[u] < 4*rounds {
				if n := h.Poll(context.Background(), UserID(u), time.Second); !n.IsNoUpdate() {
					received[u]++
				}
			}
		})
	}
	wg.Wait()

	for u := range users {
		assert.Equal(t, 4*rounds, received[u])
	}
}

func TestTopic_String(t *testing.T) {
	assert.Equal(t, "lobby:abc", LobbyTopic("abc").String())
	assert.Equal(t, "match:abc", MatchTopic("abc").String())
}
