// Package notify is the long-poll notification hub: one mailbox per user
// and topic groups for lobby and match broadcasts.
//
// A Hub is an ordinary value. Construct one per server (or per test) and
// pass it to whatever publishes or polls.
package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultPollTimeout bounds a Poll when the caller has no preference.
const DefaultPollTimeout = 30 * time.Second

// Hub maps users to mailboxes and topics to member sets.
//
// h.mu guards the two maps only; it is never held while pushing to a
// mailbox or waiting in Poll.
type Hub struct {
	mu        sync.Mutex
	mailboxes map[UserID]*Mailbox
	topics    map[Topic]map[UserID]struct{}

	logger      *slog.Logger
	pollTimeout time.Duration
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

// WithPollTimeout sets the timeout PollDefault uses.
func WithPollTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pollTimeout = d
		}
	}
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		mailboxes:   make(map[UserID]*Mailbox),
		topics:      make(map[Topic]map[UserID]struct{}),
		logger:      slog.Default(),
		pollTimeout: DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register returns the user's mailbox, creating it if needed.
func (h *Hub) Register(user UserID) *Mailbox {
	h.mu.Lock()
	defer h.mu.Unlock()

	mb, ok := h.mailboxes[user]
	if !ok {
		mb = newMailbox()
		h.mailboxes[user] = mb
	}
	return mb
}

// Notify queues n for user. It never blocks. A push rejected by a closed
// mailbox is logged and dropped.
func (h *Hub) Notify(user UserID, n Notification) {
	if !h.Register(user).Push(n) {
		h.logger.Warn("notification dropped",
			"user_id", int64(user),
			"kind", n.Kind,
		)
	}
}

// NotifyTopic delivers n to every current member of topic concurrently and
// returns the number of members it was sent to.
func (h *Hub) NotifyTopic(topic Topic, n Notification) int {
	members := h.Members(topic)
	if n.Topic == "" {
		n.Topic = topic.String()
	}

	var wg sync.WaitGroup
	for _, user := range members {
		wg.Go(func() {
			h.Notify(user, n)
		})
	}
	wg.Wait()

	return len(members)
}

// JoinTopic adds users to topic, creating the topic if needed.
func (h *Hub) JoinTopic(topic Topic, users ...UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.topics[topic]
	if !ok {
		members = make(map[UserID]struct{}, len(users))
		h.topics[topic] = members
	}
	for _, u := range users {
		members[u] = struct{}{}
	}
}

// LeaveTopic removes user from topic. Empty topics are kept until closed.
func (h *Hub) LeaveTopic(topic Topic, user UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.topics[topic]; ok {
		delete(members, user)
	}
}

// CloseTopic drops the topic and its membership.
func (h *Hub) CloseTopic(topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.topics, topic)
}

// Members returns the topic's members in ascending order.
func (h *Hub) Members(topic Topic) []UserID {
	h.mu.Lock()
	members := make([]UserID, 0, len(h.topics[topic]))
	for u := range h.topics[topic] {
		members = append(members, u)
	}
	h.mu.Unlock()

	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

// Poll waits up to timeout for a notification for user. It returns NoUpdate
// when the timeout elapses, ctx is done or the hub shuts down; a timeout is
// not an error and callers simply poll again. A timeout <= 0 only checks
// what is already queued.
func (h *Hub) Poll(ctx context.Context, user UserID, timeout time.Duration) Notification {
	mb := h.Register(user)

	if n, ok := mb.TryPop(); ok {
		return n
	}
	if timeout <= 0 {
		return NoUpdate
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return NoUpdate
		case <-timer.C:
			if n, ok := mb.TryPop(); ok {
				return n
			}
			return NoUpdate
		case _, open := <-mb.Wait():
			if n, ok := mb.TryPop(); ok {
				return n
			}
			if !open {
				return NoUpdate
			}
		}
	}
}

// PollDefault is Poll with the hub's configured timeout.
func (h *Hub) PollDefault(ctx context.Context, user UserID) Notification {
	return h.Poll(ctx, user, h.pollTimeout)
}

// Shutdown closes every mailbox, releasing all pending polls.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	boxes := make([]*Mailbox, 0, len(h.mailboxes))
	for _, mb := range h.mailboxes {
		boxes = append(boxes, mb)
	}
	h.mu.Unlock()

	for _, mb := range boxes {
		mb.Close()
	}
}
