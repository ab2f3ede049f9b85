package subscribe

import (
	"context"
	"sync"

	"nocaflow/pkg/logger"
)

// Hub fans change signals out to snapshot subscriptions. Topics are
// opaque strings ("conv:<id>", "user:<id>"). A subscription carries a
// coalescing buffered-1 signal channel: consumers re-read the full state
// on every signal and replace their copy wholesale, so dropped
// intermediate signals never lose data.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

// Subscription is one live listener on a topic.
type Subscription struct {
	C     <-chan struct{}
	c     chan struct{}
	topic string
	hub   *Hub
	once  sync.Once
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a listener on topic. The subscription is torn down
// when ctx is canceled or Close is called, whichever comes first.
func (h *Hub) Subscribe(ctx context.Context, topic string) *Subscription {
	c := make(chan struct{}, 1)
	s := &Subscription{C: c, c: c, topic: topic, hub: h}
	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscription]struct{})
	}
	h.topics[topic][s] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Close()
	}()
	logger.Debug("subscription_opened", "topic", topic)
	return s
}

// Close removes the subscription from its topic and closes the channel.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if set, ok := h.topics[s.topic]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.topics, s.topic)
			}
		}
		h.mu.Unlock()
		close(s.c)
		logger.Debug("subscription_closed", "topic", s.topic)
	})
}

// Notify signals every subscription on the topic. Signals coalesce: a
// subscriber with a pending signal receives nothing extra.
func (h *Hub) Notify(topic string) {
	h.mu.RLock()
	subs := h.topics[topic]
	for s := range subs {
		select {
		case s.c <- struct{}{}:
		default:
		}
	}
	h.mu.RUnlock()
}

// NotifyAll signals a set of topics; used after a write that affects a
// conversation and each of its participants.
func (h *Hub) NotifyAll(topics ...string) {
	for _, t := range topics {
		h.Notify(t)
	}
}

// ConvTopic and UserTopic name the hub topics for a conversation's
// message stream and a user's conversation list.
func ConvTopic(convID string) string { return "conv:" + convID }
func UserTopic(userID string) string { return "user:" + userID }
