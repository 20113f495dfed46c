// Package realtimesvc fans realtime events out to websocket sessions, in process or across instances through Redis.
package realtimesvc

import (
	"context"
	"strings"
	"sync"

	"github.com/edufam/edufam/core/realtime"
)

type (
	Metrics interface {
		EventPublished(channel string, subscribers int)
	}

	nopMetrics struct{}

	subscriber struct {
		id int
		fn func(realtime.Event)
	}

	// Hub is the in-process Broker. Subscribers are called synchronously and must not block.
	Hub struct {
		mu      sync.RWMutex
		nextID  int
		topics  map[string][]subscriber
		metrics Metrics
	}
)

func (nopMetrics) EventPublished(string, int) {}

var _ realtime.Broker = (*Hub)(nil)

func NewHub(metrics Metrics) *Hub {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Hub{topics: make(map[string][]subscriber), metrics: metrics}
}

// channel is the metric label of topic: the school channel name, or "user".
func channel(topic string) string {
	parts := strings.Split(topic, ":")
	if len(parts) == 3 && parts[0] == "school" {
		return parts[2]
	}
	return parts[0]
}

func (h *Hub) Publish(_ context.Context, evt realtime.Event) error {
	h.mu.RLock()
	subs := append([]subscriber(nil), h.topics[evt.Topic]...)
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(evt)
	}
	h.metrics.EventPublished(channel(evt.Topic), len(subs))
	return nil
}

func (h *Hub) Subscribe(topic string, fn func(realtime.Event)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.topics[topic] = append(h.topics[topic], subscriber{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(topic, id) })
	}
}

func (h *Hub) unsubscribe(topic string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.topics[topic]
	for i, sub := range subs {
		if sub.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(h.topics, topic)
	} else {
		h.topics[topic] = subs
	}
}

// Subscribers returns the number of subscribers of topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
