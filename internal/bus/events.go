// Package bus is an in-process pub/sub for lifecycle events: world spawn
// and disconnect, config reloads. Handlers run asynchronously and a
// panicking handler is logged, never propagated.
package bus

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/roelfdiedericks/gaiabot/internal/logging"
)

// Topics published by gaiabot.
const (
	TopicConfigReloaded = "config.reloaded" // Data: *config.Config
	TopicWorldSpawned   = "world.spawned"   // Data: username string
	TopicWorldEnded     = "world.ended"     // Data: reason string
)

// Event is one published notification.
type Event struct {
	Topic     string
	Data      any
	Timestamp time.Time
	Source    string // "watcher", "world", "system"
}

// EventHandler processes an event. Fire and forget.
type EventHandler func(Event)

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// Bus routes events to topic subscribers. The zero value is not usable;
// call New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID atomic.Uint64
	wg     sync.WaitGroup
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers handler for topic.
func (b *Bus) Subscribe(topic string, handler EventHandler) SubscriptionID {
	id := SubscriptionID(b.nextID.Add(1))

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	L_debug("bus: subscribed", "topic", topic, "subscriptionID", id)
	return id
}

// Unsubscribe removes a subscription. It reports whether id was found.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subs {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			rest := append(subs[:i:i], subs[i+1:]...)
			if len(rest) == 0 {
				delete(b.subs, topic)
			} else {
				b.subs[topic] = rest
			}
			L_debug("bus: unsubscribed", "topic", topic, "subscriptionID", id)
			return true
		}
	}
	return false
}

// Publish delivers data to every subscriber of topic, each on its own
// goroutine.
func (b *Bus) Publish(topic string, data any, source string) {
	ev := Event{
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
	}

	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[topic]...)
	b.mu.RUnlock()

	if len(subs) == 0 {
		L_trace("bus: published (no subscribers)", "topic", topic)
		return
	}
	L_debug("bus: published", "topic", topic, "subscribers", len(subs), "source", source)

	for _, sub := range subs {
		b.wg.Add(1)
		go func(s subscription) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					L_error("bus: handler panic", "topic", topic, "subscriptionID", s.id, "panic", r)
				}
			}()
			s.handler(ev)
		}(sub)
	}
}

// Wait blocks until every handler started so far has returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Topics returns the topics with at least one subscriber, sorted.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := make([]string, 0, len(b.subs))
	for t := range b.subs {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Subscribers returns the subscriber count for topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

var defaultBus = New()

// Default returns the process-wide bus.
func Default() *Bus {
	return defaultBus
}

// SubscribeEvent subscribes on the default bus.
func SubscribeEvent(topic string, handler EventHandler) SubscriptionID {
	return defaultBus.Subscribe(topic, handler)
}

// UnsubscribeEvent unsubscribes from the default bus.
func UnsubscribeEvent(id SubscriptionID) bool {
	return defaultBus.Unsubscribe(id)
}

// PublishEvent publishes on the default bus with source "system".
func PublishEvent(topic string, data any) {
	defaultBus.Publish(topic, data, "system")
}
