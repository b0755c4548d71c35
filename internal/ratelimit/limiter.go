// Package ratelimit implements the per-sender cooldown gate.
package ratelimit

import (
	"sync"
	"time"

	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// DefaultCooldown is the minimum gap between accepted messages from one sender.
const DefaultCooldown = 3000 * time.Millisecond

// Limiter admits at most one message per sender per cooldown window.
//
// The last-accepted map is never pruned: it grows by one entry per distinct
// sender for the lifetime of the process.
type Limiter struct {
	cooldown time.Duration

	mu       sync.Mutex
	accepted map[types.SenderID]time.Time // sender -> last accepted
}

// New creates a Limiter. A non-positive cooldown selects DefaultCooldown.
func New(cooldown time.Duration) *Limiter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Limiter{
		cooldown: cooldown,
		accepted: make(map[types.SenderID]time.Time),
	}
}

// Cooldown returns the configured window.
func (l *Limiter) Cooldown() time.Duration {
	return l.cooldown
}

// Allow reports whether a message from sender at now passes the gate.
// A rejected message leaves state untouched; an accepted one overwrites the
// sender's last-accepted time. The check and the update happen under one lock
// so two near-simultaneous messages cannot both pass.
func (l *Limiter) Allow(sender types.SenderID, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.accepted[sender]; ok {
		if since := now.Sub(last); since < l.cooldown {
			L_trace("ratelimit: rejected", "sender", sender, "sinceLast", since.String(), "window", l.cooldown.String())
			return false
		}
	}
	l.accepted[sender] = now
	return true
}

// Len returns the number of tracked senders.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.accepted)
}
