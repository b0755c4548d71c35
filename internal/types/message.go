// Package types contains shared types used across multiple packages.
// This helps avoid import cycles between the router stages and the runtime.
package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// SenderID identifies the author of a chat message. It is opaque to the
// router: used only as a rate-limit key and as the default target for
// actions that need a player identity.
type SenderID string

// Message is a single inbound chat line. Never mutated after creation.
type Message struct {
	Sender     SenderID
	Text       string
	ReceivedAt time.Time
}

// NewMessage creates a Message stamped with the current time.
func NewMessage(sender, text string) Message {
	return Message{
		Sender:     SenderID(sender),
		Text:       text,
		ReceivedAt: time.Now(),
	}
}

// Normalized returns the lowercased, trimmed text used for matching.
func (m Message) Normalized() string {
	return Normalize(m.Text)
}

// Normalize lowercases and trims text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Vec3 is a position in the world. Block positions are whole numbers;
// actor positions may be fractional.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Floor returns the block position containing v.
func (v Vec3) Floor() Vec3 {
	return Vec3{X: math.Floor(v.X), Y: math.Floor(v.Y), Z: math.Floor(v.Z)}
}

// Offset returns v shifted by (dx, dy, dz).
func (v Vec3) Offset(dx, dy, dz float64) Vec3 {
	return Vec3{X: v.X + dx, Y: v.Y + dy, Z: v.Z + dz}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}
