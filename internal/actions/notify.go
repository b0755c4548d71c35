package actions

import (
	"context"

	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// Notifier sends a progress line to chat while an action runs.
type Notifier func(ctx context.Context, text string)

type notifierKey struct{}

// WithNotifier attaches n to ctx. Handlers use it for mid-action
// announcements such as "Mining stone..." once the target is found.
func WithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, notifierKey{}, n)
}

// announce sends the action's announcement through the ctx notifier, if
// both exist.
func (r *Registry) announce(ctx context.Context, name types.ActionName, p types.Params) {
	n, _ := ctx.Value(notifierKey{}).(Notifier)
	if n == nil {
		return
	}
	if text := r.Announcement(name, p); text != "" {
		n(ctx, text)
	}
}
