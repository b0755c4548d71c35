package actions

import (
	"errors"
	"fmt"

	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// Error kinds. Match with errors.Is against an *ActionError.
var (
	ErrNotFound         = errors.New("no matching block nearby")
	ErrActorNotFound    = errors.New("player not found")
	ErrItemNotFound     = errors.New("item not in inventory")
	ErrNoTarget         = errors.New("no target position")
	ErrSurfaceNotFound  = errors.New("no supporting surface")
	ErrCollectionFailed = errors.New("collection failed")
	ErrPlacementFailed  = errors.New("placement failed")
	ErrEmptyArgument    = errors.New("empty argument")
	ErrUnknownAction    = errors.New("unknown action")
	ErrWorldUnavailable = errors.New("world unavailable")
	ErrPanic            = errors.New("action panicked")
)

// ActionError is the tagged failure of one action execution.
type ActionError struct {
	Kind    error // one of the Err* kinds above
	Action  types.ActionName
	Subject string // block type or player name the action was about
	Cause   error  // collaborator error, if any
}

func newError(kind error, action types.ActionName, subject string, cause error) *ActionError {
	return &ActionError{Kind: kind, Action: action, Subject: subject, Cause: cause}
}

func (e *ActionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Action, e.Kind)
	if e.Subject != "" {
		msg += " (" + e.Subject + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ActionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Reply is the chat text explaining the failure.
func (e *ActionError) Reply() string {
	switch e.Kind {
	case ErrNotFound:
		return fmt.Sprintf("Can't find any %s nearby.", e.Subject)
	case ErrActorNotFound:
		if e.Subject == "" {
			return "Could not find that player."
		}
		return fmt.Sprintf("Could not find player %s.", e.Subject)
	case ErrItemNotFound:
		return fmt.Sprintf("I don't have any %s.", e.Subject)
	case ErrNoTarget:
		return "I need to see where you are to build!"
	case ErrSurfaceNotFound:
		return "Can't find a surface to build on!"
	case ErrCollectionFailed:
		return fmt.Sprintf("Failed to mine %s: %s", e.Subject, reason(e.Cause))
	case ErrPlacementFailed:
		return fmt.Sprintf("Couldn't place %s: %s", e.Subject, reason(e.Cause))
	case ErrEmptyArgument:
		if e.Action == types.ActionPlaceBlock {
			return "Please specify a block type to place!"
		}
		return "Please specify a block type to mine!"
	case ErrUnknownAction:
		return "I don't know how to do that yet."
	case ErrWorldUnavailable:
		return "I can't reach the world right now, try again in a moment."
	default:
		return "Sorry, something went wrong doing that!"
	}
}

// reason extracts the short collaborator cause.
func reason(err error) string {
	if err == nil {
		return "unknown error"
	}
	var r interface{ Reason() string }
	if errors.As(err, &r) {
		return r.Reason()
	}
	return err.Error()
}

// ReplyFor returns the chat text for any error returned by Execute.
func ReplyFor(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Reply()
	}
	return "Sorry, something went wrong doing that!"
}
