package types

// ActionName names one entry of the action registry.
type ActionName string

const (
	ActionMineBlock      ActionName = "mine_block"
	ActionPlaceBlock     ActionName = "place_block"
	ActionFollowPlayer   ActionName = "follow_player"
	ActionGoToPlayer     ActionName = "go_to_player"
	ActionStopMovement   ActionName = "stop_movement"
	ActionCheckInventory ActionName = "check_inventory"
	ActionLookAround     ActionName = "look_around"
)

// Params carries action parameters. Field names match the keys the model is
// prompted to emit ("blockType", "playerName"); Target is only ever filled
// by the explicit command matcher.
type Params struct {
	BlockType  string `json:"blockType,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	Target     *Vec3  `json:"target,omitempty"`
}

// DecisionKind tags the variant held by a Decision.
type DecisionKind int

const (
	DecisionReply DecisionKind = iota
	DecisionInvoke
	DecisionSuppressed
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionReply:
		return "reply"
	case DecisionInvoke:
		return "invoke"
	case DecisionSuppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// SuppressReason explains why a message produced no output.
type SuppressReason string

const (
	SuppressRateLimited  SuppressReason = "rate_limited"
	SuppressNotReady     SuppressReason = "not_ready"
	SuppressShuttingDown SuppressReason = "shutting_down"
	SuppressSelf         SuppressReason = "self"
	SuppressEmpty        SuppressReason = "empty"
)

// Source records which routing stage produced a decision.
type Source string

const (
	SourceGate     Source = "gate"
	SourceFilter   Source = "filter"
	SourceCommand  Source = "command"
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Decision is the router's single output per message:
// Reply(text) | Invoke(action, params) | Suppressed(reason).
type Decision struct {
	Kind   DecisionKind
	Text   string         // Reply
	Action ActionName     // Invoke
	Params Params         // Invoke
	Reason SuppressReason // Suppressed

	// Source is the stage that resolved the message.
	Source Source
	// Err is the recovered error behind a Reply, if any (empty argument,
	// content rejected, model failure). Never propagated further.
	Err error
}

// Reply builds a Reply decision.
func Reply(text string) Decision {
	return Decision{Kind: DecisionReply, Text: text}
}

// Invoke builds an Invoke decision.
func Invoke(action ActionName, params Params) Decision {
	return Decision{Kind: DecisionInvoke, Action: action, Params: params}
}

// Suppressed builds a Suppressed decision.
func Suppressed(reason SuppressReason) Decision {
	return Decision{Kind: DecisionSuppressed, Reason: reason}
}

// From sets the resolving stage.
func (d Decision) From(src Source) Decision {
	d.Source = src
	return d
}

// WithErr attaches the recovered error.
func (d Decision) WithErr(err error) Decision {
	d.Err = err
	return d
}

func (d Decision) String() string {
	switch d.Kind {
	case DecisionReply:
		return "Reply(" + d.Text + ")"
	case DecisionInvoke:
		return "Invoke(" + string(d.Action) + ")"
	case DecisionSuppressed:
		return "Suppressed(" + string(d.Reason) + ")"
	}
	return "Decision(?)"
}
