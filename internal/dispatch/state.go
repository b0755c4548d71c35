package dispatch

// State is a stage of the routing state machine. A message starts at Idle
// and ends at Done; stages run in declaration order and none is revisited.
type State int

const (
	StateIdle State = iota
	StateFiltering
	StateRateGating
	StateMatching
	StateClassifying
	StateFallingBack
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFiltering:
		return "filtering"
	case StateRateGating:
		return "rate_gating"
	case StateMatching:
		return "matching"
	case StateClassifying:
		return "classifying"
	case StateFallingBack:
		return "falling_back"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
