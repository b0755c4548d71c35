package world

import (
	"encoding/json"

	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// ProtocolVersion is sent in HELLO and checked against WELCOME.
const ProtocolVersion = "1.0"

// Envelope types.
const (
	TypeHello    = "hello"
	TypeWelcome  = "welcome"
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
	TypeError    = "error"
)

// Request operations.
const (
	OpPlayer     = "player"
	OpPlayers    = "players"
	OpFindBlock  = "find_block"
	OpFindBlocks = "find_blocks"
	OpBlockAt    = "block_at"
	OpCollect    = "collect"
	OpInventory  = "inventory"
	OpEquip      = "equip"
	OpPlace      = "place"
	OpSetGoal    = "set_goal"
	OpClearGoal  = "clear_goal"
	OpChat       = "chat"
)

// Error codes reported by the runtime.
const (
	CodeBadRequest    = "E_BAD_REQUEST"
	CodeNotFound      = "E_NOT_FOUND"
	CodeNoResource    = "E_NO_RESOURCE"
	CodeInvalidTarget = "E_INVALID_TARGET"
	CodeBlocked       = "E_BLOCKED"
	CodeAuth          = "E_AUTH"
	CodeInternal      = "E_INTERNAL"
)

// Envelope is every frame on the wire, in both directions.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Op      string          `json:"op,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
	Event   *EventBody      `json:"event,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventBody is the payload of a TypeEvent frame.
type EventBody struct {
	Kind   string `json:"kind"`
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text,omitempty"`
}

// HelloMsg opens a session (client -> runtime).
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Username        string `json:"username"`
	Token           string `json:"token,omitempty"`
}

// WelcomeMsg accepts a session (runtime -> client).
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id,omitempty"`
	Username        string     `json:"username,omitempty"`
	Error           *ErrorBody `json:"error,omitempty"`
}

type nameArgs struct {
	Name string `json:"name"`
}

type findBlockArgs struct {
	Match       string `json:"match"`
	MaxDistance int    `json:"max_distance"`
}

type findBlocksArgs struct {
	MaxDistance int      `json:"max_distance"`
	Count       int      `json:"count"`
	Exclude     []string `json:"exclude,omitempty"`
}

type positionArgs struct {
	Position types.Vec3 `json:"position"`
}

type collectArgs struct {
	Block Block `json:"block"`
}

type equipArgs struct {
	Item        string `json:"item"`
	Destination string `json:"destination"`
}

type placeArgs struct {
	Against  Block      `json:"against"`
	Position types.Vec3 `json:"position"`
}

type goalArgs struct {
	Goal Goal `json:"goal"`
}

type chatArgs struct {
	Text string `json:"text"`
}

type playerResult struct {
	Found  bool   `json:"found"`
	Player Player `json:"player"`
}

type playersResult struct {
	Players []Player `json:"players"`
}

type blockResult struct {
	Found bool  `json:"found"`
	Block Block `json:"block"`
}

type blocksResult struct {
	Blocks []Block `json:"blocks"`
}

type inventoryResult struct {
	Items []Item `json:"items"`
}
