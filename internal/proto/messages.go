// Package proto defines the game socket's message envelope and the set of
// inbound/outbound message types, including the normalization needed for
// older client builds that omit the outer "data" wrapper.
package proto

import "encoding/json"

// Type is one of the closed set of inbound or outbound message types.
type Type string

const (
	TypeAuth          Type = "auth"
	TypeMove          Type = "move"
	TypePurchaseItem  Type = "purchase_item"
	TypeUseItem       Type = "use_item"
	TypeChatMessage   Type = "chat_message"
	TypePing          Type = "ping"
	TypeAuthSuccess   Type = "auth_success"
	TypeAuthFailed    Type = "auth_failed"
	TypePlayerData    Type = "player_data"
	TypeMazeData      Type = "maze_data"
	TypePlayerJoin    Type = "player_join"
	TypePlayerLeave   Type = "player_leave"
	TypePlayerMoved   Type = "player_moved"
	TypeGameState     Type = "game_state"
	TypeItemEffect    Type = "item_effect"
	TypeGameEvent     Type = "game_event"
	TypePong          Type = "pong"
	TypeError         Type = "error"
)

// Envelope is the canonical wire shape in both directions.
type Envelope struct {
	Type      Type            `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Decode normalizes raw into an Envelope, accepting either dialect: a
// populated "data" field is used as-is; an absent or empty one falls back
// to treating the whole object (minus "type"/"timestamp") as the payload.
func Decode(raw []byte) (Envelope, error) {
	var probe struct {
		Type      Type            `json:"type"`
		Timestamp int64           `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Envelope{}, err
	}
	if len(probe.Data) > 0 && string(probe.Data) != "null" {
		return Envelope{Type: probe.Type, Timestamp: probe.Timestamp, Data: probe.Data}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, err
	}
	delete(fields, "type")
	delete(fields, "timestamp")
	delete(fields, "data")
	payload, err := json.Marshal(fields)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: probe.Type, Timestamp: probe.Timestamp, Data: payload}, nil
}

// Encode renders an outbound Envelope in the canonical wrapped form.
func Encode(typ Type, timestampMS int64, data interface{}) (Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Timestamp: timestampMS, Data: payload}, nil
}

// --- inbound payloads ---------------------------------------------------

type AuthPayload struct {
	PlayerID   string `json:"playerId,omitempty"`
	PlayerName string `json:"playerName"`
	Token      string `json:"token,omitempty"`
}

type MovePayload struct {
	Position  [3]float64 `json:"position"`
	Rotation  float64    `json:"rotation"`
	Direction string     `json:"direction,omitempty"`
}

type PurchaseItemPayload struct {
	ItemType string `json:"itemType"`
}

type UseItemPayload struct {
	ItemType       string      `json:"itemType"`
	TargetPlayerID string      `json:"targetPlayerId,omitempty"`
	TargetPosition *[3]float64 `json:"targetPosition,omitempty"`
}

type ChatMessagePayload struct {
	Message string `json:"message"`
	Sender  string `json:"sender,omitempty"`
}

type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// --- outbound payloads ---------------------------------------------------

type AuthSuccessPayload struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
}

type AuthFailedPayload struct {
	Reason string `json:"reason"`
}

type PlayerDataPayload struct {
	PlayerID    string         `json:"playerId"`
	Position    [3]float64     `json:"position"`
	Coins       int            `json:"coins"`
	Inventory   map[string]int `json:"inventory"`
	HasCompass  bool           `json:"hasCompass"`
	ReachedGoal bool           `json:"reachedGoal"`
	FinishRank  int            `json:"finishRank"`
}

type PlayerMovedPayload struct {
	PlayerID string     `json:"playerId"`
	Position [3]float64 `json:"position"`
	Rotation float64    `json:"rotation"`
}

type PlayerJoinPayload struct {
	PlayerID string `json:"playerId"`
}

type PlayerLeavePayload struct {
	PlayerID string `json:"playerId"`
}

type GameStatePayload struct {
	Coins          int            `json:"coins"`
	Inventory      map[string]int `json:"inventory"`
	RemainingCoins int            `json:"remainingCoins"`
	FinishedCount  int            `json:"finishedCount"`
}

type ItemEffectPayload struct {
	PlayerID       string `json:"playerId"`
	ItemType       string `json:"itemType"`
	TargetPlayerID string `json:"targetPlayerId,omitempty"`
}

type GameEventPayload struct {
	EventType  string `json:"eventType"`
	PlayerID   string `json:"playerId,omitempty"`
	FinishRank int    `json:"finishRank,omitempty"`
	Bonus      int    `json:"bonus,omitempty"`
	CoinIndex  int    `json:"coinIndex,omitempty"`
}

type ChatMessageOutPayload struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ItemKindFromWire maps a wire item-type string (including the legacy
// "sword" alias for "kill_sword") to the engine's ItemKind spelling. ok is
// false for an unrecognized string.
func ItemKindFromWire(wire string) (kind string, ok bool) {
	switch wire {
	case "speed_potion":
		return "SPEED_POTION", true
	case "compass":
		return "COMPASS", true
	case "hammer":
		return "HAMMER", true
	case "kill_sword", "sword":
		return "KILL_SWORD", true
	case "slow_trap":
		return "SLOW_TRAP", true
	case "swap_item":
		return "SWAP_ITEM", true
	default:
		return "", false
	}
}

// ItemKindToWire maps an engine ItemKind spelling to its canonical wire
// form.
func ItemKindToWire(kind string) string {
	switch kind {
	case "SPEED_POTION":
		return "speed_potion"
	case "COMPASS":
		return "compass"
	case "HAMMER":
		return "hammer"
	case "KILL_SWORD":
		return "kill_sword"
	case "SLOW_TRAP":
		return "slow_trap"
	case "SWAP_ITEM":
		return "swap_item"
	default:
		return kind
	}
}
