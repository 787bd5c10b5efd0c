package game

// ErrKind identifies the category of an engine operation failure, per the
// error kinds the dispatcher maps onto outbound "error" messages.
type ErrKind string

const (
	ErrInvalidMove       ErrKind = "INVALID_MOVE"
	ErrInsufficientCoins ErrKind = "INSUFFICIENT_COINS"
	ErrItemNotOwned      ErrKind = "ITEM_NOT_OWNED"
	ErrPlayerNotFound    ErrKind = "PLAYER_NOT_FOUND"
	ErrInvalidTarget     ErrKind = "INVALID_TARGET"
	ErrGameNotRunning    ErrKind = "GAME_NOT_RUNNING"
)

// Error is a tagged engine failure. The dispatcher reads Kind to pick the
// outbound error code and Msg as the human-readable detail.
type Error struct {
	Kind ErrKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}
