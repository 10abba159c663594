package transport

// EventType names an event on the duel socket.
type EventType string

const (
	// client -> server
	EventQueueJoin  EventType = "queue:join"
	EventQueueLeave EventType = "queue:leave"
	EventJoin       EventType = "join"
	EventCoinFlip   EventType = "coinflip"
	EventRowDone    EventType = "rowDone"

	// server -> client
	EventQueueWaiting   EventType = "queue:waiting"
	EventMatchFound     EventType = "matchFound"
	EventCoinFlipResult EventType = "coinflipResult"
	EventTurn           EventType = "turn"
	EventPlayerLeft     EventType = "playerLeft"
	EventOpponentLeft   EventType = "opponentLeft"
	EventError          EventType = "error"

	// both directions
	EventTyping EventType = "typing"
)

// QueueJoinPayload asks the server to enqueue the player for a match.
type QueueJoinPayload struct {
	PlayerID string `json:"playerId"`
	Lang     string `json:"lang"`
}

// QueueLeavePayload has no fields; the server identifies the player by connection.
type QueueLeavePayload struct{}

// QueueWaitingPayload reports whether the player is still waiting for an opponent.
type QueueWaitingPayload struct {
	Waiting bool `json:"waiting"`
}

// MatchFoundPayload pairs the local player (You) with an opponent.
type MatchFoundPayload struct {
	MatchID    string `json:"matchId"`
	You        string `json:"you"`
	OpponentID string `json:"opponentId"`
}

// JoinPayload joins the match room once a match was found.
type JoinPayload struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId"`
}

// CoinFlipPayload requests the starting side. Ticket correlates retries on the server.
type CoinFlipPayload struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId"`
	Ticket   string `json:"ticket"`
}

// CoinFlipResultPayload is addressed to one player; YouStart is from their point of view.
type CoinFlipResultPayload struct {
	MatchID  string `json:"matchId"`
	YouStart bool   `json:"youStart"`
}

// TypingPayload carries an in-progress row. Best effort, never authoritative.
type TypingPayload struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId"`
	Row      int    `json:"row"`
	Guess    string `json:"guess"`
}

// RowDonePayload tells the server the sender finished a row.
type RowDonePayload struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId"`
	Row      int    `json:"row"`
}

// TurnPayload is the authoritative turn change.
type TurnPayload struct {
	MatchID      string `json:"matchId"`
	NextPlayerID string `json:"nextPlayerId"`
	NextRow      int    `json:"nextRow"`
}

// PlayerLeftPayload covers both playerLeft (match scope, PlayerID set) and
// opponentLeft (queue scope, Reason set).
type PlayerLeftPayload struct {
	MatchID  string `json:"matchId,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ErrorPayload is a server side error report.
type ErrorPayload struct {
	MatchID string `json:"matchId,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
