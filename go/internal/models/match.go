package models

// MatchSession is created when matchmaking pairs two players and lives until
// either side leaves or the round is exited.
type MatchSession struct {
	MatchID        string `json:"match_id"`
	LocalPlayerID  string `json:"local_player_id"`
	RemotePlayerID string `json:"remote_player_id"`
	LanguageCode   string `json:"language_code"`
}

// Networked reports whether the session is backed by a server match.
// Practice sessions have no match id.
func (m MatchSession) Networked() bool {
	return m.MatchID != ""
}

// SideOf maps a player id to a side. Unknown ids map to SideNone.
func (m MatchSession) SideOf(playerID string) Side {
	switch {
	case playerID == "":
		return SideNone
	case playerID == m.LocalPlayerID:
		return SideLocal
	case playerID == m.RemotePlayerID:
		return SideRemote
	default:
		return SideNone
	}
}

// PlayerOn maps a side back to its player id.
func (m MatchSession) PlayerOn(side Side) string {
	switch side {
	case SideLocal:
		return m.LocalPlayerID
	case SideRemote:
		return m.RemotePlayerID
	default:
		return ""
	}
}

// CoinFlipResult records who moves first in a round.
type CoinFlipResult struct {
	MatchID     string `json:"match_id"`
	WinningSide Side   `json:"winning_side"`
}

// Difficulty selects the word length of a solo round.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// PvPWordLength is the fixed word length of networked matches.
const PvPWordLength = 5

// WordLength returns the number of letters for the difficulty.
func (d Difficulty) WordLength() int {
	switch d {
	case DifficultyEasy:
		return 4
	case DifficultyHard:
		return 6
	default:
		return 5
	}
}
