package models

// Side identifies one of the two players from the local client's point of view.
type Side string

const (
	SideNone   Side = ""
	SideLocal  Side = "LOCAL"
	SideRemote Side = "REMOTE"
)

// Opposite returns the other side. SideNone has no opposite.
func (s Side) Opposite() Side {
	switch s {
	case SideLocal:
		return SideRemote
	case SideRemote:
		return SideLocal
	default:
		return SideNone
	}
}

// Outcome is the result of a round.
type Outcome string

const (
	OutcomeNone      Outcome = "NONE"
	OutcomeLocalWin  Outcome = "LOCAL_WIN"
	OutcomeRemoteWin Outcome = "REMOTE_WIN"
	OutcomeDraw      Outcome = "DRAW"
	// OutcomeLoss is only produced by solo rounds where the board ran out.
	OutcomeLoss Outcome = "LOSS"
)

// WinFor maps a side to its winning outcome.
func WinFor(s Side) Outcome {
	if s == SideLocal {
		return OutcomeLocalWin
	}
	return OutcomeRemoteWin
}
