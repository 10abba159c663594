package feedback

// Verdict is the per-letter result of scoring a guess against the secret.
type Verdict int

const (
	NoGuess Verdict = iota
	NoMatch
	PartialMatch
	ExactMatch
)

func (v Verdict) String() string {
	switch v {
	case NoMatch:
		return "no_match"
	case PartialMatch:
		return "partial_match"
	case ExactMatch:
		return "exact_match"
	default:
		return "no_guess"
	}
}

// Row holds one verdict per letter, aligned index for index with the guess.
type Row []Verdict

// Solved reports whether every cell is an exact match.
func (r Row) Solved() bool {
	if len(r) == 0 {
		return false
	}
	for _, v := range r {
		if v != ExactMatch {
			return false
		}
	}
	return true
}

// Count returns how many cells carry the verdict.
func (r Row) Count(v Verdict) int {
	n := 0
	for _, x := range r {
		if x == v {
			n++
		}
	}
	return n
}
