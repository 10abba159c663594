package words

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
)

// RandomSource picks uniformly from the embedded lists.
type RandomSource struct{}

func (RandomSource) Word(_ context.Context, req Request) (string, error) {
	list, err := List(req.Lang, req.Length)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(list))))
	if err != nil {
		return "", fmt.Errorf("random index: %w", err)
	}
	return list[n.Int64()], nil
}

// MatchSource derives the word from the match id, so both clients of a match
// pick the same secret without exchanging it.
type MatchSource struct {
	Salt string
}

func (s MatchSource) Word(_ context.Context, req Request) (string, error) {
	if req.MatchID == "" {
		return "", ErrMissingMatch
	}
	list, err := List(req.Lang, req.Length)
	if err != nil {
		return "", err
	}
	key := req.MatchID + "|" + langOrDefault(req.Lang) + "|" + strconv.Itoa(req.Length)
	return list[Index(s.Salt, key, len(list))], nil
}

// DailySource returns the same word for everyone on a UTC day.
type DailySource struct {
	Salt  string
	Clock clockwork.Clock
}

func (s DailySource) Word(_ context.Context, req Request) (string, error) {
	list, err := List(req.Lang, req.Length)
	if err != nil {
		return "", err
	}
	clock := s.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return list[Index(s.Salt, DateKey(clock.Now()), len(list))], nil
}

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Index maps key to [0, n) with HMAC-SHA256(salt, key).
func Index(salt, key string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(key))
	sum := h.Sum(nil)
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(n))
}
