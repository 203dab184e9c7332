package discord

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// userLimiter deja pasar una acción por usuario cada `win`.
// Las entradas expiran solas, así que el mapa no crece sin límite.
type userLimiter struct {
	seen *expirable.LRU[string, time.Time]
}

func newUserLimiter(window time.Duration) *userLimiter {
	return &userLimiter{seen: expirable.NewLRU[string, time.Time](4096, nil, window)}
}

func (l *userLimiter) Allow(userID string) bool {
	if userID == "" {
		return true
	}
	if _, ok := l.seen.Get(userID); ok {
		return false
	}
	l.seen.Add(userID, time.Now())
	return true
}
