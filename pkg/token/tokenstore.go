package tokenstore

import (
	"sync"
	"time"
)

// in-memory revocation list for admin tokens. Entries are kept until the
// token would have expired anyway.
var (
	mu            sync.RWMutex
	revokedTokens = map[string]time.Time{}
)

// RevokeToken marks jti revoked until exp. A zero exp keeps it for a day.
func RevokeToken(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	if exp.IsZero() {
		exp = time.Now().Add(24 * time.Hour)
	}
	mu.Lock()
	defer mu.Unlock()
	revokedTokens[jti] = exp
	pruneLocked(time.Now())
}

func IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	_, ok := revokedTokens[jti]
	return ok
}

// Len reports how many revocations are tracked.
func Len() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(revokedTokens)
}

func pruneLocked(now time.Time) {
	for jti, exp := range revokedTokens {
		if exp.Before(now) {
			delete(revokedTokens, jti)
		}
	}
}
