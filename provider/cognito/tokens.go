package cognito

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tokens struct {
	idToken      string
	accessToken  string
	refreshToken string
	username     string
	expiresAt    time.Time
}

// tokenStore holds the pool session of the signed-in user.
type tokenStore struct {
	mu  sync.RWMutex
	cur *tokens
}

func (s *tokenStore) get() (tokens, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return tokens{}, false
	}
	return *s.cur, true
}

func (s *tokenStore) set(t tokens) {
	s.mu.Lock()
	s.cur = &t
	s.mu.Unlock()
}

func (s *tokenStore) clear() {
	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()
}

var claimParser = jwt.NewParser()

// readIDToken extracts the username and expiry from an ID token. The
// signature is not checked.
func readIDToken(raw string) (username string, exp time.Time, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := claimParser.ParseUnverified(raw, claims); err != nil {
		return "", time.Time{}, err
	}
	if v, ok := claims["cognito:username"].(string); ok {
		username = v
	}
	if username == "" {
		if v, ok := claims["email"].(string); ok {
			username = v
		}
	}
	if username == "" {
		username, _ = claims.GetSubject()
	}
	if e, err := claims.GetExpirationTime(); err == nil && e != nil {
		exp = e.Time
	}
	return username, exp, nil
}
