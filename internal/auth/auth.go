package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Session is what the external auth service vouches for. The engine never
// issues tokens; it only verifies them through a Client.
type Session struct {
	UserID string
	Status string
}

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDeleted   = "deleted"
)

var ErrInvalidToken = errors.New("invalid session token")

type Client interface {
	Verify(ctx context.Context, token string) (*Session, error)
}

// StaticVerifier maps fixed tokens to sessions. Dev and test use only;
// production wires a real auth service behind the Client interface.
type StaticVerifier struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{sessions: map[string]Session{}}
}

func (v *StaticVerifier) Add(token, userID, status string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sessions[token] = Session{UserID: userID, Status: status}
}

func (v *StaticVerifier) Verify(ctx context.Context, token string) (*Session, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.sessions[strings.TrimSpace(token)]
	if !ok {
		return nil, ErrInvalidToken
	}
	out := s
	return &out, nil
}
