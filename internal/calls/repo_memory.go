package calls

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu       sync.Mutex
	sessions map[string]CallSession
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sessions: make(map[string]CallSession)}
}

func (r *MemoryRepo) Create(ctx context.Context, s CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.CallID]; ok {
		return ErrDuplicateCallID
	}
	r.sessions[s.CallID] = clone(s)
	return nil
}

func (r *MemoryRepo) FindByCallID(ctx context.Context, callID string) (CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return clone(s), nil
}

func (r *MemoryRepo) Complete(ctx context.Context, callID string, endedAt time.Time) (CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	s = clone(s)
	s.complete(endedAt)
	r.sessions[callID] = s
	return clone(s), nil
}

// Len reports the number of stored sessions.
func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func clone(s CallSession) CallSession {
	s.ConversationLog = slices.Clone(s.ConversationLog)
	return s
}
