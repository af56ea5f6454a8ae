package goLogin

import (
	"context"
	"slices"
	"sync"
)

// SessionState owns the process-wide Session. All mutation goes through its
// methods and is serialized; observers see every committed value in commit
// order.
//
// Observers run on the mutating goroutine. They may call Current and read any
// flow's State, but must not call a mutator or drive a flow.
type SessionState struct {
	engine *Engine

	// writeMu serializes mutations together with their notifications.
	writeMu sync.Mutex

	mu        sync.RWMutex
	current   Session
	version   uint64
	observers map[uint64]func(Session)
	nextObs   uint64
}

func newSessionState(e *Engine) *SessionState {
	return &SessionState{
		engine:    e,
		observers: make(map[uint64]func(Session)),
	}
}

// Current returns a copy of the session.
func (s *SessionState) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Watch registers fn for every future committed session. The returned
// function unregisters it.
func (s *SessionState) Watch(fn func(Session)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// ApplySignedIn marks the user authenticated as displayName.
func (s *SessionState) ApplySignedIn(displayName string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.commitLocked(Session{Authenticated: true, DisplayName: displayName})
}

// ApplySignedOut clears the session.
func (s *SessionState) ApplySignedOut() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.commitLocked(Session{})
}

// Refresh asks the provider whether a session exists and mirrors the answer.
// Any failure leaves the user signed out. The provider is queried without
// holding the write lock; if another commit lands meanwhile, that commit wins
// and Refresh returns it.
func (s *SessionState) Refresh(ctx context.Context) Session {
	e := s.engine
	e.metricInc(MetricSessionRefresh)
	start := s.currentVersion()

	next := Session{}
	if e.gateway.FetchSession(ctx) {
		if name, ok := e.gateway.CurrentUsername(ctx); ok {
			next = Session{Authenticated: true, DisplayName: name}
		}
	}

	s.writeMu.Lock()
	if s.currentVersion() == start {
		s.commitLocked(next)
	} else {
		next = s.Current()
		e.logger.DebugContext(ctx, "session changed during refresh; keeping newer value")
	}
	s.writeMu.Unlock()

	e.emitAudit(ctx, auditEventSessionRefresh, next.Authenticated, auditMeta{username: next.DisplayName}, nil, nil)
	return next
}

// SignOut ends the remote session best-effort and always clears the local
// one. Remote failures are logged and counted, never returned.
func (s *SessionState) SignOut(ctx context.Context) {
	e := s.engine
	name := s.Current().DisplayName

	e.metricInc(MetricSignOut)
	remoteErr := e.gateway.SignOut(ctx)
	if remoteErr != nil {
		e.metricInc(MetricSignOutRemoteFailure)
		e.logger.WarnContext(ctx, "remote sign-out failed; clearing local session", "kind", KindOf(remoteErr).String())
	}

	s.writeMu.Lock()
	s.commitLocked(Session{})
	s.writeMu.Unlock()

	if e.config.Credentials.ForgetOnSignOut {
		e.forgetCredential(ctx)
	}

	e.emitAudit(ctx, auditEventSignOut, true, auditMeta{username: name}, nil, func() map[string]string {
		if remoteErr == nil {
			return nil
		}
		return map[string]string{"remote_error": KindOf(remoteErr).String()}
	})
}

func (s *SessionState) currentVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// commitLocked stores next and notifies observers. writeMu must be held.
func (s *SessionState) commitLocked(next Session) {
	if !next.Authenticated {
		next.DisplayName = ""
	}

	s.mu.Lock()
	s.current = next
	s.version++
	obs := make([]func(Session), 0, len(s.observers))
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		obs = append(obs, s.observers[id])
	}
	s.mu.Unlock()

	for _, fn := range obs {
		fn(next)
	}
}
