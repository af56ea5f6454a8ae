package httpapi

import (
	"errors"
	"sync"
	"time"

	goLogin "github.com/MrEthical07/goLogin"
)

var (
	errFlowNotFound  = errors.New("flow not found")
	errRegistryFull  = errors.New("too many open flows")
	errServerStopped = errors.New("server stopped")
)

type entry struct {
	flow     goLogin.Flow
	lastSeen time.Time
	closedAt time.Time
}

// registry maps flow IDs to live controllers. Closed flows stay as
// tombstones until swept so late requests see 410 rather than 404.
type registry struct {
	mu      sync.Mutex
	flows   map[string]*entry
	max     int
	idleTTL time.Duration
	now     func() time.Time
	stopped bool
}

func newRegistry(max int, idleTTL time.Duration, now func() time.Time) *registry {
	if now == nil {
		now = time.Now
	}
	return &registry{
		flows:   make(map[string]*entry),
		max:     max,
		idleTTL: idleTTL,
		now:     now,
	}
}

func (r *registry) add(f goLogin.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return errServerStopped
	}
	if r.max > 0 && len(r.flows) >= r.max {
		r.evictClosedLocked()
		if len(r.flows) >= r.max {
			return errRegistryFull
		}
	}
	r.flows[f.ID()] = &entry{flow: f, lastSeen: r.now()}
	return nil
}

func (r *registry) get(id string) (goLogin.Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.flows[id]
	if !ok {
		return nil, errFlowNotFound
	}
	e.lastSeen = r.now()
	return e.flow, nil
}

// close closes the flow and keeps its tombstone.
func (r *registry) close(id string) (goLogin.Flow, error) {
	r.mu.Lock()
	e, ok := r.flows[id]
	if ok && e.closedAt.IsZero() {
		e.closedAt = r.now()
	}
	r.mu.Unlock()

	if !ok {
		return nil, errFlowNotFound
	}
	e.flow.Close()
	return e.flow, nil
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

// sweep closes flows idle longer than idleTTL and drops tombstones older
// than idleTTL.
func (r *registry) sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	now := r.now()

	var expired []goLogin.Flow
	r.mu.Lock()
	for id, e := range r.flows {
		switch {
		case !e.closedAt.IsZero():
			if now.Sub(e.closedAt) > r.idleTTL {
				delete(r.flows, id)
			}
		case now.Sub(e.lastSeen) > r.idleTTL:
			e.closedAt = now
			expired = append(expired, e.flow)
		}
	}
	r.mu.Unlock()

	for _, f := range expired {
		f.Close()
	}
	return len(expired)
}

func (r *registry) evictClosedLocked() {
	for id, e := range r.flows {
		if !e.closedAt.IsZero() {
			delete(r.flows, id)
		}
	}
}

// stop closes every flow and refuses new ones.
func (r *registry) stop() {
	r.mu.Lock()
	r.stopped = true
	flows := make([]goLogin.Flow, 0, len(r.flows))
	for _, e := range r.flows {
		flows = append(flows, e.flow)
	}
	clear(r.flows)
	r.mu.Unlock()

	for _, f := range flows {
		f.Close()
	}
}
