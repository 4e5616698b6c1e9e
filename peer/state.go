// Package peer holds the state machine of a meff node: its identity, membership
// table, local store and the two ledgers, together with the transitions that
// mutate them.
//
// A State is not safe for concurrent use. Every worker reaches it through a
// Handle, which serializes access with a single mutex. Transitions return
// Effects instead of performing network I/O so the lock is never held across a
// round trip.
package peer

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/adamgarcia4/goLearning/meff/gossip"
	"github.com/adamgarcia4/goLearning/meff/store"
	"github.com/adamgarcia4/goLearning/meff/wire"
)

var (
	ErrNameRequired    = errors.New("peer: name is required")
	ErrAddressRequired = errors.New("peer: address is required")
	ErrNotFound        = errors.New("peer: item not found")
	ErrNoPeers         = errors.New("peer: no other peers in the network")
	ErrEmptyKey        = errors.New("peer: item name is empty")
)

// State is the aggregate owned by one node process.
type State struct {
	name string
	addr string

	table        *gossip.Table
	items        store.Store
	pending      *pendingLedger
	pushedTo     redundancyLedger
	receivedFrom redundancyLedger

	rng *rand.Rand
	now func() time.Time
}

// Option customizes a State.
type Option func(*State)

// WithRand makes target selection deterministic.
func WithRand(rng *rand.Rand) Option {
	return func(s *State) { s.rng = rng }
}

// WithClock replaces time.Now for request ids and pending expiry.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// New creates the state of a node named name listening on addr. The membership
// table is seeded with the node itself.
func New(name, addr string, items store.Store, opts ...Option) (*State, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if addr == "" {
		return nil, ErrAddressRequired
	}
	if items == nil {
		items = store.NewMemory()
	}

	s := &State{
		name:         name,
		addr:         addr,
		table:        gossip.NewTable(),
		items:        items,
		pending:      newPendingLedger(),
		pushedTo:     make(redundancyLedger),
		receivedFrom: make(redundancyLedger),
		rng:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6d656666)),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.table.Insert(name, addr)
	return s, nil
}

// Name is the node's current name.
func (s *State) Name() string { return s.name }

// Addr is the node's listening address.
func (s *State) Addr() string { return s.addr }

// Table exposes the membership table to code holding the lock.
func (s *State) Table() *gossip.Table { return s.table }

// Items exposes the local store to code holding the lock.
func (s *State) Items() store.Store { return s.items }

// Others returns the addresses of every other member.
func (s *State) Others() []string {
	return s.table.Others(s.addr)
}

// PendingCount is the number of unanswered existence queries.
func (s *State) PendingCount() int {
	return len(s.pending.requests)
}

// PendingRequest looks up an outstanding query.
func (s *State) PendingRequest(id wire.RequestID) (Pending, bool) {
	p, ok := s.pending.requests[id]
	return p, ok
}

// PruneRequests forgets queries older than maxAge that never got an answer.
func (s *State) PruneRequests(maxAge time.Duration) int {
	return s.pending.prune(s.now().Add(-maxAge))
}

// Redundancy returns a copy of the pushed-to ledger: address -> keys.
func (s *State) Redundancy() map[string][]string {
	return s.pushedTo.snapshot()
}

// Backups returns a copy of the received-from ledger: origin address -> keys.
func (s *State) Backups() map[string][]string {
	return s.receivedFrom.snapshot()
}

// Snapshot is a copy of the state safe to use after the lock is released.
type Snapshot struct {
	Name       string
	Addr       string
	Members    []gossip.Member
	Items      []store.Item
	Pending    int
	Redundancy map[string][]string
	Backups    map[string][]string
}

// Snapshot copies the state.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Name:       s.name,
		Addr:       s.addr,
		Members:    s.table.Members(),
		Items:      s.items.List(),
		Pending:    s.PendingCount(),
		Redundancy: s.Redundancy(),
		Backups:    s.Backups(),
	}
}

// Handle is the shared, lock-guarded reference to a State handed to every worker.
type Handle struct {
	mu    sync.Mutex
	state *State
}

// NewHandle wraps s. s must not be used directly afterwards.
func NewHandle(s *State) *Handle {
	return &Handle{state: s}
}

// Do runs fn with exclusive access to the state. fn must not block on I/O.
func (h *Handle) Do(fn func(s *State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.state)
}

// Snapshot returns a copy of the state.
func (h *Handle) Snapshot() Snapshot {
	var snap Snapshot
	h.Do(func(s *State) { snap = s.Snapshot() })
	return snap
}
