package peer

import (
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/adamgarcia4/goLearning/meff/wire"
)

// Pending is an outstanding existence query.
type Pending struct {
	Key     string
	Intent  wire.Intent
	Created time.Time
}

// pendingLedger correlates existence responses with the query that caused them.
// An entry is consumed by the first matching response.
type pendingLedger struct {
	requests map[wire.RequestID]Pending
	last     wire.RequestID
}

func newPendingLedger() *pendingLedger {
	return &pendingLedger{requests: make(map[wire.RequestID]Pending)}
}

// open registers a query under a fresh id. Ids are nanosecond timestamps bumped
// past the previous id so two queries opened within one clock tick stay distinct.
func (l *pendingLedger) open(now time.Time, key string, intent wire.Intent) wire.RequestID {
	id := wire.RequestID(now.UnixNano())
	if id <= l.last {
		id = l.last + 1
	}
	l.last = id
	l.requests[id] = Pending{Key: key, Intent: intent, Created: now}
	return id
}

// take removes and returns the entry for id.
func (l *pendingLedger) take(id wire.RequestID) (Pending, bool) {
	p, ok := l.requests[id]
	if ok {
		delete(l.requests, id)
	}
	return p, ok
}

// prune drops entries created before cutoff and returns how many were dropped.
func (l *pendingLedger) prune(cutoff time.Time) int {
	n := 0
	for id, p := range l.requests {
		if p.Created.Before(cutoff) {
			delete(l.requests, id)
			n++
		}
	}
	return n
}

// redundancyLedger maps a peer address to the set of item keys associated with it.
// The pushed-to ledger keeps each key under at most one address.
type redundancyLedger map[string]mapset.Set[string]

func (l redundancyLedger) add(addr, key string) {
	set, ok := l[addr]
	if !ok {
		set = mapset.NewThreadUnsafeSet[string]()
		l[addr] = set
	}
	set.Add(key)
}

// holder returns the address key is recorded under.
func (l redundancyLedger) holder(key string) (string, bool) {
	for addr, set := range l {
		if set.Contains(key) {
			return addr, true
		}
	}
	return "", false
}

// release removes key from every address, dropping emptied entries.
func (l redundancyLedger) release(key string) {
	for addr, set := range l {
		set.Remove(key)
		if set.Cardinality() == 0 {
			delete(l, addr)
		}
	}
}

// keys returns the sorted keys recorded under addr.
func (l redundancyLedger) keys(addr string) []string {
	set, ok := l[addr]
	if !ok {
		return nil
	}
	keys := set.ToSlice()
	sort.Strings(keys)
	return keys
}

func (l redundancyLedger) snapshot() map[string][]string {
	out := make(map[string][]string, len(l))
	for addr := range l {
		out[addr] = l.keys(addr)
	}
	return out
}
