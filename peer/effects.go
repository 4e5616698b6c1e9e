package peer

import "github.com/adamgarcia4/goLearning/meff/wire"

// Outbound is a message the node must send once the state lock is released.
type Outbound struct {
	To      string
	Content wire.Content
}

// ChangeKind tells whether an item entered or left the local store.
type ChangeKind int

const (
	ItemAdded ChangeKind = iota + 1
	ItemRemoved
)

func (k ChangeKind) String() string {
	if k == ItemAdded {
		return "added"
	}
	return "removed"
}

// Change records a local store mutation.
type Change struct {
	Key  string
	Kind ChangeKind
}

// Delivery hands item content to a local collaborator: the player for
// IntentPlay, the disk writer for IntentFetch.
type Delivery struct {
	Key    string
	Value  []byte
	Intent wire.Intent
}

// Effects is everything a state transition asks the runtime to do after the
// lock is released. Transitions never perform I/O themselves.
type Effects struct {
	Out        []Outbound
	Deliveries []Delivery
	Changes    []Change
	Remote     []wire.StatusResponse
	Acks       []string

	// Leaving is set by an exit transition. Farewell is sent after Out has had
	// time to be served, right before the node stops.
	Leaving  bool
	Farewell []Outbound
}

func (e *Effects) send(to string, c wire.Content) {
	e.Out = append(e.Out, Outbound{To: to, Content: c})
}

func (e *Effects) sendAll(addrs []string, c wire.Content) {
	for _, addr := range addrs {
		e.send(addr, c)
	}
}

// Merge appends other's effects to e.
func (e *Effects) Merge(other Effects) {
	e.Out = append(e.Out, other.Out...)
	e.Deliveries = append(e.Deliveries, other.Deliveries...)
	e.Changes = append(e.Changes, other.Changes...)
	e.Remote = append(e.Remote, other.Remote...)
	e.Acks = append(e.Acks, other.Acks...)
	e.Farewell = append(e.Farewell, other.Farewell...)
	e.Leaving = e.Leaving || other.Leaving
}

// Empty reports whether the transition produced nothing to do.
func (e Effects) Empty() bool {
	return len(e.Out) == 0 && len(e.Deliveries) == 0 && len(e.Changes) == 0 &&
		len(e.Remote) == 0 && len(e.Acks) == 0 && len(e.Farewell) == 0 && !e.Leaving
}
