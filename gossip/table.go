package gossip

/*
Membership Table

Each node keeps its own view of the network as a mapping from peer name to the
peer's listening address. The view is eventually consistent:

	join      -> the rendezvous answers a RequestForTable with its table
	merge     -> received tables are unioned in (insert-or-overwrite per name)
	leave     -> DeleteFromNetwork(name) removes a single entry
	drop      -> DroppedPeer(addr) removes every name bound to addr

There is no removal reconciliation beyond explicit leave/drop notices, so stale
entries for silently departed peers persist until the failure monitor clears them.
Two names may share an address; that is tolerated.
*/

import (
	"net"
	"sort"
	"strconv"
)

// Member is one name/address pair of the table.
type Member struct {
	Name string
	Addr string
}

// Table maps peer names to addresses. It is not safe for concurrent use;
// the owning node guards it with its state lock.
type Table struct {
	entries map[string]string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]string)}
}

// NewTableFrom copies entries into a new table.
func NewTableFrom(entries map[string]string) *Table {
	t := NewTable()
	t.Merge(entries)
	return t
}

// Insert binds name to addr, overwriting any previous binding.
func (t *Table) Insert(name, addr string) {
	t.entries[name] = addr
}

// Remove deletes name and reports whether it was present.
func (t *Table) Remove(name string) bool {
	if _, ok := t.entries[name]; !ok {
		return false
	}
	delete(t.entries, name)
	return true
}

// Lookup returns the address bound to name.
func (t *Table) Lookup(name string) (string, bool) {
	addr, ok := t.entries[name]
	return addr, ok
}

// Has reports whether name is a key of the table.
func (t *Table) Has(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// HasAddr reports whether any name is bound to addr.
func (t *Table) HasAddr(addr string) bool {
	for _, a := range t.entries {
		if a == addr {
			return true
		}
	}
	return false
}

// Len is the number of names in the table.
func (t *Table) Len() int {
	return len(t.entries)
}

// Merge unions other into the table and returns the names that were not known before.
// Merging is idempotent, and commutative for tables with disjoint names.
func (t *Table) Merge(other map[string]string) []string {
	var added []string
	for name, addr := range other {
		if _, ok := t.entries[name]; !ok {
			added = append(added, name)
		}
		t.entries[name] = addr
	}
	sort.Strings(added)
	return added
}

// RemoveAddr deletes every name bound to addr and returns the removed names.
func (t *Table) RemoveAddr(addr string) []string {
	var removed []string
	for name, a := range t.entries {
		if a == addr {
			removed = append(removed, name)
		}
	}
	for _, name := range removed {
		delete(t.entries, name)
	}
	sort.Strings(removed)
	return removed
}

// Entries returns a copy of the name -> address mapping.
func (t *Table) Entries() map[string]string {
	out := make(map[string]string, len(t.entries))
	for name, addr := range t.entries {
		out[name] = addr
	}
	return out
}

// Members returns the table sorted by name.
func (t *Table) Members() []Member {
	out := make([]Member, 0, len(t.entries))
	for name, addr := range t.entries {
		out = append(out, Member{Name: name, Addr: addr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Addresses returns the distinct addresses of the table in (port, host) order.
func (t *Table) Addresses() []string {
	seen := make(map[string]struct{}, len(t.entries))
	out := make([]string, 0, len(t.entries))
	for _, addr := range t.entries {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	SortAddresses(out)
	return out
}

// Others returns the distinct addresses other than self.
func (t *Table) Others(self string) []string {
	all := t.Addresses()
	out := all[:0]
	for _, addr := range all {
		if addr != self {
			out = append(out, addr)
		}
	}
	return out
}

// Clone returns an independent copy.
func (t *Table) Clone() *Table {
	return &Table{entries: t.Entries()}
}

// Successors returns up to max addresses following self in (port, host) order,
// wrapping around and never including self. If self is not in the table the walk
// starts at the first address.
func (t *Table) Successors(self string, max int) []string {
	addrs := t.Addresses()
	if max <= 0 || len(addrs) == 0 {
		return nil
	}

	start := 0
	for i, addr := range addrs {
		if addr == self {
			start = i + 1
			break
		}
	}

	out := make([]string, 0, max)
	for i := 0; i < len(addrs) && len(out) < max; i++ {
		addr := addrs[(start+i)%len(addrs)]
		if addr == self {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// SortAddresses orders host:port strings by port, then host. Unparseable
// addresses sort last, lexically.
func SortAddresses(addrs []string) {
	sort.SliceStable(addrs, func(i, j int) bool {
		hi, pi, oki := splitAddr(addrs[i])
		hj, pj, okj := splitAddr(addrs[j])
		switch {
		case oki && !okj:
			return true
		case !oki && okj:
			return false
		case !oki && !okj:
			return addrs[i] < addrs[j]
		}
		if pi != pj {
			return pi < pj
		}
		return hi < hj
	})
}

func splitAddr(addr string) (string, int, bool) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, false
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return "", 0, false
	}
	return host, p, true
}

// RenameSuggestion is the name offered to a joiner whose name is taken.
func RenameSuggestion(name string) string {
	return name + "+1"
}
