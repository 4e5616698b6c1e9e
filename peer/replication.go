package peer

import (
	"math/rand/v2"

	"github.com/adamgarcia4/goLearning/meff/gossip"
	"github.com/adamgarcia4/goLearning/meff/wire"
)

// ChooseRedundantTarget picks a uniformly random member address other than self.
// It returns false when self is the only member. Sampling is repeated until an
// address different from self comes up.
func ChooseRedundantTarget(table *gossip.Table, self string, rng *rand.Rand) (string, bool) {
	if table.Len() <= 1 {
		return "", false
	}
	addrs := table.Addresses()
	if len(addrs) == 1 && addrs[0] == self {
		// several names, one address: nobody else to hold a copy
		return "", false
	}
	for {
		addr := addrs[rng.IntN(len(addrs))]
		if addr != self {
			return addr, true
		}
	}
}

// replicate sends the single redundant copy of key to one other member and
// records the holder. A key that already has a live holder is re-sent there so
// it never ends up under two addresses.
func (s *State) replicate(key string, value []byte, fx *Effects) (string, bool) {
	target, ok := "", false
	if holder, known := s.pushedTo.holder(key); known && holder != s.addr && s.table.HasAddr(holder) {
		target, ok = holder, true
	} else {
		target, ok = ChooseRedundantTarget(s.table, s.addr, s.rng)
	}
	if !ok {
		return "", false
	}

	s.pushedTo.release(key)
	s.pushedTo.add(target, key)
	fx.send(target, wire.RedundantPushToDB{Key: key, Value: value, Origin: s.addr})
	return target, true
}

// Redistribute re-replicates what was associated with a lost peer: the items this
// node had pushed there, and the items it holds as the lost peer's backup (it now
// keeps the only copy). Both ledger entries for lost are cleared; the new holders
// are recorded in the pushed-to ledger.
func (s *State) Redistribute(lost string) Effects {
	var fx Effects

	pushed := s.pushedTo.keys(lost)
	backups := s.receivedFrom.keys(lost)
	delete(s.pushedTo, lost)
	delete(s.receivedFrom, lost)

	seen := make(map[string]struct{}, len(pushed)+len(backups))
	for _, key := range append(pushed, backups...) {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		value, err := s.items.Get(key)
		if err != nil {
			continue
		}
		if _, ok := s.replicate(key, value, &fx); !ok {
			// alone in the network; the local copy is all there is
			continue
		}
	}
	return fx
}

// DropPeer removes every member bound to addr and redistributes what it held.
// The node's own address is never dropped.
func (s *State) DropPeer(addr string) Effects {
	if addr == s.addr {
		return Effects{}
	}
	s.table.RemoveAddr(addr)
	return s.Redistribute(addr)
}

// LostPeer handles a failed connection to addr: the peer is dropped, every
// remaining member is told about it and its items are redistributed. It is a
// no-op for addresses that are no longer members, which stops a cascade of
// failures from re-announcing the same loss.
func (s *State) LostPeer(addr string) Effects {
	if addr == s.addr || !s.table.HasAddr(addr) {
		return Effects{}
	}
	fx := s.DropPeer(addr)

	var notice Effects
	notice.sendAll(s.Others(), wire.DroppedPeer{Addr: addr})
	notice.Merge(fx)
	return notice
}
