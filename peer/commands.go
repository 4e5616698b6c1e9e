package peer

import (
	"fmt"

	"github.com/adamgarcia4/goLearning/meff/wire"
)

// StoreItem writes key locally and pushes its one redundant copy.
func (s *State) StoreItem(key string, value []byte) (Effects, error) {
	var fx Effects
	if err := s.put(key, value, &fx); err != nil {
		return fx, err
	}
	s.replicate(key, value, &fx)
	return fx, nil
}

// RequestItem acts on key with the given intent. Items held locally are served
// without touching the network: fetch and play become deliveries, remove deletes
// the item and broadcasts a delete notice. Anything else starts an existence
// query; the returned id is zero when nothing was sent.
func (s *State) RequestItem(key string, intent wire.Intent) (wire.RequestID, Effects, error) {
	var fx Effects
	if key == "" {
		return 0, fx, ErrEmptyKey
	}
	if !intent.Valid() {
		return 0, fx, fmt.Errorf("peer: invalid intent %d", intent)
	}

	if value, err := s.items.Get(key); err == nil {
		switch intent {
		case wire.IntentFetch, wire.IntentPlay:
			fx.Deliveries = append(fx.Deliveries, Delivery{Key: key, Value: value, Intent: intent})
			return 0, fx, nil
		case wire.IntentRemove:
			fx = s.RemoveItem(key)
			return 0, fx, nil
		case wire.IntentRelocate:
			return 0, fx, nil
		}
	}

	id, err := s.query(key, intent, &fx)
	return id, fx, err
}

// RemoveItem deletes key locally and tells every other member to delete it too.
// The notice goes to all members, not only the tracked holder, so copies a peer
// holds for other reasons disappear as well.
func (s *State) RemoveItem(key string) Effects {
	var fx Effects
	s.remove(key, &fx)
	fx.sendAll(s.Others(), wire.DeleteFile{Key: key})
	return fx
}

// Leave prepares the node's departure. Every held item is ordered by a random
// other member so the network keeps a copy; the farewell notice that removes this
// node from every table is sent last, right before the process stops.
func (s *State) Leave() Effects {
	fx := Effects{Leaving: true}
	for _, key := range s.itemKeys() {
		target, ok := ChooseRedundantTarget(s.table, s.addr, s.rng)
		if !ok {
			break
		}
		fx.send(target, wire.OrderItem{Key: key})
	}
	for _, addr := range s.Others() {
		fx.Farewell = append(fx.Farewell, Outbound{To: addr, Content: wire.DeleteFromNetwork{Name: s.name}})
	}
	return fx
}

// SelfStatus fans a status request out to every member, this node included.
func (s *State) SelfStatus() Effects {
	var fx Effects
	fx.sendAll(s.table.Addresses(), wire.StatusRequest{})
	return fx
}

// JoinRequest asks the rendezvous member for its table under the current name.
func (s *State) JoinRequest(rendezvous string) Effects {
	var fx Effects
	if rendezvous == "" || rendezvous == s.addr {
		return fx
	}
	fx.send(rendezvous, wire.RequestForTable{Name: s.name})
	return fx
}
