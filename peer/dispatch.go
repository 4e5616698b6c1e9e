package peer

import (
	"errors"
	"fmt"

	"github.com/adamgarcia4/goLearning/meff/gossip"
	"github.com/adamgarcia4/goLearning/meff/store"
	"github.com/adamgarcia4/goLearning/meff/wire"
)

// ErrStale marks a message that no longer matches local state, such as a second
// answer to an existence query. It is dropped without any effect.
var ErrStale = errors.New("peer: stale or duplicate message")

// Dispatch applies one inbound message and returns what must happen next.
// A non-nil error explains why the message had no effect; it is for logging only.
func (s *State) Dispatch(msg wire.Message) (Effects, error) {
	var fx Effects
	sender := msg.Sender

	switch c := msg.Content.(type) {
	case wire.PushToDB:
		if err := s.put(c.Key, c.Value, &fx); err != nil {
			return fx, err
		}
		s.replicate(c.Key, c.Value, &fx)
		origin := c.Origin
		if origin == "" {
			origin = sender
		}
		if origin != "" && origin != s.addr {
			fx.send(origin, wire.StoreAck{Key: c.Key})
		}

	case wire.RedundantPushToDB:
		if err := s.put(c.Key, c.Value, &fx); err != nil {
			return fx, err
		}
		origin := c.Origin
		if origin == "" {
			origin = sender
		}
		if origin != "" {
			s.receivedFrom.release(c.Key)
			s.receivedFrom.add(origin, c.Key)
		}

	case wire.StoreAck:
		fx.Acks = append(fx.Acks, c.Key)

	case wire.ChangePeerName:
		if c.Name == "" {
			return fx, fmt.Errorf("%w: rename to empty name", ErrStale)
		}
		s.table.Remove(s.name)
		s.name = c.Name
		s.table.Insert(s.name, s.addr)
		fx.send(sender, wire.RequestForTable{Name: s.name})

	case wire.SendNetworkTable:
		if err := s.mergeTable(c.Table); err != nil {
			return fx, err
		}
		fx.sendAll(s.Others(), wire.SendNetworkUpdateTable{Table: gossip.EncodeTable(s.table.Entries())})

	case wire.SendNetworkUpdateTable:
		if err := s.mergeTable(c.Table); err != nil {
			return fx, err
		}

	case wire.RequestForTable:
		if s.table.Has(c.Name) {
			fx.send(sender, wire.ChangePeerName{Name: gossip.RenameSuggestion(c.Name)})
		} else {
			fx.send(sender, wire.SendNetworkTable{Table: gossip.EncodeTable(s.table.Entries())})
		}

	case wire.FindFile:
		intent := c.Intent
		if !intent.Valid() {
			intent = wire.IntentFetch
		}
		if _, err := s.query(c.Key, intent, &fx); err != nil {
			return fx, err
		}

	case wire.ExistFile:
		if s.items.Has(c.Key) {
			fx.send(sender, wire.ExistFileResponse{Key: c.Key, ID: c.ID})
		}

	case wire.ExistFileResponse:
		p, ok := s.pending.requests[c.ID]
		if !ok || p.Key != c.Key {
			return fx, fmt.Errorf("%w: existence response %d for %q", ErrStale, c.ID, c.Key)
		}
		s.pending.take(c.ID)
		if p.Intent == wire.IntentRemove {
			fx.send(sender, wire.DeleteFile{Key: c.Key})
		} else {
			fx.send(sender, wire.GetFile{Key: c.Key, Intent: p.Intent})
		}

	case wire.GetFile:
		value, err := s.items.Get(c.Key)
		if err != nil {
			return fx, fmt.Errorf("get file %q: %w", c.Key, ErrNotFound)
		}
		fx.send(sender, wire.GetFileResponse{Key: c.Key, Value: value, Intent: c.Intent})

	case wire.GetFileResponse:
		switch c.Intent {
		case wire.IntentPlay, wire.IntentFetch:
			fx.Deliveries = append(fx.Deliveries, Delivery{Key: c.Key, Value: c.Value, Intent: c.Intent})
		case wire.IntentRelocate:
			if err := s.put(c.Key, c.Value, &fx); err != nil {
				return fx, err
			}
		default:
			return fx, fmt.Errorf("%w: file response with intent %s", ErrStale, c.Intent)
		}

	case wire.ExitPeer:
		fx = s.Leave()

	case wire.DeleteFromNetwork:
		if c.Name != s.name {
			s.table.Remove(c.Name)
		}

	case wire.DeleteFile:
		s.remove(c.Key, &fx)

	case wire.OrderItem:
		if s.items.Has(c.Key) {
			return fx, fmt.Errorf("%w: already holding %q", ErrStale, c.Key)
		}
		if _, err := s.query(c.Key, wire.IntentRelocate, &fx); err != nil {
			return fx, err
		}

	case wire.SelfStatusRequest:
		fx.sendAll(s.table.Addresses(), wire.StatusRequest{})

	case wire.StatusRequest:
		fx.send(sender, wire.StatusResponse{Names: s.itemKeys(), PeerName: s.name})

	case wire.StatusResponse:
		fx.Remote = append(fx.Remote, c)

	case wire.PlayAudioRequest:
		value, err := s.items.Get(c.Name)
		if err != nil {
			return fx, fmt.Errorf("play %q: %w", c.Name, ErrNotFound)
		}
		fx.Deliveries = append(fx.Deliveries, Delivery{Key: c.Name, Value: value, Intent: wire.IntentPlay})

	case wire.DroppedPeer:
		fx = s.DropPeer(c.Addr)

	case nil:
		return fx, wire.ErrNilContent

	default:
		return fx, fmt.Errorf("%w: %T", wire.ErrUnknownKind, msg.Content)
	}

	return fx, nil
}

// mergeTable folds a serialized table into the membership table. The node's own
// entry is authoritative and survives any merge.
func (s *State) mergeTable(raw []byte) error {
	entries, err := gossip.DecodeTable(raw)
	if err != nil {
		return err
	}
	s.table.Merge(entries)
	s.table.Insert(s.name, s.addr)
	return nil
}

// query opens a pending request for key and asks every other member whether it
// holds it.
func (s *State) query(key string, intent wire.Intent, fx *Effects) (wire.RequestID, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}
	others := s.Others()
	if len(others) == 0 {
		return 0, fmt.Errorf("find %q: %w", key, ErrNoPeers)
	}
	id := s.pending.open(s.now(), key, intent)
	fx.sendAll(others, wire.ExistFile{Key: key, ID: id})
	return id, nil
}

func (s *State) put(key string, value []byte, fx *Effects) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.items.Put(key, value); err != nil {
		return fmt.Errorf("store %q: %w", key, err)
	}
	fx.Changes = append(fx.Changes, Change{Key: key, Kind: ItemAdded})
	return nil
}

// remove deletes key locally and forgets every ledger record of it.
func (s *State) remove(key string, fx *Effects) bool {
	s.pushedTo.release(key)
	s.receivedFrom.release(key)
	existed, err := s.items.Delete(key)
	if err != nil || !existed {
		return false
	}
	fx.Changes = append(fx.Changes, Change{Key: key, Kind: ItemRemoved})
	return true
}

func (s *State) itemKeys() []string {
	return store.Keys(s.items)
}
