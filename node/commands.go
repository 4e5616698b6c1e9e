package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adamgarcia4/goLearning/meff/media"
	"github.com/adamgarcia4/goLearning/meff/peer"
	"github.com/adamgarcia4/goLearning/meff/wire"
)

// The command API used by the shell. Operations return once the transition is
// applied; network answers arrive later through the player, the disk writer,
// the observer and the display.

func (n *Node) alive() error {
	if n.ctx.Err() != nil {
		return ErrStopped
	}
	return nil
}

// StoreItem keeps name locally and pushes its redundant copy.
func (n *Node) StoreItem(name string, data []byte) error {
	if err := n.alive(); err != nil {
		return err
	}
	var (
		fx  peer.Effects
		err error
	)
	n.state.Do(func(s *peer.State) { fx, err = s.StoreItem(name, data) })
	if err != nil {
		return err
	}
	n.apply(fx)
	return nil
}

// RequestItem fetches, plays, removes or relocates name. Items held locally are
// handled without the network.
func (n *Node) RequestItem(name string, intent wire.Intent) error {
	if err := n.alive(); err != nil {
		return err
	}
	var (
		fx  peer.Effects
		err error
	)
	n.state.Do(func(s *peer.State) { _, fx, err = s.RequestItem(name, intent) })
	n.apply(fx)
	return err
}

// RemoveItem deletes name here and asks the network to delete its copies.
func (n *Node) RemoveItem(name string) error {
	return n.RequestItem(name, wire.IntentRemove)
}

// ControlPlayback drives the player. Play with an empty name resumes a paused item.
func (n *Node) ControlPlayback(name string, op media.PlaybackOp) error {
	switch op {
	case media.OpPlay:
		if name == "" {
			return n.player.Continue()
		}
		return n.RequestItem(name, wire.IntentPlay)
	case media.OpPause:
		return n.player.Pause()
	case media.OpContinue:
		return n.player.Continue()
	case media.OpStop:
		return n.player.Stop()
	}
	return fmt.Errorf("%w: %d", ErrUnknownOp, op)
}

// RequestRemoteStatus asks every member, this node included, for its item list.
// Answers go to the display.
func (n *Node) RequestRemoteStatus() error {
	if err := n.alive(); err != nil {
		return err
	}
	var fx peer.Effects
	n.state.Do(func(s *peer.State) { fx = s.SelfStatus() })
	n.apply(fx)
	return nil
}

// Status is a point-in-time view of the node for the shell.
type Status struct {
	peer.Snapshot
	Playing string
}

// Status copies the state without holding the lock afterwards.
func (n *Node) Status() Status {
	return Status{Snapshot: n.state.Snapshot(), Playing: n.player.Current()}
}

// Leave hands held items over to other members, tells everyone this node is
// gone and stops. It returns once the node has stopped or ctx ends.
func (n *Node) Leave(ctx context.Context) error {
	if err := n.alive(); err != nil {
		return err
	}
	var fx peer.Effects
	n.state.Do(func(s *peer.State) { fx = s.Leave() })
	n.apply(fx)

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// leave runs once per node: it keeps serving for the grace period so ordered
// items can be pulled, sends the farewell and stops.
func (n *Node) leave(farewell []peer.Outbound) {
	n.logf("leaving the network")
	if n.grpcServer != nil {
		n.grpcServer.SetServing(false)
	}

	select {
	case <-time.After(n.config.LeaveGrace):
	case <-n.ctx.Done():
	}

	var wg sync.WaitGroup
	for _, o := range farewell {
		wg.Add(1)
		go func(o peer.Outbound) {
			defer wg.Done()
			msg := wire.Message{Content: o.Content, Sender: n.addr}
			if err := n.client.Send(n.ctx, o.To, msg); err != nil && !errors.Is(err, context.Canceled) {
				n.debugf("farewell to %s: %v", o.To, err)
			}
		}(o)
	}
	wg.Wait()

	if err := n.Stop(); err != nil {
		n.errorf("stop after leave: %v", err)
	}
}
