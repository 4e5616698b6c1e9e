package node

import (
	"context"
	"sync"
	"time"

	"github.com/adamgarcia4/goLearning/meff/peer"
)

// monitor probes peers every heartbeat interval until the node stops.
func (n *Node) monitor() {
	ticker := time.NewTicker(n.config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.probeRound()
		case <-n.ctx.Done():
			return
		}
	}
}

// probeTargets picks who to probe this round: nobody when alone, everybody in a
// small network, otherwise a bounded run of successors in (port, host) order.
// Stale existence queries are pruned on the way.
func (n *Node) probeTargets() []string {
	var (
		targets []string
		pruned  int
	)
	n.state.Do(func(s *peer.State) {
		pruned = s.PruneRequests(n.config.RequestTTL)
		members := s.Table().Len()
		switch {
		case members <= 1:
		case members < n.config.ProbeThreshold:
			targets = s.Others()
		default:
			targets = s.Table().Successors(s.Addr(), n.config.MaxProbeTargets)
		}
	})
	if pruned > 0 {
		n.debugf("forgot %d unanswered queries", pruned)
	}
	return targets
}

func (n *Node) probeRound() {
	targets := n.probeTargets()
	if len(targets) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, addr := range targets {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(n.ctx, n.config.ProbeTimeout)
			defer cancel()
			if err := n.client.Probe(ctx, addr); err != nil && n.ctx.Err() == nil {
				n.lost(addr, err)
			}
		}(addr)
	}
	wg.Wait()
}
