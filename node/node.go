package node

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/adamgarcia4/goLearning/meff/logger"
	"github.com/adamgarcia4/goLearning/meff/media"
	"github.com/adamgarcia4/goLearning/meff/peer"
	"github.com/adamgarcia4/goLearning/meff/store"
	"github.com/adamgarcia4/goLearning/meff/transport"
	"github.com/adamgarcia4/goLearning/meff/wire"
)

// Observer is told about every change to the local store.
type Observer interface {
	OnStoreChanged(key string, kind peer.ChangeKind)
}

// Display presents the answers to a remote status request.
type Display interface {
	RemoteFiles(peerName string, names []string)
}

// Node is one running meff peer: the shared state plus the workers that feed it.
type Node struct {
	config *Config
	addr   string
	state  *peer.Handle
	items  store.Store

	// name mirrors the state's name so logging never takes the state lock.
	name atomic.Value

	client     *transport.Client
	listener   *transport.Listener
	grpcServer *transport.GRPC

	writer media.DiskWriter
	player media.Player

	observer Observer
	display  Display

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	started bool
	done    chan struct{}

	// sendMu orders sends against Stop so no send starts after Stop waits on sends.
	sendMu   sync.RWMutex
	stopping bool
	sends    sync.WaitGroup
	workers  sync.WaitGroup
	stopOnce sync.Once
	leaving  sync.Once
}

// Option customizes a Node.
type Option func(*options)

type options struct {
	items    store.Store
	writer   media.DiskWriter
	player   media.Player
	observer Observer
	display  Display
	rng      *rand.Rand
}

// WithStore replaces the store chosen from the config.
func WithStore(s store.Store) Option { return func(o *options) { o.items = s } }

// WithDiskWriter replaces the download directory writer.
func WithDiskWriter(w media.DiskWriter) Option { return func(o *options) { o.writer = w } }

// WithPlayer replaces the player chosen from the config.
func WithPlayer(p media.Player) Option { return func(o *options) { o.player = p } }

func WithObserver(obs Observer) Option { return func(o *options) { o.observer = obs } }

func WithDisplay(d Display) Option { return func(o *options) { o.display = d } }

// WithRand makes redundant target selection deterministic.
func WithRand(rng *rand.Rand) Option { return func(o *options) { o.rng = rng } }

// New creates a new node with the given configuration
func New(config *Config, opts ...Option) (*Node, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	addr := config.GetAddress()
	if config.Address == AutoAddress {
		port, _ := strconv.Atoi(config.Port)
		discovered, err := transport.DiscoverLocalEndpoint(port)
		if err != nil {
			return nil, fmt.Errorf("discover local address: %w", err)
		}
		addr = discovered
	}

	items := o.items
	if items == nil {
		if config.DataDir != "" {
			b, err := store.OpenBolt(config.DataDir)
			if err != nil {
				return nil, err
			}
			items = b
		} else {
			items = store.NewMemory()
		}
	}

	player := o.player
	if player == nil {
		if config.PlayerCommand != "" {
			p, err := media.NewExecPlayer(config.PlayerCommand)
			if err != nil {
				closeOwned(o.items, items)
				return nil, err
			}
			player = p
		} else {
			player = &media.LogPlayer{}
		}
	}

	writer := o.writer
	if writer == nil {
		writer = media.NewDirWriter(config.DownloadDir)
	}

	var stateOpts []peer.Option
	if o.rng != nil {
		stateOpts = append(stateOpts, peer.WithRand(o.rng))
	}
	state, err := peer.New(config.Name, addr, items, stateOpts...)
	if err != nil {
		closeOwned(o.items, items)
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		config:   config,
		addr:     addr,
		state:    peer.NewHandle(state),
		items:    items,
		client:   transport.NewClient(config.DialTimeout),
		writer:   writer,
		player:   player,
		observer: o.observer,
		display:  o.display,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	n.name.Store(config.Name)
	return n, nil
}

// closeOwned closes a store New opened itself. A store passed in by the caller
// stays open.
func closeOwned(given, opened store.Store) {
	if given == nil && opened != nil {
		opened.Close()
	}
}

// Start binds the listener, starts the failure monitor and, when configured,
// joins the network through the rendezvous address.
func (n *Node) Start() error {
	if err := n.start(); err != nil {
		return err
	}

	if n.config.Join != "" {
		n.logf("joining through %s", n.config.Join)
		var fx peer.Effects
		n.state.Do(func(s *peer.State) { fx = s.JoinRequest(n.config.Join) })
		n.apply(fx)
	}
	return nil
}

// start launches the workers under n.mu. Effects are applied by the caller once
// n.mu is released.
func (n *Node) start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return ErrAlreadyStarted
	}
	if n.ctx.Err() != nil {
		return ErrStopped
	}

	listener, err := transport.Listen(n.listenAddress(), n, n.config.ReadTimeout, n.Name())
	if err != nil {
		return err
	}
	n.listener = listener

	if healthAddr := n.config.HealthAddress(); healthAddr != "" {
		g, err := transport.NewGRPC(healthAddr, n.config.Name)
		if err != nil {
			listener.Close()
			return fmt.Errorf("failed to create health server: %w", err)
		}
		if err := g.Start(); err != nil {
			listener.Close()
			return fmt.Errorf("failed to bind health server: %w", err)
		}
		n.grpcServer = g
		n.logf("health endpoint on %s", g.Addr())
	}

	n.workers.Add(2)
	go func() {
		defer n.workers.Done()
		if err := listener.Serve(n.ctx); err != nil {
			n.errorf("listener stopped: %v", err)
		}
	}()
	go func() {
		defer n.workers.Done()
		n.monitor()
	}()
	n.started = true

	n.logf("Node %s started on %s", n.config.Name, n.addr)
	return nil
}

// listenAddress is where the listener binds. A discovered address is bound as is.
func (n *Node) listenAddress() string {
	if n.config.Address == AutoAddress {
		return n.addr
	}
	return net.JoinHostPort(n.config.Address, n.config.Port)
}

// Stop stops the node gracefully. The process is free to exit once Done is closed.
func (n *Node) Stop() error {
	var err error
	n.stopOnce.Do(func() {
		n.logf("Stopping node %s...", n.Name())

		n.sendMu.Lock()
		n.stopping = true
		n.sendMu.Unlock()

		n.cancel()

		n.mu.RLock()
		listener, grpcServer := n.listener, n.grpcServer
		n.mu.RUnlock()

		if listener != nil {
			listener.Close()
		}
		n.workers.Wait()
		n.sends.Wait()

		if grpcServer != nil {
			if stopErr := grpcServer.Stop(); stopErr != nil {
				n.logf("Error stopping health server: %v", stopErr)
			}
		}
		if stopErr := n.player.Stop(); stopErr != nil && !errors.Is(stopErr, media.ErrNotPlaying) {
			n.logf("Error stopping player: %v", stopErr)
		}
		err = n.items.Close()

		close(n.done)
		n.logf("Node %s stopped", n.Name())
	})
	return err
}

// Done is closed once the node has stopped, after Stop or after leaving.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Name is the node's current name; it changes after a rename directive.
func (n *Node) Name() string {
	return n.name.Load().(string)
}

// Addr is the address peers use to reach this node.
func (n *Node) Addr() string {
	return n.addr
}

// GetConfig returns the node configuration (for external access)
func (n *Node) GetConfig() *Config {
	return n.config
}

// SetObserver replaces the store-change observer.
func (n *Node) SetObserver(obs Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observer = obs
}

// SetDisplay replaces the remote status display.
func (n *Node) SetDisplay(d Display) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.display = d
}

// HandleMessage is the listener's entry point: one transition under the lock,
// then the effects without it.
func (n *Node) HandleMessage(msg wire.Message) {
	n.debugf("received %s", msg)

	var (
		fx  peer.Effects
		err error
	)
	n.state.Do(func(s *peer.State) {
		fx, err = s.Dispatch(msg)
		n.name.Store(s.Name())
	})
	if err != nil {
		if errors.Is(err, peer.ErrStale) {
			n.debugf("ignoring %s: %v", msg, err)
		} else {
			n.warnf("%s: %v", msg, err)
		}
	}
	n.apply(fx)
}

// apply carries out the effects of a transition. It must be called without the
// state lock held.
func (n *Node) apply(fx peer.Effects) {
	n.mu.RLock()
	observer, display := n.observer, n.display
	n.mu.RUnlock()

	for _, c := range fx.Changes {
		n.debugf("item %s %s", c.Key, c.Kind)
		if observer != nil {
			observer.OnStoreChanged(c.Key, c.Kind)
		}
	}
	for _, d := range fx.Deliveries {
		n.deliver(d)
	}
	for _, r := range fx.Remote {
		if display != nil {
			display.RemoteFiles(r.PeerName, r.Names)
		} else {
			n.logf("%s holds %v", r.PeerName, r.Names)
		}
	}
	for _, key := range fx.Acks {
		n.logf("peer acknowledged %s", key)
	}
	for _, o := range fx.Out {
		n.send(o)
	}
	if fx.Leaving {
		n.leaving.Do(func() { go n.leave(fx.Farewell) })
	}
}

func (n *Node) deliver(d peer.Delivery) {
	switch d.Intent {
	case wire.IntentPlay:
		if err := n.player.Play(d.Key, d.Value); err != nil {
			n.warnf("play %s: %v", d.Key, err)
			return
		}
		n.logf("playing %s", d.Key)
	case wire.IntentFetch:
		if err := n.writer.WriteItem(d.Key, d.Value); err != nil {
			n.warnf("write %s: %v", d.Key, err)
			return
		}
		n.logf("saved %s (%d bytes)", d.Key, len(d.Value))
	default:
		n.warnf("no collaborator for %s with intent %s", d.Key, d.Intent)
	}
}

// send fires one message in the background. A failed send means the target is
// presumed lost.
func (n *Node) send(o peer.Outbound) {
	n.sendMu.RLock()
	if n.stopping {
		n.sendMu.RUnlock()
		return
	}
	n.sends.Add(1)
	n.sendMu.RUnlock()

	go func() {
		defer n.sends.Done()
		msg := wire.Message{Content: o.Content, Sender: n.addr}
		if err := n.client.Send(n.ctx, o.To, msg); err != nil {
			if n.ctx.Err() != nil {
				return
			}
			n.lost(o.To, err)
		}
	}()
}

// lost runs the lost-peer path for addr.
func (n *Node) lost(addr string, cause error) {
	var fx peer.Effects
	n.state.Do(func(s *peer.State) { fx = s.LostPeer(addr) })
	if fx.Empty() {
		return
	}
	n.warnf("peer %s lost: %v", addr, cause)
	n.apply(fx)
}

func (n *Node) logf(format string, args ...interface{}) {
	logger.For(n.Name()).Infof(format, args...)
}

func (n *Node) debugf(format string, args ...interface{}) {
	logger.For(n.Name()).Debugf(format, args...)
}

func (n *Node) warnf(format string, args ...interface{}) {
	logger.For(n.Name()).Warnf(format, args...)
}

func (n *Node) errorf(format string, args ...interface{}) {
	logger.For(n.Name()).Errorf(format, args...)
}
