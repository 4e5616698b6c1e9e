package node

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamgarcia4/goLearning/meff/media"
	"github.com/adamgarcia4/goLearning/meff/peer"
	"github.com/adamgarcia4/goLearning/meff/store"
	"github.com/adamgarcia4/goLearning/meff/wire"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T, name string) *Config {
	c := DefaultConfig(name)
	c.Port = strconv.Itoa(freePort(t))
	c.HeartbeatInterval = 50 * time.Millisecond
	c.ProbeTimeout = 200 * time.Millisecond
	c.DialTimeout = 200 * time.Millisecond
	c.ReadTimeout = 2 * time.Second
	c.LeaveGrace = 300 * time.Millisecond
	c.DownloadDir = t.TempDir()
	return c
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

type memWriter struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (w *memWriter) WriteItem(name string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.items == nil {
		w.items = make(map[string][]byte)
	}
	w.items[name] = data
	return nil
}

func (w *memWriter) get(name string) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.items[name]
	return v, ok
}

type recordingDisplay struct {
	mu  sync.Mutex
	got map[string][]string
}

func (d *recordingDisplay) RemoteFiles(peerName string, names []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.got == nil {
		d.got = make(map[string][]string)
	}
	d.got[peerName] = names
}

func (d *recordingDisplay) snapshot() map[string][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string][]string, len(d.got))
	for k, v := range d.got {
		out[k] = v
	}
	return out
}

type changeLog struct {
	mu      sync.Mutex
	changes []peer.Change
}

func (c *changeLog) OnStoreChanged(key string, kind peer.ChangeKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, peer.Change{Key: key, Kind: kind})
}

func (c *changeLog) all() []peer.Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]peer.Change(nil), c.changes...)
}

func startNode(t *testing.T, cfg *Config, opts ...Option) *Node {
	t.Helper()
	n, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(func() { _ = n.Stop() })
	return n
}

func members(n *Node) int {
	return len(n.Status().Members)
}

func holds(n *Node, key string) bool {
	for _, it := range n.Status().Items {
		if it.Key == key {
			return true
		}
	}
	return false
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	c := DefaultConfig("")
	_, err = New(c)
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestStartTwiceFails(t *testing.T) {
	n := startNode(t, testConfig(t, "alice"))
	assert.ErrorIs(t, n.Start(), ErrAlreadyStarted)
}

func TestJoinStoreAndFailureScenario(t *testing.T) {
	a := startNode(t, testConfig(t, "A"))

	require.NoError(t, a.StoreItem("x", []byte("xx")))
	assert.Empty(t, a.Status().Redundancy)
	assert.True(t, holds(a, "x"))

	bcfg := testConfig(t, "B")
	bcfg.Join = a.Addr()
	b := startNode(t, bcfg)

	waitUntil(t, func() bool { return members(a) == 2 && members(b) == 2 }, "both tables hold A and B")

	require.NoError(t, a.StoreItem("y", []byte("yy")))
	waitUntil(t, func() bool { return holds(b, "y") }, "B receives the redundant copy")
	assert.Equal(t, map[string][]string{b.Addr(): {"y"}}, a.Status().Redundancy)

	require.NoError(t, b.Stop())
	waitUntil(t, func() bool { return members(a) == 1 }, "A drops B")

	st := a.Status()
	assert.True(t, holds(a, "y"))
	assert.Empty(t, st.Redundancy)
}

func TestRenameOnJoin(t *testing.T) {
	a := startNode(t, testConfig(t, "alice"))
	bcfg := testConfig(t, "alice")
	bcfg.Join = a.Addr()
	b := startNode(t, bcfg)

	waitUntil(t, func() bool { return b.Name() == "alice+1" && members(a) == 2 }, "joiner adopts the suggested name")
	want := map[string]string{"alice": a.Addr(), "alice+1": b.Addr()}
	for _, n := range []*Node{a, b} {
		got := map[string]string{}
		for _, m := range n.Status().Members {
			got[m.Name] = m.Addr
		}
		assert.Equal(t, want, got)
	}
}

func TestFetchFromAnotherPeer(t *testing.T) {
	writer := &memWriter{}
	a := startNode(t, testConfig(t, "A"), WithDiskWriter(writer))

	var others []*Node
	for _, name := range []string{"B", "C"} {
		cfg := testConfig(t, name)
		cfg.Join = a.Addr()
		others = append(others, startNode(t, cfg))
	}
	waitUntil(t, func() bool { return members(a) == 3 && members(others[1]) == 3 }, "three members")

	// only C holds the song
	c := others[1]
	require.NoError(t, c.items.Put("song", []byte("la la")))

	require.NoError(t, a.RequestItem("song", wire.IntentFetch))
	waitUntil(t, func() bool { _, ok := writer.get("song"); return ok }, "song written to disk")
	got, _ := writer.get("song")
	assert.Equal(t, []byte("la la"), got)
	assert.False(t, holds(a, "song"), "a fetch does not store the item")
	assert.Zero(t, a.Status().Pending)
}

func sendTo(t *testing.T, addr string, c wire.Content) {
	t.Helper()
	payload, err := wire.Encode(wire.Message{Content: c, Sender: addr})
	require.NoError(t, err)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestRemoteStatusReachesDisplay(t *testing.T) {
	display := &recordingDisplay{}
	a := startNode(t, testConfig(t, "A"), WithDisplay(display))
	bcfg := testConfig(t, "B")
	bcfg.Join = a.Addr()
	b := startNode(t, bcfg)
	waitUntil(t, func() bool { return members(a) == 2 }, "joined")

	require.NoError(t, b.items.Put("b-song", []byte("1")))
	require.NoError(t, a.RequestRemoteStatus())

	waitUntil(t, func() bool { return len(display.snapshot()) == 2 }, "both members answer")
	got := display.snapshot()
	assert.Equal(t, []string{"b-song"}, got["B"])
	assert.Empty(t, got["A"])
}

func TestRemoveReachesRedundantCopy(t *testing.T) {
	a := startNode(t, testConfig(t, "A"))
	bcfg := testConfig(t, "B")
	bcfg.Join = a.Addr()
	b := startNode(t, bcfg)
	waitUntil(t, func() bool { return members(a) == 2 && members(b) == 2 }, "joined")

	require.NoError(t, a.StoreItem("x", []byte("xx")))
	waitUntil(t, func() bool { return holds(b, "x") }, "copy replicated")

	require.NoError(t, a.RemoveItem("x"))
	assert.False(t, holds(a, "x"))
	waitUntil(t, func() bool { return !holds(b, "x") }, "copy removed")
}

func TestObserverSeesChanges(t *testing.T) {
	log := &changeLog{}
	a := startNode(t, testConfig(t, "A"), WithObserver(log))

	require.NoError(t, a.StoreItem("x", []byte("1")))
	require.NoError(t, a.RemoveItem("x"))
	assert.Equal(t, []peer.Change{{Key: "x", Kind: peer.ItemAdded}, {Key: "x", Kind: peer.ItemRemoved}}, log.all())
}

func TestPlaybackLocalItem(t *testing.T) {
	player := &media.LogPlayer{}
	a := startNode(t, testConfig(t, "A"), WithPlayer(player))

	require.NoError(t, a.StoreItem("tune", []byte("1")))
	require.NoError(t, a.ControlPlayback("tune", media.OpPlay))
	assert.Equal(t, "tune", a.Status().Playing)

	require.NoError(t, a.ControlPlayback("", media.OpPause))
	require.NoError(t, a.ControlPlayback("", media.OpPlay))
	require.NoError(t, a.ControlPlayback("", media.OpStop))
	assert.Empty(t, a.Status().Playing)
	assert.ErrorIs(t, a.ControlPlayback("", media.PlaybackOp(42)), ErrUnknownOp)
}

func TestRequestMissingItemAlone(t *testing.T) {
	a := startNode(t, testConfig(t, "A"))
	assert.ErrorIs(t, a.RequestItem("nothing", wire.IntentFetch), ErrNoPeers)
}

func TestLeaveHandsItemsOver(t *testing.T) {
	a := startNode(t, testConfig(t, "A"))
	bcfg := testConfig(t, "B")
	bcfg.Join = a.Addr()
	b := startNode(t, bcfg)
	waitUntil(t, func() bool { return members(a) == 2 && members(b) == 2 }, "joined")

	require.NoError(t, a.items.Put("keep", []byte("me")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Leave(ctx))

	select {
	case <-a.Done():
	default:
		t.Fatal("node still running after leave")
	}
	waitUntil(t, func() bool { return holds(b, "keep") && members(b) == 1 }, "B took the item and forgot A")
	assert.ErrorIs(t, a.StoreItem("late", nil), ErrStopped)
}

func TestExitPeerMessageStopsNode(t *testing.T) {
	a := startNode(t, testConfig(t, "A"))
	sendTo(t, a.Addr(), wire.ExitPeer{Addr: a.Addr()})

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop")
	}
}

func TestDataDirPersistsItems(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, "A")
	cfg.DataDir = dir

	a := startNode(t, cfg)
	require.NoError(t, a.StoreItem("kept", []byte("1")))
	require.NoError(t, a.Stop())

	cfg2 := testConfig(t, "A")
	cfg2.DataDir = dir
	again := startNode(t, cfg2)
	assert.True(t, holds(again, "kept"))
}

func TestManagerCluster(t *testing.T) {
	m := NewManager(freePort(t))
	m.Configure = func(c *Config) {
		c.HeartbeatInterval = 50 * time.Millisecond
		c.ProbeTimeout = 200 * time.Millisecond
		c.DialTimeout = 200 * time.Millisecond
		c.DownloadDir = t.TempDir()
	}
	t.Cleanup(func() { _ = m.StopAll() })

	for i := 0; i < 3; i++ {
		_, err := m.CreateNode()
		require.NoError(t, err)
	}
	nodes := m.GetNodes()
	require.Len(t, nodes, 3)
	waitUntil(t, func() bool {
		for _, n := range nodes {
			if members(n) != 3 {
				return false
			}
		}
		return true
	}, "every node knows the others")

	n, ok := m.Lookup(nodes[1].Addr())
	require.True(t, ok)
	assert.Same(t, nodes[1], n)

	require.NoError(t, m.DeleteNode(2))
	waitUntil(t, func() bool { return members(nodes[0]) == 2 && members(nodes[1]) == 2 }, "crashed node detected")
	assert.Error(t, m.DeleteNode(5))
}

func TestLargeNetworkProbesSuccessorsOnly(t *testing.T) {
	cfg := testConfig(t, "A")
	cfg.HeartbeatInterval = time.Hour
	a, err := New(cfg, WithStore(store.NewMemory()))
	require.NoError(t, err)

	a.state.Do(func(s *peer.State) {
		for i := 1; i <= 6; i++ {
			s.Table().Insert("p"+strconv.Itoa(i), "127.0.0.1:"+strconv.Itoa(9000+i))
		}
	})
	targets := a.probeTargets()
	assert.Len(t, targets, 4)
	assert.NotContains(t, targets, a.Addr())

	b, err := New(testConfig(t, "B"))
	require.NoError(t, err)
	assert.Empty(t, b.probeTargets(), "a lone node probes nobody")
}

// within fails the test when fn does not return in time.
func within(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		fn()
	}()
	select {
	case <-finished:
	case <-time.After(d):
		t.Fatalf("%s did not return within %s", what, d)
	}
}

func TestStartWithJoinReturns(t *testing.T) {
	a := startNode(t, testConfig(t, "A"))

	cfg := testConfig(t, "B")
	cfg.Join = a.Addr()
	b, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Stop() })

	var startErr error
	within(t, 3*time.Second, "Start with a join address", func() { startErr = b.Start() })
	require.NoError(t, startErr)
	waitUntil(t, func() bool { return members(a) == 2 && members(b) == 2 }, "joined")
}

func TestUnansweredQueryExpires(t *testing.T) {
	b := startNode(t, testConfig(t, "B"))

	cfg := testConfig(t, "A")
	cfg.RequestTTL = 100 * time.Millisecond
	a := startNode(t, cfg)
	a.state.Do(func(s *peer.State) { s.Table().Insert("B", b.Addr()) })

	require.NoError(t, a.RequestItem("nobody-has-this", wire.IntentFetch))

	waitUntil(t, func() bool {
		var pending int
		within(t, time.Second, "Status", func() { pending = a.Status().Pending })
		return pending == 0
	}, "query pruned")

	var name string
	within(t, time.Second, "Name", func() { name = a.Name() })
	assert.Equal(t, "A", name)

	var stopErr error
	within(t, 3*time.Second, "Stop", func() { stopErr = a.Stop() })
	require.NoError(t, stopErr)
}

func TestNewReleasesStoreOnFailure(t *testing.T) {
	cfg := testConfig(t, "A")
	cfg.DataDir = t.TempDir()
	cfg.PlayerCommand = "   "

	_, err := New(cfg)
	require.ErrorIs(t, err, media.ErrNoCommand)

	reopened, err := store.OpenBolt(cfg.DataDir)
	require.NoError(t, err, "the failed node must not keep the database locked")
	require.NoError(t, reopened.Close())
}

func TestManagerReleasesNodeWhenStartFails(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	healthPort := strconv.Itoa(busy.Addr().(*net.TCPAddr).Port)

	m := NewManager(freePort(t))
	dataDir := t.TempDir()
	m.Configure = func(c *Config) {
		c.DataDir = dataDir
		c.HealthPort = healthPort
	}

	_, err = m.CreateNode()
	require.Error(t, err)
	assert.Empty(t, m.GetNodes())

	reopened, err := store.OpenBolt(dataDir)
	require.NoError(t, err)
	require.NoError(t, reopened.Close())
}
