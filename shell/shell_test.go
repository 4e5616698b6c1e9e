package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamgarcia4/goLearning/meff/gossip"
	"github.com/adamgarcia4/goLearning/meff/media"
	"github.com/adamgarcia4/goLearning/meff/node"
	"github.com/adamgarcia4/goLearning/meff/peer"
	"github.com/adamgarcia4/goLearning/meff/store"
	"github.com/adamgarcia4/goLearning/meff/wire"
)

type call struct {
	op   string
	name string
	arg  interface{}
}

type fakeNode struct {
	calls  []call
	err    error
	status node.Status
	left   bool
}

func (f *fakeNode) record(op, name string, arg interface{}) error {
	f.calls = append(f.calls, call{op, name, arg})
	return f.err
}

func (f *fakeNode) StoreItem(name string, data []byte) error {
	return f.record("store", name, string(data))
}

func (f *fakeNode) RequestItem(name string, intent wire.Intent) error {
	return f.record("request", name, intent)
}

func (f *fakeNode) RemoveItem(name string) error { return f.record("remove", name, nil) }

func (f *fakeNode) ControlPlayback(name string, op media.PlaybackOp) error {
	return f.record("playback", name, op)
}

func (f *fakeNode) RequestRemoteStatus() error { return f.record("peers", "", nil) }

func (f *fakeNode) Status() node.Status { return f.status }

func (f *fakeNode) Leave(ctx context.Context) error {
	f.left = true
	return nil
}

func newShell() (*Shell, *fakeNode, *bytes.Buffer) {
	f := &fakeNode{}
	out := &bytes.Buffer{}
	s := New(f, out)
	s.ReadFile = func(path string) ([]byte, error) {
		if path == "missing.mp3" {
			return nil, os.ErrNotExist
		}
		return []byte("content of " + path), nil
	}
	return s, f, out
}

func TestCommandsMapOntoNode(t *testing.T) {
	s, f, _ := newShell()
	ctx := context.Background()

	for _, line := range []string{
		"push song /music/song.mp3",
		"push other.mp3",
		"get song",
		"remove song",
		"play song",
		"play",
		"pause",
		"stop",
		"peers",
	} {
		require.NoError(t, s.RunLine(ctx, line), line)
	}

	assert.Equal(t, []call{
		{"store", "song", "content of /music/song.mp3"},
		{"store", "other.mp3", "content of other.mp3"},
		{"request", "song", wire.IntentFetch},
		{"remove", "song", nil},
		{"playback", "song", media.OpPlay},
		{"playback", "", media.OpPlay},
		{"playback", "", media.OpPause},
		{"playback", "", media.OpStop},
		{"peers", "", nil},
	}, f.calls)
}

func TestErrorsArePrinted(t *testing.T) {
	s, f, out := newShell()
	ctx := context.Background()

	require.NoError(t, s.RunLine(ctx, "get"))
	require.NoError(t, s.RunLine(ctx, "push x missing.mp3"))
	f.err = errors.New("peer: item not found")
	require.NoError(t, s.RunLine(ctx, "get nothing"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "ERR "), l)
	}
	assert.Contains(t, lines[2], "item not found")
}

func TestUnknownCommandAndBlankLine(t *testing.T) {
	s, f, out := newShell()
	require.NoError(t, s.RunLine(context.Background(), "   "))
	require.NoError(t, s.RunLine(context.Background(), "dance"))
	assert.Contains(t, out.String(), `unknown command "dance"`)
	assert.Empty(t, f.calls)
}

func TestHelp(t *testing.T) {
	s, _, out := newShell()
	require.NoError(t, s.RunLine(context.Background(), "h"))
	assert.Contains(t, out.String(), "push <name> [path]")
}

func TestExitLeaves(t *testing.T) {
	s, f, _ := newShell()
	err := s.RunLine(context.Background(), "exit")
	assert.ErrorIs(t, err, ErrExit)
	assert.True(t, f.left)
}

func TestRunStopsAtExit(t *testing.T) {
	s, f, _ := newShell()
	in := strings.NewReader("get a\nexit\nget b\n")
	require.NoError(t, s.Run(context.Background(), in))
	assert.Equal(t, []call{{"request", "a", wire.IntentFetch}}, f.calls)
	assert.True(t, f.left)
}

func TestStatusRendering(t *testing.T) {
	s, f, out := newShell()
	f.status = node.Status{
		Snapshot: peer.Snapshot{
			Name: "alice",
			Addr: "127.0.0.1:7000",
			Members: []gossip.Member{
				{Name: "alice", Addr: "127.0.0.1:7000"},
				{Name: "bob", Addr: "127.0.0.1:7001"},
			},
			Items:      []store.Item{{Key: "song", Size: 42}},
			Redundancy: map[string][]string{"127.0.0.1:7001": {"song"}},
			Pending:    1,
		},
		Playing: "song",
	}
	require.NoError(t, s.RunLine(context.Background(), "status"))

	text := out.String()
	for _, want := range []string{"alice @ 127.0.0.1:7000", "bob", "127.0.0.1:7001", "song", "42", "playing: song", "1 queries"} {
		assert.Contains(t, text, want)
	}
}

func TestRenderRemoteFiles(t *testing.T) {
	assert.Contains(t, RenderRemoteFiles("bob", nil), "holds nothing")

	text := RenderRemoteFiles("bob", []string{"b", "a"})
	assert.Less(t, strings.Index(text, "a"), strings.LastIndex(text, "b"))

	var buf bytes.Buffer
	NewPrinter(&buf).RemoteFiles("carol", []string{"x"})
	assert.Contains(t, buf.String(), "carol")
}
