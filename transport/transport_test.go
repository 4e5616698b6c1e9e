package transport

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/adamgarcia4/goLearning/meff/wire"
)

func startListener(t *testing.T) (*Listener, chan wire.Message) {
	t.Helper()
	got := make(chan wire.Message, 8)
	l, err := Listen("127.0.0.1:0", HandlerFunc(func(m wire.Message) { got <- m }), time.Second, "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, got
}

func TestSendDeliversOneMessage(t *testing.T) {
	l, got := startListener(t)
	c := NewClient(time.Second)

	msg := wire.Message{
		Content: wire.PushToDB{Key: "song", Value: []byte("bytes"), Origin: "127.0.0.1:9"},
		Sender:  "127.0.0.1:9",
	}
	require.NoError(t, c.Send(context.Background(), l.Addr(), msg))

	select {
	case m := <-got:
		assert.Equal(t, msg, m)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMessagesArriveInOrder(t *testing.T) {
	l, got := startListener(t)
	c := NewClient(time.Second)

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, c.Send(context.Background(), l.Addr(), wire.Message{Content: wire.DeleteFile{Key: key}, Sender: "x"}))
	}
	for _, key := range []string{"a", "b", "c"} {
		m := <-got
		assert.Equal(t, wire.DeleteFile{Key: key}, m.Content)
	}
}

func TestProbeAndGarbageAreDropped(t *testing.T) {
	l, got := startListener(t)
	c := NewClient(time.Second)

	require.NoError(t, c.Probe(context.Background(), l.Addr()))

	conn, err := net.Dial("tcp", l.Addr())
	require.NoError(t, err)
	_, err = conn.Write([]byte{0xff, 0xff, 0xff})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.NoError(t, c.Send(context.Background(), l.Addr(), wire.Message{Content: wire.StatusRequest{}, Sender: "x"}))
	m := <-got
	assert.Equal(t, wire.StatusRequest{}, m.Content, "only the valid message reaches the handler")
	assert.Empty(t, got)
}

func TestSendToClosedPortFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := NewClient(200 * time.Millisecond)
	assert.Error(t, c.Send(context.Background(), addr, wire.Message{Content: wire.StatusRequest{}, Sender: "x"}))
	assert.Error(t, c.Probe(context.Background(), addr))
}

func TestListenRequiresHandler(t *testing.T) {
	_, err := Listen("127.0.0.1:0", nil, time.Second, "test")
	assert.Error(t, err)
}

func TestFirstIPv4SkipsLoopback(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("127.0.0.1")},
		&net.IPNet{IP: net.ParseIP("fe80::1")},
		&net.IPNet{IP: net.ParseIP("192.168.1.20")},
	}
	assert.Equal(t, "192.168.1.20", firstIPv4(addrs).String())
	assert.Nil(t, firstIPv4(addrs[:2]))
}

func TestDiscoverLocalEndpointFormat(t *testing.T) {
	addr, err := DiscoverLocalEndpoint(7000)
	if err != nil {
		assert.ErrorIs(t, err, ErrNoInterface)
		return
	}
	assert.True(t, strings.HasSuffix(addr, ":7000"))
}

func TestHealthEndpoint(t *testing.T) {
	g, err := NewGRPC("127.0.0.1:0", "alice")
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	g.Serve(lis)
	t.Cleanup(func() { _ = g.Stop() })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	g.SetServing(false)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestNewGRPCValidates(t *testing.T) {
	_, err := NewGRPC("nope", "alice")
	assert.Error(t, err)
	_, err = NewGRPC("127.0.0.1:0", "")
	assert.Error(t, err)
}
