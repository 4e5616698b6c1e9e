package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/adamgarcia4/goLearning/meff/logger"
	"github.com/adamgarcia4/goLearning/meff/wire"
)

// Handler receives every decoded inbound message.
type Handler interface {
	HandleMessage(msg wire.Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(msg wire.Message)

func (f HandlerFunc) HandleMessage(msg wire.Message) { f(msg) }

// Listener accepts peer connections and hands one decoded message per
// connection to its handler. Connections are served one at a time, so messages
// reach the handler in arrival order.
type Listener struct {
	ln          net.Listener
	handler     Handler
	readTimeout time.Duration
	log         logger.Scoped

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Listen binds addr. Binding errors surface here, before any goroutine starts.
func Listen(addr string, handler Handler, readTimeout time.Duration, source string) (*Listener, error) {
	if handler == nil {
		return nil, fmt.Errorf("transport: handler is required")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Listener{
		ln:          ln,
		handler:     handler,
		readTimeout: readTimeout,
		log:         logger.For(source),
		done:        make(chan struct{}),
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Serve accepts connections until ctx is cancelled or the listener is closed.
func (l *Listener) Serve(ctx context.Context) error {
	defer close(l.done)

	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		l.serveConn(conn)
	}
}

func (l *Listener) serveConn(conn net.Conn) {
	defer conn.Close()

	if l.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(l.readTimeout))
	}
	payload, err := readMessage(conn)
	if err != nil {
		l.log.Warnf("dropping connection from %s: %v", conn.RemoteAddr(), err)
		return
	}
	if len(payload) == 0 {
		// liveness probe
		return
	}

	msg, err := wire.Decode(payload)
	if err != nil {
		l.log.Warnf("malformed message from %s: %v", conn.RemoteAddr(), err)
		return
	}
	l.handler.HandleMessage(msg)
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close stops accepting connections. It is safe to call more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.ln.Close()
}

// Done is closed once Serve has returned.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}
