// Package transport moves meff messages between peers.
//
// Each message travels on its own TCP connection: the sender dials, writes the
// encoded message and closes; the receiver reads to end-of-stream and decodes.
// There is no multiplexing and no application-level reply on the same connection.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/adamgarcia4/goLearning/meff/wire"
)

// MaxMessageSize bounds a single inbound message. Items are whole music files.
const MaxMessageSize = 256 << 20

var ErrMessageTooLarge = errors.New("transport: message exceeds size limit")

// Client sends messages and liveness probes.
type Client struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient returns a client using the given dial timeout for every connection.
func NewClient(dialTimeout time.Duration) *Client {
	return &Client{DialTimeout: dialTimeout, WriteTimeout: 4 * dialTimeout}
}

func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: c.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// Send delivers msg to addr on a fresh connection.
func (c *Client) Send(ctx context.Context, addr string, msg wire.Message) error {
	payload, err := wire.Encode(msg)
	if err != nil {
		return err
	}

	conn, err := c.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if c.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout)); err != nil {
			return err
		}
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write %s to %s: %w", msg.Content.Kind(), addr, err)
	}
	return nil
}

// Probe checks that addr accepts connections. The connection is closed without
// writing anything; listeners treat an empty stream as a probe.
func (c *Client) Probe(ctx context.Context, addr string) error {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// readMessage reads one whole message from r.
func readMessage(r io.Reader) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r, MaxMessageSize+1))
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	return payload, nil
}
