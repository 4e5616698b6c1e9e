// Package shell is the line-oriented command layer of a meff node.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adamgarcia4/goLearning/meff/media"
	"github.com/adamgarcia4/goLearning/meff/node"
	"github.com/adamgarcia4/goLearning/meff/wire"
)

// ErrExit is returned by RunLine once the node has left the network.
var ErrExit = errors.New("shell: exit")

// Commands is what the shell drives; *node.Node implements it.
type Commands interface {
	StoreItem(name string, data []byte) error
	RequestItem(name string, intent wire.Intent) error
	RemoveItem(name string) error
	ControlPlayback(name string, op media.PlaybackOp) error
	RequestRemoteStatus() error
	Status() node.Status
	Leave(ctx context.Context) error
}

// Shell parses user commands and prints their outcome.
type Shell struct {
	node Commands
	out  io.Writer

	// ReadFile loads the file behind `push`.
	ReadFile     func(path string) ([]byte, error)
	LeaveTimeout time.Duration
}

func New(n Commands, out io.Writer) *Shell {
	return &Shell{
		node:         n,
		out:          out,
		ReadFile:     os.ReadFile,
		LeaveTimeout: 10 * time.Second,
	}
}

const helpText = `commands:
  status               show members, held items and backups
  push <name> [path]   store a file under name (path defaults to name)
  get <name>           fetch an item into the download directory
  remove <name>        delete an item across the network
  play [name]          play an item, or resume the paused one
  pause                pause playback
  stop                 stop playback
  peers                list the items every member holds
  exit                 hand items over, leave the network and quit
  help | h             this text`

// Run executes lines from in until exit, end of input or ctx ends.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	s.prompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.RunLine(ctx, scanner.Text()); errors.Is(err, ErrExit) {
			return nil
		}
		s.prompt()
	}
	return scanner.Err()
}

func (s *Shell) prompt() {
	fmt.Fprint(s.out, "> ")
}

// RunLine executes one command. Failures are printed as "ERR <reason>" and
// never returned; only ErrExit is.
func (s *Shell) RunLine(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "help", "h":
		fmt.Fprintln(s.out, helpText)
	case "status":
		fmt.Fprintln(s.out, RenderStatus(s.node.Status()))
	case "push":
		err = s.push(args)
	case "get":
		err = s.withName(args, func(name string) error {
			return s.node.RequestItem(name, wire.IntentFetch)
		})
	case "remove", "rm":
		err = s.withName(args, s.node.RemoveItem)
	case "play":
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		err = s.node.ControlPlayback(name, media.OpPlay)
	case "pause":
		err = s.node.ControlPlayback("", media.OpPause)
	case "stop":
		err = s.node.ControlPlayback("", media.OpStop)
	case "peers":
		err = s.node.RequestRemoteStatus()
	case "exit", "quit":
		return s.exit(ctx)
	default:
		fmt.Fprintf(s.out, "unknown command %q, type help\n", cmd)
		return nil
	}

	if err != nil {
		fmt.Fprintf(s.out, "ERR %v\n", err)
		return nil
	}
	if cmd != "help" && cmd != "h" && cmd != "status" {
		fmt.Fprintln(s.out, "OK")
	}
	return nil
}

func (s *Shell) withName(args []string, fn func(name string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one item name")
	}
	return fn(args[0])
}

func (s *Shell) push(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: push <name> [path]")
	}
	name, path := args[0], args[0]
	if len(args) == 2 {
		path = args[1]
	}
	data, err := s.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return s.node.StoreItem(name, data)
}

func (s *Shell) exit(ctx context.Context) error {
	fmt.Fprintln(s.out, "leaving the network...")
	ctx, cancel := context.WithTimeout(ctx, s.LeaveTimeout)
	defer cancel()
	if err := s.node.Leave(ctx); err != nil && !errors.Is(err, node.ErrStopped) {
		fmt.Fprintf(s.out, "ERR %v\n", err)
	}
	return ErrExit
}
