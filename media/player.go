package media

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/adamgarcia4/goLearning/meff/logger"
)

var (
	ErrNotPlaying  = errors.New("media: nothing is playing")
	ErrNoCommand   = errors.New("media: player command is empty")
	ErrUnsupported = errors.New("media: pause is not supported on this platform")
)

// PlaybackOp is a control operation on the player.
type PlaybackOp int

const (
	OpPlay PlaybackOp = iota + 1
	OpPause
	OpContinue
	OpStop
)

func (op PlaybackOp) String() string {
	switch op {
	case OpPlay:
		return "play"
	case OpPause:
		return "pause"
	case OpContinue:
		return "continue"
	case OpStop:
		return "stop"
	}
	return fmt.Sprintf("PlaybackOp(%d)", int(op))
}

// Player plays item content.
type Player interface {
	Play(name string, data []byte) error
	Pause() error
	Continue() error
	Stop() error
	Current() string
}

// ExecPlayer plays by piping the item bytes into an external decoder such as
// "ffplay -nodisp -autoexit -" or "mpg123 -". Only one item plays at a time.
type ExecPlayer struct {
	args []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	current string
	paused  bool
}

// NewExecPlayer splits command on whitespace.
func NewExecPlayer(command string) (*ExecPlayer, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, ErrNoCommand
	}
	return &ExecPlayer{args: args}, nil
}

func (p *ExecPlayer) Play(name string, data []byte) error {
	if err := p.Stop(); err != nil && !errors.Is(err, ErrNotPlaying) {
		return err
	}

	cmd := exec.Command(p.args[0], p.args[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player for %s: %w", name, err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.current = name
	p.paused = false
	p.mu.Unlock()

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.cmd != cmd {
			return
		}
		if err != nil {
			logger.Debugf("player for %s exited: %v", name, err)
		}
		p.cmd = nil
		p.current = ""
		p.paused = false
	}()
	return nil
}

func (p *ExecPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return ErrNotPlaying
	}
	if p.paused {
		return nil
	}
	if err := pauseProcess(p.cmd.Process); err != nil {
		return err
	}
	p.paused = true
	return nil
}

func (p *ExecPlayer) Continue() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return ErrNotPlaying
	}
	if !p.paused {
		return nil
	}
	if err := resumeProcess(p.cmd.Process); err != nil {
		return err
	}
	p.paused = false
	return nil
}

func (p *ExecPlayer) Stop() error {
	p.mu.Lock()
	cmd := p.cmd
	p.cmd = nil
	p.current = ""
	p.paused = false
	p.mu.Unlock()

	if cmd == nil {
		return ErrNotPlaying
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Current is the name of the playing item, empty when idle.
func (p *ExecPlayer) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// LogPlayer only records what would be played. It is used when no player
// command is configured.
type LogPlayer struct {
	mu      sync.Mutex
	current string
	paused  bool
}

func (p *LogPlayer) Play(name string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = name
	p.paused = false
	logger.Infof("playing %s (%d bytes, no player command configured)", name, len(data))
	return nil
}

func (p *LogPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		return ErrNotPlaying
	}
	p.paused = true
	return nil
}

func (p *LogPlayer) Continue() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		return ErrNotPlaying
	}
	p.paused = false
	return nil
}

func (p *LogPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		return ErrNotPlaying
	}
	p.current = ""
	p.paused = false
	return nil
}

func (p *LogPlayer) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
