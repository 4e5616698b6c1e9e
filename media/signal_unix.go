//go:build unix

package media

import (
	"os"

	"golang.org/x/sys/unix"
)

func pauseProcess(p *os.Process) error {
	return unix.Kill(p.Pid, unix.SIGSTOP)
}

func resumeProcess(p *os.Process) error {
	return unix.Kill(p.Pid, unix.SIGCONT)
}
