package logger

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"sync"
)

// LogBufferWriter is an io.Writer that splits written lines into LogBuffer entries.
// Lines shaped like "[LEVEL] [source] message" are attributed to source.
type LogBufferWriter struct {
	buffer *LogBuffer
	buf    bytes.Buffer
	mu     sync.Mutex
}

var lineRegex = regexp.MustCompile(`^(?:\S+\s+)?\[(DEBUG|INFO|WARN|ERROR)\]\s*(?:\[([^\]]+)\]\s*)?(.*)$`)
var sourceRegex = regexp.MustCompile(`^\[([^\]]+)\]\s*(.*)$`)

// NewLogBufferWriter creates a new writer that writes to the log buffer
func NewLogBufferWriter(buffer *LogBuffer) *LogBufferWriter {
	return &LogBufferWriter{
		buffer: buffer,
	}
}

// Write implements io.Writer
func (lw *LogBufferWriter) Write(p []byte) (n int, err error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	lw.buf.Write(p)

	for {
		line, err := lw.buf.ReadString('\n')
		if err == io.EOF {
			// keep the partial line for the next write
			lw.buf.WriteString(line)
			break
		}
		if err != nil {
			return len(p), err
		}

		line = strings.TrimSuffix(line, "\n")
		if len(line) == 0 {
			continue
		}
		lw.buffer.Add(splitLine(line))
	}

	return len(p), nil
}

func splitLine(line string) (level, source, message string) {
	source = "system"
	message = line

	if m := lineRegex.FindStringSubmatch(line); len(m) == 4 {
		level, message = m[1], m[3]
		if m[2] != "" {
			source = m[2]
		}
		return level, source, message
	}
	if m := sourceRegex.FindStringSubmatch(line); len(m) == 3 {
		source, message = m[1], m[2]
	}
	return "", source, message
}
