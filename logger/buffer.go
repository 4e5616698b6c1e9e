package logger

import (
	"fmt"
	"sync"
	"time"
)

// DefaultBufferSize is the number of entries kept by the global buffer.
const DefaultBufferSize = 1000

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Source    string
	Message   string
}

// LogBuffer is a bounded, thread-safe ring of recent log entries
type LogBuffer struct {
	entries []LogEntry
	maxSize int
	total   int
	mu      sync.RWMutex
}

// NewLogBuffer creates a new log buffer holding at most maxSize entries
func NewLogBuffer(maxSize int) *LogBuffer {
	if maxSize <= 0 {
		maxSize = DefaultBufferSize
	}
	return &LogBuffer{
		entries: make([]LogEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry, evicting the oldest one when full
func (lb *LogBuffer) Add(level, source, message string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries = append(lb.entries, LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Source:    source,
		Message:   message,
	})
	lb.total++

	if len(lb.entries) > lb.maxSize {
		lb.entries = lb.entries[len(lb.entries)-lb.maxSize:]
	}
}

// GetRecent returns up to count of the newest entries, oldest first
func (lb *LogBuffer) GetRecent(count int) []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if count > len(lb.entries) {
		count = len(lb.entries)
	}
	if count < 0 {
		count = 0
	}

	result := make([]LogEntry, count)
	copy(result, lb.entries[len(lb.entries)-count:])
	return result
}

// GetAll returns all buffered entries
func (lb *LogBuffer) GetAll() []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	result := make([]LogEntry, len(lb.entries))
	copy(result, lb.entries)
	return result
}

// Total reports how many entries were ever added, including evicted ones.
func (lb *LogBuffer) Total() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.total
}

// Clear removes all log entries from the buffer
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.entries = make([]LogEntry, 0, lb.maxSize)
}

// FormatLogEntry formats a log entry for display
func FormatLogEntry(entry LogEntry) string {
	level := entry.Level
	if level == "" {
		level = "-"
	}
	return fmt.Sprintf("[%s] %-5s %s: %s",
		entry.Timestamp.Format("15:04:05"),
		level,
		entry.Source,
		entry.Message,
	)
}
