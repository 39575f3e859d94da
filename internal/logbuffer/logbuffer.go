package logbuffer

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one captured log line
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Zone      string    `json:"zone,omitempty"`
	Raw       string    `json:"raw"`
}

// Buffer is a fixed-size ring of recent log lines. It implements io.Writer so
// it can sit behind a zerolog MultiWriter.
type Buffer struct {
	entries []Entry
	size    int
	head    int
	count   int
	now     func() time.Time
	mu      sync.RWMutex
}

// New creates a buffer holding the last size entries
func New(size int) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{
		entries: make([]Entry, size),
		size:    size,
		now:     time.Now,
	}
}

// Write implements io.Writer
func (b *Buffer) Write(p []byte) (int, error) {
	entry := parse(string(p))
	entry.Timestamp = b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
	}
	return len(p), nil
}

// Entries returns every buffered entry, oldest first
func (b *Buffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, b.count)
	start := 0
	if b.count == b.size {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(start+i)%b.size]
	}
	return out
}

// Recent returns up to n of the newest entries, optionally only those logged
// for zone.
func (b *Buffer) Recent(n int, zone string) []Entry {
	all := b.Entries()
	if zone != "" {
		filtered := all[:0]
		for _, e := range all {
			if e.Zone == zone {
				filtered = append(filtered, e)
			}
		}
		all = filtered
	}
	if n > 0 && len(all) > n {
		return all[len(all)-n:]
	}
	return all
}

// parse pulls level, message and zone out of a zerolog JSON line. Lines that
// are not JSON are kept verbatim at info level.
func parse(raw string) Entry {
	e := Entry{Raw: strings.TrimRight(raw, "\n"), Level: zerolog.InfoLevel.String()}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		e.Message = e.Raw
		return e
	}
	if v, ok := fields[zerolog.LevelFieldName].(string); ok {
		e.Level = v
	}
	if v, ok := fields[zerolog.MessageFieldName].(string); ok {
		e.Message = v
	}
	if v, ok := fields["zone"].(string); ok {
		e.Zone = v
	}
	return e
}
