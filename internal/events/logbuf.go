package events

import (
	"sync"
	"time"

	"github.com/treykane/gostly/internal/model"
)

// DefaultLogCapacity bounds the in-memory log ring.
const DefaultLogCapacity = 1000

// LogBuffer keeps the most recent log entries in memory.
type LogBuffer struct {
	mu      sync.Mutex
	entries []model.LogEntry
	size    int
	lastID  int64
	now     func() time.Time
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogBuffer{size: capacity, now: time.Now}
}

// Add appends an entry, dropping the oldest ones past capacity.
func (b *LogBuffer) Add(level, source, message string, profileID *int64, profileName string) model.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	e := model.LogEntry{
		ID:          nextID(&b.lastID, now),
		Timestamp:   now.Format(time.RFC3339),
		Level:       level,
		Source:      source,
		Message:     message,
		ProfileID:   profileID,
		ProfileName: profileName,
	}
	b.entries = append(b.entries, e)
	if len(b.entries) > b.size {
		b.entries = append([]model.LogEntry(nil), b.entries[len(b.entries)-b.size:]...)
	}
	return e
}

// Recent returns up to limit entries, oldest first. limit <= 0 returns all.
func (b *LogBuffer) Recent(limit int) []model.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	src := b.entries
	if limit > 0 && limit < len(src) {
		src = src[len(src)-limit:]
	}
	out := make([]model.LogEntry, len(src))
	copy(out, src)
	return out
}

func (b *LogBuffer) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
