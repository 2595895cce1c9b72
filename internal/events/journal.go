// Package events keeps the activity timeline journal and the in-memory log
// ring served to the dashboard.
package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/treykane/gostly/internal/appconfig"
	"github.com/treykane/gostly/internal/model"
)

// Query controls timeline filtering and bounded reads.
type Query struct {
	Type        string
	ProfileName string
	Since       time.Time
	Limit       int
}

// Journal appends timeline events to timeline.jsonl under the config dir.
type Journal struct {
	mu     sync.Mutex
	lastID int64
	now    func() time.Time
}

func NewJournal() *Journal {
	return &Journal{now: time.Now}
}

func filePath() (string, error) {
	dir, err := appconfig.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "timeline.jsonl"), nil
}

// Append stamps evt with an id and timestamp when missing and writes it as
// one JSON line. The stored event is returned.
func (j *Journal) Append(evt model.TimelineEvent) (model.TimelineEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	if evt.ID == 0 {
		evt.ID = nextID(&j.lastID, now)
	}
	if evt.Timestamp == "" {
		evt.Timestamp = now.Format(time.RFC3339)
	}
	if evt.Status == "" {
		evt.Status = "success"
	}

	path, err := filePath()
	if err != nil {
		return evt, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return evt, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return evt, err
	}
	defer f.Close()

	b, err := json.Marshal(evt)
	if err != nil {
		return evt, err
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return evt, err
	}
	return evt, nil
}

// Read returns events in append order, filtered by q. With a limit only the
// last q.Limit matches are kept. Malformed lines are skipped.
func (j *Journal) Read(q Query) ([]model.TimelineEvent, error) {
	path, err := filePath()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.TimelineEvent{}, nil
		}
		return nil, err
	}
	defer f.Close()

	out := []model.TimelineEvent{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var evt model.TimelineEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			continue
		}
		if !matches(evt, q) {
			continue
		}
		out = append(out, evt)
		if q.Limit > 0 && len(out) > q.Limit {
			out = out[len(out)-q.Limit:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan timeline: %w", err)
	}
	return out, nil
}

func matches(evt model.TimelineEvent, q Query) bool {
	if strings.TrimSpace(q.Type) != "" && evt.Type != q.Type {
		return false
	}
	if strings.TrimSpace(q.ProfileName) != "" && evt.ProfileName != q.ProfileName {
		return false
	}
	if !q.Since.IsZero() {
		ts, err := time.Parse(time.RFC3339, evt.Timestamp)
		if err != nil || ts.Before(q.Since) {
			return false
		}
	}
	return true
}

// nextID derives a strictly increasing id from the clock.
func nextID(last *int64, now time.Time) int64 {
	id := now.UnixNano()
	if id <= *last {
		id = *last + 1
	}
	*last = id
	return id
}
