package model

import (
	"strconv"
	"strings"
)

// LogFilter narrows a list of log entries. Empty fields and "all" match
// everything.
type LogFilter struct {
	Level   string `json:"level,omitempty"`
	Source  string `json:"source,omitempty"`
	Profile string `json:"profile,omitempty"`
	Text    string `json:"text,omitempty"`
}

// LogLevels lists the levels a filter can select, in severity order.
var LogLevels = []string{LevelDebug, LevelInfo, LevelWarn, LevelError}

// LogSources lists the sources a filter can select.
var LogSources = []string{SourceEngine, SourceSystem, SourceAPI}

// IsZero reports whether the filter lets every entry through.
func (f LogFilter) IsZero() bool {
	return anyValue(f.Level) && anyValue(f.Source) && anyValue(f.Profile) && strings.TrimSpace(f.Text) == ""
}

// Match reports whether e passes the filter. Level and source compare
// case-insensitively; profile matches the entry's profile name or id; text is
// a case-insensitive substring of the message.
func (f LogFilter) Match(e LogEntry) bool {
	if !anyValue(f.Level) && !strings.EqualFold(strings.TrimSpace(f.Level), e.Level) {
		return false
	}
	if !anyValue(f.Source) && !strings.EqualFold(strings.TrimSpace(f.Source), e.Source) {
		return false
	}
	if !anyValue(f.Profile) {
		ref := strings.TrimSpace(f.Profile)
		byID := e.ProfileID != nil && strconv.FormatInt(*e.ProfileID, 10) == ref
		if !byID && !strings.EqualFold(ref, e.ProfileName) {
			return false
		}
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		if !strings.Contains(strings.ToLower(e.Message), strings.ToLower(text)) {
			return false
		}
	}
	return true
}

// Apply returns the entries that pass the filter, keeping their order.
func (f LogFilter) Apply(logs []LogEntry) []LogEntry {
	if f.IsZero() {
		return logs
	}
	out := make([]LogEntry, 0, len(logs))
	for _, e := range logs {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

func anyValue(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "all")
}
