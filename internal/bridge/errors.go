package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

const genericFailure = "operation failed"

// ErrUnavailable is returned when the backend cannot be reached at all, for
// example after the daemon connection drops.
var ErrUnavailable = errors.New("backend unavailable")

// RemoteError is a rejection reported by the backend. Message is safe to show
// to the operator; Detail keeps the raw payload for logs.
type RemoteError struct {
	Message string
	Detail  string
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Message) == "" {
		return genericFailure
	}
	return e.Message
}

// NewRemoteError wraps a backend rejection.
func NewRemoteError(message, detail string) error {
	return &RemoteError{Message: message, Detail: detail}
}

// Message returns the text shown for err: the RemoteError message when there
// is one, otherwise err.Error(), otherwise a generic string.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) && strings.TrimSpace(re.Message) != "" {
		return re.Message
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return genericFailure
}

// DebugMessage returns the most detailed text available for logs.
func DebugMessage(err error) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) && strings.TrimSpace(re.Detail) != "" {
		return re.Detail
	}
	return err.Error()
}

// DecodeError turns an error payload from the wire into a RemoteError.
// Preference: a "message" field, an "error" field, a bare JSON string, the raw
// JSON text, and finally the generic failure string.
func DecodeError(raw json.RawMessage) *RemoteError {
	raw = bytes.TrimSpace(raw)
	detail := string(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &RemoteError{Message: genericFailure}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"message", "error"} {
			var s string
			if v, ok := obj[key]; ok && json.Unmarshal(v, &s) == nil && strings.TrimSpace(s) != "" {
				return &RemoteError{Message: s, Detail: detail}
			}
		}
		return &RemoteError{Message: detail, Detail: detail}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return &RemoteError{Message: genericFailure, Detail: detail}
		}
		return &RemoteError{Message: s, Detail: detail}
	}
	return &RemoteError{Message: detail, Detail: detail}
}

// EncodeError is the inverse used by the daemon.
func EncodeError(err error) json.RawMessage {
	b, _ := json.Marshal(map[string]string{
		"message": Message(err),
		"error":   DebugMessage(err),
	})
	return b
}
