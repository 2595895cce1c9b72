package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/treykane/gostly/internal/model"
)

// DecodeRouterStatus normalizes the three shapes a router status answer may
// take: a bare boolean, a [running, addr] pair, or a {running, addr} object.
// An empty addr means "not reported"; callers keep their current value.
func DecodeRouterStatus(raw json.RawMessage) (model.RouterStatus, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return model.RouterStatus{}, nil
	}
	switch raw[0] {
	case 't', 'f':
		var running bool
		if err := json.Unmarshal(raw, &running); err != nil {
			return model.RouterStatus{}, fmt.Errorf("decode router status: %w", err)
		}
		return model.RouterStatus{Running: running}, nil
	case '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			return model.RouterStatus{}, fmt.Errorf("decode router status: %w", err)
		}
		var st model.RouterStatus
		if len(pair) > 0 {
			if err := json.Unmarshal(pair[0], &st.Running); err != nil {
				return model.RouterStatus{}, fmt.Errorf("decode router running flag: %w", err)
			}
		}
		if len(pair) > 1 {
			// A null or non-string addr is treated as absent.
			_ = json.Unmarshal(pair[1], &st.Addr)
		}
		return st, nil
	case '{':
		var obj struct {
			Running bool    `json:"running"`
			Addr    *string `json:"addr"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return model.RouterStatus{}, fmt.Errorf("decode router status: %w", err)
		}
		st := model.RouterStatus{Running: obj.Running}
		if obj.Addr != nil {
			st.Addr = *obj.Addr
		}
		return st, nil
	}
	return model.RouterStatus{}, fmt.Errorf("decode router status: unexpected payload %s", string(raw))
}

// EncodeRouterStatus produces the pair form, which is what the daemon sends.
func EncodeRouterStatus(st model.RouterStatus) json.RawMessage {
	b, _ := json.Marshal([]any{st.Running, st.Addr})
	return b
}
