// Package history remembers when each profile was last started so listings
// can put recently used profiles first.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/treykane/gostly/internal/appconfig"
	"github.com/treykane/gostly/internal/model"
)

type store struct {
	LastStarted map[string]int64 `json:"last_started"`
}

func filePath() (string, error) {
	dir, err := appconfig.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.json"), nil
}

func key(id int64) string { return strconv.FormatInt(id, 10) }

// Touch records a successful start of profile id.
func Touch(id int64) error {
	st, err := load()
	if err != nil {
		return err
	}
	st.LastStarted[key(id)] = time.Now().Unix()
	return save(st)
}

// Forget drops the record for a deleted profile.
func Forget(id int64) error {
	st, err := load()
	if err != nil {
		return err
	}
	if _, ok := st.LastStarted[key(id)]; !ok {
		return nil
	}
	delete(st.LastStarted, key(id))
	return save(st)
}

// LastStarted returns unix timestamps keyed by profile id.
func LastStarted() (map[int64]int64, error) {
	st, err := load()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(st.LastStarted))
	for k, v := range st.LastStarted {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out, nil
}

// SortProfilesRecent returns a new slice sorted by last start (desc), then name.
func SortProfilesRecent(profiles []model.Profile, lastStarted map[int64]int64) []model.Profile {
	out := append([]model.Profile(nil), profiles...)
	sort.SliceStable(out, func(i, j int) bool {
		ti := lastStarted[out[i].ID]
		tj := lastStarted[out[j].ID]
		if ti != tj {
			return ti > tj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func load() (store, error) {
	path, err := filePath()
	if err != nil {
		return store{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store{LastStarted: map[string]int64{}}, nil
		}
		return store{}, err
	}
	var st store
	if err := json.Unmarshal(b, &st); err != nil {
		return store{LastStarted: map[string]int64{}}, nil
	}
	if st.LastStarted == nil {
		st.LastStarted = map[string]int64{}
	}
	return st, nil
}

func save(st store) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
