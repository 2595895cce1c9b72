package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/treykane/gostly/internal/model"
)

func TestTouchLastStartedAndForget(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := Touch(7); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err := LastStarted()
	if err != nil {
		t.Fatalf("last started: %v", err)
	}
	if got[7] <= 0 {
		t.Fatalf("expected timestamp for profile 7, got %+v", got)
	}
	if err := Forget(7); err != nil {
		t.Fatalf("forget: %v", err)
	}
	got, _ = LastStarted()
	if _, ok := got[7]; ok {
		t.Fatalf("expected profile 7 forgotten, got %+v", got)
	}
}

func TestCorruptHistoryIsIgnored(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "gostly"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "gostly", "history.json"), []byte("{nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := LastStarted()
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty history, got %+v, %v", got, err)
	}
	if err := Touch(1); err != nil {
		t.Fatalf("touch over corrupt file: %v", err)
	}
}

func TestSortProfilesRecent(t *testing.T) {
	profiles := []model.Profile{
		{ID: 1, Name: "db"},
		{ID: 2, Name: "api"},
		{ID: 3, Name: "cache"},
		{ID: 4, Name: "auth"},
	}
	now := time.Now().Unix()
	sorted := SortProfilesRecent(profiles, map[int64]int64{
		2: now,
		1: now - 60,
	})
	if sorted[0].Name != "api" || sorted[1].Name != "db" {
		t.Fatalf("expected api then db, got %+v", sorted)
	}
	if sorted[2].Name != "auth" || sorted[3].Name != "cache" {
		t.Fatalf("expected never-started profiles by name, got %+v", sorted)
	}
	if profiles[0].Name != "db" {
		t.Fatal("input slice must not be reordered")
	}
}
