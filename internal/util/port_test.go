package util

import "testing"

func TestParsePortOnlyAddr(t *testing.T) {
	valid := map[string]int{":8080": 8080, ":1": 1, ":65535": 65535}
	for in, want := range valid {
		got, err := ParsePortOnlyAddr(in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: got %d want %d", in, got, want)
		}
	}

	for _, in := range []string{"", ":", ":0", "8080", ":70000", ":abc", "127.0.0.1:8080", ": 80"} {
		if _, err := ParsePortOnlyAddr(in); err == nil {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}

func TestBindKey(t *testing.T) {
	if BindKey(":1080") != BindKey("0.0.0.0:1080") {
		t.Fatalf("expected wildcard forms to match: %s vs %s", BindKey(":1080"), BindKey("0.0.0.0:1080"))
	}
	if BindKey("127.0.0.1:1080") == BindKey(":1080") {
		t.Fatal("loopback and wildcard binds must differ")
	}
}
