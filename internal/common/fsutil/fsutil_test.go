package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	cases := map[string]string{
		"":              "",
		"/tmp/models":   "/tmp/models",
		"~":             home,
		"~/models":      filepath.Join(home, "models"),
		"~other/models": "~other/models",
	}
	for in, want := range cases {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q -> %q, want %q", in, got, want)
		}
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.gguf")
	if PathExists(p) {
		t.Fatalf("missing file reported as existing")
	}
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !PathExists(p) || !PathExists(dir) {
		t.Fatalf("existing paths not found")
	}
}

func TestSizeMB(t *testing.T) {
	cases := []struct {
		in   int64
		want int
	}{{0, 1}, {1, 1}, {1 << 20, 1}, {1<<20 + 1, 2}, {3 << 30, 3072}}
	for _, c := range cases {
		if got := SizeMB(c.in); got != c.want {
			t.Fatalf("SizeMB(%d)=%d, want %d", c.in, got, c.want)
		}
	}
}
