package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/enrolstat/internal/utils"
)

func TestSafeWriteFileReplaces(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.json")
	if err := utils.SafeWriteFile(p, []byte("one")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := utils.SafeWriteFile(p, []byte("two")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "two" {
		t.Fatalf("got %q, %v", b, err)
	}
	if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestSafeWriteFileMissingDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "missing", "out.json")
	if err := utils.SafeWriteFile(p, []byte("x")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := utils.ExpandHome("~/data")
	if err != nil || got != filepath.Join(home, "data") {
		t.Fatalf("ExpandHome = %q, %v", got, err)
	}
	if got, _ := utils.ExpandHome("/abs/~x"); got != "/abs/~x" {
		t.Fatalf("absolute path changed: %q", got)
	}
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), []byte(strings.Repeat("a", 10)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := utils.EnsureDir(filepath.Join(dir, "sub")); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b"), []byte("bbbb"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, err := utils.DirSize(dir)
	if err != nil || n != 10 {
		t.Fatalf("DirSize = %d, %v; want 10", n, err)
	}
	if n, err := utils.DirSize(filepath.Join(dir, "nope")); err != nil || n != 0 {
		t.Fatalf("missing dir: %d, %v", n, err)
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "{\n  \"a\": 1\n}" {
		t.Fatalf("unexpected output %q", b)
	}
}
