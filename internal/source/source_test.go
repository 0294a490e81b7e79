package source

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeZip(t *testing.T, path string, entries map[string]string, order []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := io.WriteString(w, entries[name]); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func readAll(t *testing.T, s RawSource) string {
	t.Helper()
	rc, err := s.Open()
	if err != nil {
		t.Fatalf("open %s: %v", s.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", s.Name, err)
	}
	return string(b)
}

func TestCollectArchiveFiltersEntries(t *testing.T) {
	dir := t.TempDir()
	zp := filepath.Join(dir, "batch.zip")
	entries := map[string]string{
		"a.csv":              "state,count\nX,1\n",
		"__MACOSX/._a.csv":   "junk",
		"notes.md":           "# readme",
		"nested/.hidden.csv": "state,count\nY,2\n",
		"nested/b.csv":       "state,count\nZ,3\n",
	}
	order := []string{"a.csv", "__MACOSX/._a.csv", "notes.md", "nested/.hidden.csv", "nested/b.csv"}
	writeZip(t, zp, entries, order)

	set, err := Collect([]string{zp})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	defer set.Close()

	if len(set.Sources) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(set.Sources), set.Names())
	}
	if set.Sources[0].Name != "a.csv" || set.Sources[1].Name != "nested/b.csv" {
		t.Fatalf("unexpected entry order: %v", set.Names())
	}
	if set.Sources[0].Origin != OriginArchiveEntry {
		t.Fatalf("expected archive origin, got %s", set.Sources[0].Origin)
	}
	if got := readAll(t, set.Sources[1]); !strings.Contains(got, "Z,3") {
		t.Fatalf("unexpected content: %q", got)
	}
	if !strings.HasPrefix(set.Sources[0].String(), "batch.zip:") {
		t.Fatalf("expected archive-qualified name, got %q", set.Sources[0].String())
	}
}

func TestCollectDirectorySortedAndDeduplicated(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.csv", ".skip.csv", "c.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("state,count\nX,1\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	set, err := Collect([]string{dir, filepath.Join(dir, "a.csv")})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	defer set.Close()
	names := set.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 sources, got %v", names)
	}
	if filepath.Base(names[0]) != "a.csv" || filepath.Base(names[1]) != "b.csv" {
		t.Fatalf("expected sorted names, got %v", names)
	}
}

func TestCollectGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2.csv", "1.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("state\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	set, err := Collect([]string{filepath.Join(dir, "*.csv")})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	defer set.Close()
	if len(set.Sources) != 2 || filepath.Base(set.Sources[0].Name) != "1.csv" {
		t.Fatalf("unexpected glob result: %v", set.Names())
	}
}

func TestCollectRecursiveGlob(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"2024/jan.csv", "2024/q1/feb.csv", "2024/notes.md"} {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("state\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	set, err := Collect([]string{filepath.Join(dir, "**", "*.csv")})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	defer set.Close()
	if len(set.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %v", set.Names())
	}
	if filepath.Base(set.Sources[0].Name) != "jan.csv" || filepath.Base(set.Sources[1].Name) != "feb.csv" {
		t.Fatalf("unexpected order: %v", set.Names())
	}
}

func TestCollectErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Collect([]string{filepath.Join(dir, "missing.csv")}); err == nil {
		t.Fatalf("expected error for missing file")
	}
	other := filepath.Join(dir, "data.json")
	if err := os.WriteFile(other, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Collect([]string{other}); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := Collect([]string{empty}); !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}

func TestFromReaderOpensOnce(t *testing.T) {
	s := FromReader("inline.csv", 4, strings.NewReader("a\n1\n"))
	if got := readAll(t, s); got != "a\n1\n" {
		t.Fatalf("unexpected content %q", got)
	}
	if _, err := s.Open(); err == nil {
		t.Fatalf("expected second open to fail")
	}
}
