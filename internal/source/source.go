// Package source turns command-line paths into an ordered list of raw
// delimited-text sources, expanding ZIP archives into one source per entry.
package source

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Origin tells where a RawSource came from.
type Origin int

const (
	// OriginFile is a standalone file on disk.
	OriginFile Origin = iota
	// OriginArchiveEntry is an entry inside a ZIP archive.
	OriginArchiveEntry
)

func (o Origin) String() string {
	if o == OriginArchiveEntry {
		return "archive-entry"
	}
	return "file"
}

// ErrNoSources is returned by Collect when nothing usable matched.
var ErrNoSources = errors.New("no delimited-text sources found")

// RawSource is a named, lazily opened blob of delimited text.
type RawSource struct {
	Name    string
	Size    int64
	Origin  Origin
	Archive string

	open func() (io.ReadCloser, error)
}

// Open returns a reader over the source content. The caller must close it.
func (s RawSource) Open() (io.ReadCloser, error) {
	if s.open == nil {
		return nil, fmt.Errorf("source %s: no content", s.Name)
	}
	return s.open()
}

// String returns a display name, including the archive for archive entries.
func (s RawSource) String() string {
	if s.Origin == OriginArchiveEntry && s.Archive != "" {
		return filepath.Base(s.Archive) + ":" + s.Name
	}
	return s.Name
}

// FromReader wraps an in-memory or caller-owned reader as a source.
// The returned source can be opened once.
func FromReader(name string, size int64, r io.Reader) RawSource {
	used := false
	return RawSource{
		Name:   name,
		Size:   size,
		Origin: OriginFile,
		open: func() (io.ReadCloser, error) {
			if used {
				return nil, fmt.Errorf("source %s already consumed", name)
			}
			used = true
			return io.NopCloser(r), nil
		},
	}
}

// Set is an ordered collection of sources plus the archives backing them.
type Set struct {
	Sources  []RawSource
	archives []*zip.ReadCloser
}

// Close releases any open archives.
func (s *Set) Close() error {
	var errs []error
	for _, a := range s.archives {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.archives = nil
	return errors.Join(errs...)
}

// Names returns the display names of all sources in order.
func (s *Set) Names() []string {
	out := make([]string, len(s.Sources))
	for i, src := range s.Sources {
		out[i] = src.String()
	}
	return out
}

// Collect expands paths (files, globs including **, directories) into sources. Order is
// argument order; glob matches and directory contents are sorted by name.
// Duplicate paths are skipped.
func Collect(paths []string) (*Set, error) {
	set := &Set{}
	seen := map[string]struct{}{}
	for _, arg := range paths {
		files, err := expand(arg)
		if err != nil {
			_ = set.Close()
			return nil, err
		}
		for _, f := range files {
			abs, err := filepath.Abs(f)
			if err != nil {
				abs = f
			}
			if _, ok := seen[abs]; ok {
				continue
			}
			seen[abs] = struct{}{}
			if err := set.add(f); err != nil {
				_ = set.Close()
				return nil, err
			}
		}
	}
	if len(set.Sources) == 0 {
		_ = set.Close()
		return nil, ErrNoSources
	}
	return set, nil
}

func expand(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err == nil {
		if !info.IsDir() {
			return []string{arg}, nil
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", arg, err)
		}
		var out []string
		for _, e := range entries {
			if e.IsDir() || hidden(e.Name()) {
				continue
			}
			if IsDelimited(e.Name()) || IsArchive(e.Name()) {
				out = append(out, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(out)
		return out, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", arg, err)
	}
	// ** matches across directories
	found, gerr := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
	if gerr != nil {
		return nil, fmt.Errorf("bad pattern %s: %w", arg, gerr)
	}
	var matches []string
	for _, m := range found {
		if !hidden(filepath.Base(m)) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no such file: %s", arg)
	}
	sort.Strings(matches)
	return matches, nil
}

func (s *Set) add(p string) error {
	switch {
	case IsArchive(p):
		return s.addArchive(p)
	case IsDelimited(p):
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		s.Sources = append(s.Sources, RawSource{
			Name:   p,
			Size:   info.Size(),
			Origin: OriginFile,
			open: func() (io.ReadCloser, error) {
				f, err := os.Open(p)
				if err != nil {
					return nil, fmt.Errorf("open %s: %w", p, err)
				}
				return f, nil
			},
		})
		return nil
	default:
		return fmt.Errorf("unsupported input %s (expected .csv, .tsv, .txt or .zip)", p)
	}
}

func (s *Set) addArchive(p string) error {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", p, err)
	}
	s.archives = append(s.archives, zr)
	for _, f := range zr.File {
		if !archiveEntryWanted(f) {
			continue
		}
		entry := f
		s.Sources = append(s.Sources, RawSource{
			Name:    entry.Name,
			Size:    int64(entry.UncompressedSize64),
			Origin:  OriginArchiveEntry,
			Archive: p,
			open: func() (io.ReadCloser, error) {
				rc, err := entry.Open()
				if err != nil {
					return nil, fmt.Errorf("open %s in %s: %w", entry.Name, filepath.Base(p), err)
				}
				return rc, nil
			},
		})
	}
	return nil
}

func archiveEntryWanted(f *zip.File) bool {
	if f.FileInfo().IsDir() {
		return false
	}
	name := f.Name
	if strings.HasPrefix(name, "__MACOSX/") || strings.Contains(name, "/__MACOSX/") {
		return false
	}
	if hidden(path.Base(name)) {
		return false
	}
	return IsDelimited(name)
}

// IsDelimited reports whether name looks like delimited text.
func IsDelimited(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt":
		return true
	}
	return false
}

// IsArchive reports whether name is a ZIP archive.
func IsArchive(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}

func hidden(base string) bool {
	return strings.HasPrefix(base, ".")
}
