// Package housekeeping discovers, archives and tracks end-of-day batch
// files, and builds the monthly combined barcode files.
package housekeeping

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/justapithecus/anxeod/category"
	"github.com/justapithecus/anxeod/iox"
	"github.com/justapithecus/anxeod/types"
)

// ErrNotDirectory is returned when a configured path exists but is a file.
var ErrNotDirectory = errors.New("not a directory")

// ArchiveStampLayout is the timestamp embedded in archived file names.
const ArchiveStampLayout = "2006-01-02T15-04-05"

// PrefixLen is the length of the category prefix that selects new files.
const PrefixLen = 5

// CheckDirectories verifies that every path exists and is a directory.
// It stops at the first problem.
func CheckDirectories(paths ...string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("directory %q: %w", p, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("directory %q: %w", p, ErrNotDirectory)
		}
	}
	return nil
}

// ScanDirectory lists the plain file names in dir, sorted, skipping
// subdirectories and .DS_Store.
func ScanDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == ".DS_Store" {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// NewFiles selects names whose first five characters are in prefixes and
// that are not yet tracked. The result is sorted.
func NewFiles(prefixes, names, tracked []string) []string {
	var out []string
	for _, name := range names {
		if len(name) < PrefixLen || !slices.Contains(prefixes, name[:PrefixLen]) {
			continue
		}
		if slices.Contains(tracked, name) {
			continue
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// ArchivedFile pairs a discovered source file with its archived copy.
type ArchivedFile struct {
	Name        string
	SourcePath  string
	ArchivePath string
	Category    types.FileCategory
}

// Archive copies each named file from sourceDir into archiveDir as
// <CODE>_<stamp>.txt and verifies the copy. Names that do not classify
// fail the whole call before anything is copied.
func Archive(names []string, sourceDir, archiveDir string, now time.Time) ([]ArchivedFile, error) {
	stamp := now.Format(ArchiveStampLayout)

	out := make([]ArchivedFile, 0, len(names))
	used := make(map[string]int)
	for _, name := range names {
		cat, err := category.Classify(name)
		if err != nil {
			return nil, err
		}
		base := fmt.Sprintf("%s_%s", cat, stamp)
		used[base]++
		if n := used[base]; n > 1 {
			// two files of one category in the same second
			base = fmt.Sprintf("%s_%d", base, n)
		}
		out = append(out, ArchivedFile{
			Name:        name,
			SourcePath:  filepath.Join(sourceDir, name),
			ArchivePath: filepath.Join(archiveDir, base+".txt"),
			Category:    cat,
		})
	}

	for _, f := range out {
		if err := copyVerified(f.SourcePath, f.ArchivePath); err != nil {
			return nil, fmt.Errorf("archive %s: %w", f.Name, err)
		}
	}
	return out, nil
}

func copyVerified(src, dst string) error {
	data, err := readAll(src)
	if err != nil {
		return err
	}
	if err := iox.WriteFileAtomic(dst, data, 0o644); err != nil {
		return err
	}
	got, err := readAll(dst)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !bytes.Equal(got, data) {
		return fmt.Errorf("verify: archived copy %s differs from source", dst)
	}
	return nil
}

func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(f)
	return io.ReadAll(f)
}

// DeleteProcessed removes the named files from sourceDir.
// Files already gone are not an error.
func DeleteProcessed(names []string, sourceDir string) error {
	var errs []error
	for _, name := range names {
		p := filepath.Join(sourceDir, name)
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
