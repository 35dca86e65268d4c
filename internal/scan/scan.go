// Package scan discovers source files under an input root.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/cases"

	"flacbatch/internal/media"
	"flacbatch/internal/services"
)

// DefaultExtension is matched when no extension is supplied.
const DefaultExtension = ".wav"

// ErrNotADirectory is returned when the root is missing or not a directory.
var ErrNotADirectory = errors.New("not a directory")

// Options tunes a scan.
type Options struct {
	// Extension to match, case-insensitively. Leading dot optional.
	Extension string
	// Exclude lists directories (absolute) that are never descended into.
	Exclude []string
}

// Scan walks root and returns every regular file whose extension matches ext,
// sorted by relative path with duplicates removed.
func Scan(root, ext string) ([]media.SourceFile, error) {
	return ScanWithOptions(root, Options{Extension: ext})
}

// ScanWithOptions is Scan with directory exclusions.
func ScanWithOptions(root string, opts Options) ([]media.SourceFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "scan", "resolve root", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "scan", "stat root", absRoot, fmt.Errorf("%w: %w", ErrNotADirectory, err))
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrDiscovery, "scan", "stat root", absRoot, ErrNotADirectory)
	}

	fold := cases.Fold()
	want := fold.String(normalizeExtension(opts.Extension))

	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, dir := range opts.Exclude {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			excluded[filepath.Clean(abs)] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var files []media.SourceFile
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			// Unreadable subtrees are skipped rather than failing discovery.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, skip := excluded[filepath.Clean(path)]; skip && path != absRoot {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if fold.String(filepath.Ext(d.Name())) != want {
			return nil
		}
		clean := filepath.Clean(path)
		if _, dup := seen[clean]; dup {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(absRoot, clean)
		if err != nil {
			return nil
		}
		seen[clean] = struct{}{}
		files = append(files, media.SourceFile{Path: clean, Size: fi.Size(), RelPath: rel})
		return nil
	})
	if walkErr != nil {
		return nil, services.Wrap(services.ErrDiscovery, "scan", "walk", absRoot, walkErr)
	}

	sort.Slice(files, func(i, j int) bool {
		return filepath.ToSlash(files[i].RelPath) < filepath.ToSlash(files[j].RelPath)
	})
	return files, nil
}

func normalizeExtension(ext string) string {
	if ext == "" {
		return DefaultExtension
	}
	if ext[0] != '.' {
		return "." + ext
	}
	return ext
}
