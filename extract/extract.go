// Package extract finds source files and classifies their string literals
// as localized calls, dynamic (interpolated) localized calls or hardcoded
// text.
//
// The package has three layers:
//
//   - FindSources walks source directories, skipping build output and
//     dependency folders plus user exclusion globs.
//   - Compile builds the immutable pattern bundle (user exclusions, emoji,
//     built-in technical-string filters) shared by every scanner.
//   - Scanner tokenizes one file at a time; ScanFiles runs it over many
//     files on a bounded worker pool.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/workpool"
)

// SupportedExtensions maps source file extensions to language names.
var SupportedExtensions = map[string]string{
	".swift": "Swift",
}

// skipDirs contains directory names to skip during source file scanning.
var skipDirs = map[string]bool{
	".git":             true,
	".hg":              true,
	".svn":             true,
	".build":           true,
	".swiftpm":         true,
	".lokscan-backup":  true,
	"build":            true,
	"Build":            true,
	"DerivedData":      true,
	"Pods":             true,
	"Carthage":         true,
	"vendor":           true,
	"node_modules":     true,
	"dist":             true,
	"coverage":         true,
	"fastlane":         true,
	"xcuserdata":       true,
	"SourcePackages":   true,
	"__pycache__":      true,
	"Preview Content":  true,
	"GeneratedSources": true,
}

// IsSkippedDir reports whether a directory with this base name is never
// scanned: VCS metadata, build output, dependencies and generated code.
func IsSkippedDir(name string) bool {
	return skipDirs[name] || strings.Contains(name, "Generated")
}

// FindSources recursively finds source files with one of exts (all
// SupportedExtensions when empty) in dirs. Paths matching any of the
// doublestar exclude globs, relative to their scan dir, are skipped.
// The result is sorted and free of duplicates.
func FindSources(dirs, exts, exclude []string) ([]string, error) {
	if len(exts) == 0 {
		for ext := range SupportedExtensions {
			exts = append(exts, ext)
		}
	}
	wanted := make(map[string]bool, len(exts))
	for _, e := range exts {
		wanted[e] = true
	}

	var files []string
	seen := make(map[string]bool)

	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				if path != dir && (IsSkippedDir(d.Name()) || excluded(rel, exclude)) {
					return filepath.SkipDir
				}
				return nil
			}
			if !wanted[filepath.Ext(path)] || excluded(rel, exclude) {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func excluded(rel string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// FilesByLanguage groups source files by their language name.
func FilesByLanguage(files []string) map[string][]string {
	result := make(map[string][]string)
	for _, f := range files {
		if lang, ok := SupportedExtensions[filepath.Ext(f)]; ok {
			result[lang] = append(result[lang], f)
		}
	}
	return result
}

// DescribeFiles returns a human-readable summary of the source files found.
func DescribeFiles(files []string) string {
	byLang := FilesByLanguage(files)
	var langs []string
	for lang := range byLang {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	var parts []string
	for _, lang := range langs {
		parts = append(parts, fmt.Sprintf("%d %s", len(byLang[lang]), lang))
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Parallel scanning
// ---------------------------------------------------------------------------

// ErrNotUTF8 marks a source file skipped because it is not valid UTF-8.
var ErrNotUTF8 = errors.New("not valid UTF-8")

// ScanResult is the merged output of ScanFiles.
type ScanResult struct {
	// Occurrences sorted by file, then offset.
	Occurrences []Occurrence
	// Files is the number of files scanned successfully.
	Files int
	// Err aggregates per-file read errors; nil when every file was read.
	Err error
}

// ScanFiles scans files on at most workers goroutines. Occurrence file
// names are slash-separated and relative to root. Unreadable and
// non-UTF-8 files are collected in the result instead of aborting; cancellation is checked
// between files and returned as the error.
func ScanFiles(ctx context.Context, sc *Scanner, root string, files []string, workers int, log *zap.Logger) (*ScanResult, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		mu      sync.Mutex
		perFile = make([][]Occurrence, len(files))
		scanned int
		errs    diag.Collector
	)
	indexes := make([]int, len(files))
	for i := range indexes {
		indexes[i] = i
	}

	_ = workpool.Run(ctx, indexes, workers, 0, func(ctx context.Context, i int) error {
		if ctx.Err() != nil {
			return nil
		}
		path := files[i]
		data, err := os.ReadFile(path)
		if err != nil {
			errs.Add(&diag.IOError{Op: "reading", Path: path, Err: err})
			return nil
		}
		if !utf8.Valid(data) {
			log.Debug("skipping non-UTF-8 source", zap.String("file", path))
			errs.Add(&diag.IOError{Op: "scanning", Path: path, Err: ErrNotUTF8})
			return nil
		}
		name := DisplayPath(root, path)
		occs := sc.Scan(name, data)
		log.Debug("scanned", zap.String("file", name), zap.Int("occurrences", len(occs)))

		mu.Lock()
		perFile[i] = occs
		scanned++
		mu.Unlock()
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &ScanResult{Files: scanned, Err: errs.Err()}
	for _, occs := range perFile {
		res.Occurrences = append(res.Occurrences, occs...)
	}
	sort.SliceStable(res.Occurrences, func(a, b int) bool {
		x, y := res.Occurrences[a], res.Occurrences[b]
		if x.File != y.File {
			return x.File < y.File
		}
		return x.Offset < y.Offset
	})
	return res, nil
}

// DisplayPath returns path relative to root with forward slashes, or path
// itself when it is not below root.
func DisplayPath(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
