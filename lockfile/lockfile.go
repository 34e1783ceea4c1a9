// Package lockfile implements lokscan.lock, a YAML file kept next to
// .lokscan.yaml. It records:
//
//   - the checksum of the primary-language text each target key was
//     translated from, so edits to the primary text show up as stale
//     translations;
//   - a translation memory (source language -> target language -> text),
//     so the same text is never sent to a provider twice;
//   - the health score of the last analysis, for trend reporting.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/lokscan/health"
)

// LockFileName is the default lock file name.
const LockFileName = "lokscan.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// HealthRecord is the score of one analysis run.
type HealthRecord struct {
	Time  time.Time    `yaml:"time"`
	Score health.Score `yaml:"score"`
}

// LockFile represents the lokscan.lock file structure.
type LockFile struct {
	Version   int                                     `yaml:"version"`
	Checksums map[string]map[string]string            `yaml:"checksums"`        // target table -> key -> md5 of primary text
	Memory    map[string]map[string]map[string]string `yaml:"memory,omitempty"` // src -> tgt -> text -> translation
	Health    *HealthRecord                           `yaml:"health,omitempty"`

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

func newLockFile(path string) *LockFile {
	return &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		Memory:    make(map[string]map[string]map[string]string),
		path:      path,
	}
}

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := newLockFile(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}
	if lf.Memory == nil {
		lf.Memory = make(map[string]map[string]map[string]string)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// TargetKey builds the lock file key of a target table from its path
// relative to the project root, e.g. "App/Resources/de.lproj/AI.strings".
func TargetKey(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	return filepath.ToSlash(path)
}

// IsChanged reports whether the primary text of key differs from the text
// it was last translated from. Keys never recorded count as changed.
func (lf *LockFile) IsChanged(target, key, sourceContent string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	keys, ok := lf.Checksums[target]
	if !ok {
		return true
	}
	oldHash, ok := keys[key]
	if !ok {
		return true
	}
	return oldHash != Hash(sourceContent)
}

// Update records the primary text a target key was written from.
func (lf *LockFile) Update(target, key, sourceContent string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[target] == nil {
		lf.Checksums[target] = make(map[string]string)
	}
	lf.Checksums[target][key] = Hash(sourceContent)
}

// Stale returns the keys of target that were recorded from a primary text
// that has since changed, sorted. entries maps key -> current primary text;
// keys without a record are not stale.
func (lf *LockFile) Stale(target string, entries map[string]string) []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[target]
	var stale []string
	for key, content := range entries {
		if old, ok := existing[key]; ok && old != Hash(content) {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	return stale
}

// Clean removes entries from the lock file that are no longer present in
// the current set of keys. This prevents stale entries from accumulating.
func (lf *LockFile) Clean(target string, currentKeys []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[target]
	if existing == nil {
		return
	}

	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}

	for k := range existing {
		if !valid[k] {
			delete(existing, k)
		}
	}
}

// RemoveTarget removes all checksums for a target.
func (lf *LockFile) RemoveTarget(target string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Checksums, target)
}

// ---------------------------------------------------------------------------
// Translation memory
// ---------------------------------------------------------------------------

// Lookup returns the remembered translation of text from src to tgt.
func (lf *LockFile) Lookup(src, tgt, text string) (string, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	out, ok := lf.Memory[src][tgt][text]
	return out, ok
}

// Remember stores a translation of text from src to tgt.
func (lf *LockFile) Remember(src, tgt, text, translation string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Memory[src] == nil {
		lf.Memory[src] = make(map[string]map[string]string)
	}
	if lf.Memory[src][tgt] == nil {
		lf.Memory[src][tgt] = make(map[string]string)
	}
	lf.Memory[src][tgt][text] = translation
}

// Forget drops every remembered translation into tgt.
func (lf *LockFile) Forget(tgt string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	for _, byTarget := range lf.Memory {
		delete(byTarget, tgt)
	}
}

// ---------------------------------------------------------------------------
// Health history
// ---------------------------------------------------------------------------

// LastHealth returns the score of the previous analysis, if any.
func (lf *LockFile) LastHealth() (HealthRecord, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Health == nil {
		return HealthRecord{}, false
	}
	return *lf.Health, true
}

// RecordHealth stores s as the latest score.
func (lf *LockFile) RecordHealth(s health.Score, at time.Time) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.Health = &HealthRecord{Time: at.UTC(), Score: s}
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of targets and total keys in the lock file.
func (lf *LockFile) Stats() (targets, keys int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets = len(lf.Checksums)
	for _, m := range lf.Checksums {
		keys += len(m)
	}
	return
}

// MemorySize returns the number of remembered translations.
func (lf *LockFile) MemorySize() int {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	n := 0
	for _, byTarget := range lf.Memory {
		for _, m := range byTarget {
			n += len(m)
		}
	}
	return n
}

// Targets returns sorted list of target keys.
func (lf *LockFile) Targets() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets := make([]string, 0, len(lf.Checksums))
	for t := range lf.Checksums {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	targets, keys := lf.Stats()
	mem := lf.MemorySize()
	if targets == 0 && mem == 0 {
		return "empty"
	}

	var parts []string
	for _, t := range lf.Targets() {
		lf.mu.Lock()
		n := len(lf.Checksums[t])
		lf.mu.Unlock()
		parts = append(parts, fmt.Sprintf("%s: %d keys", t, n))
	}
	s := fmt.Sprintf("%d targets, %d keys, %d remembered translations", targets, keys, mem)
	if len(parts) > 0 {
		s += " (" + strings.Join(parts, ", ") + ")"
	}
	return s
}
