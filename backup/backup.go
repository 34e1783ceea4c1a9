// Package backup keeps copies of table files before lokscan changes them.
//
// Every run that writes gets one session directory,
// <dir>/<20060102-150405>-<uuid8>, holding the original of each file at
// its project-relative path plus a manifest of files the run created.
// Protect makes a single write atomic from the caller's point of view: if
// the write fails the file is put back the way it was. Restore rolls a
// whole session back.
package backup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultDir is the backup directory relative to the project root.
const DefaultDir = ".lokscan-backup"

const (
	manifestName = "manifest.yaml"
	timeLayout   = "20060102-150405"
)

// Manifest describes one session.
type Manifest struct {
	Time    time.Time `yaml:"time"`
	Command string    `yaml:"command,omitempty"`
	// Files are the project-relative paths saved in the session.
	Files []string `yaml:"files"`
	// Created are files that did not exist before the session.
	Created []string `yaml:"created,omitempty"`
}

// Session is a backup session on disk.
type Session struct {
	ID   string
	Path string
	Manifest
}

// Manager writes one backup session. It implements keytable.Guard.
type Manager struct {
	root    string
	dir     string
	enabled bool
	log     *zap.Logger

	mu       sync.Mutex
	id       string
	manifest Manifest
	saved    map[string]bool
}

// New returns a Manager for the project at root. dir is relative to root
// unless absolute. When enabled is false Protect still rolls back failed
// writes but nothing is kept on disk.
func New(root, dir string, enabled bool, log *zap.Logger) *Manager {
	if dir == "" {
		dir = DefaultDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		root:    root,
		dir:     dir,
		enabled: enabled,
		log:     log,
		saved:   make(map[string]bool),
	}
}

// SetCommand names the command recorded in the session manifest.
func (m *Manager) SetCommand(cmd string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest.Command = cmd
}

// Dir returns the backup root.
func (m *Manager) Dir() string { return m.dir }

// SessionID returns the current session ID, or "" when nothing was saved.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// SessionDir returns the directory of the current session, or "".
func (m *Manager) SessionDir() string {
	id := m.SessionID()
	if id == "" {
		return ""
	}
	return filepath.Join(m.dir, id)
}

func newSessionID(now time.Time) string {
	return now.Format(timeLayout) + "-" + uuid.NewString()[:8]
}

// rel returns path relative to the project root, slash separated. Files
// outside the root are kept under "external/".
func (m *Manager) rel(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	root, err := filepath.Abs(m.root)
	if err != nil {
		root = m.root
	}
	if r, err := filepath.Rel(root, abs); err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(r)
	}
	return "external/" + strings.TrimLeft(filepath.ToSlash(filepath.Clean(abs)), "/:")
}

// Protect runs fn, which changes path. The content of path before the
// first change of the session is saved once. When fn fails, path is
// restored to its content from just before fn ran, or removed if it did
// not exist.
func (m *Manager) Protect(path string, fn func() error) error {
	before, existed, mode, err := readFile(path)
	if err != nil {
		return err
	}
	if err := m.save(path, before, existed, mode); err != nil {
		return err
	}

	fnErr := fn()
	if fnErr == nil {
		return nil
	}

	var rerr error
	if existed {
		rerr = os.WriteFile(path, before, mode)
	} else if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		rerr = err
	}
	if rerr != nil {
		return multierror.Append(fnErr, fmt.Errorf("restoring %s: %w", path, rerr))
	}
	m.log.Debug("rolled back failed write", zap.String("path", path), zap.Error(fnErr))
	return fnErr
}

func readFile(path string) (data []byte, existed bool, mode fs.FileMode, err error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, false, 0644, nil
	}
	if err != nil {
		return nil, false, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, false, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, true, info.Mode().Perm(), nil
}

// save records the pre-session state of path once per session.
func (m *Manager) save(path string, data []byte, existed bool, mode fs.FileMode) error {
	if !m.enabled {
		return nil
	}
	rel := m.rel(path)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved[rel] {
		return nil
	}
	if m.id == "" {
		m.id = newSessionID(time.Now())
		m.manifest.Time = time.Now().UTC().Truncate(time.Second)
	}
	sessionDir := filepath.Join(m.dir, m.id)
	if existed {
		dst := filepath.Join(sessionDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return fmt.Errorf("creating backup directory: %w", err)
		}
		if err := os.WriteFile(dst, data, mode); err != nil {
			return fmt.Errorf("backing up %s: %w", path, err)
		}
		m.manifest.Files = append(m.manifest.Files, rel)
	} else {
		m.manifest.Created = append(m.manifest.Created, rel)
	}
	m.saved[rel] = true
	m.log.Debug("backed up", zap.String("file", rel), zap.Bool("existed", existed), zap.String("session", m.id))
	return m.writeManifest(sessionDir)
}

func (m *Manager) writeManifest(sessionDir string) error {
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	man := m.manifest
	sort.Strings(man.Files)
	sort.Strings(man.Created)
	data, err := yaml.Marshal(&man)
	if err != nil {
		return fmt.Errorf("marshaling backup manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(sessionDir, manifestName), data, 0644)
}

// Snapshot saves every file under the project root matching one of the
// doublestar patterns (e.g. "**/de.lproj/*.strings") into the session.
// It returns the number of files saved.
func (m *Manager) Snapshot(patterns []string) (int, error) {
	if !m.enabled {
		return 0, nil
	}
	fsys := os.DirFS(m.root)
	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return 0, fmt.Errorf("backup pattern %q: %w", p, err)
		}
		for _, f := range matches {
			if strings.HasPrefix(f, filepath.ToSlash(m.relDir())+"/") || seen[f] {
				continue
			}
			seen[f] = true
			files = append(files, f)
		}
	}
	sort.Strings(files)

	n := 0
	for _, f := range files {
		path := filepath.Join(m.root, filepath.FromSlash(f))
		data, existed, mode, err := readFile(path)
		if err != nil {
			return n, err
		}
		if err := m.save(path, data, existed, mode); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// relDir returns the backup directory relative to the root.
func (m *Manager) relDir() string {
	r, err := filepath.Rel(m.root, m.dir)
	if err != nil {
		return m.dir
	}
	return r
}

// List returns the sessions under the backup directory, newest first.
func (m *Manager) List() ([]Session, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", m.dir, err)
	}
	var sessions []Session
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s, err := m.load(e.Name())
		if err != nil {
			m.log.Debug("skipping backup directory", zap.String("dir", e.Name()), zap.Error(err))
			continue
		}
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID > sessions[j].ID })
	return sessions, nil
}

func (m *Manager) load(id string) (Session, error) {
	path := filepath.Join(m.dir, id)
	data, err := os.ReadFile(filepath.Join(path, manifestName))
	if err != nil {
		return Session{}, err
	}
	var man Manifest
	if err := yaml.Unmarshal(data, &man); err != nil {
		return Session{}, fmt.Errorf("parsing manifest of %s: %w", id, err)
	}
	return Session{ID: id, Path: path, Manifest: man}, nil
}

// Restore copies every file of session id back into the project and
// removes the files the session created. id may be "latest". It returns
// the restored and removed project-relative paths.
func (m *Manager) Restore(id string) ([]string, error) {
	if id == "latest" {
		sessions, err := m.List()
		if err != nil {
			return nil, err
		}
		if len(sessions) == 0 {
			return nil, fmt.Errorf("no backups in %s", m.dir)
		}
		id = sessions[0].ID
	}
	s, err := m.load(id)
	if err != nil {
		return nil, fmt.Errorf("backup %q not found: %w", id, err)
	}

	var errs *multierror.Error
	var done []string
	for _, rel := range s.Files {
		src := filepath.Join(s.Path, filepath.FromSlash(rel))
		dst := filepath.Join(m.root, filepath.FromSlash(rel))
		if strings.HasPrefix(rel, "external/") {
			dst = string(filepath.Separator) + filepath.FromSlash(strings.TrimPrefix(rel, "external/"))
		}
		data, _, mode, err := readFile(src)
		if err == nil {
			if err = os.MkdirAll(filepath.Dir(dst), 0755); err == nil {
				err = os.WriteFile(dst, data, mode)
			}
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("restoring %s: %w", rel, err))
			continue
		}
		done = append(done, rel)
	}
	for _, rel := range s.Created {
		if err := os.Remove(filepath.Join(m.root, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
			errs = multierror.Append(errs, fmt.Errorf("removing %s: %w", rel, err))
			continue
		}
		done = append(done, rel)
	}
	sort.Strings(done)
	m.log.Debug("restored backup", zap.String("session", id), zap.Int("files", len(done)))
	return done, errs.ErrorOrNil()
}

// Cleanup removes all but the keep most recent sessions and returns the
// removed IDs.
func (m *Manager) Cleanup(keep int) ([]string, error) {
	sessions, err := m.List()
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}
	var removed []string
	var errs *multierror.Error
	current := m.SessionID()
	for _, s := range sessions[min(keep, len(sessions)):] {
		if s.ID == current {
			continue
		}
		if err := os.RemoveAll(s.Path); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		removed = append(removed, s.ID)
	}
	return removed, errs.ErrorOrNil()
}
