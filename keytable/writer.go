package keytable

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/minios-linux/lokscan/diag"
)

// Guard protects a file while fn changes it: on failure the file is
// restored to its state before fn ran.
type Guard interface {
	Protect(path string, fn func() error) error
}

// Writer is the single add/update/remove contract for tables. Each call
// holds an exclusive lock on one table file for the duration of the write
// and releases it on every exit path. The in-memory Index changes only
// after the file write succeeded, still under that lock.
type Writer struct {
	adapter Adapter
	index   *Index
	guard   Guard
	dir     string
	log     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriter returns a Writer over idx. dir is where tables of modules that
// have no file yet are created. guard may be nil.
func NewWriter(adapter Adapter, idx *Index, dir string, guard Guard, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		adapter: adapter,
		index:   idx,
		guard:   guard,
		dir:     dir,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Index returns the index the writer keeps in sync.
func (w *Writer) Index() *Index { return w.index }

// Set adds or updates key in the module table for lang, creating the file
// when the module has no table for lang yet.
func (w *Writer) Set(module, lang, key, value string) error {
	path := w.PathFor(module, lang)
	err := w.locked(path, func() error {
		if err := w.adapter.WriteEntry(path, key, value); err != nil {
			return err
		}
		w.index.ensure(module, lang, path).set(key, value)
		return nil
	})
	if err != nil {
		return &diag.IOError{Op: "writing", Path: path, Err: err}
	}
	w.log.Debug("wrote key", zap.String("module", module), zap.String("lang", lang), zap.String("key", key))
	return nil
}

// Remove deletes key from the module table for lang.
func (w *Writer) Remove(module, lang, key string) error {
	t, ok := w.index.Table(module, lang)
	if !ok {
		return &diag.LanguageNotFoundError{Lang: lang, Module: module}
	}
	err := w.locked(t.Path, func() error {
		if err := w.adapter.RemoveEntry(t.Path, key); err != nil {
			return err
		}
		t.remove(key)
		return nil
	})
	if err != nil {
		return &diag.IOError{Op: "writing", Path: t.Path, Err: err}
	}
	w.log.Debug("removed key", zap.String("module", module), zap.String("lang", lang), zap.String("key", key))
	return nil
}

// DeleteTable removes the file of the module table for lang.
func (w *Writer) DeleteTable(module, lang string) error {
	t, ok := w.index.Table(module, lang)
	if !ok {
		return &diag.LanguageNotFoundError{Lang: lang, Module: module}
	}
	err := w.locked(t.Path, func() error {
		return os.Remove(t.Path)
	})
	if err != nil {
		return &diag.IOError{Op: "removing", Path: t.Path, Err: err}
	}
	w.index.drop(module, lang)
	return nil
}

// PathFor returns the file of the module table for lang. For a language
// without a table it is placed next to the module's existing tables, or
// under the writer's directory for a new module.
func (w *Writer) PathFor(module, lang string) string {
	if p := w.index.Path(module, lang); p != "" {
		return p
	}
	for _, other := range w.index.LanguagesOf(module) {
		if dir, ok := w.tableDir(module, other); ok {
			return w.adapter.TablePath(dir, lang, module)
		}
	}
	return w.adapter.TablePath(w.dir, lang, module)
}

// tableDir finds the directory d with TablePath(d, lang, module) equal to
// the existing table's path.
func (w *Writer) tableDir(module, lang string) (string, bool) {
	path := w.index.Path(module, lang)
	dir := filepath.Dir(path)
	for i := 0; i < 4; i++ {
		if filepath.Clean(w.adapter.TablePath(dir, lang, module)) == filepath.Clean(path) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// locked runs fn holding the lock for path, inside the guard if any.
func (w *Writer) locked(path string, fn func() error) error {
	w.mu.Lock()
	l, ok := w.locks[path]
	if !ok {
		l = &sync.Mutex{}
		w.locks[path] = l
	}
	w.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	if w.guard == nil {
		return fn()
	}
	return w.guard.Protect(path, fn)
}
