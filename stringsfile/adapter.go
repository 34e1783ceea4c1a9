package stringsfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minios-linux/lokscan/extract"
	"github.com/minios-linux/lokscan/keytable"
)

// Ext is the table file extension.
const Ext = ".strings"

// lprojSuffix marks a language directory.
const lprojSuffix = ".lproj"

// baseLanguage is Xcode's storyboard base localization, not a real language.
const baseLanguage = "Base"

// Adapter is the keytable.Adapter for Apple .strings tables laid out as
// <dir>/<lang>.lproj/<Module>.strings.
type Adapter struct{}

var _ keytable.Adapter = Adapter{}

// ListKeyFiles finds every <lang>.lproj/<Module>.strings below root.
// Results are sorted by module, language, then path.
func (Adapter) ListKeyFiles(root string) ([]keytable.TableFile, error) {
	var files []keytable.TableFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			if path != root && extract.IsSkippedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != Ext {
			return nil
		}
		lang, ok := LanguageFromDir(filepath.Base(filepath.Dir(path)))
		if !ok {
			return nil
		}
		files = append(files, keytable.TableFile{
			Module: strings.TrimSuffix(filepath.Base(path), Ext),
			Lang:   lang,
			Path:   path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Lang != b.Lang {
			return a.Lang < b.Lang
		}
		return a.Path < b.Path
	})
	return files, nil
}

// LanguageFromDir extracts the language code from an "xx.lproj" directory
// name. Base.lproj is not a language.
func LanguageFromDir(name string) (string, bool) {
	if !strings.HasSuffix(name, lprojSuffix) {
		return "", false
	}
	lang := strings.TrimSuffix(name, lprojSuffix)
	if lang == "" || lang == baseLanguage {
		return "", false
	}
	return lang, true
}

// ParseTable parses one table file into ordered entries.
func (Adapter) ParseTable(path string) ([]keytable.Entry, error) {
	f, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	entries := f.Entries()
	out := make([]keytable.Entry, len(entries))
	for i, e := range entries {
		out[i] = keytable.Entry{Key: e.Key, Value: e.Value, Line: e.Line}
	}
	return out, nil
}

// WriteEntry updates key in place or appends it. A missing file is created
// with the standard header.
func (a Adapter) WriteEntry(path, key, text string) error {
	f, err := a.open(path)
	if err != nil {
		return err
	}
	f.Set(key, text)
	return f.WriteFile(path)
}

// RemoveEntry deletes key from the table. Removing an absent key is a no-op.
func (a Adapter) RemoveEntry(path, key string) error {
	f, err := a.open(path)
	if err != nil {
		return err
	}
	if !f.Remove(key) {
		return nil
	}
	return f.WriteFile(path)
}

func (Adapter) open(path string) (*File, error) {
	f, err := ParseFile(path)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		lang, _ := LanguageFromDir(filepath.Base(filepath.Dir(path)))
		return NewFile(lang, strings.TrimSuffix(filepath.Base(path), Ext)), nil
	}
	return nil, err
}

// TablePath returns where the table for module and lang lives under dir.
func (Adapter) TablePath(dir, lang, module string) string {
	return filepath.Join(dir, lang+lprojSuffix, module+Ext)
}

// CallSyntax returns the Swift localization call syntax.
func (Adapter) CallSyntax() extract.CallSyntax {
	return extract.Swift()
}
