package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/minios-linux/lokscan/extract"
	"github.com/minios-linux/lokscan/stringsfile"
)

// Project is what Detect found in a directory tree.
type Project struct {
	// Name is the Xcode project or package name, else the directory name.
	Name string
	// Root is the absolute project root.
	Root string
	// TablesDir is the deepest directory containing every .lproj
	// directory, relative to Root.
	TablesDir string
	// TableDirs are all directories holding .lproj directories.
	TableDirs []string
	// SourceDirs are top-level directories holding Swift sources.
	SourceDirs []string
	// Languages are the table languages found, sorted.
	Languages []string
	// Modules are the table names found, sorted.
	Modules []string
	// ModuleMapping pairs source directories named after a module with
	// that module.
	ModuleMapping map[string]string
	// SwiftFiles is the number of Swift sources found.
	SwiftFiles int
}

// Detect walks rootDir and reports where tables and sources live.
// Only directory listings and Package.swift are read.
func Detect(rootDir string) *Project {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}
	p := &Project{
		Root:          absRoot,
		Name:          detectName(absRoot),
		TablesDir:     ".",
		ModuleMapping: make(map[string]string),
	}

	langs := make(map[string]bool)
	modules := make(map[string]bool)
	tableParents := make(map[string]bool)
	sourceTops := make(map[string]bool)
	var dirs []string

	filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		rel, _ := filepath.Rel(absRoot, path)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if extract.IsSkippedDir(d.Name()) || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if strings.HasSuffix(d.Name(), ".lproj") {
				tableParents[filepath.ToSlash(filepath.Dir(rel))] = true
				if lang, ok := stringsfile.LanguageFromDir(d.Name()); ok {
					langs[lang] = true
				}
				return nil
			}
			dirs = append(dirs, rel)
			return nil
		}
		switch {
		case filepath.Ext(path) == stringsfile.Ext:
			if _, ok := stringsfile.LanguageFromDir(filepath.Base(filepath.Dir(path))); ok {
				modules[strings.TrimSuffix(d.Name(), stringsfile.Ext)] = true
			}
		case filepath.Ext(path) == ".swift":
			p.SwiftFiles++
			top := strings.SplitN(rel, "/", 2)[0]
			if top == rel {
				top = "."
			}
			sourceTops[top] = true
		}
		return nil
	})

	p.Languages = sortedSet(langs)
	p.Modules = sortedSet(modules)
	p.SourceDirs = sortedSet(sourceTops)
	if len(p.SourceDirs) > 0 && sourceTops["."] {
		p.SourceDirs = []string{"."}
	}

	for dir := range tableParents {
		p.TableDirs = append(p.TableDirs, dir)
	}
	sort.Strings(p.TableDirs)
	if len(p.TableDirs) > 0 {
		p.TablesDir = commonDir(p.TableDirs)
	}

	for _, m := range p.Modules {
		if m == "Localizable" || m == "InfoPlist" {
			continue
		}
		for _, d := range dirs {
			if strings.EqualFold(filepath.Base(d), m) {
				p.ModuleMapping[d+"/**"] = m
				break
			}
		}
	}
	return p
}

// PrimaryLanguage guesses the development language: "en" when present,
// else the first language found.
func (p *Project) PrimaryLanguage() string {
	for _, l := range p.Languages {
		if l == "en" {
			return l
		}
	}
	if len(p.Languages) > 0 {
		return p.Languages[0]
	}
	return "en"
}

// Config returns a configuration seeded from what was found.
func (p *Project) Config() *Config {
	c := Default()
	c.PrimaryLanguage = p.PrimaryLanguage()
	if len(p.SourceDirs) > 0 {
		c.SourceDirs = p.SourceDirs
	}
	c.TablesDir = p.TablesDir
	if len(p.ModuleMapping) > 0 {
		c.ModuleMapping = p.ModuleMapping
	}
	c.path = filepath.Join(p.Root, FileName)
	return c
}

var packageNameRe = regexp.MustCompile(`name:\s*"([^"]+)"`)

// detectName looks for an Xcode project or a Swift package.
func detectName(root string) string {
	entries, err := os.ReadDir(root)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() && strings.HasSuffix(e.Name(), ".xcodeproj") {
				return strings.TrimSuffix(e.Name(), ".xcodeproj")
			}
		}
	}
	if data, err := os.ReadFile(filepath.Join(root, "Package.swift")); err == nil {
		if m := packageNameRe.FindSubmatch(data); m != nil {
			return string(m[1])
		}
	}
	return filepath.Base(root)
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// commonDir returns the longest directory prefix shared by dirs.
func commonDir(dirs []string) string {
	parts := strings.Split(dirs[0], "/")
	for _, d := range dirs[1:] {
		other := strings.Split(d, "/")
		n := 0
		for n < len(parts) && n < len(other) && parts[n] == other[n] {
			n++
		}
		parts = parts[:n]
	}
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}
