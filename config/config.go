// Package config loads .lokscan.yaml, the project configuration.
//
// A missing file is not an error: every setting has a default, and the
// defaults are applied after the file is unmarshaled so a partial file
// only overrides what it names. Validation reports every problem found as
// a *diag.ConfigError naming the file.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/lokscan/backup"
	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/extract"
	"github.com/minios-linux/lokscan/health"
	"github.com/minios-linux/lokscan/langmeta"
	"github.com/minios-linux/lokscan/reconcile"
	"github.com/minios-linux/lokscan/translate"
)

// FileName is the default config file name.
const FileName = ".lokscan.yaml"

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// Config is the top-level .lokscan.yaml structure.
type Config struct {
	// PrimaryLanguage is the development language every other language is
	// compared against (default "en").
	PrimaryLanguage string `yaml:"primary_language"`
	// SupportedLanguages limits reports to these languages; empty means
	// every language that has a table.
	SupportedLanguages []string `yaml:"supported_languages,omitempty"`
	// SourceDirs are scanned for Swift sources, relative to the root.
	SourceDirs []string `yaml:"source_dirs"`
	// TablesDir holds the <lang>.lproj directories, relative to the root.
	TablesDir string `yaml:"tables_dir"`
	// DefaultModule is the table a key belongs to when nothing else says.
	DefaultModule string `yaml:"default_module"`
	// IgnoreModules are tables never loaded.
	IgnoreModules []string `yaml:"ignore_modules,omitempty"`
	// ModuleMapping maps a path pattern to a module. Glob patterns use
	// doublestar syntax; plain patterns match as a case-insensitive
	// substring of the slash-separated path.
	ModuleMapping map[string]string `yaml:"module_mapping,omitempty"`
	// ExcludePaths are doublestar globs of sources never scanned.
	ExcludePaths []string `yaml:"exclude_paths,omitempty"`
	// ExcludePatterns are texts never reported as hardcoded: "glob:" for a
	// glob, "re:" or no prefix for a regular expression.
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`
	// MinHardcodedLength is the shortest text reported as hardcoded.
	MinHardcodedLength int `yaml:"min_hardcoded_length"`
	// NoBuiltinExclusions turns off the built-in exclusion list.
	NoBuiltinExclusions bool `yaml:"no_builtin_exclusions,omitempty"`

	HealthWeights health.Weights `yaml:"health_weights"`
	Thresholds    Thresholds     `yaml:"thresholds"`
	CallSyntax    CallSyntax     `yaml:"call_syntax,omitempty"`
	Translation   Translation    `yaml:"translation"`
	Backup        Backup         `yaml:"backup"`
	Fix           Fix            `yaml:"fix"`
	Generate      Generate       `yaml:"generate"`

	path string `yaml:"-"`
}

// Thresholds fail analyze (exit 1) when not met. 0 disables a check.
type Thresholds struct {
	MinScore       float64 `yaml:"min_score"`
	MinConsistency float64 `yaml:"min_consistency"`
}

// CallSyntax overrides the localization call markers of the scanner.
type CallSyntax struct {
	Prefixes []string `yaml:"prefixes,omitempty"`
	Suffixes []string `yaml:"suffixes,omitempty"`
}

// Translation configures the machine translation provider.
type Translation struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model,omitempty"`
	BaseURL       string        `yaml:"base_url,omitempty"`
	Proxy         string        `yaml:"proxy,omitempty"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	RequestDelay  time.Duration `yaml:"request_delay"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries,omitempty"`
	Prompt        string        `yaml:"prompt,omitempty"`
}

// Backup configures copies of tables taken before writes.
type Backup struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	// Keep is the number of sessions kept; 0 keeps all.
	Keep int `yaml:"keep"`
}

// Fix configures the fix command.
type Fix struct {
	// MinPriority is the lowest priority (0-10) fixed automatically.
	MinPriority int `yaml:"min_priority"`
}

// Generate configures the generate command.
type Generate struct {
	// EnumName is the name of the generated Swift enum.
	EnumName string `yaml:"enum_name"`
	// Output is the generated Swift file, relative to the root.
	Output string `yaml:"output,omitempty"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	c.IgnoreModules = []string{"InfoPlist"}
	c.Backup.Enabled = true
	return c
}

func (c *Config) applyDefaults() {
	if c.PrimaryLanguage == "" {
		c.PrimaryLanguage = "en"
	}
	if len(c.SourceDirs) == 0 {
		c.SourceDirs = []string{"."}
	}
	if c.TablesDir == "" {
		c.TablesDir = "."
	}
	if c.DefaultModule == "" {
		c.DefaultModule = reconcile.DefaultModule
	}
	if c.MinHardcodedLength <= 0 {
		c.MinHardcodedLength = extract.DefaultMinLength
	}
	if c.HealthWeights == (health.Weights{}) {
		c.HealthWeights = health.DefaultWeights()
	}
	if c.Translation.Provider == "" {
		c.Translation.Provider = translate.DefaultProvider
	}
	if c.Translation.MaxConcurrent <= 0 {
		c.Translation.MaxConcurrent = 4
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = backup.DefaultDir
	}
	if c.Fix.MinPriority <= 0 {
		c.Fix.MinPriority = 8
	}
	if c.Generate.EnumName == "" {
		c.Generate.EnumName = "L10n"
	}
	if c.Generate.Output == "" {
		c.Generate.Output = "L10n.swift"
	}
	if len(c.SupportedLanguages) > 0 && !contains(c.SupportedLanguages, c.PrimaryLanguage) {
		c.SupportedLanguages = append([]string{c.PrimaryLanguage}, c.SupportedLanguages...)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads and validates the config file. path may be empty, meaning
// FileName in rootDir. A missing file yields Default().
func Load(rootDir, path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(rootDir, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c := Default()
			c.path = path
			return c, nil
		}
		return nil, &diag.ConfigError{Source: path, Reason: "reading", Err: err}
	}

	c := &Config{Backup: Backup{Enabled: true}, IgnoreModules: []string{"InfoPlist"}}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, &diag.ConfigError{Source: path, Reason: "parsing", Err: err}
	}
	c.path = path
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, &diag.ConfigError{Source: path, Reason: "invalid configuration", Err: err}
	}
	return c, nil
}

// Path returns the file the config was loaded from (or would be saved to).
func (c *Config) Path() string { return c.path }

// Validate checks every setting and returns all problems at once. Each
// problem is a *diag.ConfigError naming the setting.
func (c *Config) Validate() error {
	var errs *multierror.Error
	add := func(setting, format string, args ...any) {
		errs = multierror.Append(errs, diag.Configf(setting, format, args...))
	}

	if err := langmeta.Validate(c.PrimaryLanguage); err != nil {
		add("primary_language", "%v", err)
	}
	for _, l := range c.SupportedLanguages {
		if err := langmeta.Validate(l); err != nil {
			add("supported_languages", "%v", err)
		}
	}
	for _, p := range c.ExcludePaths {
		if !doublestar.ValidatePattern(p) {
			add("exclude_paths", "invalid pattern %q", p)
		}
	}
	for _, p := range sortedKeys(c.ModuleMapping) {
		if isGlob(p) && !doublestar.ValidatePattern(p) {
			add("module_mapping", "invalid pattern %q", p)
		}
		if strings.TrimSpace(c.ModuleMapping[p]) == "" {
			add("module_mapping", "pattern %q has no module", p)
		}
	}
	if _, err := extract.CompileExclusionPatterns(c.ExcludePatterns); err != nil {
		add("exclude_patterns", "%v", err)
	}
	if err := c.HealthWeights.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, th := range []struct {
		name string
		v    float64
	}{{"min_score", c.Thresholds.MinScore}, {"min_consistency", c.Thresholds.MinConsistency}} {
		if th.v < 0 || th.v > 100 || math.IsNaN(th.v) {
			add("thresholds."+th.name, "%v is outside 0-100", th.v)
		}
	}
	if _, err := translate.LookupProvider(c.Translation.Provider); err != nil {
		add("translation.provider", "unknown provider %q", c.Translation.Provider)
	}
	if c.Translation.RequestDelay < 0 || c.Translation.Timeout < 0 {
		add("translation", "negative durations are not allowed")
	}
	if c.Fix.MinPriority > 10 {
		add("fix.min_priority", "%d is outside 0-10", c.Fix.MinPriority)
	}
	if c.Backup.Keep < 0 {
		add("backup.keep", "%d is negative", c.Backup.Keep)
	}
	return errs.ErrorOrNil()
}

// Save writes the config to its path.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config path not set")
	}
	return c.SaveAs(c.path)
}

// SaveAs writes the config to path.
func (c *Config) SaveAs(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	header := "# lokscan configuration\n# See `lokscan init --help` for the meaning of each setting.\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	c.path = path
	return nil
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Resolve returns p joined to root unless it is absolute.
func Resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// AbsSourceDirs returns the source directories joined to root.
func (c *Config) AbsSourceDirs(root string) []string {
	dirs := make([]string, len(c.SourceDirs))
	for i, d := range c.SourceDirs {
		dirs[i] = Resolve(root, d)
	}
	return dirs
}

// AbsTablesDir returns the tables directory joined to root.
func (c *Config) AbsTablesDir(root string) string { return Resolve(root, c.TablesDir) }

// PatternConfig returns the scanner filter settings.
func (c *Config) PatternConfig() extract.PatternConfig {
	return extract.PatternConfig{
		Exclude:    c.ExcludePatterns,
		MinLength:  c.MinHardcodedLength,
		NoBuiltins: c.NoBuiltinExclusions,
	}
}

// Syntax returns the call syntax with configured overrides applied.
func (c *Config) Syntax(base extract.CallSyntax) extract.CallSyntax {
	return base.Merge(c.CallSyntax.Prefixes, c.CallSyntax.Suffixes)
}

func isGlob(p string) bool { return strings.ContainsAny(p, "*?[{") }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mappingOrder sorts patterns longest first, then lexicographically, so
// the most specific pattern wins and the order never depends on map
// iteration.
func mappingOrder(m map[string]string) []string {
	keys := sortedKeys(m)
	sort.SliceStable(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return keys
}

// ModuleFor returns the module mapped to a source file path, or "".
// It implements reconcile.ModuleResolver.
func (c *Config) ModuleFor(path string) string {
	p := filepath.ToSlash(path)
	lower := strings.ToLower(p)
	for _, pattern := range mappingOrder(c.ModuleMapping) {
		if isGlob(pattern) {
			if ok, _ := doublestar.Match(pattern, p); ok {
				return c.ModuleMapping[pattern]
			}
			continue
		}
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return c.ModuleMapping[pattern]
		}
	}
	return ""
}
