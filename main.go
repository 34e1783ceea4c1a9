// lokscan: localization key correlation and maintenance for Swift projects
// with Apple .strings tables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/minios-linux/lokscan/backup"
	"github.com/minios-linux/lokscan/config"
	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/extract"
	"github.com/minios-linux/lokscan/health"
	"github.com/minios-linux/lokscan/i18n"
	"github.com/minios-linux/lokscan/keytable"
	"github.com/minios-linux/lokscan/langmeta"
	"github.com/minios-linux/lokscan/lockfile"
	"github.com/minios-linux/lokscan/logging"
	"github.com/minios-linux/lokscan/reconcile"
	"github.com/minios-linux/lokscan/settings"
	"github.com/minios-linux/lokscan/stringsfile"
	"github.com/minios-linux/lokscan/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors; cleared by setupColors when stderr is not a terminal.
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
	colorBold   = "\033[1m"
)

func setupColors() {
	fd := os.Stderr.Fd()
	if noColor || os.Getenv("NO_COLOR") != "" || !(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) {
		colorReset, colorRed, colorGreen, colorYellow, colorBlue, colorBold = "", "", "", "", "", ""
	}
}

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir    string
	configPath string
	verbose    bool
	logJSON    bool
	logFile    string
	noColor    bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lokscan",
		Short: "Localization health checks and table maintenance for Swift projects",
		Long: `lokscan correlates the localization keys a Swift code base uses with the
.strings tables that define them.

It finds hardcoded user-facing strings, keys the code uses but no table
defines, keys no code uses, and gaps between languages, and scores the
project's localization health. It also keeps tables in sync, translates
missing entries and rewrites hardcoded strings into localized calls.

Commands:
  analyze     Scan sources and tables, report issues and the health score
  stats       Show completion per table and language
  validate    Check table syntax and consistency between languages
  missing     List (and add) keys the code uses but tables lack
  diff        Compare two languages
  sync        Add missing keys to every language
  translate   Translate empty or stale entries
  lang        List, add or remove languages
  fix         Replace hardcoded strings with localized calls
  generate    Add table entries for hardcoded strings and emit a Swift enum
  discover    Show detected tables, sources and module mapping
  init        Write a .lokscan.yaml for the project
  auth        Manage translation provider API keys
  backup      List and restore backups of changed tables`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupColors()
		},
	}

	// Global persistent flags, inherited by all subcommands
	pf := root.PersistentFlags()
	pf.StringVar(&rootDir, "root", ".", "Project root directory")
	pf.StringVar(&configPath, "config", "", "Config file (default: <root>/"+config.FileName+")")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&logJSON, "log-json", false, "Write logs as JSON")
	pf.StringVar(&logFile, "log-file", "", "Write logs to a file instead of stderr")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newAnalyzeCmd(),
		newStatsCmd(),
		newValidateCmd(),
		newMissingCmd(),
		newDiffCmd(),
		newSyncCmd(),
		newTranslateCmd(),
		newLangCmd(),
		newFixCmd(),
		newMigrateCmd(),
		newGenerateCmd(),
		newDiscoverCmd(),
		newInitCmd(),
		newAuthCmd(),
		newBackupCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		switch {
		case errors.Is(err, diag.ErrThreshold):
			logError("%v", err)
		case errors.Is(err, context.Canceled):
			logWarning(i18n.T("Interrupted"))
		default:
			logError("%v", err)
		}
	}
	os.Exit(diag.ExitCode(err))
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lokscan version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
			fmt.Printf("  messages:  %s (catalogs: %s)\n", i18n.Lang(), strings.Join(i18n.Catalogs(), ", "))
		},
	}
}

// ---------------------------------------------------------------------------
// Project: config, tables and sources of one run
// ---------------------------------------------------------------------------

type project struct {
	root    string
	cfg     *config.Config
	log     *zap.Logger
	adapter stringsfile.Adapter
}

// openProject loads the configuration named by the global flags.
func openProject() (*project, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, diag.Configf("--root", "%s is not a directory", root)
	}
	cfg, err := config.Load(root, configPath)
	if err != nil {
		return nil, err
	}
	log := logging.Must(logging.Options{Verbose: verbose, JSON: logJSON, File: logFile, NoColor: noColor})
	log.Debug("loaded config", zap.String("path", cfg.Path()), zap.String("primary", cfg.PrimaryLanguage))
	return &project{root: root, cfg: cfg, log: log}, nil
}

func (p *project) close() { _ = p.log.Sync() }

func (p *project) tablesDir() string { return p.cfg.AbsTablesDir(p.root) }

// rel returns path relative to the project root for display.
func (p *project) rel(path string) string { return extract.DisplayPath(p.root, path) }

func (p *project) loadIndex(ctx context.Context) (*keytable.Index, error) {
	idx, err := keytable.Load(ctx, p.adapter, p.tablesDir(), keytable.LoadOptions{
		Primary:       p.cfg.PrimaryLanguage,
		IgnoreModules: p.cfg.IgnoreModules,
	}, p.log)
	if err != nil {
		return nil, err
	}
	if !idx.HasLanguage(p.cfg.PrimaryLanguage) && len(idx.Modules()) > 0 {
		return nil, &diag.LanguageNotFoundError{Lang: p.cfg.PrimaryLanguage}
	}
	return idx, nil
}

func (p *project) newScanner() (*extract.Scanner, error) {
	pats, err := extract.Compile(p.cfg.PatternConfig())
	if err != nil {
		return nil, err
	}
	return extract.NewScanner(p.cfg.Syntax(p.adapter.CallSyntax()), pats)
}

func (p *project) sourceFiles() ([]string, error) {
	return extract.FindSources(p.cfg.AbsSourceDirs(p.root), nil, p.cfg.ExcludePaths)
}

func (p *project) scan(ctx context.Context) (*extract.ScanResult, error) {
	files, err := p.sourceFiles()
	if err != nil {
		return nil, err
	}
	sc, err := p.newScanner()
	if err != nil {
		return nil, err
	}
	p.log.Debug("scanning sources", zap.Int("files", len(files)), zap.String("languages", extract.DescribeFiles(files)))
	return extract.ScanFiles(ctx, sc, p.root, files, 0, p.log)
}

// analysis is one full Load → Scan → Reconcile → Health pass.
type analysis struct {
	idx    *keytable.Index
	scan   *extract.ScanResult
	result *reconcile.Result
	score  health.Score
}

func (p *project) analyze(ctx context.Context) (*analysis, error) {
	idx, err := p.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	scan, err := p.scan(ctx)
	if err != nil {
		return nil, err
	}
	return p.reconcile(idx, scan), nil
}

func (p *project) reconcile(idx *keytable.Index, scan *extract.ScanResult) *analysis {
	res := reconcile.Reconcile(idx, scan.Occurrences, reconcile.Options{
		Resolver:      p.cfg,
		DefaultModule: p.cfg.DefaultModule,
		Languages:     p.cfg.SupportedLanguages,
	})
	return &analysis{idx: idx, scan: scan, result: res, score: health.Calculate(res, p.cfg.HealthWeights)}
}

// backups returns the write guard for a command.
func (p *project) backups(command string) *backup.Manager {
	m := backup.New(p.root, p.cfg.Backup.Dir, p.cfg.Backup.Enabled, p.log)
	m.SetCommand(command)
	return m
}

// finishBackups reports the session and prunes old ones.
func (p *project) finishBackups(m *backup.Manager) {
	if m.SessionID() == "" {
		return
	}
	logInfo("Backup: %s", p.rel(m.SessionDir()))
	if p.cfg.Backup.Keep > 0 {
		if removed, err := m.Cleanup(p.cfg.Backup.Keep); err != nil {
			logWarning("Cleaning old backups: %v", err)
		} else if len(removed) > 0 {
			p.log.Debug("removed old backups", zap.Strings("sessions", removed))
		}
	}
}

func (p *project) writer(idx *keytable.Index, guard keytable.Guard) *keytable.Writer {
	return keytable.NewWriter(p.adapter, idx, p.tablesDir(), guard, p.log)
}

func (p *project) lock() (*lockfile.LockFile, error) {
	return lockfile.Load(p.root)
}

// targetLanguages returns the non-primary languages to work on: the
// --lang list when given, else supported languages, else every language
// with a table.
func (p *project) targetLanguages(idx *keytable.Index, langs []string) ([]string, error) {
	if len(langs) == 0 {
		langs = p.cfg.SupportedLanguages
	}
	if len(langs) == 0 {
		langs = idx.Languages()
	}
	var out []string
	for _, l := range langs {
		if l == idx.Primary() {
			continue
		}
		if err := langmeta.Validate(l); err != nil {
			return nil, diag.Configf("--lang", "%v", err)
		}
		out = append(out, l)
	}
	return out, nil
}

// recordSources stores the primary text each written target entry came
// from, so later edits of the primary text mark it stale.
func (p *project) recordSources(lf *lockfile.LockFile, w *keytable.Writer, lang, module string, keys []string) {
	idx := w.Index()
	src, ok := idx.Table(module, idx.Primary())
	if !ok {
		return
	}
	target := lockfile.TargetKey(p.root, w.PathFor(module, lang))
	for _, k := range keys {
		if text, ok := src.Get(k); ok {
			lf.Update(target, k, text)
		}
	}
}

// ---------------------------------------------------------------------------
// Translation provider flags
// ---------------------------------------------------------------------------

type providerFlags struct {
	provider   string
	model      string
	apiKey     string
	baseURL    string
	proxy      string
	prompt     string
	timeout    time.Duration
	maxRetries int
	chunkSize  int
}

func (f *providerFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.provider, "provider", "", "Translation provider: "+strings.Join(translate.ProviderIDs(), ", "))
	fs.StringVar(&f.model, "model", "", "Model name (AI providers)")
	fs.StringVar(&f.apiKey, "api-key", "", "API key (or provider env var / LOKSCAN_API_KEY)")
	fs.StringVar(&f.baseURL, "base-url", "", "Custom API base URL")
	fs.StringVar(&f.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	fs.StringVar(&f.prompt, "prompt", "", "Custom system prompt (use {{targetLang}} placeholder)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Request timeout (0 = provider default)")
	fs.IntVar(&f.maxRetries, "max-retries", 3, "Maximum retries on rate limit (429) and server errors")
	fs.IntVar(&f.chunkSize, "chunk-size", 0, "Entries per AI request (0 = default)")
	hideAdvanced(fs, "proxy", "chunk-size")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var out []string
		for _, id := range translate.ProviderIDs() {
			p, _ := translate.LookupProvider(id)
			out = append(out, id+"\t"+p.Name)
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("model", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		p, _ := cmd.Flags().GetString("provider")
		switch p {
		case translate.ProviderGoogle:
			return []string{"gemini-2.5-flash", "gemini-2.5-pro"}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderGroq:
			return []string{"llama-3.3-70b-versatile", "mixtral-8x7b-32768"}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderOpenCode:
			return []string{"big-pickle", "gemini-2.5-flash", "claude-sonnet-4.5", "gpt-4o"}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderOllama:
			return []string{"llama3.2", "qwen2.5", "mistral"}, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	})
}

func hideAdvanced(fs *pflag.FlagSet, names ...string) {
	for _, n := range names {
		_ = fs.MarkHidden(n)
	}
}

// resolveProvider merges flags, config, the settings store and the
// built-in defaults, in that order of precedence.
func (p *project) resolveProvider(f providerFlags) (translate.Provider, error) {
	id := firstNonEmpty(f.provider, p.cfg.Translation.Provider, translate.DefaultProvider)
	prov, err := translate.LookupProvider(id)
	if err != nil {
		return prov, err
	}
	stored := settings.Get(id)
	var storedURL, storedModel string
	if stored != nil {
		storedURL, storedModel = stored.BaseURL, stored.Model
	}
	prov.BaseURL = firstNonEmpty(f.baseURL, p.cfg.Translation.BaseURL, storedURL, prov.BaseURL)
	prov.Model = firstNonEmpty(f.model, p.cfg.Translation.Model, storedModel, prov.Model)
	prov.Proxy = firstNonEmpty(f.proxy, p.cfg.Translation.Proxy)
	prov.APIKey = settings.ResolveAPIKey(id, f.apiKey)
	if t := firstPositive(f.timeout, p.cfg.Translation.Timeout); t > 0 {
		prov.Timeout = t
	}
	return prov, nil
}

// translator builds the translation client; mem may be nil.
func (p *project) translator(f providerFlags, mem translate.Memory) (*translate.Client, error) {
	prov, err := p.resolveProvider(f)
	if err != nil {
		return nil, err
	}
	retries := f.maxRetries
	if p.cfg.Translation.MaxRetries > 0 && retries == 3 {
		retries = p.cfg.Translation.MaxRetries
	}
	client, err := translate.New(translate.Options{
		Provider:     prov,
		MaxRetries:   retries,
		ChunkSize:    f.chunkSize,
		SystemPrompt: firstNonEmpty(f.prompt, p.cfg.Translation.Prompt, settings.SystemPrompt()),
		Memory:       mem,
		Logger:       p.log,
	})
	if err != nil {
		return nil, err
	}
	if prov.Model != "" {
		logInfo("Provider: %s (%s), model: %s", prov.Name, prov.ID, prov.Model)
	} else {
		logInfo("Provider: %s (%s)", prov.Name, prov.ID)
	}
	return client, nil
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// splitList splits comma-separated flag values and drops blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// thresholdError marks a failed check so main exits with the threshold
// code.
func thresholdError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", diag.ErrThreshold, fmt.Sprintf(format, args...))
}

// reportDiagnostics prints per-file problems collected while loading
// tables and scanning, and returns them for the exit code.
func (p *project) reportDiagnostics(idx *keytable.Index, scan *extract.ScanResult) error {
	var c diag.Collector
	if idx != nil {
		for _, err := range idx.DiagnosticList() {
			logWarning("%v", err)
			c.Add(err)
		}
	}
	if scan != nil && scan.Err != nil {
		logWarning("%v", scan.Err)
		c.Add(scan.Err)
	}
	return c.Err()
}

// confirm asks a yes/no question on stderr; assumeYes skips it.
func confirm(cmd *cobra.Command, question string, assumeYes bool) bool {
	if assumeYes {
		return true
	}
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	var answer string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// outputWriter opens path for writing, or returns stdout for "" and "-".
func outputWriter(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}
