package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/lokscan/config"
	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/i18n"
	"github.com/minios-linux/lokscan/langmeta"
	"github.com/minios-linux/lokscan/settings"
	"github.com/minios-linux/lokscan/translate"
)

// ---------------------------------------------------------------------------
// discover
// ---------------------------------------------------------------------------

func newDiscoverCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Show detected tables, sources and module mapping",
		Long: `Walk the project and show where .strings tables and Swift sources live,
which languages and modules exist, and which source directories look like
they belong to a module.

--write adds the suggested module mapping to the config file (existing
entries are kept).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			proj := config.Detect(rootDir)
			printProject(proj)

			if !write {
				return nil
			}
			cfg, err := config.Load(proj.Root, configPath)
			if err != nil {
				return err
			}
			if cfg.ModuleMapping == nil {
				cfg.ModuleMapping = map[string]string{}
			}
			added := 0
			for pattern, module := range proj.ModuleMapping {
				if _, ok := cfg.ModuleMapping[pattern]; !ok {
					cfg.ModuleMapping[pattern] = module
					added++
				}
			}
			if added == 0 {
				logInfo("Module mapping is up to date")
				return nil
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			logSuccess("Added %d mapping(s) to %s", added, cfg.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "Merge the suggested module mapping into the config file")
	return cmd
}

func printProject(proj *config.Project) {
	fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Project"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  Name:       %s\n", proj.Name)
	fmt.Fprintf(os.Stderr, "  Root:       %s\n", proj.Root)
	fmt.Fprintf(os.Stderr, "  Sources:    %s (%d Swift files)\n", orNone(proj.SourceDirs), proj.SwiftFiles)
	fmt.Fprintf(os.Stderr, "  Tables:     %s\n", proj.TablesDir)
	if len(proj.TableDirs) > 1 {
		for _, d := range proj.TableDirs {
			fmt.Fprintf(os.Stderr, "              %s\n", d)
		}
	}
	fmt.Fprintln(os.Stderr)

	if len(proj.Languages) > 0 {
		fmt.Fprintf(os.Stderr, "  Languages:  ")
		labels := make([]string, len(proj.Languages))
		for i, l := range proj.Languages {
			labels[i] = langmeta.Label(l)
		}
		fmt.Fprintln(os.Stderr, strings.Join(labels, ", "))
		fmt.Fprintf(os.Stderr, "  Primary:    %s\n", proj.PrimaryLanguage())
	} else {
		fmt.Fprintf(os.Stderr, "  Languages:  none detected\n")
	}
	fmt.Fprintf(os.Stderr, "  Modules:    %s\n", orNone(proj.Modules))

	if len(proj.ModuleMapping) > 0 {
		fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Suggested module mapping"), colorReset)
		fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
		for _, pattern := range sortedMapKeys(proj.ModuleMapping) {
			fmt.Fprintf(os.Stderr, "  %-40s → %s\n", pattern, proj.ModuleMapping[pattern])
		}
	}
	fmt.Fprintln(os.Stderr)
}

func orNone(list []string) string {
	if len(list) == 0 {
		return "none"
	}
	return strings.Join(list, ", ")
}

func sortedMapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a .lokscan.yaml for the project",
		Long: `Detect the project layout and write .lokscan.yaml with the primary
language, supported languages, source and table directories and a module
mapping. Edit the file afterwards to tune exclusions and thresholds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			proj := config.Detect(rootDir)
			cfg := proj.Config()
			target := cfg.Path()
			if configPath != "" {
				target = configPath
			}
			if _, err := os.Stat(target); err == nil && !force {
				return diag.Configf(target, "already exists (use --force to overwrite)")
			}
			if len(proj.Languages) > 0 {
				cfg.SupportedLanguages = proj.Languages
			}
			if err := cfg.Validate(); err != nil {
				return &diag.ConfigError{Source: target, Reason: "invalid configuration", Err: err}
			}
			if err := cfg.SaveAs(target); err != nil {
				return err
			}
			printProject(proj)
			logSuccess("Wrote %s", cfg.Path())
			if proj.SwiftFiles == 0 {
				logWarning("No Swift sources found; set source_dirs in %s", config.FileName)
			}
			if len(proj.Languages) == 0 {
				logWarning("No .lproj tables found; set tables_dir in %s", config.FileName)
			}
			fmt.Fprintf(os.Stderr, "\nNext: %slokscan analyze%s\n\n", colorBold, colorReset)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage translation provider API keys",
		Long: `Manage API keys for translation providers.

API key providers:
  google        Google AI Studio (Gemini API key)
  groq          Groq Cloud (free tier available)
  opencode      OpenCode Zen
  custom-openai Custom OpenAI-compatible endpoint

No auth required:
  google-translate, ollama

Keys are stored in $XDG_DATA_HOME/lokscan/auth.json (mode 600). A key in
the provider's environment variable or LOKSCAN_API_KEY overrides the
stored key.

Examples:
  lokscan auth set groq gsk_...
  lokscan auth set custom-openai --base-url http://localhost:8080/v1
  lokscan auth list
  lokscan auth remove groq
  lokscan auth prompt "Translate for a banking app into {{targetLang}}."`,
	}

	cmd.AddCommand(
		newAuthSetCmd(),
		newAuthListCmd(),
		newAuthRemoveCmd(),
		newAuthPromptCmd(),
	)

	return cmd
}

func completeProviders(needsKey bool) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var out []string
		for _, id := range translate.ProviderIDs() {
			p, _ := translate.LookupProvider(id)
			if needsKey && !p.NeedsAPIKey() && id != translate.ProviderCustomOpenAI {
				continue
			}
			out = append(out, id+"\t"+p.Name)
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}

func newAuthSetCmd() *cobra.Command {
	var baseURL, model string

	cmd := &cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store an API key",
		Long: `Store an API key for a provider. Without [key] the key is read from
standard input, so it does not end up in the shell history.`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completeProviders(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			prov, err := translate.LookupProvider(id)
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 2 {
				key = args[1]
			} else if prov.NeedsAPIKey() {
				fmt.Fprintf(os.Stderr, "%s API key: ", prov.Name)
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading key: %w", err)
				}
				key = strings.TrimSpace(line)
			}
			if key == "" && prov.NeedsAPIKey() {
				return diag.Configf("auth", "empty API key")
			}
			if id == translate.ProviderCustomOpenAI && baseURL == "" && settings.GetBaseURL(id) == "" {
				return diag.Configf("--base-url", "provider %s needs a base URL", id)
			}

			info := settings.Get(id)
			if info == nil {
				info = &settings.Info{Type: "api"}
			}
			if key != "" {
				info.Key = key
			}
			if baseURL != "" {
				info.BaseURL = baseURL
			}
			if model != "" {
				info.Model = model
			}
			if err := settings.Set(id, info); err != nil {
				return fmt.Errorf("saving credentials: %w", err)
			}
			logSuccess("%s credentials saved to %s", prov.Name, settings.FilePath())
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "API endpoint (custom-openai, ollama)")
	cmd.Flags().StringVar(&model, "model", "", "Default model for this provider")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials and status",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Stored Credentials"), colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

			for _, id := range translate.ProviderIDs() {
				prov, _ := translate.LookupProvider(id)
				entry := settings.Get(id)
				var status string
				switch {
				case !prov.NeedsAPIKey() && id != translate.ProviderCustomOpenAI:
					status = "no key needed"
				case entry != nil && entry.Key != "":
					status = fmt.Sprintf("%sconfigured%s (key: %s)", colorGreen, colorReset, settings.MaskKey(entry.Key))
				case entry != nil && entry.BaseURL != "":
					status = fmt.Sprintf("%sconfigured%s (no key)", colorGreen, colorReset)
				default:
					status = fmt.Sprintf("%snot configured%s", colorRed, colorReset)
				}
				if entry != nil && entry.BaseURL != "" {
					status += fmt.Sprintf("\n  %16s endpoint: %s", "", entry.BaseURL)
				}
				if entry != nil && entry.Model != "" {
					status += fmt.Sprintf("\n  %16s model: %s", "", entry.Model)
				}
				fmt.Fprintf(os.Stderr, "  %-16s %s\n", id, status)
			}

			fmt.Fprintf(os.Stderr, "\n  %sEnvironment Variables%s\n", colorYellow, colorReset)
			envs := []string{"LOKSCAN_API_KEY"}
			for _, id := range translate.ProviderIDs() {
				if v := settings.EnvVarForProvider(id); v != "" {
					envs = append(envs, v)
				}
			}
			for _, name := range envs {
				if v := os.Getenv(name); v != "" {
					fmt.Fprintf(os.Stderr, "  %-18s %s%s%s\n", name+":", colorGreen, settings.MaskKey(v), colorReset)
				} else {
					fmt.Fprintf(os.Stderr, "  %-18s %snot set%s\n", name+":", colorRed, colorReset)
				}
			}
			if settings.SystemPrompt() != "" {
				fmt.Fprintf(os.Stderr, "\n  Custom system prompt set (lokscan auth prompt --reset to remove)\n")
			}
			fmt.Fprintln(os.Stderr)
		},
	}
}

func newAuthRemoveCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:               "remove [provider]",
		Short:             "Remove stored credentials",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProviders(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("All stored credentials removed")
				return nil
			}
			if len(args) == 0 {
				return diag.Configf("auth", "name a provider or pass --all")
			}
			if _, err := translate.LookupProvider(args[0]); err != nil {
				return err
			}
			if err := settings.Remove(args[0]); err != nil {
				return fmt.Errorf("removing %s credentials: %w", args[0], err)
			}
			logSuccess("%s credentials removed", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove credentials of every provider")
	return cmd
}

func newAuthPromptCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Show or set the default system prompt for AI providers",
		Long: `Show, set or reset the system prompt used by AI providers when neither
--prompt nor translation.prompt in the config is given. {{targetLang}} is
replaced with the target language name.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case reset:
				if err := settings.SaveSystemPrompt(""); err != nil {
					return err
				}
				logSuccess("System prompt reset to the built-in default")
			case len(args) == 1:
				if err := settings.SaveSystemPrompt(args[0]); err != nil {
					return err
				}
				logSuccess("System prompt saved")
			default:
				prompt := settings.SystemPrompt()
				if prompt == "" {
					prompt = translate.DefaultSystemPrompt
				}
				fmt.Fprintln(cmd.OutOrStdout(), prompt)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Remove the custom prompt")
	return cmd
}

// ---------------------------------------------------------------------------
// backup
// ---------------------------------------------------------------------------

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "List and restore backups of changed files",
		Long: `Every command that writes tables or sources first copies the original
files into a session under the backup directory (.lokscan-backup by
default). These commands list, restore and prune the sessions.`,
	}
	cmd.AddCommand(newBackupListCmd(), newBackupRestoreCmd(), newBackupCleanCmd())
	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List backup sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()

			sessions, err := p.backups("").List()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				logInfo("No backups in %s", p.rel(p.backups("").Dir()))
				return nil
			}
			out := cmd.OutOrStdout()
			for _, s := range sessions {
				created := ""
				if len(s.Created) > 0 {
					created = fmt.Sprintf(", %d created", len(s.Created))
				}
				fmt.Fprintf(out, "  %-28s %s  %-16s %d file(s)%s\n",
					s.ID, s.Time.Local().Format("2006-01-02 15:04:05"), s.Command, len(s.Files), created)
			}
			return nil
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore [session]",
		Short: "Restore the files of a backup session (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := "latest"
			if len(args) == 1 {
				id = args[0]
			}
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()

			if !confirm(cmd, i18n.F("Restore backup %s and overwrite current files?", id), yes) {
				logInfo("Cancelled")
				return nil
			}
			m := p.backups("")
			paths, err := m.Restore(id)
			for _, path := range paths {
				logSuccess("Restored %s", path)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newBackupCleanCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove old backup sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()

			if !cmd.Flags().Changed("keep") && p.cfg.Backup.Keep > 0 {
				keep = p.cfg.Backup.Keep
			}
			if keep < 0 {
				return diag.Configf("--keep", "must not be negative")
			}
			removed, err := p.backups("").Cleanup(keep)
			if err != nil {
				return err
			}
			logSuccess("Removed %d session(s), kept %d", len(removed), keep)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 5, "Number of most recent sessions to keep")
	return cmd
}
