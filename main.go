// mmlocalizer translates Minecraft mod, quest and guidebook language files
// with LLM providers.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/config"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/history"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/i18n"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/langfile"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/langmeta"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/lockfile"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/logging"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/output"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/planner"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/scheduler"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/settings"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/storage"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ---------------------------------------------------------------------------
// Console output
// ---------------------------------------------------------------------------

var (
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)

func logInfo(format string, args ...any) {
	fmt.Fprintln(os.Stderr, infoStyle.Render("[INFO]")+" "+fmt.Sprintf(format, args...))
}

func logSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, okStyle.Render("[OK]")+" "+fmt.Sprintf(format, args...))
}

func logWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, warnStyle.Render("[WARN]")+" "+fmt.Sprintf(format, args...))
}

func logError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("[ERROR]")+" "+fmt.Sprintf(format, args...))
}

// progressBar renders a fixed-width bar followed by the percentage.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	style := errorStyle
	switch {
	case percent >= 100:
		style = okStyle
	case percent >= 50:
		style = warnStyle
	}
	return style.Render(bar) + fmt.Sprintf(" %3d%%", percent)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	configPath string
	verbose    bool
)

// newLogger builds the console logger. With file set, a debug-level
// session log is written there as well.
func newLogger(level, file string) (*logging.Logger, error) {
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, File: file})
}

func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, path, err := config.Load(configPath, wd)
	if err != nil {
		return nil, err
	}
	if path != "" && verbose {
		logInfo("Using configuration %s", path)
	}
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mmlocalizer",
		Short: "Translate Minecraft mods, quests and guidebooks with LLMs",
		Long: `mmlocalizer translates Minecraft language files with LLM providers.

Source strings are split into chunks, sent to the provider one chunk at a
time with retries, and written to <output_dir>/<source>/<lang>.json.

Commands:
  translate   Translate language files
  history     Show past translation sessions
  auth        Manage provider API keys
  config      Create a configuration file
  lock        Inspect or reset incremental translation state

Providers:
  openai         OpenAI (API key)
  anthropic      Anthropic Claude (API key)
  gemini         Google Gemini (API key)
  ollama         Local Ollama server
  custom-openai  Any OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: ./mmlocalizer.yaml or .toml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newTranslateCmd(),
		newHistoryCmd(),
		newAuthCmd(),
		newConfigCmd(),
		newLockCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mmlocalizer version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	domain          string
	langs           string
	provider        string
	model           string
	apiKey          string
	baseURL         string
	proxy           string
	instructions    string
	chunkSize       int
	tokenChunking   bool
	maxTokens       int
	maxRetries      int
	requestInterval time.Duration
	timeout         time.Duration
	outDir          string
	format          string
	skipTranslated  bool
	incremental     bool
	dryRun          bool
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate [files or directories...]",
		Short: "Translate language files",
		Long: `Translate Minecraft language files.

Directories are searched for source-language files (en_us.json, en_us.lang).
Files named on the command line are always used. Each file is translated
into the target language and every additional language.

Examples:
  # Translate an extracted mod into Japanese
  mmlocalizer translate ./assets --lang ja_jp

  # Quests, one entry per request, with Claude
  mmlocalizer translate ./kubejs/assets/ftbquests/lang --type quest --provider anthropic

  # Only send strings that changed since the last run
  mmlocalizer translate ./assets --incremental

  # Show the chunk plan without calling the provider
  mmlocalizer translate ./assets --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := applyTranslateFlags(cmd, cfg, a); err != nil {
				return err
			}
			domain, err := job.ParseDomain(a.domain)
			if err != nil {
				return err
			}
			return runTranslate(cmd.Context(), cfg, domain, args, a)
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.domain, "type", string(job.DomainMod), "Content type: mod, quest, guidebook, custom")
	f.StringVar(&a.langs, "lang", "", "Target languages, comma-separated (first is primary)")
	f.StringVar(&a.provider, "provider", "", "Provider: "+strings.Join(translate.ProviderIDs(), ", "))
	f.StringVar(&a.model, "model", "", "Model name")
	f.StringVar(&a.apiKey, "api-key", "", "API key (or MMLOCALIZER_API_KEY)")
	f.StringVar(&a.baseURL, "base-url", "", "Custom API base URL")
	f.StringVar(&a.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	f.StringVar(&a.instructions, "instructions", "", "Extra instructions appended to the system prompt")
	f.IntVar(&a.chunkSize, "chunk-size", 0, "Entries per request for the selected type")
	f.BoolVar(&a.tokenChunking, "token-chunking", false, "Split chunks by estimated token budget")
	f.IntVar(&a.maxTokens, "max-tokens", 0, "Token budget per chunk with --token-chunking")
	f.IntVar(&a.maxRetries, "max-retries", 0, "Attempts per chunk")
	f.DurationVar(&a.requestInterval, "request-interval", 0, "Minimum delay between requests")
	f.DurationVar(&a.timeout, "timeout", 0, "Request timeout (0 = provider default)")
	f.StringVar(&a.outDir, "out", "", "Output directory")
	f.StringVar(&a.format, "format", "", "Output format: json or lang")
	f.BoolVar(&a.skipTranslated, "skip-translated", true, "Skip values already written in the target script")
	f.BoolVar(&a.incremental, "incremental", false, "Only translate entries changed since the last run")
	f.BoolVar(&a.dryRun, "dry-run", false, "Plan chunks without calling the provider")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return translate.ProviderIDs(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("type", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var out []string
		for _, d := range job.Domains() {
			out = append(out, string(d))
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("lang", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return langmeta.Codes(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// applyTranslateFlags overlays explicitly set flags onto cfg and
// re-validates it.
func applyTranslateFlags(cmd *cobra.Command, cfg *config.Config, a translateArgs) error {
	changed := cmd.Flags().Changed

	if changed("lang") {
		langs := splitList(a.langs)
		if len(langs) == 0 {
			return errors.New("--lang needs at least one language")
		}
		cfg.Translation.TargetLanguage = langs[0]
		cfg.Translation.AdditionalLanguages = langs[1:]
	}
	if changed("provider") {
		cfg.LLM.Provider = a.provider
		if !changed("model") {
			cfg.LLM.Model = ""
		}
	}
	if changed("model") {
		cfg.LLM.Model = a.model
	}
	if changed("base-url") {
		cfg.LLM.BaseURL = a.baseURL
	}
	if changed("proxy") {
		cfg.LLM.Proxy = a.proxy
	}
	if changed("instructions") {
		cfg.LLM.Instructions = a.instructions
	}
	if changed("max-retries") {
		cfg.LLM.MaxRetries = a.maxRetries
	}
	if changed("request-interval") {
		cfg.LLM.RequestInterval = a.requestInterval.Seconds()
	}
	if changed("timeout") {
		cfg.LLM.Timeout = a.timeout.Seconds()
	}
	if changed("chunk-size") {
		switch job.Domain(a.domain) {
		case job.DomainQuest:
			cfg.Translation.QuestChunkSize = a.chunkSize
		case job.DomainGuidebook:
			cfg.Translation.GuidebookChunkSize = a.chunkSize
		case job.DomainCustom:
			cfg.Translation.CustomChunkSize = a.chunkSize
		default:
			cfg.Translation.ModChunkSize = a.chunkSize
		}
	}
	if changed("token-chunking") {
		cfg.Translation.UseTokenBasedChunking = a.tokenChunking
	}
	if changed("max-tokens") {
		cfg.Translation.MaxTokensPerChunk = a.maxTokens
	}
	if changed("skip-translated") {
		cfg.Translation.SkipTranslated = a.skipTranslated
	}
	if changed("out") {
		cfg.Paths.OutputDir = a.outDir
	}
	if changed("format") {
		cfg.Translation.OutputFormat = a.format
	}
	return cfg.Validate()
}

// inputFile is one source language file and the ID its output is
// written under.
type inputFile struct {
	path     string
	sourceID string
}

// collectInputs expands directories into the source-language files they
// contain. Explicit files are kept as given.
func collectInputs(paths []string, sourceLang string) ([]inputFile, error) {
	var out []inputFile
	seen := map[string]bool{}
	add := func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		out = append(out, inputFile{path: path, sourceID: sourceIDFor(path, sourceLang)})
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isSourceFile(d.Name(), sourceLang) {
				return nil
			}
			found = append(found, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", p, err)
		}
		sort.Strings(found)
		for _, path := range found {
			add(path)
		}
	}
	return out, nil
}

func isSourceFile(name, sourceLang string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".json" && ext != ".lang" {
		return false
	}
	return langmeta.Canonicalize(strings.TrimSuffix(name, filepath.Ext(name))) == langmeta.Canonicalize(sourceLang)
}

// sourceIDFor derives the output folder for a file. assets/<id>/lang/x
// maps to <id>; a source-language file maps to its directory name;
// anything else to its base name.
func sourceIDFor(path, sourceLang string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	dir := filepath.Dir(abs)
	if filepath.Base(dir) == "lang" {
		modDir := filepath.Dir(dir)
		if filepath.Base(filepath.Dir(modDir)) == "assets" {
			return filepath.Base(modDir)
		}
	}
	name := filepath.Base(abs)
	if isSourceFile(name, sourceLang) {
		return filepath.Base(dir)
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolveProvider builds the provider definition from configuration,
// stored credentials and the environment.
func resolveProvider(cfg *config.Config, flagKey string) (translate.Provider, error) {
	prov, ok := translate.DefaultProviders()[cfg.LLM.Provider]
	if !ok {
		return prov, fmt.Errorf("unknown provider %q (available: %s)", cfg.LLM.Provider, strings.Join(translate.ProviderIDs(), ", "))
	}
	var source settings.Source
	prov.APIKey, source = settings.ResolveAPIKey(flagKey, prov.ID, cfg.LLM.APIKey)
	if verbose && source != settings.SourceNone {
		logInfo("Using %s API key from %s", prov.Name, source)
	}
	if cfg.LLM.Model != "" {
		prov.Model = cfg.LLM.Model
	}
	switch {
	case cfg.LLM.BaseURL != "":
		prov.BaseURL = cfg.LLM.BaseURL
	case settings.GetBaseURL(prov.ID) != "":
		prov.BaseURL = settings.GetBaseURL(prov.ID)
	}
	prov.Proxy = cfg.LLM.Proxy
	prov.Temperature = cfg.LLM.Temperature
	prov.PromptTemplate = cfg.LLM.PromptTemplate
	if d := cfg.TimeoutDuration(); d > 0 {
		prov.Timeout = d
	}
	return prov, nil
}

func runTranslate(parent context.Context, cfg *config.Config, domain job.Domain, paths []string, a translateArgs) error {
	if parent == nil {
		parent = context.Background()
	}
	started := time.Now()

	// The data dir holds history, backups and session logs; all of them
	// are best effort.
	dataDir, dataErr := settings.ResolveDataDir(cfg.Paths.DataDir)
	var logFile string
	if dataErr == nil && !a.dryRun {
		logFile = logging.SessionFile(dataDir, started)
	}
	logger, err := newLogger(cfg.Logging.Level, logFile)
	if err != nil {
		return err
	}
	defer logger.Close()

	inputs, err := collectInputs(paths, cfg.Translation.SourceLanguage)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New(i18n.T("No input files found"))
	}

	var lock *lockfile.Lock
	if a.incremental {
		if lock, err = lockfile.Open(storage.OS{}, cfg.Paths.OutputDir); err != nil {
			return err
		}
	}

	plannerOpts := planner.Options{
		ChunkSizes:            cfg.ChunkSizes(),
		UseTokenBasedChunking: cfg.Translation.UseTokenBasedChunking,
		MaxTokensPerChunk:     cfg.Translation.MaxTokensPerChunk,
		FallbackToEntryBased:  cfg.Translation.FallbackToEntryBased,
	}
	if cfg.Translation.UseTokenBasedChunking {
		plannerOpts.Estimator = planner.DefaultEstimator()
	}
	svc, err := scheduler.New(scheduler.Config{
		Planner: plannerOpts,
		Executor: translate.ExecutorOptions{
			MaxRetries:      cfg.LLM.MaxRetries,
			RequestInterval: cfg.RequestIntervalDuration(),
			SourceLanguage:  cfg.Translation.SourceLanguage,
			Instructions:    cfg.LLM.Instructions,
		},
		MaxConcurrency: cfg.Translation.MaxConcurrency,
	}, nil, logger)
	if err != nil {
		return err
	}

	var prov translate.Provider
	if !a.dryRun {
		if prov, err = resolveProvider(cfg, a.apiKey); err != nil {
			return err
		}
		t, err := translate.NewTranslator(parent, prov, logger)
		if err != nil {
			return err
		}
		svc.SetTranslator(t)
	}

	// Plan one job per (file, language).
	sources := map[string]*job.Entries{}
	var jobs []*job.Job
	for _, in := range inputs {
		entries, err := langfile.ReadFile(in.path)
		if err != nil {
			return err
		}
		for _, lang := range cfg.Languages() {
			target := lockfile.TargetKey(in.sourceID, lang)
			content := entries
			if cfg.Translation.SkipTranslated {
				content = langfile.FilterUntranslated(content, lang)
			}
			if lock != nil {
				lock.Prune(target, entries.Keys())
				content = lock.Changed(target, content)
			}
			if content.Len() == 0 {
				logInfo("%s", i18n.T("Nothing to translate in %s", in.sourceID+" ("+lang+")"))
				continue
			}

			j, err := svc.CreateJob(content, lang, in.sourceID, domain)
			if err != nil {
				return err
			}
			j.CurrentFileName = filepath.Base(in.path)
			sources[target] = content
			jobs = append(jobs, j)
		}
	}

	if a.dryRun {
		printPlan(jobs)
		return nil
	}
	if len(jobs) == 0 {
		if lock != nil {
			return lock.Save()
		}
		return nil
	}

	writer, err := output.New(storage.OS{}, cfg.Paths.OutputDir, langfile.Format(cfg.Translation.OutputFormat), a.incremental, logger)
	if err != nil {
		return err
	}

	var (
		store *history.Store
		sess  *history.Session
	)
	if dataErr != nil {
		logWarning("History disabled: %v", dataErr)
	} else if store, err = history.Open(filepath.Join(dataDir, "history"), logger); err != nil {
		logWarning("History disabled: %v", err)
		store = nil
	} else {
		defer store.Close()
		sess, err = store.BeginSession(parent, history.Session{
			Type:      string(domain),
			Languages: cfg.Languages(),
			Provider:  prov.ID,
			Model:     prov.Model,
		})
		if err != nil {
			logWarning("History disabled: %v", err)
		} else {
			svc.SetRecorder(store.Recorder(sess.ID))
		}
	}

	// Files about to be overwritten are copied under the session id, or
	// under the start time when history is unavailable.
	if dataErr == nil {
		backupID := started.Format("2006-01-02_15-04-05")
		if sess != nil {
			backupID = sess.ID
		}
		backup, err := output.NewBackup(storage.OS{}, filepath.Join(dataDir, "backups"), backupID)
		if err != nil {
			logWarning("Backups disabled: %v", err)
		} else {
			writer.SetBackup(backup)
		}
	}
	if f := logger.File(); f != "" {
		logger.Info().Str("file", f).Str("provider", prov.ID).Str("model", prov.Model).Msg("Session started")
	}

	// First Ctrl+C stops after the current chunk, the second aborts.
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr)
		logWarning("%s", i18n.T("Interrupting after the current chunk. Press Ctrl+C again to abort."))
		svc.Interrupt()
		<-sigCh
		cancel()
	}()

	view := &progressView{}
	summary, err := svc.RunBatch(ctx, jobs, scheduler.BatchOptions{
		Type:        domain,
		WholeUnitOf: func(j *job.Job) string { return j.SourceID },
		WriteOutput: writer.Write,
		OnJobStart: func(j *job.Job) {
			view.newLine()
			logInfo("%s", i18n.T("Translating %s (%s)", j.SourceID, langmeta.Resolve(j.TargetLanguage).Name))
		},
		OnChunkProgress: func(_, _, p int) { view.setChunk(p) },
		OnWholeProgress: func(_, _, p int) { view.setWhole(p) },
		OnResult: func(r job.Result) {
			view.newLine()
			if r.OutputPath != "" {
				logSuccess("%s", i18n.T("Wrote %s", r.OutputPath))
				if n := len(r.Placeholders); n > 0 {
					logWarning("%s", i18n.N("%d key left untranslated", "%d keys left untranslated", n, n))
				}
				// Placeholders stay out of the lock so the next
				// incremental run sends them again.
				if lock != nil {
					target := lockfile.TargetKey(r.ID, r.TargetLanguage)
					lock.Record(target, sources[target], r.Translated())
				}
			}
		},
	})
	view.newLine()
	if err != nil {
		return err
	}

	if lock != nil {
		if err := lock.Save(); err != nil {
			logWarning("Failed to save %s: %v", lock.Path(), err)
		}
	}
	usage := svc.Usage()
	if store != nil && sess != nil {
		sess.Completed = summary.Completed
		sess.Failed = summary.Failed
		sess.Interrupted = summary.Interrupted
		sess.TotalTokens = usage.TotalTokens
		if err := store.FinishSession(context.Background(), sess); err != nil {
			logWarning("Failed to save history: %v", err)
		}
	}

	if summary.Interrupted {
		logWarning("%s", i18n.T("Translation interrupted"))
	}
	if summary.Completed > 0 {
		logSuccess("%s", i18n.N("%d job completed", "%d jobs completed", summary.Completed, summary.Completed))
	}
	if usage.TotalTokens > 0 {
		logInfo("%s", i18n.T("Tokens used: %d", usage.TotalTokens))
	}
	if summary.Failed > 0 {
		return errors.New(i18n.N("%d job failed", "%d jobs failed", summary.Failed, summary.Failed))
	}
	return nil
}

func printPlan(jobs []*job.Job) {
	fmt.Fprintln(os.Stderr, titleStyle.Render("Translation plan"))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	chunks, entries := 0, 0
	for _, j := range jobs {
		fmt.Fprintf(os.Stderr, "  %-30s %-6s %5d entries %4d chunks\n", j.SourceID, j.TargetLanguage, j.TotalEntries(), j.TotalChunks)
		chunks += j.TotalChunks
		entries += j.TotalEntries()
	}
	fmt.Fprintln(os.Stderr, mutedStyle.Render(fmt.Sprintf("  %d jobs, %d entries, %d requests", len(jobs), entries, chunks)))
}

// progressView keeps the file and overall percentages on one status line.
type progressView struct {
	chunk, whole int
	active       bool
}

func (v *progressView) setChunk(p int) {
	v.chunk = p
	v.render()
}

func (v *progressView) setWhole(p int) {
	v.whole = p
	v.render()
}

func (v *progressView) render() {
	if verbose {
		return
	}
	v.active = true
	fmt.Fprintf(os.Stderr, "\r  %s %s   %s %s",
		mutedStyle.Render("chunks"), progressBar(v.chunk, 20),
		mutedStyle.Render("overall"), progressBar(v.whole, 20))
}

func (v *progressView) newLine() {
	if v.active {
		fmt.Fprintln(os.Stderr)
		v.active = false
	}
}

// ---------------------------------------------------------------------------
// history
// ---------------------------------------------------------------------------

func openHistory() (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dataDir, err := settings.ResolveDataDir(cfg.Paths.DataDir)
	if err != nil {
		return nil, err
	}
	return history.Open(filepath.Join(dataDir, "history"), logging.Discard())
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past translation sessions",
	}

	var limit int
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.Sessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				logInfo("%s", i18n.T("No translation history"))
				return nil
			}
			for _, s := range sessions {
				fmt.Println(formatSession(s))
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to show (0 = all)")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the results of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			sess, records, err := store.Session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render(formatSession(*sess)))
			fmt.Println(strings.Repeat("─", 60))
			for _, r := range records {
				status := okStyle.Render("ok")
				if !r.Success {
					status = errorStyle.Render("failed")
				}
				fmt.Printf("  %-30s %-6s %9s  %s  %s\n", r.DisplayName, r.TargetLanguage, r.Keys(), status, mutedStyle.Render(r.OutputPath))
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeleteSession(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func formatSession(s history.Session) string {
	state := "running"
	switch {
	case s.Interrupted:
		state = "interrupted"
	case s.Finished():
		state = fmt.Sprintf("%d ok, %d failed", s.Completed, s.Failed)
	}
	return fmt.Sprintf("%s  %s  %-9s %-14s %s",
		s.ID, s.StartedAt.Local().Format("2006-01-02 15:04"), s.Type, strings.Join(s.Languages, ","), state)
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Manage API keys stored in ` + settings.FilePath() + `.

Examples:
  mmlocalizer auth login --provider openai
  mmlocalizer auth login --provider custom-openai --base-url http://localhost:1234/v1
  mmlocalizer auth logout --provider openai
  mmlocalizer auth list`,
	}
	cmd.AddCommand(newAuthLoginCmd(), newAuthLogoutCmd(), newAuthListCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var provider, baseURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, ok := translate.DefaultProviders()[provider]
			if !ok {
				return fmt.Errorf("unknown provider %q (available: %s)", provider, strings.Join(translate.ProviderIDs(), ", "))
			}
			if !prov.NeedsKey && provider != translate.ProviderCustomOpenAI {
				logInfo("%s does not need an API key", prov.Name)
				return nil
			}

			existing := settings.GetAPIKey(provider)
			if existing != "" {
				fmt.Fprintf(os.Stderr, "  Current key: %s\n", warnStyle.Render(settings.MaskKey(existing)))
				fmt.Fprint(os.Stderr, "  Enter new key to replace, or press Enter to keep: ")
			} else {
				fmt.Fprint(os.Stderr, "  Enter API key: ")
			}
			key, err := readLine(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if key == "" {
				key = existing
			}
			if key == "" && prov.NeedsKey {
				return errors.New("no API key provided")
			}

			if err := settings.SetAPIKey(provider, key, baseURL); err != nil {
				return err
			}
			logSuccess("%s", i18n.T("Saved API key for %s", prov.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider ID")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Endpoint for custom-openai")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no input received")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials (all when --provider is omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("%s", i18n.T("Removed credentials for %s", "all providers"))
				return nil
			}
			if err := settings.Remove(provider); err != nil {
				return err
			}
			logSuccess("%s", i18n.T("Removed credentials for %s", provider))
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider ID")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			creds := settings.Load()
			fmt.Fprintln(os.Stderr, titleStyle.Render("Stored Credentials"))
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			if len(creds.Providers) == 0 {
				logInfo("%s", i18n.T("No stored credentials"))
			}
			for _, id := range translate.ProviderIDs() {
				info := creds.Providers[id]
				switch {
				case info == nil:
					fmt.Fprintf(os.Stderr, "  %-14s %s\n", id, mutedStyle.Render("not configured"))
				case info.BaseURL != "":
					fmt.Fprintf(os.Stderr, "  %-14s %s (key: %s, endpoint: %s)\n", id, okStyle.Render("configured"), settings.MaskKey(info.Key), info.BaseURL)
				default:
					fmt.Fprintf(os.Stderr, "  %-14s %s (key: %s)\n", id, okStyle.Render("configured"), settings.MaskKey(info.Key))
				}
			}
			if v := os.Getenv(config.EnvAPIKey); v != "" {
				fmt.Fprintf(os.Stderr, "\n  %s: %s (overrides stored keys)\n", config.EnvAPIKey, settings.MaskKey(v))
			}
		},
	}
}

// ---------------------------------------------------------------------------
// lock
// ---------------------------------------------------------------------------

func newLockCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect or reset incremental translation state",
		Long: `The lock file (mmlocalizer.lock in the output directory) records which
source strings were translated. translate --incremental skips entries
recorded there. Reset a target to translate it again from scratch.`,
	}
	cmd.PersistentFlags().StringVar(&outDir, "out", "", "Output directory holding the lock file")

	openLock := func() (*lockfile.Lock, error) {
		if outDir == "" {
			cfg, err := loadConfig()
			if err != nil {
				return nil, err
			}
			outDir = cfg.Paths.OutputDir
		}
		return lockfile.Open(storage.OS{}, outDir)
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "List recorded targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			lock, err := openLock()
			if err != nil {
				return err
			}
			return printLock(cmd.OutOrStdout(), lock)
		},
	}

	reset := &cobra.Command{
		Use:   "reset [source[/lang]...]",
		Short: "Forget recorded targets (all when none are named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			lock, err := openLock()
			if err != nil {
				return err
			}
			n := lock.Forget(args...)
			if err := lock.Save(); err != nil {
				return err
			}
			logSuccess("%s", i18n.N("Reset %d target", "Reset %d targets", n, n))
			return nil
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}

func printLock(w io.Writer, lock *lockfile.Lock) error {
	list := lock.List()
	fmt.Fprintln(w, titleStyle.Render(lock.Path()))
	if len(list) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  no recorded targets"))
		return nil
	}
	for _, t := range list {
		updated := "-"
		if !t.UpdatedAt.IsZero() {
			updated = t.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "  %-40s %6d keys  %s\n", t.Name, t.Keys, mutedStyle.Render(updated))
	}
	fmt.Fprintln(w, mutedStyle.Render("  "+lock.Summary()))
	return nil
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration (mmlocalizer.yaml or .toml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFileNames[0]
			if len(args) == 1 {
				path = args[0]
			}
			if fileExists(path) && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Default().Save(path); err != nil {
				return err
			}
			logSuccess("%s", i18n.T("Wrote default configuration to %s", path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
