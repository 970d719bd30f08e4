package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"slices"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/plugscan/internal/api"
	"github.com/mattjoyce/plugscan/internal/config"
	"github.com/mattjoyce/plugscan/internal/doctor"
	"github.com/mattjoyce/plugscan/internal/inspect"
	"github.com/mattjoyce/plugscan/internal/lock"
	"github.com/mattjoyce/plugscan/internal/log"
	"github.com/mattjoyce/plugscan/internal/metrics"
	"github.com/mattjoyce/plugscan/internal/paths"
	"github.com/mattjoyce/plugscan/internal/plugin"
	"github.com/mattjoyce/plugscan/internal/tui/browse"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	// --- NOUNS ---
	case "plugin":
		return runPluginNoun(args)
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)

	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: plugscan version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("plugscan %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = readBuildSetting("vcs.revision")
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = readBuildSetting("vcs.time")
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return strings.TrimSpace(setting.Value)
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`plugscan - Plugin discovery and loading

Usage:
  plugscan <noun> <action> [flags]

Core Resources (Nouns):
  plugin    Discovered plugins
  system    Long-running services
  config    Effective configuration

Plugin Commands:
  plugin list         Load and list plugins from every root
  plugin show <name>  Show every plugin with the given name
  plugin browse       Interactive browser, plugins stream in as they load
  plugin check        Explain skipped roots, directories and descriptors

System Commands:
  system serve        Serve plugin listings over HTTP (JSON and SSE)

Config Commands:
  config show         Print the effective configuration

General:
  version             Show version information
  help                Show this help message

Use 'plugscan <noun> help' for resource-specific flags.
`)
}

// rootList collects repeated --root flags.
type rootList []string

func (r *rootList) String() string { return strings.Join(*r, ",") }

func (r *rootList) Set(v string) error {
	*r = append(*r, v)
	return nil
}

// commonFlags are shared by every command that loads plugins.
type commonFlags struct {
	configPath  string
	roots       rootList
	concurrency int
}

func bindCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "Path to configuration file or directory")
	fs.Var(&c.roots, "root", "Plugin root, highest priority first (repeatable; replaces configured roots)")
	fs.IntVar(&c.concurrency, "concurrency", 0, "Max in-flight loads for async mode (0 = config or core count)")
	return c
}

// env is everything a plugin command needs, built from flags and config.
type env struct {
	cfg      *config.Config
	roots    paths.Static
	pipeline *plugin.Pipeline
	loader   *plugin.RONLoader
}

func (c *commonFlags) load() (*env, error) {
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.concurrency < 0 {
		return nil, errors.New("--concurrency must not be negative")
	}
	if c.concurrency > 0 {
		cfg.Loader.MaxConcurrency = c.concurrency
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)

	roots := cfg.Resolver()
	if len(c.roots) > 0 {
		roots = paths.Clean(c.roots)
	}

	logger := log.WithComponent("plugin")
	loader := plugin.NewRONLoader(logger)
	p := plugin.NewPipeline(roots, loader,
		plugin.WithConcurrency(cfg.Loader.MaxConcurrency),
		plugin.WithLogger(logger),
	)
	return &env{cfg: cfg, roots: roots, pipeline: p, loader: loader}, nil
}

func runPluginNoun(args []string) int {
	if len(args) < 1 {
		printPluginNounHelp(os.Stderr)
		return 1
	}

	if isHelpToken(args[0]) {
		printPluginNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			printPluginListHelp()
			return 0
		}
		return runPluginList(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printPluginShowHelp()
			return 0
		}
		return runPluginShow(actionArgs)
	case "browse":
		if hasHelpFlag(actionArgs) {
			printPluginBrowseHelp()
			return 0
		}
		return runPluginBrowse(actionArgs)
	case "check":
		if hasHelpFlag(actionArgs) {
			printPluginCheckHelp()
			return 0
		}
		return runPluginCheck(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown plugin action: %s\n", action)
		return 1
	}
}

func loadPlugins(e *env, sync bool) []plugin.LoadedPlugin {
	if sync {
		return e.pipeline.LoadAll()
	}
	return slices.Collect(e.pipeline.LoadAllAsync())
}

func runPluginList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	sync := fs.Bool("sync", false, "Load sequentially instead of with the async pipeline")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	e, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	entries := inspect.Build(loadPlugins(e, *sync))
	if *jsonOut {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	fmt.Print(inspect.RenderTable(entries))
	return 0
}

func runPluginShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: plugscan plugin show <name> [flags]")
		return 1
	}
	name := fs.Arg(0)
	// Flags may also follow the name.
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: plugscan plugin show <name> [flags]")
		return 1
	}

	e, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	var matches []inspect.Entry
	for _, entry := range inspect.Build(loadPlugins(e, false)) {
		if entry.Name == name {
			matches = append(matches, entry)
		}
	}
	if len(matches) == 0 {
		fmt.Fprintf(os.Stderr, "No plugin named %q\n", name)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(matches, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	for i, entry := range matches {
		if i > 0 {
			fmt.Println()
		}
		fmt.Print(inspect.RenderDetail(entry))
	}
	return 0
}

func runPluginBrowse(args []string) int {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	e, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	stream := browse.NewStream(e.pipeline.LoadAllAsync())
	defer stream.Stop()

	p := tea.NewProgram(browse.New(stream, e.roots.Roots()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Browser error: %v\n", err)
		return 1
	}
	return 0
}

func runPluginCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	e, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	result := doctor.New(e.roots.Roots(), e.loader).Check()

	if *jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		printCheckResult(result)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func printCheckResult(r *doctor.Result) {
	for _, root := range r.Roots {
		state := "ok"
		if !root.Readable {
			state = "unreadable"
		}
		fmt.Printf("[%d] %s (%s): %d candidate(s), %d loaded\n",
			root.Priority, root.Path, state, root.Candidates, root.Loaded)
	}
	for _, issue := range r.Errors {
		fmt.Printf("ERROR   [%s] %s: %s\n", issue.Category, issue.Path, issue.Message)
	}
	for _, issue := range r.Warnings {
		fmt.Printf("WARNING [%s] %s: %s\n", issue.Category, issue.Path, issue.Message)
	}
	if r.Valid {
		fmt.Printf("%d plugin(s) loadable\n", r.Loaded)
	} else {
		fmt.Printf("%d plugin(s) loadable, %d descriptor error(s)\n", r.Loaded, len(r.Errors))
	}
}

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}

	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "serve":
		if hasHelpFlag(actionArgs) {
			printSystemServeHelp()
			return 0
		}
		return runServe(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	listen := fs.String("listen", "", "Listen address (overrides api.listen)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	e, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	if *listen != "" {
		e.cfg.API.Listen = *listen
	}

	logger := log.WithComponent("main")
	logger.Info("plugscan starting", "version", version, "config", e.cfg.Source, "roots", e.roots.Roots())

	if path := e.cfg.Service.PIDFile; path != "" {
		pidLock, err := lock.Acquire(path)
		if err != nil {
			logger.Error("failed to acquire PID lock (another instance may be running)", "path", path, "error", err)
			return 1
		}
		defer pidLock.Release()
		logger.Info("acquired PID lock", "path", pidLock.Path())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiConfig := api.Config{
		Listen: e.cfg.API.Listen,
		Roots:  e.roots.Roots(),
		Token:  e.cfg.API.Token,
	}
	if e.cfg.API.Metrics {
		apiConfig.Metrics = metrics.New()
	}

	server := api.New(apiConfig, e.pipeline, log.WithComponent("api"))
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("API server failed", "error", err)
		return 1
	}

	logger.Info("plugscan stopped")
	return 0
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}

	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

// effectiveConfig is the loaded config plus the roots it resolves to.
type effectiveConfig struct {
	config.Config  `yaml:",inline"`
	Source         string   `yaml:"source,omitempty" json:"source,omitempty"`
	EffectiveRoots []string `yaml:"effective_roots" json:"effective_roots"`
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	shown := *cfg
	if shown.API.Token != "" {
		shown.API.Token = "********"
	}
	result := effectiveConfig{Config: shown, Source: cfg.Source, EffectiveRoots: cfg.Resolver().Roots()}
	if *jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		data, _ := yaml.Marshal(result)
		fmt.Print(string(data))
	}
	return 0
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

const commonFlagsHelp = `  --config PATH        Configuration file or directory
  --root DIR           Plugin root, repeatable, highest priority first
  --concurrency N      Max in-flight loads for async mode`

func printPluginNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: plugscan plugin <action>")
	fmt.Fprintln(w, "Actions: list, show, browse, check")
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: plugscan system <action>")
	fmt.Fprintln(w, "Actions: serve")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: plugscan config <action>")
	fmt.Fprintln(w, "Actions: show")
}

func printPluginListHelp() {
	fmt.Println("Usage: plugscan plugin list [--sync] [--json] [flags]")
	fmt.Println(commonFlagsHelp)
}

func printPluginShowHelp() {
	fmt.Println("Usage: plugscan plugin show <name> [--json] [flags]")
	fmt.Println(commonFlagsHelp)
}

func printPluginBrowseHelp() {
	fmt.Println("Usage: plugscan plugin browse [flags]")
	fmt.Println(commonFlagsHelp)
}

func printPluginCheckHelp() {
	fmt.Println("Usage: plugscan plugin check [--json] [flags]")
	fmt.Println(commonFlagsHelp)
	fmt.Println("Exits 1 when any descriptor fails to parse.")
}

func printSystemServeHelp() {
	fmt.Println("Usage: plugscan system serve [--listen ADDR] [flags]")
	fmt.Println(commonFlagsHelp)
}

func printConfigShowHelp() {
	fmt.Println("Usage: plugscan config show [--config PATH] [--json]")
}
