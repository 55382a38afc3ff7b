package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/wardenhq/warden"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/debug"
	"github.com/wardenhq/warden/internal/lifecycle"
	"github.com/wardenhq/warden/internal/oplog"
	"github.com/wardenhq/warden/internal/override"
	"github.com/wardenhq/warden/internal/ratelimit"
	"github.com/wardenhq/warden/internal/storage"
	"github.com/wardenhq/warden/internal/storage/file"
	"github.com/wardenhq/warden/internal/storage/sqlite"
)

var (
	stateDir   string
	dbPath     string
	backend    string
	actor      string
	repo       string
	jsonOutput bool

	store      storage.Storage
	limiter    *ratelimit.Limiter
	lifecycles *lifecycle.Manager
	overrides  *override.Manager
	logger     *oplog.Logger
)

// limiterStatePath is where the limiter snapshot lives inside the state dir.
func limiterStatePath() string {
	return filepath.Join(stateDir, "ratelimit.json")
}

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "warden - Policy and concurrency control for automated issue handling",
	Long: `Warden gates an automation pipeline's side effects: it rate-limits GitHub
API usage, caps AI spend, tracks each issue through a strict lifecycle state
machine, and gives humans override commands and grace-period veto windows.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Apply viper configuration if flags weren't explicitly set
		// Priority: flags > viper (config file + env vars) > defaults
		if !cmd.Flags().Changed("json") {
			jsonOutput = config.GetBool("json")
		}
		if !cmd.Flags().Changed("db") && dbPath == "" {
			dbPath = config.GetString("db")
		}
		if !cmd.Flags().Changed("backend") {
			backend = config.GetString("backend")
		}
		if !cmd.Flags().Changed("state-dir") && stateDir == "" {
			stateDir = config.GetString("state-dir")
		}
		if !cmd.Flags().Changed("actor") && actor == "" {
			actor = config.GetString("actor")
		}
		if !cmd.Flags().Changed("repo") && repo == "" {
			repo = config.GetString("repo")
		}

		// Skip state initialization for commands that don't need it
		switch cmd.Name() {
		case "init", "help", "version", "help-commands":
			return
		}

		if stateDir == "" {
			stateDir = warden.FindStateDir()
			debug.Logf("Debug: discovered state dir %q\n", stateDir)
			if stateDir == "" {
				fmt.Fprintf(os.Stderr, "Error: no warden state directory found\n")
				fmt.Fprintf(os.Stderr, "Hint: run 'warden init' to create one in the current directory\n")
				fmt.Fprintf(os.Stderr, "      or set WARDEN_STATE_DIR to an existing state directory\n")
				os.Exit(1)
			}
		}

		// Actor priority: --actor flag > config/WARDEN_ACTOR env > USER env > "unknown"
		if actor == "" {
			if user := os.Getenv("USER"); user != "" {
				actor = user
			} else {
				actor = "unknown"
			}
		}

		logger = oplog.New(config.GetString("log-file"))

		var err error
		switch backend {
		case "sqlite":
			if dbPath == "" {
				dbPath = filepath.Join(stateDir, "warden.db")
			}
			store, err = sqlite.New(dbPath)
		case "file", "":
			store, err = file.New(stateDir)
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown backend %q (want \"file\" or \"sqlite\")\n", backend)
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open state store: %v\n", err)
			os.Exit(1)
		}
		debug.Logf("Debug: opened %s backend at %s\n", backend, store.Path())

		checkVersionMismatch()

		// github-limit is requests per hour; an explicit github-refill
		// (tokens per second) takes precedence.
		refill := config.GetFloat64("github-refill")
		if refill <= 0 {
			refill = float64(config.GetInt("github-limit")) / 3600.0
		}
		opts := ratelimit.Options{
			GitHubBurst:      config.GetInt("github-burst"),
			GitHubRefillRate: refill,
			CostLimit:        config.GetFloat64("cost-limit"),
			StatePath:        limiterStatePath(),
		}
		limiter = ratelimit.New(opts)
		if err := limiter.LoadState(limiterStatePath()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not restore rate limiter state: %v\n", err)
		}

		lifecycles = lifecycle.NewManager(store, logger)
		overrides = override.NewManager(store, lifecycles, logger)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if limiter != nil {
			if err := limiter.SaveState(limiterStatePath()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not persist rate limiter state: %v\n", err)
			}
		}
		if store != nil {
			_ = store.Close()
		}
		if logger != nil {
			_ = logger.Close()
		}
	},
}

// checkVersionMismatch warns when the binary version differs from the version
// that last wrote to this state store, and refreshes the stored version.
func checkVersionMismatch() {
	ctx := context.Background()

	stored, err := store.GetMetadata(ctx, "warden_version")
	if err != nil {
		_ = store.SetMetadata(ctx, "warden_version", Version)
		return
	}
	if stored == "" {
		_ = store.SetMetadata(ctx, "warden_version", Version)
		return
	}

	if stored != Version {
		yellow := color.New(color.FgYellow, color.Bold).SprintFunc()
		binaryVer := "v" + Version
		storedVer := "v" + stored
		if semver.Compare(binaryVer, storedVer) < 0 {
			fmt.Fprintf(os.Stderr, "%s\n", yellow(fmt.Sprintf(
				"Warning: warden binary (v%s) is older than the version that last wrote this state (v%s)", Version, stored)))
			fmt.Fprintf(os.Stderr, "%s\n", yellow("Warning: some state may not round-trip correctly; upgrade the binary"))
		}
	}

	_ = store.SetMetadata(ctx, "warden_version", Version)
}

// outputJSON outputs data as pretty-printed JSON
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// requireRepo exits when no repository was given via --repo, config, or env.
func requireRepo() {
	if repo == "" {
		fmt.Fprintf(os.Stderr, "Error: no repository specified\n")
		fmt.Fprintf(os.Stderr, "Hint: pass --repo owner/name or set WARDEN_REPO\n")
		os.Exit(1)
	}
}

func init() {
	// Initialize viper configuration
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "State directory (default: auto-discover .warden/ or ~/.warden)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path when --backend=sqlite (default: <state-dir>/warden.db)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "file", "Storage backend: file or sqlite")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Actor name for audit trail (default: $WARDEN_ACTOR or $USER)")
	rootCmd.PersistentFlags().StringVar(&repo, "repo", "", "Repository in owner/name form (default: $WARDEN_REPO)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func main() {
	// Handle --version flag (in addition to 'version' subcommand)
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			fmt.Printf("warden version %s (%s)\n", Version, Build)
			return
		}
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
