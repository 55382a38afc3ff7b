package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/storage/file"
	"github.com/wardenhq/warden/internal/storage/sqlite"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a warden state directory in the current directory",
	Long: `Creates .warden/ in the current directory and initializes the chosen
storage backend inside it. Safe to re-run on an existing state directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		dir := stateDir
		if dir == "" {
			dir = filepath.Join(cwd, ".warden")
		}
		if err := os.MkdirAll(dir, 0750); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create %s: %v\n", dir, err)
			os.Exit(1)
		}

		ctx := context.Background()
		switch backend {
		case "sqlite":
			path := dbPath
			if path == "" {
				path = filepath.Join(dir, "warden.db")
			}
			s, err := sqlite.New(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to initialize database: %v\n", err)
				os.Exit(1)
			}
			_ = s.SetMetadata(ctx, "warden_version", Version)
			_ = s.Close()
		case "file", "":
			s, err := file.New(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to initialize state directory: %v\n", err)
				os.Exit(1)
			}
			_ = s.SetMetadata(ctx, "warden_version", Version)
			_ = s.Close()
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown backend %q (want \"file\" or \"sqlite\")\n", backend)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]string{
				"state_dir": dir,
				"backend":   backend,
				"version":   Version,
			})
			return
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Initialized warden state in %s (backend: %s)\n", green("✓"), dir, backend)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
