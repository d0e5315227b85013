// Command llf is the CLI entry point for the local LLM control plane: it
// starts and stops supervised llama-server backends, manages the tool
// registry, and issues chat requests against the currently active
// endpoint.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mattwalker75/llf-control-plane/internal/config"
)

// exit codes, per base spec §7: every surfaced error carries a
// human-readable summary and a stable machine classification; a
// configuration-document problem is distinguished from a runtime failure
// so scripts can tell "fix your config" apart from "the operation failed".
const (
	exitOK            = 0
	exitFailure       = 1
	exitConfigInvalid = 2
)

var configPath string

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor classifies a top-level command error into the CLI's exit
// code taxonomy.
func exitCodeFor(err error) int {
	var validationErr *config.ValidationError
	if errors.As(err, &validationErr) {
		return exitConfigInvalid
	}
	var notFoundErr *config.BackendNotFoundError
	if errors.As(err, &notFoundErr) {
		return exitConfigInvalid
	}
	return exitFailure
}

// buildRootCmd creates the root command with every subcommand attached.
// Kept separate from main() so it can be exercised by tests without
// calling os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "llf",
		Short:        "Local LLM control plane",
		Long:         "llf supervises local llama-server backends, routes chat requests, and dispatches tool calls against a local tool registry.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to the control plane's configuration file")

	rootCmd.AddCommand(
		buildServerCmd(),
		buildToolCmd(),
		buildAskCmd(),
		buildChatCmd(),
	)
	return rootCmd
}

// defaultConfigPath mirrors the teacher's "absent config is an empty
// config" convention: first run has nowhere to point --config, so it
// defaults under the user's home directory.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "llf.json"
	}
	return home + "/.llf/config.json"
}
