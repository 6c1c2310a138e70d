// Package main provides the entry point for the repograde CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repograde/cmd/repograde/commands"
)

// Build metadata, injected with -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "repograde",
		Short: "Repograde - repository analysis and grading",
		Long: `Repograde clones a repository and grades it: tech stack, structure,
engineering maturity, commit forensics, AI-origin and plagiarism signals,
code quality, leaked secrets and an LLM product verdict.

Commands:
  serve     Run the HTTP API server
  analyze   Analyze a single repository from the command line`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "repograde %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
