// Package cmd implements the ideaplate command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    string
	configPath string
)

// SetVersion sets the version string.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "ideaplate",
	Short: "Idea sharing service",
	Long: `ideaplate - publish ideas, like and comment on them, and find collaborators.

The service is exposed as a REST API (serve) and as MCP tools (mcp).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"YAML config file (IDEAPLATE_* environment variables override it)")
}
