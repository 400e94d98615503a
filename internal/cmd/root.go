// Package cmd implements the pakmirror CLI.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pakmirror/pakmirror/internal/observability"
)

// versionInfo is stamped at build time via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records the build identification shown by version/health
// endpoints. Called from main before Execute.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	rootVerbose    bool
	rootConfigPath string
)

var rootCmd = &cobra.Command{
	Use:   "pakmirror",
	Short: "Mirror job orchestration service",
	Long: `pakmirror orchestrates long-running image mirror jobs driven by external
CLI tools (oc adm release mirror, oc-mirror, case-package downloaders) and
exposes their lifecycle over an HTTP API: launch, monitor, stop, dismiss,
and retry.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		observability.InitCLILogger("pakmirror", rootVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to config file")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// exitError wraps a fatal CLI error with its process exit code.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}
