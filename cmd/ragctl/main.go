// Command ragctl is an operator CLI for a running ragd server. It wraps
// the REST API: query, search, rebuild-index, stats, and health.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "ragctl",
	Short:         "ragctl talks to a ragd documentation query server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOrDefault("RAGD_SERVER", "http://localhost:8000"), "base URL of the ragd server")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("RAGD_API_KEY"), "API key for servers with auth enabled")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")

	rootCmd.AddCommand(queryCmd, searchCmd, rebuildCmd, statsCmd, healthCmd)
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		errColor.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
