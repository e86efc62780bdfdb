// Package main is the entry point for the earnings-analyst web service.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "earnings-analyst",
	Short: "Analyze scanned earnings call transcripts with Gemini",
	Long: `earnings-analyst serves a single-page web app. A user uploads an earnings
call transcript (PDF), the pages are materialized and sent to a Gemini model
through the Gemini API with a fixed analyst prompt, and the model's reply is shown as is.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./earnings-analyst.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
