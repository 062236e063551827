package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/normicyte/normicyte/internal/logging"
	"github.com/spf13/cobra"
)

var databaseURL string

var rootCmd = &cobra.Command{
	Use:  "normicyte-cli",
	Long: `Command line utilities for NormiCyte https://github.com/normicyte/normicyte`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	// Missing .env is fine, the flags and defaults cover local use.
	_ = godotenv.Load()

	defaultURL := os.Getenv("NORMICYTE_SQLITE_URL")
	if defaultURL == "" {
		defaultURL = "normicyte.sqlite3"
	}
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database", defaultURL, "path to the SQLite database")
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(badgesCmd)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(logging.NewContextHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
