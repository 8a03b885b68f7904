// sessionctl is the commission's offline companion to the session server: it
// works against the same SQLite file, so a session can be prepared, inspected
// and exported without the HTTP surface running.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bursa/internal/platform/config"
	"bursa/internal/platform/logger"
	"bursa/internal/session/service"
	"bursa/internal/session/store"
)

var (
	dbPath string

	cfg = config.Load()
)

var rootCmd = &cobra.Command{
	Use:   "sessionctl",
	Short: "Manage a scholarship commission session",
	Long: `sessionctl administers a commission session database.

It imports candidate lists, loads seat allocations, records decisions,
moves capacity between programs and renders the published documents.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.DatabasePath, "path to the session database")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(quotasCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(resetCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openService opens the session database and builds the service around it.
// The caller must invoke the returned closer.
func openService() (*service.Service, func(), error) {
	st, err := store.NewSQLite(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open session database %s: %w", dbPath, err)
	}
	svc, err := service.New(st,
		service.WithLogger(logger.New()),
		service.WithFuzzyLimit(cfg.FuzzyLimit),
	)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return svc, func() { st.Close() }, nil
}
