package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/CTAG07/charkov/pkg/markov"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app carries the state shared by all commands once the config is loaded.
type app struct {
	configPath string
	config     *Config
	logger     *slog.Logger
}

// openStore opens the configured database, makes sure the schema exists and
// prepares a Store. The returned func closes both.
func (a *app) openStore() (*markov.Store, func(), error) {
	db, err := sql.Open(sqliteDriver, a.config.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids busy errors.
	db.SetMaxOpenConns(1)

	if err = markov.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to setup markov schema: %w", err)
	}

	store, err := markov.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to prepare store: %w", err)
	}
	store.SetLogger(a.logger)

	closeFn := func() {
		store.Close()
		if err := db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}
	return store, closeFn, nil
}

// newRootCmd builds the full command tree.
func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "charkov",
		Short:         "charkov is a character-level Markov chain text generator",
		Long:          `charkov learns which character follows each fixed-length window of a sample text and uses that table to produce new text.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadConfig(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.config = config
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLogLevel(config.LogLevel)}))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "./charkov.json", "Path to the JSON configuration file")

	rootCmd.AddCommand(
		newGenerateCmd(a),
		newTrainCmd(a),
		newDumpCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newStatsCmd(a),
		newRemoveCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of charkov",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "charkov version %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
