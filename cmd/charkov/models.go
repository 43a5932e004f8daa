package main

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/CTAG07/charkov/pkg/markov"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

// modelLookupError turns a missing model into a readable error.
func modelLookupError(name string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("model %q not found", name)
	}
	return fmt.Errorf("failed to look up model %q: %w", name, err)
}

func newDumpCmd(a *app) *cobra.Command {
	var modelName string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the full transition table of a stored model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			model, err := store.GetModelInfo(ctx, modelName)
			if err != nil {
				return modelLookupError(modelName, err)
			}
			chain := markov.NewChain(nil)
			if err = store.LoadChain(ctx, model, chain); err != nil {
				return fmt.Errorf("failed to load model %q: %w", modelName, err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), chain.String())
			return err
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "Name of the model to dump")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var modelName, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stored model as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			model, err := store.GetModelInfo(ctx, modelName)
			if err != nil {
				return modelLookupError(modelName, err)
			}

			if outPath == "-" {
				return store.ExportModel(ctx, model, cmd.OutOrStdout())
			}

			var buf bytes.Buffer
			if err = store.ExportModel(ctx, model, &buf); err != nil {
				return fmt.Errorf("failed to export model %q: %w", modelName, err)
			}
			if err = atomic.WriteFile(outPath, &buf); err != nil {
				return fmt.Errorf("failed to write export file: %w", err)
			}
			a.logger.Info("Model exported", "model_name", modelName, "path", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "Name of the model to export")
	cmd.Flags().StringVar(&outPath, "out", "-", `Output file, "-" writes to standard output`)
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var inPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Merge a JSON model export into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if inPath != "-" {
				fh, err := os.Open(inPath)
				if err != nil {
					return fmt.Errorf("failed to open import file: %w", err)
				}
				defer func(fh *os.File) {
					_ = fh.Close()
				}(fh)
				r = fh
			}

			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			if err = store.ImportModel(cmd.Context(), r); err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "-", `Input file, "-" reads standard input`)
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show statistics for every stored model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := store.GetStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to collect stats: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "MODEL\tORDER\tSTATES\tTRANSITIONS\tTERMINALS")
			for _, m := range stats.Models {
				st := stats.Stats[m.Id]
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", m.Name, m.Order, st.States, st.Transitions, st.Terminals)
			}
			return tw.Flush()
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	var modelName string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete a stored model and all of its transitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			model, err := store.GetModelInfo(ctx, modelName)
			if err != nil {
				return modelLookupError(modelName, err)
			}
			return store.RemoveModel(ctx, model)
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "Name of the model to remove")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
