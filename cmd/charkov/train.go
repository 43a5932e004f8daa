package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/CTAG07/charkov/pkg/markov"
	"github.com/spf13/cobra"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		modelName string
		file      string
		order     int
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Add a text to a stored model, creating the model if needed",
		Long: `Reads training text from --file (or standard input when --file is "-") and
adds its transitions to the stored --model. Training is cumulative: the text
is added to whatever the model already holds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				fh, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open training text: %w", err)
				}
				defer func(fh *os.File) {
					_ = fh.Close()
				}(fh)
				r = fh
			}
			data, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("failed to read training text: %w", err)
			}

			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			gen := markov.NewTextGenerator(markov.WithLogger(a.logger))

			model, err := store.GetModelInfo(ctx, modelName)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				if !cmd.Flags().Changed("order") {
					order = a.config.DefaultOrder
				}
				if err = gen.BuildModel(string(data), order); err != nil {
					return err
				}
				// The model row and its transitions land together or not at all.
				if model, err = store.CreateModel(ctx, markov.ModelInfo{Name: modelName, Order: order}, gen.Chain()); err != nil {
					return fmt.Errorf("failed to create model %q: %w", modelName, err)
				}
			case err != nil:
				return fmt.Errorf("failed to look up model %q: %w", modelName, err)
			case cmd.Flags().Changed("order") && order != model.Order:
				return fmt.Errorf("model %q has order %d, not %d", modelName, model.Order, order)
			default:
				if err = store.LoadChain(ctx, model, gen.Chain()); err != nil {
					return fmt.Errorf("failed to load model %q: %w", modelName, err)
				}
				before := gen.Chain().Len()
				if err = gen.BuildModel(string(data), model.Order); err != nil {
					return err
				}
				if err = store.SaveChain(ctx, model, gen.Chain()); err != nil {
					return fmt.Errorf("failed to save model %q: %w", modelName, err)
				}
				a.logger.Debug("Transitions added", "model_name", model.Name, "added", gen.Chain().Len()-before)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Trained model %q (order %d): %d transitions across %d states\n",
				model.Name, model.Order, gen.Chain().Len(), gen.Chain().NumStates())
			return err
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "Name of the model to train")
	cmd.Flags().StringVar(&file, "file", "-", `Training text file, "-" reads standard input`)
	cmd.Flags().IntVar(&order, "order", 0, "Order for a new model (defaults to default_order from the config)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}
