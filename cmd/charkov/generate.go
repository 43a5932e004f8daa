package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/CTAG07/charkov/pkg/markov"
	"github.com/spf13/cobra"
)

type generateFlags struct {
	text     string
	textFile string
	model    string
	start    string
	order    int
	length   int
	seed     uint64
}

func newGenerateCmd(a *app) *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Train on a text (or load a stored model) and generate new text",
		Long: `Builds a chain from --text or --text-file, or loads the stored --model, then
generates text from --start. With none of --text, --text-file or --model the
command asks for the text, order, start state and length on standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, a, &f)
		},
	}

	cmd.Flags().StringVar(&f.text, "text", "", "Training text")
	cmd.Flags().StringVar(&f.textFile, "text-file", "", "File to read the training text from")
	cmd.Flags().StringVar(&f.model, "model", "", "Stored model to generate from")
	cmd.Flags().StringVar(&f.start, "start", "", "Start state (defaults to the first order characters of the text)")
	cmd.Flags().IntVar(&f.order, "order", 0, "Order of the chain (defaults to default_order from the config)")
	cmd.Flags().IntVar(&f.length, "length", 0, "Total length of the generated text (defaults to default_length from the config)")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "Seed for a repeatable run, 0 picks a random seed")
	cmd.MarkFlagsMutuallyExclusive("text", "text-file")

	return cmd
}

func runGenerate(cmd *cobra.Command, a *app, f *generateFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	var opts []markov.Option
	opts = append(opts, markov.WithLogger(a.logger))
	if f.seed != 0 {
		opts = append(opts, markov.WithRandSource(rand.New(rand.NewPCG(f.seed, f.seed))))
	}
	gen := markov.NewTextGenerator(opts...)

	text := f.text
	if f.textFile != "" {
		data, err := os.ReadFile(f.textFile)
		if err != nil {
			return fmt.Errorf("failed to read training text: %w", err)
		}
		text = string(data)
	}

	order := f.order
	if !cmd.Flags().Changed("order") {
		order = a.config.DefaultOrder
	}
	length := f.length
	if !cmd.Flags().Changed("length") {
		length = a.config.DefaultLength
	}
	start := f.start
	haveStart := cmd.Flags().Changed("start")

	interactive := !cmd.Flags().Changed("text") && f.textFile == "" && f.model == ""
	if interactive {
		p := &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: out}
		var err error
		if text, err = p.line("Enter text for Markov model:"); err != nil {
			return err
		}
		if order, err = p.integer("Enter the order of the model:"); err != nil {
			return err
		}
		if start, err = p.line("Enter start state:"); err != nil {
			return err
		}
		haveStart = true
		if length, err = p.integer("Enter the length of text to generate:"); err != nil {
			return err
		}
	}

	if f.model != "" {
		store, closeStore, err := a.openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		model, err := store.GetModelInfo(ctx, f.model)
		if err != nil {
			return modelLookupError(f.model, err)
		}
		if cmd.Flags().Changed("order") && f.order != model.Order {
			return fmt.Errorf("model %q has order %d, not %d", f.model, model.Order, f.order)
		}
		if err = store.LoadChain(ctx, model, gen.Chain()); err != nil {
			return fmt.Errorf("failed to load model %q: %w", f.model, err)
		}
		order = model.Order
	}

	if text != "" || f.model == "" {
		if err := gen.BuildModel(text, order); err != nil {
			return err
		}
	}

	if !haveStart {
		if f.model != "" {
			return errors.New("--start is required when generating from a stored model")
		}
		runes := []rune(text)
		start = string(runes[:min(order, len(runes))])
	}

	a.logger.Info("Generating text",
		"order", order,
		"start_state", start,
		"length", length,
		"transitions", gen.Chain().Len(),
	)

	_, err := fmt.Fprintf(out, "Generated text: %s\n", gen.Generate(length, start))
	return err
}

// prompter asks questions on out and reads answers line by line from in.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) line(question string) (string, error) {
	if _, err := fmt.Fprintln(p.out, question); err != nil {
		return "", err
	}
	answer, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && answer != "") {
		return "", fmt.Errorf("failed to read answer to %q: %w", question, err)
	}
	return strings.TrimRight(answer, "\r\n"), nil
}

func (p *prompter) integer(question string) (int, error) {
	answer, err := p.line(question)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil {
		return 0, fmt.Errorf("expected a whole number, got %q", answer)
	}
	return n, nil
}
