package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-categorizer/internal/api"
	"github.com/insightdelivered/statement-categorizer/internal/categorizer"
	"github.com/insightdelivered/statement-categorizer/internal/extractor"
	"github.com/insightdelivered/statement-categorizer/internal/logger"
	"github.com/insightdelivered/statement-categorizer/internal/statement"
	"github.com/insightdelivered/statement-categorizer/internal/writer"
)

type parseOptions struct {
	output         string
	json           bool
	header         bool
	categoriesFile string
	ocr            bool
	timeout        time.Duration
	logLevel       string
}

func newParseCommand() *cobra.Command {
	var opts parseOptions

	cmd := &cobra.Command{
		Use:   "parse <input.pdf> [input2.pdf ...]",
		Short: "Convert statement PDFs to categorized CSV",
		Example: `  # Write releve.csv next to the input
  statement-categorizer parse releve.pdf

  # Custom output path
  statement-categorizer parse --output=janvier.csv releve.pdf

  # Print the records as JSON
  statement-categorizer parse --json jan.pdf feb.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "" && len(args) > 1 {
				return errors.New("--output can only be used with a single input file")
			}

			log := logger.New(logger.Options{Level: opts.logLevel, Format: "console"})
			cats, err := categorizer.NewStore(opts.categoriesFile, log)
			if err != nil {
				return fmt.Errorf("loading categories: %w", err)
			}
			proc := statement.NewProcessor(
				extractor.NewPDFExtractor(log, opts.ocr),
				cats,
				log,
				statement.WithTimeout(opts.timeout),
			)

			for _, inputPath := range args {
				if err := processFile(cmd.Context(), cmd.OutOrStdout(), proc, cats, inputPath, opts); err != nil {
					return fmt.Errorf("processing %s: %w", inputPath, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output CSV path (defaults to the input name with .csv)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print records as JSON instead of writing CSV")
	cmd.Flags().BoolVar(&opts.header, "header", true, "include statement metadata rows in the CSV")
	cmd.Flags().StringVar(&opts.categoriesFile, "categories", "", "category YAML file (built-in table when empty)")
	cmd.Flags().BoolVar(&opts.ocr, "ocr", false, "fall back to OCR for scanned documents")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "time limit per document")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	return cmd
}

func processFile(ctx context.Context, out io.Writer, proc api.Processor, cats *categorizer.Store, inputPath string, opts parseOptions) error {
	if ext := strings.ToLower(filepath.Ext(inputPath)); ext != ".pdf" {
		return fmt.Errorf("expected .pdf file, got %q", ext)
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	res, err := proc.Process(ctx, data, filepath.Base(inputPath), nil)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewStatementResponse(res))
	}

	fmt.Fprintf(out, "Processing: %s\n", inputPath)
	fmt.Fprintf(out, "  Extracted text from %d page(s)\n", res.PageCount)
	fmt.Fprintf(out, "  Found %d transaction(s) using %s\n", res.Summary.Count, res.Strategy)

	outPath := opts.output
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".csv"
	}
	w := &writer.CSVWriter{IncludeHeader: opts.header, CategoryNames: categoryNames(cats)}
	if err := w.WriteToFile(outPath, res); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}

	fmt.Fprintf(out, "  Output: %s\n", outPath)
	fmt.Fprintf(out, "  Total out: %s  Total in: %s  Net: %s\n",
		res.Summary.TotalOut.StringFixed(2), res.Summary.TotalIn.StringFixed(2), res.Summary.Net.StringFixed(2))
	for _, warning := range res.Warnings {
		fmt.Fprintf(out, "  Warning: %s\n", warning)
	}
	fmt.Fprintln(out, "  Done.")
	return nil
}

func categoryNames(cats *categorizer.Store) map[string]string {
	names := make(map[string]string)
	for _, c := range cats.List() {
		names[c.ID] = c.Name
	}
	return names
}
