package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"finledger/internal/allocation"
	"finledger/internal/extract"
	"finledger/internal/logger"
	"finledger/internal/reconcile"
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Extract and add quotes (scopes of work from client agreements)",
}

var quoteExtractCmd = &cobra.Command{
	Use:   "extract [agreement-file]",
	Short: "Split an agreement into scope-of-work quote candidates",
	Long: `Read an agreement and split it into one quote candidate per scope-of-work
section. Every candidate carries an id, title, amount and date; fields that
could not be found are listed under "defaults" and should be reviewed before
the candidates are added with 'quote add --from'.`,
	Example: `  finledger quote extract agreement.pdf -o quotes.json
  # review quotes.json, then
  finledger quote add --unit Acme --from quotes.json --agreement agreement.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runQuoteExtract,
}

var quoteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add reviewed quote candidates or a manual quote to the ledger",
	Example: `  # Add reviewed candidates, storing the agreement once per quote
  finledger quote add --unit Acme --from quotes.json --agreement agreement.pdf

  # Add only some of the candidates
  finledger quote add --unit Acme --from quotes.json --select QT-2504-1,QT-2504-3

  # Add a quote by hand
  finledger quote add --unit Acme --id QT-77 --name "Website" --value 50000 --date 2025-04-01`,
	Args: cobra.NoArgs,
	RunE: runQuoteAdd,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.AddCommand(quoteExtractCmd, quoteAddCmd)

	quoteExtractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")

	quoteAddCmd.Flags().String("from", "", "JSON file with reviewed candidates from 'quote extract'")
	quoteAddCmd.Flags().StringSlice("select", nil, "Only add these candidate ids")
	quoteAddCmd.Flags().String("agreement", "", "Agreement document to store with the quotes")
	quoteAddCmd.Flags().String("id", "", "Quote id (manual entry)")
	quoteAddCmd.Flags().String("name", "", "Project name (manual entry)")
	quoteAddCmd.Flags().String("value", "0", "Total quote value (manual entry)")
	quoteAddCmd.Flags().String("date", "", "Agreement date (manual entry, default today)")
}

func runQuoteExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("quote-extract")
	outputPath, _ := cmd.Flags().GetString("output")

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, true, log)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.source.Extract(ctx, args[0])
	if err != nil {
		return handleSourceError(err, log)
	}

	candidates := extract.ExtractQuotes(doc.Text())
	log.Info().
		Str("file", args[0]).
		Int("candidates", len(candidates)).
		Msg("Quote candidates extracted")
	return writeJSON(candidates, outputPath, log)
}

func runQuoteAdd(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("quote-add")

	unit, err := unitFlag(cmd)
	if err != nil {
		return err
	}
	from, _ := cmd.Flags().GetString("from")
	agreementPath, _ := cmd.Flags().GetString("agreement")

	var inputs []allocation.QuoteInput
	if from != "" {
		selected, _ := cmd.Flags().GetStringSlice("select")
		if inputs, err = quoteInputsFromFile(from, selected); err != nil {
			return err
		}
	} else {
		input, err := manualQuoteInput(cmd)
		if err != nil {
			return err
		}
		inputs = append(inputs, input)
	}

	var agreement *reconcile.Attachment
	if agreementPath != "" {
		if agreement, err = reconcile.AttachmentFromFile(agreementPath); err != nil {
			return err
		}
	}

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, false, log)
	if err != nil {
		return err
	}
	defer a.Close()

	quotes, err := a.service.AddQuotes(ctx, unit, inputs, agreement)
	if err != nil {
		return handleCommitError(err, log)
	}

	for _, q := range quotes {
		fmt.Printf("✅ %s  %s  %s  (%s)\n", q.ID, q.ProjectName, q.TotalValue.StringFixed(2), q.Status)
	}
	fmt.Printf("Added %d quote(s) to %s\n", len(quotes), unit)
	return nil
}

func quoteInputsFromFile(path string, selected []string) ([]allocation.QuoteInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}
	var candidates []extract.QuoteCandidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("invalid candidates file %s: %w", path, err)
	}

	keep := map[string]bool{}
	for _, id := range selected {
		keep[strings.TrimSpace(id)] = true
	}

	var inputs []allocation.QuoteInput
	for _, c := range candidates {
		if len(keep) > 0 && !keep[c.ID] {
			continue
		}
		inputs = append(inputs, allocation.QuoteInput{
			ID:          c.ID,
			ProjectName: c.Title,
			TotalValue:  c.Amount,
			Date:        c.Date,
		})
	}
	return inputs, nil
}

func manualQuoteInput(cmd *cobra.Command) (allocation.QuoteInput, error) {
	id, _ := cmd.Flags().GetString("id")
	name, _ := cmd.Flags().GetString("name")
	valueStr, _ := cmd.Flags().GetString("value")
	dateStr, _ := cmd.Flags().GetString("date")

	value, err := parseAmountFlag("value", valueStr)
	if err != nil {
		return allocation.QuoteInput{}, err
	}
	input := allocation.QuoteInput{
		ID:          id,
		ProjectName: name,
		TotalValue:  value,
		Manual:      true,
	}
	if dateStr != "" {
		date, ok := extract.ParseDate(dateStr)
		if !ok {
			return allocation.QuoteInput{}, fmt.Errorf("invalid --date: %q", dateStr)
		}
		input.Date = date
	}
	return input, nil
}
