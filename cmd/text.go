package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"finledger/internal/logger"
	"finledger/internal/textsource"
	"github.com/spf13/cobra"
)

var textCmd = &cobra.Command{
	Use:   "text [file]",
	Short: "Read the text and tables of a document with the configured text source",
	Long: `Read a document with the text source selected by TEXT_SOURCE and print
what the extraction heuristics will see. Useful to check why a quote, invoice
or payment candidate came out incomplete.`,
	Example: `  # Print the text of an agreement
  finledger text agreement.pdf

  # Include pages and tables as JSON
  finledger text invoice.pdf --json -o invoice-text.json`,
	Args: cobra.ExactArgs(1),
	RunE: runText,
}

// TextOutput is the JSON form of an extracted document.
type TextOutput struct {
	FileName           string       `json:"file_name"`
	Pages              int          `json:"pages"`
	Text               string       `json:"text"`
	Tables             [][][]string `json:"tables,omitempty"`
	ProcessedAt        time.Time    `json:"processed_at"`
	ProcessingDuration string       `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(textCmd)

	textCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	textCmd.Flags().Bool("json", false, "Output pages and tables as JSON")
}

func runText(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("text")

	path := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, true, log)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	doc, err := a.source.Extract(ctx, path)
	if err != nil {
		return handleSourceError(err, log)
	}

	if jsonOutput {
		return writeJSON(TextOutput{
			FileName:           filepath.Base(path),
			Pages:              len(doc.Pages),
			Text:               doc.Text(),
			Tables:             doc.Tables(),
			ProcessedAt:        time.Now(),
			ProcessingDuration: time.Since(start).String(),
		}, outputPath, log)
	}
	return writeOutput([]byte(renderDocument(doc)), outputPath, log)
}

// renderDocument prints each page followed by its tables, pipe separated.
func renderDocument(doc *textsource.Document) string {
	var b strings.Builder
	for i, page := range doc.Pages {
		if len(doc.Pages) > 1 {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "=== Page %d ===\n", page.Number)
		}
		b.WriteString(strings.TrimRight(page.Text, "\n"))
		b.WriteString("\n")
		for j, table := range page.Tables {
			fmt.Fprintf(&b, "\n--- Table %d ---\n", j+1)
			for _, row := range table {
				b.WriteString(strings.Join(row, " | "))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
