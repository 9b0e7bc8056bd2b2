package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"finledger/internal/extract"
	"finledger/internal/logger"
	"finledger/internal/textsource"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var invoiceScanCmd = &cobra.Command{
	Use:   "scan [folder]",
	Short: "Extract every invoice in a folder in parallel",
	Long: `Extract all readable documents in a folder (recursively) with a pool of
parallel workers and print one status line per file. With --templates a
mapping file is written for every invoice, ready for review and 'invoice map'.

The number of workers is read from BATCH_WORKERS (default 12).`,
	Example: `  finledger invoice scan ./invoices
  finledger invoice scan ./invoices --templates ./mappings -o scan.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoiceScan,
}

// ScanResult is the outcome for one file of a folder scan.
type ScanResult struct {
	Index    int                       `json:"-"`
	Filename string                    `json:"filename"`
	Status   string                    `json:"status"`
	Error    string                    `json:"error,omitempty"`
	Invoice  *extract.InvoiceCandidate `json:"invoice,omitempty"`
	Template string                    `json:"template,omitempty"`
}

// scanJob is one file queued for a worker.
type scanJob struct {
	FilePath string
	Index    int
}

const (
	scanSuccess = "success"
	scanWarning = "warning"
	scanError   = "error"
)

func init() {
	invoiceCmd.AddCommand(invoiceScanCmd)

	invoiceScanCmd.Flags().StringP("output", "o", "", "Write all results as JSON to this file")
	invoiceScanCmd.Flags().String("templates", "", "Directory for mapping file templates")
	invoiceScanCmd.Flags().Bool("no-completion", false, "Do not complete missing fields with OpenAI")
	invoiceScanCmd.Flags().Bool("verbose", false, "Show detailed processing information")
}

func runInvoiceScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice-scan")

	folderPath := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	templateDir, _ := cmd.Flags().GetString("templates")
	noCompletion, _ := cmd.Flags().GetBool("no-completion")
	verbose, _ := cmd.Flags().GetBool("verbose")

	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("folder not found: %s", folderPath)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}
	if templateDir != "" {
		if err := os.MkdirAll(templateDir, 0755); err != nil {
			return fmt.Errorf("failed to create template directory: %w", err)
		}
	}

	files, err := findDocuments(folderPath)
	if err != nil {
		return fmt.Errorf("failed to find documents: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No readable documents found in the folder.")
		return nil
	}

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd)*len(files), log)
	defer cancel()

	a, err := newApp(ctx, true, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var completer *extract.Completer
	if !noCompletion {
		completer = a.completer()
	}

	numWorkers := getNumWorkers()
	log.Info().
		Str("folder", folderPath).
		Int("files", len(files)).
		Int("workers", numWorkers).
		Msg("Starting invoice scan")
	fmt.Printf("Processing %d documents with %d parallel workers...\n\n", len(files), numWorkers)

	process := func(ctx context.Context, path string) ScanResult {
		return scanFile(ctx, a.source, completer, path, templateDir, log, verbose)
	}
	results := scanInParallel(ctx, files, numWorkers, process, log)

	var success, warning, failed int
	for _, r := range results {
		switch r.Status {
		case scanSuccess:
			success++
		case scanWarning:
			warning++
		default:
			failed++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 RESULT")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Complete: %d\n", success)
	if warning > 0 {
		fmt.Printf("Needs review: %d\n", warning)
	}
	if failed > 0 {
		fmt.Printf("Failed: %d\n", failed)
	}

	if outputPath != "" {
		return writeJSON(results, outputPath, log)
	}
	return nil
}

// findDocuments lists the readable files under root in lexical order.
func findDocuments(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && textsource.Readable(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// getNumWorkers reads BATCH_WORKERS, defaulting to 12.
func getNumWorkers() int {
	if workers := os.Getenv("BATCH_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			return n
		}
	}
	return 12
}

func scanFile(ctx context.Context, src textsource.Source, completer *extract.Completer, path, templateDir string, log zerolog.Logger, verbose bool) ScanResult {
	fileLog := log.With().Str("file", path).Logger()
	if !verbose {
		fileLog = fileLog.Level(zerolog.WarnLevel)
	}

	candidate, err := extractInvoice(ctx, src, completer, path, fileLog)
	if err != nil {
		return ScanResult{Status: scanError, Error: err.Error()}
	}

	result := ScanResult{Status: scanSuccess, Invoice: &candidate}
	if len(candidate.Defaults) > 0 || len(candidate.Warnings) > 0 {
		result.Status = scanWarning
	}

	if templateDir != "" {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".mapping.json"
		target := filepath.Join(templateDir, name)
		if err := writeJSON(mappingTemplate(candidate), target, fileLog); err != nil {
			result.Status = scanError
			result.Error = err.Error()
			return result
		}
		result.Template = target
	}
	return result
}

// scanInParallel runs process over files with a fixed pool of workers. Results
// keep the order of files.
func scanInParallel(ctx context.Context, files []string, numWorkers int, process func(context.Context, string) ScanResult, log zerolog.Logger) []ScanResult {
	jobs := make(chan scanJob, len(files))
	results := make([]ScanResult, len(files))

	var processedCount int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				log.Debug().
					Int("worker", workerID).
					Str("file", job.FilePath).
					Int("index", job.Index+1).
					Msg("Worker processing document")

				var result ScanResult
				if err := ctx.Err(); err != nil {
					result = ScanResult{Status: scanError, Error: err.Error()}
				} else {
					result = process(ctx, job.FilePath)
				}
				result.Index = job.Index
				result.Filename = filepath.Base(job.FilePath)
				results[job.Index] = result

				mu.Lock()
				processedCount++
				fmt.Printf("[%d/%d] %s - %s", processedCount, len(files), result.Filename, getStatusEmoji(result.Status))
				if result.Error != "" {
					fmt.Printf(" (%s)", result.Error)
				} else if result.Invoice != nil {
					fmt.Printf(" (%s, %s)", result.Invoice.InvoiceNo, result.Invoice.Total.StringFixed(2))
				}
				fmt.Println()
				mu.Unlock()
			}
		}(w)
	}

	for i, path := range files {
		jobs <- scanJob{FilePath: path, Index: i}
	}
	close(jobs)

	wg.Wait()
	return results
}

// getStatusEmoji returns an emoji for the processing status
func getStatusEmoji(status string) string {
	switch status {
	case scanSuccess:
		return "✅"
	case scanWarning:
		return "⚠️"
	case scanError:
		return "❌"
	default:
		return "❓"
	}
}
