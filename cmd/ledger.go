package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"finledger/internal/ledgerview"
	"finledger/internal/logger"
	"finledger/internal/store"
	"finledger/pkg/models"
	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show the reconciliation ledger of a business unit",
}

var ledgerViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the ledger grouped by quote with per-invoice subtotals",
	Args:  cobra.NoArgs,
	RunE:  runLedgerView,
}

var ledgerOverviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Print quoted, billed, collected and outstanding totals as JSON",
	Args:  cobra.NoArgs,
	RunE:  runLedgerOverview,
}

var ledgerComplianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "List the documents attached to every payment allocation",
	Args:  cobra.NoArgs,
	RunE:  runLedgerCompliance,
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export [xlsx-file]",
	Short: "Write the unit's records and ledger view to an Excel workbook",
	Long: `Write the unit's records and the rendered ledger view to an Excel workbook.
Other units already in the target workbook are kept.`,
	Example: `  finledger ledger export acme-ledger.xlsx --unit Acme`,
	Args:    cobra.ExactArgs(1),
	RunE:    runLedgerExport,
}

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "List the business units with stored records",
	Args:  cobra.NoArgs,
	RunE:  runUnits,
}

func init() {
	rootCmd.AddCommand(ledgerCmd, unitsCmd)
	ledgerCmd.AddCommand(ledgerViewCmd, ledgerOverviewCmd, ledgerComplianceCmd, ledgerExportCmd)

	ledgerOverviewCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ledgerComplianceCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runLedgerView(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ledger-view")

	unit, err := unitFlag(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, false, log)
	if err != nil {
		return err
	}
	defer a.Close()

	rows := a.service.LedgerView(ctx, unit)
	if len(rows) == 0 {
		fmt.Printf("No records in %s\n", unit)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(ledgerview.Columns, "\t"))
	for _, cells := range ledgerview.Table(rows) {
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func runLedgerOverview(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ledger-overview")

	unit, err := unitFlag(cmd)
	if err != nil {
		return err
	}
	outputPath, _ := cmd.Flags().GetString("output")

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, false, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return writeJSON(a.service.Overview(ctx, unit), outputPath, log)
}

func runLedgerCompliance(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ledger-compliance")

	unit, err := unitFlag(cmd)
	if err != nil {
		return err
	}
	outputPath, _ := cmd.Flags().GetString("output")

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, false, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return writeJSON(a.service.Compliance(ctx, unit), outputPath, log)
}

func runLedgerExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ledger-export")

	unit, err := unitFlag(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, false, log)
	if err != nil {
		return err
	}
	defer a.Close()

	l := a.service.Ledger(ctx, unit)
	set := &models.RecordSet{
		Quotes:       l.Quotes(),
		InvoiceLines: l.Lines(),
		Payments:     l.Payments(),
	}

	target := store.NewExcelRepository(args[0])
	if err := target.Save(ctx, unit, set); err != nil {
		return handleCommitError(err, log)
	}
	fmt.Printf("Exported %d quotes, %d invoice lines and %d payments of %s to %s\n",
		len(set.Quotes), len(set.InvoiceLines), len(set.Payments), unit, target.Path())
	return nil
}

func runUnits(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("units")

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, false, log)
	if err != nil {
		return err
	}
	defer a.Close()

	units, err := a.service.BusinessUnits(ctx)
	if err != nil {
		return fmt.Errorf("failed to list business units: %w", err)
	}
	for _, u := range units {
		fmt.Println(u)
	}
	return nil
}
