package cmd

import (
	"fmt"
	"os"

	"finledger/internal/logger"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "finledger",
	Short: "finledger - quote, invoice and payment reconciliation per business unit",
	Long: `finledger keeps a reconciliation ledger for each business unit: quotes
(scopes of work from client agreements), invoice lines billed against those
quotes, and payments allocated across them.

Documents are read with the configured text source, candidates are reviewed,
and every committed change is written to the ledger store together with a
rendered ledger view. Attached documents are kept in the document vault.

Configuration is read from the environment (and a .env file):
  LEDGER_STORE    - excel (default) or sheets
  LEDGER_FILE     - workbook path for the excel store
  GOOGLE_SHEET_URL - spreadsheet for the sheets store
  VAULT_BACKEND   - local (default) or gcs
  TEXT_SOURCE     - plain (default), documentai or vision`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("finledger executed")

		fmt.Println("Welcome to finledger!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("unit", "u", os.Getenv("BUSINESS_UNIT"), "Business unit to work on (default $BUSINESS_UNIT)")
	rootCmd.PersistentFlags().Int("timeout", 120, "Timeout in seconds")
}

// unitFlag returns the selected business unit.
func unitFlag(cmd *cobra.Command) (string, error) {
	unit, _ := cmd.Flags().GetString("unit")
	if unit == "" {
		return "", fmt.Errorf("a business unit is required: pass --unit or set BUSINESS_UNIT")
	}
	return unit, nil
}

func timeoutFlag(cmd *cobra.Command) int {
	timeout, _ := cmd.Flags().GetInt("timeout")
	if timeout <= 0 {
		timeout = 120
	}
	return timeout
}
