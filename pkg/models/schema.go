package models

// SchemaVersion is the current record layout. Version 2 added Business to payments.
const SchemaVersion = 2

// Column describes one persisted field. Optional columns missing from stored
// data are filled with Default when read.
type Column struct {
	Name     string
	Required bool
	Default  string
}

// Sheet names of the persisted record sets.
const (
	SheetQuotes   = "Quotations"
	SheetInvoices = "Invoices"
	SheetPayments = "Payments"
	SheetLedger   = "Master_Ledger_View"
)

var QuoteColumns = []Column{
	{Name: "Quote_ID", Required: true},
	{Name: "Date", Required: true},
	{Name: "Business", Required: true},
	{Name: "Project_Name", Required: true},
	{Name: "Total_Value", Required: true},
	{Name: "Agreement_File", Default: NoDocument},
	{Name: "Status", Default: string(QuoteOpen)},
}

var InvoiceColumns = []Column{
	{Name: "Invoice_No", Required: true},
	{Name: "Quote_Ref", Required: true},
	{Name: "Date", Required: true},
	{Name: "Business", Required: true},
	{Name: "Split_Amount", Required: true},
	{Name: "Description", Default: ""},
	{Name: "Invoice_File", Default: NoDocument},
	{Name: "Declaration_File", Default: NoDocument},
}

var PaymentColumns = []Column{
	{Name: "Payment_ID", Required: true},
	{Name: "Parent_Payment_ID", Default: ""},
	{Name: "Invoice_Ref", Required: true},
	{Name: "Quote_Ref", Default: ""},
	{Name: "Business", Default: ""}, // v1 rows: resolved through Invoice_Ref
	{Name: "Date", Required: true},
	{Name: "Amount", Required: true},
	{Name: "Proof_File", Default: NoDocument},
	{Name: "Form_C_File", Default: NoDocument},
	{Name: "Payment_Decl_File", Default: NoDocument},
}

// ColumnNames lists the header row for a column set.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
