package store

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"finledger/internal/ledgerview"
	"finledger/internal/logger"
	"finledger/pkg/models"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const backendSheets = "sheets"

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// SheetsRepository keeps all units in one Google spreadsheet.
type SheetsRepository struct {
	service       *sheets.Service
	spreadsheetID string
	now           func() time.Time
	log           zerolog.Logger
	mu            sync.Mutex
}

// NewSheetsRepository connects to the spreadsheet at sheetURL with service
// account credentials from GOOGLE_APPLICATION_CREDENTIALS (a file) or
// GOOGLE_CREDENTIALS (inline JSON).
func NewSheetsRepository(ctx context.Context, sheetURL string) (*SheetsRepository, error) {
	const op = "NewSheetsRepository"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	service, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return NewSheetsRepositoryWithService(service, spreadsheetID), nil
}

// NewSheetsRepositoryWithService uses an existing Sheets client.
func NewSheetsRepositoryWithService(service *sheets.Service, spreadsheetID string) *SheetsRepository {
	log := logger.WithComponent("sheets-store")
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Using spreadsheet")
	return &SheetsRepository{
		service:       service,
		spreadsheetID: spreadsheetID,
		now:           time.Now,
		log:           log,
	}
}

func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// Load reads the unit's records. Missing sheets count as empty.
func (r *SheetsRepository) Load(ctx context.Context, unit string) (*models.RecordSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, _, _, err := r.readAll(ctx)
	if err != nil {
		return nil, WrapStorageError(backendSheets, "load", unit, err)
	}
	return selectUnit(all, unit), nil
}

// BusinessUnits lists the units present in the spreadsheet.
func (r *SheetsRepository) BusinessUnits(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, _, _, err := r.readAll(ctx)
	if err != nil {
		return nil, WrapStorageError(backendSheets, "list units", "", err)
	}
	return businessUnits(all), nil
}

// Save replaces the unit's rows in every record sheet and rewrites the
// Master_Ledger_View sheet for the unit.
func (r *SheetsRepository) Save(ctx context.Context, unit string, set *models.RecordSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, sheetIDs, skipped, err := r.readAll(ctx)
	if err != nil {
		return WrapStorageError(backendSheets, "save", unit, err)
	}
	if err := guardSkipped(skipped); err != nil {
		return WrapStorageError(backendSheets, "save", unit, err)
	}
	merged := replaceUnit(all, unit, set)
	saved := selectUnit(merged, unit)
	view := buildView(unit, merged, r.now())

	for _, name := range append(append([]string{}, recordSheets...), models.SheetLedger) {
		if _, ok := sheetIDs[name]; ok {
			continue
		}
		id, err := r.addSheet(ctx, name)
		if err != nil {
			return WrapStorageError(backendSheets, "save", unit, err)
		}
		sheetIDs[name] = id
	}

	encoded := encodeRecords(merged)
	viewValues := [][]interface{}{viewHeader()}
	for _, row := range view {
		viewValues = append(viewValues, row.values)
	}
	encoded[models.SheetLedger] = viewValues

	if err := r.replaceValues(ctx, encoded); err != nil {
		return WrapStorageError(backendSheets, "save", unit, err)
	}

	if err := r.format(ctx, sheetIDs, encoded, view); err != nil {
		r.log.Warn().Err(err).Msg("Failed to format sheets, continuing anyway")
	}

	r.log.Info().
		Str("unit", unit).
		Int("quotes", len(saved.Quotes)).
		Int("invoice_lines", len(saved.InvoiceLines)).
		Int("payments", len(saved.Payments)).
		Msg("Spreadsheet saved")
	return nil
}

// readAll returns every stored record, the ids of the existing sheets and the
// number of rows that could not be decoded.
func (r *SheetsRepository) readAll(ctx context.Context) (*models.RecordSet, map[string]int64, int, error) {
	spreadsheet, err := r.service.Spreadsheets.Get(r.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: get spreadsheet: %v", ErrUnavailable, err)
	}

	sheetIDs := map[string]int64{}
	for _, s := range spreadsheet.Sheets {
		sheetIDs[s.Properties.Title] = s.Properties.SheetId
	}

	var ranges []string
	for _, name := range recordSheets {
		if _, ok := sheetIDs[name]; ok {
			ranges = append(ranges, name)
		}
	}

	content := map[string]sheetRows{}
	if len(ranges) > 0 {
		resp, err := r.service.Spreadsheets.Values.BatchGet(r.spreadsheetID).
			Ranges(ranges...).
			ValueRenderOption("UNFORMATTED_VALUE").
			Context(ctx).Do()
		if err != nil {
			return nil, nil, 0, fmt.Errorf("read sheets: %w", err)
		}
		for i, vr := range resp.ValueRanges {
			if i < len(ranges) {
				content[ranges[i]] = toStringRows(vr.Values)
			}
		}
	}

	r.log.Debug().
		Int("quotes", len(content[models.SheetQuotes])).
		Int("invoices", len(content[models.SheetInvoices])).
		Int("payments", len(content[models.SheetPayments])).
		Msg("Read spreadsheet rows")

	set, skipped, err := decodeRecords(
		content[models.SheetQuotes],
		content[models.SheetInvoices],
		content[models.SheetPayments],
		r.log,
	)
	if err != nil {
		return nil, nil, 0, err
	}
	return set, sheetIDs, skipped, nil
}

func (r *SheetsRepository) addSheet(ctx context.Context, name string) (int64, error) {
	r.log.Info().Str("sheet", name).Msg("Creating new sheet")

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}}},
		},
	}
	resp, err := r.service.Spreadsheets.BatchUpdate(r.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("create sheet %s: %w", name, err)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (r *SheetsRepository) replaceValues(ctx context.Context, content map[string][][]interface{}) error {
	var names []string
	for name := range content {
		names = append(names, name)
	}

	if _, err := r.service.Spreadsheets.Values.BatchClear(r.spreadsheetID, &sheets.BatchClearValuesRequest{
		Ranges: names,
	}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheets: %w", err)
	}

	var data []*sheets.ValueRange
	for _, name := range names {
		data = append(data, &sheets.ValueRange{Range: name + "!A1", Values: content[name]})
	}
	// RAW keeps ISO dates and document names as plain text.
	if _, err := r.service.Spreadsheets.Values.BatchUpdate(r.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write sheets: %w", err)
	}
	return nil
}

// format styles the header rows and colours the view rows by kind.
func (r *SheetsRepository) format(ctx context.Context, sheetIDs map[string]int64, content map[string][][]interface{}, view []viewRow) error {
	var requests []*sheets.Request
	for name, rows := range content {
		if len(rows) == 0 {
			continue
		}
		width := int64(len(rows[0]))
		requests = append(requests,
			repeatFormat(sheetIDs[name], 0, 1, width, &sheets.CellFormat{
				TextFormat:      &sheets.TextFormat{Bold: true},
				BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
			}),
			&sheets.Request{
				AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
					Dimensions: &sheets.DimensionRange{
						SheetId:    sheetIDs[name],
						Dimension:  "COLUMNS",
						StartIndex: 0,
						EndIndex:   width,
					},
				},
			},
		)
	}

	viewID := sheetIDs[models.SheetLedger]
	width := int64(len(ledgerview.Columns))
	requests = append(requests, repeatFormat(viewID, 1, int64(len(view))+1, width, &sheets.CellFormat{}))
	for i, row := range view {
		fill, ok := viewFills[row.kind]
		if !ok {
			continue
		}
		line := int64(i + 1)
		text := &sheets.TextFormat{Bold: row.kind == ledgerview.KindQuote || row.kind == ledgerview.KindSummary || row.kind == ledgerview.KindGrandTotal}
		if row.kind == ledgerview.KindGrandTotal {
			text.ForegroundColor = hexColor("FFFFFF")
		}
		requests = append(requests, repeatFormat(viewID, line, line+1, width, &sheets.CellFormat{
			BackgroundColor: hexColor(fill),
			TextFormat:      text,
		}))
		if color := statusColor(row.status); color != "" {
			statusText := *text
			statusText.ForegroundColor = hexColor(color)
			requests = append(requests, &sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:          viewID,
						StartRowIndex:    line,
						EndRowIndex:      line + 1,
						StartColumnIndex: width - 1,
						EndColumnIndex:   width,
					},
					Cell:   &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{BackgroundColor: hexColor(fill), TextFormat: &statusText}},
					Fields: "userEnteredFormat(textFormat,backgroundColor)",
				},
			})
		}
	}

	_, err := r.service.Spreadsheets.BatchUpdate(r.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("format sheets: %w", err)
	}
	return nil
}

func repeatFormat(sheetID, startRow, endRow, width int64, format *sheets.CellFormat) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    startRow,
				EndRowIndex:      endRow,
				StartColumnIndex: 0,
				EndColumnIndex:   width,
			},
			Cell:   &sheets.CellData{UserEnteredFormat: format},
			Fields: "userEnteredFormat(textFormat,backgroundColor)",
		},
	}
}

// hexColor converts "RRGGBB" to a Sheets colour.
func hexColor(hex string) *sheets.Color {
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return &sheets.Color{}
	}
	return &sheets.Color{
		Red:   float64((v>>16)&0xFF) / 255,
		Green: float64((v>>8)&0xFF) / 255,
		Blue:  float64(v&0xFF) / 255,
	}
}

// toStringRows converts unformatted cell values into strings.
func toStringRows(values [][]interface{}) sheetRows {
	out := make(sheetRows, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			switch x := v.(type) {
			case nil:
			case string:
				cells[j] = x
			case float64:
				cells[j] = strconv.FormatFloat(x, 'f', -1, 64)
			case bool:
				cells[j] = strconv.FormatBool(x)
			default:
				cells[j] = fmt.Sprintf("%v", x)
			}
		}
		out[i] = cells
	}
	return out
}
