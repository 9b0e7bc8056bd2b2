package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finledger/internal/ledgerview"
	"finledger/internal/logger"
	"finledger/pkg/models"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const backendExcel = "excel"

// Row fills of the Master_Ledger_View sheet.
var viewFills = map[ledgerview.Kind]string{
	ledgerview.KindQuote:      "E3F2FD",
	ledgerview.KindInvoice:    "FFF9C4",
	ledgerview.KindPayment:    "E8F5E9",
	ledgerview.KindSubSummary: "F5F5F5",
	ledgerview.KindSummary:    "F5F5F5",
	ledgerview.KindGrandTotal: "212121",
}

// ExcelRepository keeps all units in one workbook on local disk.
type ExcelRepository struct {
	path string
	now  func() time.Time
	log  zerolog.Logger
	mu   sync.Mutex
}

// NewExcelRepository creates a repository backed by the workbook at path.
// The file is created on first save.
func NewExcelRepository(path string) *ExcelRepository {
	return &ExcelRepository{
		path: path,
		now:  time.Now,
		log:  logger.WithComponent("excel-store"),
	}
}

// Path returns the workbook location.
func (r *ExcelRepository) Path() string {
	return r.path
}

// Load reads the unit's records. A missing workbook yields an empty set.
func (r *ExcelRepository) Load(ctx context.Context, unit string) (*models.RecordSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, _, err := r.readAll(ctx)
	if err != nil {
		return nil, WrapStorageError(backendExcel, "load", unit, err)
	}
	return selectUnit(all, unit), nil
}

// BusinessUnits lists the units present in the workbook.
func (r *ExcelRepository) BusinessUnits(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, _, err := r.readAll(ctx)
	if err != nil {
		return nil, WrapStorageError(backendExcel, "list units", "", err)
	}
	return businessUnits(all), nil
}

// Save replaces the unit's records, keeps every other unit, and rewrites the
// Master_Ledger_View sheet for the saved unit. The workbook is replaced
// atomically so a failed save leaves the previous file intact.
func (r *ExcelRepository) Save(ctx context.Context, unit string, set *models.RecordSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, skipped, err := r.readAll(ctx)
	if err != nil {
		return WrapStorageError(backendExcel, "save", unit, err)
	}
	if err := guardSkipped(skipped); err != nil {
		return WrapStorageError(backendExcel, "save", unit, err)
	}
	merged := replaceUnit(all, unit, set)
	saved := selectUnit(merged, unit)

	f := excelize.NewFile()
	defer f.Close()

	if err := writeRecordSheets(f, merged); err != nil {
		return WrapStorageError(backendExcel, "save", unit, err)
	}
	if err := writeViewSheet(f, buildView(unit, merged, r.now())); err != nil {
		return WrapStorageError(backendExcel, "save", unit, err)
	}
	if err := r.replaceFile(f); err != nil {
		return WrapStorageError(backendExcel, "save", unit, err)
	}

	r.log.Info().
		Str("unit", unit).
		Str("path", r.path).
		Int("quotes", len(saved.Quotes)).
		Int("invoice_lines", len(saved.InvoiceLines)).
		Int("payments", len(saved.Payments)).
		Msg("Workbook saved")
	return nil
}

// readAll returns every stored record and the number of rows that could not
// be decoded.
func (r *ExcelRepository) readAll(ctx context.Context) (*models.RecordSet, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if _, err := os.Stat(r.path); errors.Is(err, os.ErrNotExist) {
		return &models.RecordSet{}, 0, nil
	}

	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open %s: %v", ErrUnavailable, r.path, err)
	}
	defer f.Close()

	sheets := map[string]sheetRows{}
	for _, name := range recordSheets {
		idx, err := f.GetSheetIndex(name)
		if err != nil || idx < 0 {
			continue
		}
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, 0, fmt.Errorf("read sheet %s: %w", name, err)
		}
		sheets[name] = rows
	}

	return decodeRecords(
		sheets[models.SheetQuotes],
		sheets[models.SheetInvoices],
		sheets[models.SheetPayments],
		r.log,
	)
}

func (r *ExcelRepository) replaceFile(f *excelize.File) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".finledger-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close workbook: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace workbook: %w", err)
	}
	return nil
}

func writeRecordSheets(f *excelize.File, set *models.RecordSet) error {
	encoded := encodeRecords(set)
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E6E6E6"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, name := range recordSheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeRows(f, name, encoded[name]); err != nil {
			return err
		}
		lastCol, _ := excelize.ColumnNumberToName(len(encoded[name][0]))
		if err := f.SetCellStyle(name, "A1", lastCol+"1", headerStyle); err != nil {
			return fmt.Errorf("style header of %s: %w", name, err)
		}
		if err := f.SetColWidth(name, "A", lastCol, 18); err != nil {
			return fmt.Errorf("set widths of %s: %w", name, err)
		}
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// viewStyles creates and caches cell styles of the view sheet.
type viewStyles struct {
	f     *excelize.File
	cache map[string]int
}

func (s *viewStyles) get(kind ledgerview.Kind, fontColor string) (int, error) {
	fill, ok := viewFills[kind]
	if !ok {
		return 0, nil
	}
	bold := kind == ledgerview.KindQuote || kind == ledgerview.KindSummary || kind == ledgerview.KindGrandTotal
	if kind == ledgerview.KindGrandTotal && fontColor == "" {
		fontColor = "FFFFFF"
	}

	key := fmt.Sprintf("%d/%s", kind, fontColor)
	if id, ok := s.cache[key]; ok {
		return id, nil
	}
	font := &excelize.Font{Bold: bold}
	if fontColor != "" {
		font.Color = fontColor
	}
	id, err := s.f.NewStyle(&excelize.Style{
		Font: font,
		Fill: excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
	})
	if err != nil {
		return 0, err
	}
	s.cache[key] = id
	return id, nil
}

func statusColor(status string) string {
	switch status {
	case ledgerview.StatusOutstanding:
		return "C62828"
	case ledgerview.StatusCleared, ledgerview.StatusAllClear:
		return "2E7D32"
	}
	return ""
}

func writeViewSheet(f *excelize.File, rows []viewRow) error {
	const sheet = models.SheetLedger

	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, viewHeader())
	for _, r := range rows {
		values = append(values, r.values)
	}
	if err := writeRows(f, sheet, values); err != nil {
		return err
	}

	lastCol, _ := excelize.ColumnNumberToName(len(ledgerview.Columns))
	statusCol := lastCol
	styles := &viewStyles{f: f, cache: map[string]int{}}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, r := range rows {
		line := i + 2
		rowStyle, err := styles.get(r.kind, "")
		if err != nil {
			return fmt.Errorf("create row style: %w", err)
		}
		if rowStyle != 0 {
			if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", line), fmt.Sprintf("%s%d", lastCol, line), rowStyle); err != nil {
				return err
			}
		}
		if color := statusColor(r.status); color != "" {
			statusStyle, err := styles.get(r.kind, color)
			if err != nil {
				return fmt.Errorf("create status style: %w", err)
			}
			cell := fmt.Sprintf("%s%d", statusCol, line)
			if err := f.SetCellStyle(sheet, cell, cell, statusStyle); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "C", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "D", "D", 60); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "E", lastCol, 14)
}
