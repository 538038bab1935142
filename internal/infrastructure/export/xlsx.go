package export

import (
	"fmt"
	"io"

	"github.com/garyjia/billing-engine/internal/application/port"
	"github.com/garyjia/billing-engine/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetName  = "Invoice"
	dateLayout = "2006-01-02"

	// first row of the charge table
	chargeHeaderRow = 10
)

var chargeHeaders = []string{"Task ID", "Task", "Charge", "Type", "Status", "Bearer", "Amount", "Recoverable"}

// XLSXExporter renders a hydrated invoice as a single-sheet workbook:
// a header block with the invoice fields, then one row per charge.
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new XLSX exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// ContentType implements port.InvoiceExporter
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension implements port.InvoiceExporter
func (e *XLSXExporter) FileExtension() string {
	return "xlsx"
}

// Export writes the workbook to w
func (e *XLSXExporter) Export(details *entity.InvoiceDetails, w io.Writer) error {
	if details == nil || details.Invoice == nil {
		return fmt.Errorf("no invoice to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	e.writeHeader(f, details)
	row := e.writeCharges(f, details)

	e.setCell(f, fmt.Sprintf("F%d", row+1), "Recoverable total")
	e.setCell(f, fmt.Sprintf("H%d", row+1), details.RecoverableTotal.InexactFloat64())

	if style, err := f.NewStyle(&excelize.Style{NumFmt: 4}); err == nil {
		_ = f.SetCellStyle(sheetName, fmt.Sprintf("G%d", chargeHeaderRow+1), fmt.Sprintf("H%d", row+1), style)
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheetName, fmt.Sprintf("A%d", chargeHeaderRow), fmt.Sprintf("H%d", chargeHeaderRow), bold)
	}
	_ = f.SetColWidth(sheetName, "B", "C", 28)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Invoice exported",
		zap.String("internal_number", details.InternalNumber),
		zap.Int("task_groups", len(details.Groups)))
	return nil
}

func (e *XLSXExporter) writeHeader(f *excelize.File, details *entity.InvoiceDetails) {
	inv := details.Invoice

	e.setCell(f, "A1", "Invoice")
	e.setCell(f, "B1", inv.InternalNumber)
	e.setCell(f, "A2", "External number")
	if inv.ExternalNumber != nil {
		e.setCell(f, "B2", *inv.ExternalNumber)
	}
	e.setCell(f, "A3", "Status")
	e.setCell(f, "B3", string(inv.Status))
	e.setCell(f, "A4", "Invoice date")
	if inv.InvoiceDate != nil {
		e.setCell(f, "B4", inv.InvoiceDate.Format(dateLayout))
	}
	e.setCell(f, "A5", "Issued")
	if inv.IssuedAt != nil {
		e.setCell(f, "B5", inv.IssuedAt.Format(dateLayout))
	}
	e.setCell(f, "A6", "Paid")
	if inv.PaidAt != nil {
		e.setCell(f, "B6", inv.PaidAt.Format(dateLayout))
	}
	e.setCell(f, "A7", "Billed to")
	if details.Entity != nil {
		e.setCell(f, "B7", details.Entity.Name)
	}
	e.setCell(f, "A8", "Issued by")
	if details.CompanyProfile != nil {
		e.setCell(f, "B8", details.CompanyProfile.Name)
	}
}

// writeCharges fills the charge table and returns the last row written
func (e *XLSXExporter) writeCharges(f *excelize.File, details *entity.InvoiceDetails) int {
	for i, h := range chargeHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, chargeHeaderRow)
		e.setCell(f, cell, h)
	}

	row := chargeHeaderRow
	for _, group := range details.Groups {
		for _, c := range group.Charges {
			row++
			recoverable := 0.0
			if c.IsRecoverable() {
				recoverable = c.Amount.InexactFloat64()
			}
			values := []interface{}{
				group.TaskID, group.Title, c.Title, c.ChargeType, c.Status, c.Bearer,
				c.Amount.InexactFloat64(), recoverable,
			}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				e.setCell(f, cell, v)
			}
		}
	}
	return row
}

func (e *XLSXExporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

var _ port.InvoiceExporter = (*XLSXExporter)(nil)
