package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"reconboard/internal/domain"
)

const exportSheet = "对账结果"

// ExportFileName is the download name used by the dashboard.
const ExportFileName = "对账结果导出"

var exportHeader = []string{"订单号", "平台", "店铺", "应收金额", "实收金额", "对账状态", "差额", "日期"}

func exportRow(r domain.OrderRecord) []string {
	return []string{
		r.OrderID,
		string(r.Platform),
		r.ShopName,
		formatNumber(r.ReceivableAmount),
		formatNumber(r.ActualAmount),
		string(r.Status),
		formatNumber(r.Diff),
		r.Date,
	}
}

// WriteCSV writes records as UTF-8 CSV with the dashboard's header row.
// Fields containing commas or quotes are quoted.
func WriteCSV(w io.Writer, records []domain.OrderRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(exportRow(record)); err != nil {
			return fmt.Errorf("write csv row %s: %w", record.OrderID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func WriteXLSX(w io.Writer, records []domain.OrderRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, 0, len(exportHeader))
	for _, title := range exportHeader {
		header = append(header, title)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name for row %d: %w", i+2, err)
		}
		row := []any{
			r.OrderID,
			string(r.Platform),
			r.ShopName,
			r.ReceivableAmount,
			r.ActualAmount,
			string(r.Status),
			r.Diff,
			r.Date,
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %s: %w", r.OrderID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
