package exporter

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"telegram-voice-transcriber/internal/domain"
)

// xlsxHeaders — заголовки колонок листа транскрипта.
var xlsxHeaders = []string{"Date", "Time", "Sender", "Type", "Content", "Message ID"}

// XLSXExporter пишет записи транскрипта в книгу Excel — по строке на запись,
// в том же хронологическом порядке, что и Markdown-экспорт.
type XLSXExporter struct {
	chatTitle string
	location  *time.Location
}

// NewXLSXExporter создает экспортёр XLSX.
func NewXLSXExporter(chatTitle string, location *time.Location) *XLSXExporter {
	if location == nil {
		location = time.UTC
	}
	return &XLSXExporter{chatTitle: chatTitle, location: location}
}

// Export сохраняет книгу по указанному пути.
func (e *XLSXExporter) Export(entries []domain.TranscriptEntry, targetPath string) error {
	sorted := make([]domain.TranscriptEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	for i, header := range xlsxHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell: %w", err)
		}
	}

	for row, entry := range sorted {
		localized := entry.Timestamp.In(e.location)
		values := []interface{}{
			localized.Format("2006-01-02"),
			localized.Format("15:04"),
			entry.SenderDisplay,
			string(entry.Type),
			entry.Content,
			entry.MessageID,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to set cell: %w", err)
			}
		}
	}

	if err := f.SaveAs(targetPath); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", targetPath, err)
	}

	return nil
}
