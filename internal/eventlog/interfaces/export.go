package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	eventlog "occupancy-cloud/internal/eventlog/domain"
)

// BuildEventsCSV renders a device's event log as CSV.
func BuildEventsCSV(events []eventlog.Event) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"event_id", "device_id", "state", "created_at"}); err != nil {
		return nil, err
	}
	for _, event := range events {
		record := []string{
			event.ID,
			event.DeviceID,
			string(event.State),
			event.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildEventsXLSX renders a device's event log as a workbook with a summary
// sheet and an events sheet.
func BuildEventsXLSX(deviceID string, window eventlog.Window, events []eventlog.Event) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	eventsSheet := "events"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(eventsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Device Event Log")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", deviceID)
	_ = f.SetCellValue(summarySheet, "A4", "From")
	_ = f.SetCellValue(summarySheet, "B4", window.From.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "To")
	_ = f.SetCellValue(summarySheet, "B5", window.To.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Working Days Only")
	_ = f.SetCellValue(summarySheet, "B6", window.ExcludeWeekends)
	_ = f.SetCellValue(summarySheet, "A7", "Events")
	_ = f.SetCellValue(summarySheet, "B7", len(events))

	_ = f.SetCellValue(eventsSheet, "A1", "Event ID")
	_ = f.SetCellValue(eventsSheet, "B1", "State")
	_ = f.SetCellValue(eventsSheet, "C1", "Created At")
	for i, event := range events {
		row := i + 2
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("A%d", row), event.ID)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("B%d", row), string(event.State))
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("C%d", row), event.CreatedAt.UTC().Format(time.RFC3339))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
