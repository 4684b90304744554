package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	occupancyapp "occupancy-cloud/internal/occupancy/application"
)

// BuildOccupancyPDF renders the portfolio occupancy summary as a PDF.
func BuildOccupancyPDF(summary *occupancyapp.Summary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Room Occupancy Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", summary.ComputedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Rooms: %d", summary.Rooms))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Mean Occupancy: %.1f%%", summary.Mean))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Red: %d  Amber: %d  Green: %d", summary.Red, summary.Amber, summary.Green))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Room", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Occupancy (%)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Band", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Updated", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, room := range summary.PerRoom {
		name := room.RoomName
		if name == "" {
			name = room.RoomID
		}
		updated := ""
		if !room.UpdatedAt.IsZero() {
			updated = room.UpdatedAt.Format("2006-01-02 15:04")
		}
		pdf.CellFormat(70, 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.1f", room.Percentage), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, string(room.Band), "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, updated, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
