// Package export формирует выгрузки истории оплат в форматах XLSX и PDF.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/parking-ledger/internal/model"
)

// Поддерживаемые форматы выгрузки.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ErrUnknownFormat возвращается для неподдерживаемого формата выгрузки.
var ErrUnknownFormat = errors.New("unknown export format")

// Statement содержит данные для выгрузки истории одного автомобиля.
type Statement struct {
	Identity string
	History  model.History
	// Visits содержит строки стоянок, включая текущую незавершённую.
	Visits []string
}

// ContentType возвращает MIME-тип для формата выгрузки.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Build формирует выгрузку в указанном формате.
func Build(format string, stmt Statement) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatXLSX:
		return BuildXLSX(stmt)
	case FormatPDF:
		return BuildPDF(stmt)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// BuildPDF формирует историю оплат в виде PDF-документа.
func BuildPDF(stmt Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Parking History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Car: %s", stmt.Identity))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Payments: %.2f", stmt.History.TotalPayments))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Available Credits: %.2f", stmt.History.AvailableCredits))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(15, 6, "#", "1", 0, "C", false, 0, "")
	pdf.CellFormat(150, 6, "Parked Dates", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for i, line := range stmt.Visits {
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(150, 6, line, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildXLSX формирует историю оплат в виде книги Excel с листами summary и visits.
func BuildXLSX(stmt Statement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	visitsSheet := "visits"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(visitsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	_ = f.SetCellValue(summarySheet, "A1", "Parking History")
	_ = f.SetCellValue(summarySheet, "A3", "Car")
	_ = f.SetCellValue(summarySheet, "B3", stmt.Identity)
	_ = f.SetCellValue(summarySheet, "A4", "Total Payments")
	_ = f.SetCellValue(summarySheet, "B4", stmt.History.TotalPayments)
	_ = f.SetCellValue(summarySheet, "A5", "Available Credits")
	_ = f.SetCellValue(summarySheet, "B5", stmt.History.AvailableCredits)
	_ = f.SetCellValue(summarySheet, "A6", "Visits")
	_ = f.SetCellValue(summarySheet, "B6", len(stmt.Visits))

	_ = f.SetCellValue(visitsSheet, "A1", "#")
	_ = f.SetCellValue(visitsSheet, "B1", "Parked Dates")
	for i, line := range stmt.Visits {
		row := i + 2
		_ = f.SetCellValue(visitsSheet, fmt.Sprintf("A%d", row), i+1)
		_ = f.SetCellValue(visitsSheet, fmt.Sprintf("B%d", row), line)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
