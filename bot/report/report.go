// Package report exports all feedback as an XLSX workbook and a CSV file,
// one row per feedback record joined with its author, newest first.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/m3rciful/relaybot/bot/store"
	"github.com/m3rciful/relaybot/core/telegram/sender"
)

const (
	SheetName  = "Feedback Report"
	timeLayout = "2006-01-02 15:04:05"
	filePrefix = "feedback_report_"
	stampFmt   = "20060102_150405"
)

// Columns is the header row of both exports.
var Columns = []string{"user_id", "username", "first_name", "last_name", "answers", "created_at"}

// Source provides the joined rows.
type Source interface {
	ReportRows(ctx context.Context) ([]store.ReportRow, error)
}

// Report is one generated pair of exports.
type Report struct {
	Stamp time.Time
	Rows  int
	XLSX  []byte
	CSV   []byte
}

// XLSXName returns the workbook file name.
func (r Report) XLSXName() string { return filePrefix + r.Stamp.Format(stampFmt) + ".xlsx" }

// CSVName returns the CSV file name.
func (r Report) CSVName() string { return filePrefix + r.Stamp.Format(stampFmt) + ".csv" }

// Documents returns both exports ready to be sent, workbook first.
func (r Report) Documents(xlsxCaption, csvCaption string) []sender.Document {
	return []sender.Document{
		{Name: r.XLSXName(), Caption: xlsxCaption, Content: r.XLSX},
		{Name: r.CSVName(), Caption: csvCaption, Content: r.CSV},
	}
}

// Generator builds reports from a Source.
type Generator struct {
	src Source
	now func() time.Time
}

// New returns a generator.
func New(src Source) *Generator {
	return &Generator{src: src, now: time.Now}
}

// Generate reads every row and renders both exports.
func (g *Generator) Generate(ctx context.Context) (Report, error) {
	rows, err := g.src.ReportRows(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("report: %w", err)
	}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, record(r))
	}
	xlsx, err := renderXLSX(records)
	if err != nil {
		return Report{}, err
	}
	csvData, err := renderCSV(records)
	if err != nil {
		return Report{}, err
	}
	return Report{Stamp: g.now(), Rows: len(rows), XLSX: xlsx, CSV: csvData}, nil
}

func record(r store.ReportRow) []string {
	return []string{
		strconv.FormatInt(r.UserID, 10),
		r.Username,
		r.FirstName,
		r.LastName,
		r.Answers,
		r.CreatedAt.UTC().Format(timeLayout),
	}
}

func renderXLSX(records [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("report: xlsx sheet: %w", err)
	}
	if err := setRow(f, 1, Columns); err != nil {
		return nil, err
	}
	for i, rec := range records {
		if err := setRow(f, i+2, rec); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("report: xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("report: xlsx cell: %w", err)
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(SheetName, cell, &vals); err != nil {
		return fmt.Errorf("report: xlsx row %d: %w", row, err)
	}
	return nil
}

func renderCSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("report: csv: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("report: csv: %w", err)
	}
	return buf.Bytes(), nil
}
