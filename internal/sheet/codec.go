// Package sheet converts product records to and from spreadsheets.
//
// Exports are written as .xlsx (excelize) or .csv. Imports accept either
// format, picked by file extension. An import either returns every row or
// fails; it never returns a partial result.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
)

var (
	ErrUnknownColumn     = errors.New("sheet: unknown column")
	ErrNoColumns         = errors.New("sheet: no columns selected")
	ErrUnsupportedFormat = errors.New("sheet: unsupported file format")
	ErrEmptyFile         = errors.New("sheet: file has no header row")
	ErrMissingKeyColumn  = errors.New("sheet: file needs an ID or Title column")
	ErrTooManyRows       = errors.New("sheet: too many rows")
)

// ProgressFunc is called after each record is written.
type ProgressFunc func(current, total int)

// Codec is the spreadsheet collaborator used by bulk actions.
type Codec interface {
	Export(w io.Writer, records []catalog.Product, columns []string, onProgress ProgressFunc) error
	Import(name string, r io.Reader) ([]catalog.Product, error)
}

// Formatter is a Codec that can export in another format.
type Formatter interface {
	Codec
	ForFormat(f Format) Codec
}

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat reads a format name; empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Sheets is the excelize/encoding/csv Codec.
type Sheets struct {
	// Format used by Export. Defaults to xlsx.
	Format Format

	// SheetName of the exported worksheet.
	SheetName string

	// MaxRows caps imports; 0 means unlimited.
	MaxRows int
}

var _ Formatter = (*Sheets)(nil)

// New returns an xlsx codec writing to a sheet named "Products".
func New() *Sheets {
	return &Sheets{Format: FormatXLSX, SheetName: "Products", MaxRows: 10000}
}

// ForFormat returns a copy of s that exports as f.
func (s *Sheets) ForFormat(f Format) Codec {
	c := *s
	c.Format = f
	return &c
}

// Export writes records with the given columns, in order, to w.
func (s *Sheets) Export(w io.Writer, records []catalog.Product, columns []string, onProgress ProgressFunc) error {
	if len(columns) == 0 {
		return ErrNoColumns
	}
	cols, err := Resolve(columns)
	if err != nil {
		return err
	}
	if onProgress == nil {
		onProgress = func(int, int) {}
	}

	if s.Format == FormatCSV {
		return s.exportCSV(w, records, cols, onProgress)
	}
	return s.exportXLSX(w, records, cols, onProgress)
}

func (s *Sheets) exportXLSX(w io.Writer, records []catalog.Product, cols []Column, onProgress ProgressFunc) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := s.SheetName
	if sheet == "" {
		sheet = "Products"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F4E78"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	widths := make([]int, len(cols))
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.Label
		widths[i] = len([]rune(c.Label))
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	total := len(records)
	for i, p := range records {
		row := make([]any, len(cols))
		for j, c := range cols {
			v := c.get(p)
			row[j] = v
			if n := len([]rune(fmt.Sprint(v))); n > widths[j] {
				widths[j] = n
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
		onProgress(i+1, total)
	}

	for i, width := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, min(float64(width)*1.2+2, 80)); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (s *Sheets) exportCSV(w io.Writer, records []catalog.Product, cols []Column, onProgress ProgressFunc) error {
	cw := csv.NewWriter(w)

	row := make([]string, len(cols))
	for i, c := range cols {
		row[i] = c.Label
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	total := len(records)
	for i, p := range records {
		for j, c := range cols {
			row[j] = fmt.Sprint(c.get(p))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
		onProgress(i+1, total)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Import parses a .xlsx or .csv file. Rows without an ID get a fresh UUID.
func (s *Sheets) Import(name string, r io.Reader) ([]catalog.Product, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
	if err != nil {
		return nil, err
	}

	return s.parseRows(rows)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(cleanReader(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func (s *Sheets) parseRows(rows [][]string) ([]catalog.Product, error) {
	start := 0
	for start < len(rows) && isBlank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, ErrEmptyFile
	}

	header := rows[start]
	cols := make([]*Column, len(header))
	hasKey := false
	for i, h := range header {
		c, ok := Lookup(h)
		if !ok {
			// Extra columns are ignored.
			continue
		}
		cols[i] = &c
		if c.Name == "id" || c.Name == "title" {
			hasKey = true
		}
	}
	if !hasKey {
		return nil, ErrMissingKeyColumn
	}

	body := rows[start+1:]
	if s.MaxRows > 0 && len(body) > s.MaxRows {
		return nil, fmt.Errorf("%w: %d rows, limit is %d", ErrTooManyRows, len(body), s.MaxRows)
	}

	products := make([]catalog.Product, 0, len(body))
	seen := make(map[string]int, len(body))
	for i, row := range body {
		rowNum := start + i + 2
		if isBlank(row) {
			continue
		}

		var p catalog.Product
		for j, cell := range row {
			if j >= len(cols) || cols[j] == nil {
				continue
			}
			if err := cols[j].set(&p, cleanCell(cell)); err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", rowNum, cols[j].Label, err)
			}
		}

		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if prev, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("row %d: duplicate id %q (first seen on row %d)", rowNum, p.ID, prev)
		}
		seen[p.ID] = rowNum

		products = append(products, p)
	}

	return products, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
