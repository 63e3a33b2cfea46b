// Package importer reads contact lists from CSV or XLSX files held on the
// local filesystem or in S3.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Format is the encoding of an import file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var ErrUnsupportedFormat = fmt.Errorf("%w: unsupported import format", domain.ErrInvalidInput)

// ErrMissingEmailColumn is returned when no header maps to the email field.
var ErrMissingEmailColumn = fmt.Errorf("%w: email column is required", domain.ErrInvalidInput)

// FormatFromName picks the format from a file name's extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Record is one data row. Line is the 1-based line in the source file,
// counting the header.
type Record struct {
	Line     int
	Email    string
	Name     string
	Company  string
	Position string
}

var headerAliases = map[string][]string{
	"email":    {"email", "email_address", "e-mail", "emailaddress", "mail"},
	"name":     {"name", "full_name", "fullname", "first_name", "firstname", "contact"},
	"company":  {"company", "company_name", "organization", "org"},
	"position": {"position", "title", "job_title", "jobtitle", "role"},
}

// columns maps each known field to its column index in header.
func columns(header []string) (map[string]int, error) {
	idx := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for field, aliases := range headerAliases {
			if _, taken := idx[field]; taken {
				continue
			}
			for _, a := range aliases {
				if h == a {
					idx[field] = i
				}
			}
		}
	}
	if _, ok := idx["email"]; !ok {
		return nil, ErrMissingEmailColumn
	}
	return idx, nil
}

func record(line int, row []string, cols map[string]int) Record {
	get := func(field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	return Record{
		Line:     line,
		Email:    get("email"),
		Name:     get("name"),
		Company:  get("company"),
		Position: get("position"),
	}
}

// Parse reads every data row of r. Blank rows are dropped; row validation
// is left to the caller.
func Parse(r io.Reader, f Format) ([]Record, error) {
	switch f {
	case FormatCSV:
		return parseCSV(r)
	case FormatXLSX:
		return parseXLSX(r)
	}
	return nil, ErrUnsupportedFormat
}

func parseCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrInvalidInput, err)
	}
	cols, err := columns(header)
	if err != nil {
		return nil, err
	}

	var out []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		if blank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)
		out = append(out, record(line, row, cols))
	}
	return out, nil
}

func parseXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", domain.ErrInvalidInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrInvalidInput)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", domain.ErrInvalidInput, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", domain.ErrInvalidInput)
	}
	cols, err := columns(rows[0])
	if err != nil {
		return nil, err
	}

	var out []Record
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		out = append(out, record(i+2, row, cols))
	}
	return out, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
