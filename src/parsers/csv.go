// backend/src/parsers/csv.go
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/tradevisor/backend/src/models"
)

// ParseCSV reads a delimited file with a header row into untyped rows.
// Row-level parse errors are collected, not fatal: the caller gets every row
// that could be read plus the list of problems, so an upload with a few
// mangled lines still yields partial results. Only a missing or unreadable
// header aborts the parse.
func ParseCSV(r io.Reader) ([]models.RawRow, []string, []error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // broker exports are sloppy about trailing columns
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, []error{fmt.Errorf("reading CSV header: %w", err)}
	}
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
	}

	var (
		rows      []models.RawRow
		parseErrs []error
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrs = append(parseErrs, err)
			continue
		}
		if isBlankRecord(record) {
			continue
		}
		row := make(models.RawRow, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, headers, parseErrs
}

func isBlankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
