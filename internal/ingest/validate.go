// Package ingest turns uploaded workbooks into stored rows: validation,
// intra-batch deduplication, persistence deduplication and the batch commit.
package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/sheet"
	"AgriDataHub/internal/store"
)

// SheetDateLayout is the format dates carry between validation and storage.
const SheetDateLayout = "2006/01/02"

var spreadsheetEpoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Serial range of spreadsheet dates: 1900-01-01 through 9999-12-31.
const (
	minSerial = 1
	maxSerial = 2958465
)

// Text dates accepted in date columns besides spreadsheet serials.
var dateLayouts = []string{SheetDateLayout, store.DateLayout, time.RFC3339, "01/02/2006", "1/2/2006", "2 Jan 2006", "January 2, 2006", "Jan 2, 2006"}

// ValidatedRow is a record that passed validation. Values are keyed by
// spreadsheet title and only hold titles declared by the module.
type ValidatedRow struct {
	RowNumber  int
	Values     map[string]string
	ImportedBy string
}

// SerialToDate converts a spreadsheet day serial: 1900-01-01 + (n - 2) days.
// Fractions (time of day) are dropped.
func SerialToDate(n float64) time.Time {
	return spreadsheetEpoch.AddDate(0, 0, int(math.Floor(n))-2)
}

// falsy mirrors the inherited required-field rule: empty and numeric zero
// both count as missing.
func falsy(v string) bool {
	if strings.TrimSpace(v) == "" {
		return true
	}
	if d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "")); err == nil {
		return d.IsZero()
	}
	return false
}

// Validate checks rec against the module schema and stamps importedBy.
// It never touches the store.
func Validate(rec sheet.Record, s *schema.FieldSchema, importedBy string) (ValidatedRow, error) {
	values := make(map[string]string, len(s.Columns))
	for _, c := range s.Columns {
		if v, ok := rec.Values[c.Title]; ok && strings.TrimSpace(v) != "" {
			values[c.Title] = strings.TrimSpace(v)
		}
	}

	for _, title := range s.Required {
		v := values[title]
		if v == "" || (!s.ZeroAllowed(title) && falsy(v)) {
			return ValidatedRow{}, &IncompleteRowError{RowNumber: rec.RowNumber, Column: title}
		}
	}

	for _, c := range s.Columns {
		v, ok := values[c.Title]
		if !ok {
			continue
		}
		switch {
		case s.IsDateTitle(c.Title):
			d, ok := coerceDate(v)
			if !ok {
				return ValidatedRow{}, &InvalidFieldFormatError{RowNumber: rec.RowNumber, Column: c.Title, Message: "not a date"}
			}
			values[c.Title] = d
		case c.Type == schema.TypeNumeric:
			if _, ok := store.Number(v); !ok {
				return ValidatedRow{}, &InvalidFieldFormatError{RowNumber: rec.RowNumber, Column: c.Title, Message: "not a number"}
			}
		}
	}

	for i := range s.FormatRules {
		rule := &s.FormatRules[i]
		v, ok := values[rule.Column]
		if !ok {
			continue
		}
		if !rule.Check(v) {
			return ValidatedRow{}, &InvalidFieldFormatError{RowNumber: rec.RowNumber, Column: rule.Column, Message: rule.Message}
		}
	}

	return ValidatedRow{RowNumber: rec.RowNumber, Values: values, ImportedBy: importedBy}, nil
}

// ValidSerial reports whether n is a finite serial inside the spreadsheet
// date range.
func ValidSerial(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0) && n >= minSerial && n <= maxSerial
}

// coerceDate renders serials and the accepted text layouts as yyyy/MM/dd.
func coerceDate(v string) (string, bool) {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		if !ValidSerial(n) {
			return "", false
		}
		return SerialToDate(n).Format(SheetDateLayout), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(SheetDateLayout), true
		}
	}
	return "", false
}

// ToStored maps a validated row onto stored column names: dates become
// yyyy-MM-dd, numerics float64 and everything else text.
func ToStored(v ValidatedRow, s *schema.FieldSchema) store.Row {
	row := make(store.Row, len(v.Values)+1)
	for title, val := range v.Values {
		col, ok := s.StoredName(title)
		if !ok {
			continue
		}
		row[col] = StoredValue(s.TypeOf(col), val)
	}
	row[schema.ImportedByColumn] = v.ImportedBy
	return row
}

// StoredValue converts validated text into the value stored for a column type.
func StoredValue(t schema.ColumnType, val string) any {
	switch t {
	case schema.TypeDate:
		if d, ok := coerceDate(val); ok {
			return strings.ReplaceAll(d, "/", "-")
		}
		return val
	case schema.TypeNumeric:
		if d, ok := store.Number(val); ok {
			return d.InexactFloat64()
		}
		return val
	}
	return val
}
