// Package sheet turns uploaded workbook bytes into header-keyed records.
// Only the first sheet is read. OOXML workbooks go through excelize and
// legacy BIFF (.xls) workbooks through extrame/xls.
package sheet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// UnreadableWorkbookError is returned when the bytes are not a spreadsheet.
type UnreadableWorkbookError struct {
	Err error
}

func (e *UnreadableWorkbookError) Error() string {
	return fmt.Sprintf("unreadable workbook: %v", e.Err)
}

func (e *UnreadableWorkbookError) Unwrap() error { return e.Err }
func (e *UnreadableWorkbookError) Kind() string  { return "UnreadableWorkbookError" }

// HeaderNotFoundError is returned when no cell in column A carries the
// sentinel title and the reader is not lenient.
type HeaderNotFoundError struct {
	Title string
}

func (e *HeaderNotFoundError) Error() string {
	return fmt.Sprintf("header row not found: no %q cell in the first column", e.Title)
}

func (e *HeaderNotFoundError) Kind() string { return "HeaderNotFoundError" }

// Options controls header detection.
type Options struct {
	// HeaderTitle is the sentinel looked up in column A. Defaults to "Report Date".
	HeaderTitle string
	// Lenient falls back to row 0 as the header when the sentinel is missing.
	Lenient bool
}

// Record is one data row keyed by header title. Empty cells are absent.
type Record struct {
	// RowNumber is the 1-based physical row in the sheet.
	RowNumber int
	Values    map[string]string
}

type Result struct {
	// HeaderIndex is the 0-based index of the header row.
	HeaderIndex int
	Headers     []string
	Records     []Record
}

var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}

// Read parses data and returns the records below the header row in sheet
// order. The same bytes always produce the same result.
func Read(data []byte, opts Options) (*Result, error) {
	if opts.HeaderTitle == "" {
		opts.HeaderTitle = "Report Date"
	}
	var (
		rows [][]string
		err  error
	)
	if bytes.HasPrefix(data, oleMagic) {
		rows, err = readXLS(data)
	} else {
		rows, err = readXLSX(data)
	}
	if err != nil {
		return nil, &UnreadableWorkbookError{Err: err}
	}
	return fromRows(rows, opts)
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	// Raw values keep date cells as serial numbers for the validator.
	return f.GetRows(sheetName, excelize.Options{RawCellValue: true})
}

func readXLS(data []byte) (rows [][]string, err error) {
	// extrame/xls panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("corrupt xls stream: %v", r)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	// Cells styled with a date format render as "2006.01" or RFC3339 text.
	// Without the XF table every numeric cell renders its raw serial.
	wb.Xfs = nil
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("xls has no sheets")
	}
	sh := wb.GetSheet(0)
	if sh == nil {
		return nil, fmt.Errorf("failed to open first xls sheet")
	}
	for r := 0; r <= int(sh.MaxRow); r++ {
		row := sh.Row(r)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cols := row.LastCol()
		cells := make([]string, cols)
		for i := 0; i < cols; i++ {
			cells[i] = row.Col(i)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func fromRows(rows [][]string, opts Options) (*Result, error) {
	headerIndex := -1
	for i, row := range rows {
		if len(row) > 0 && strings.TrimSpace(row[0]) == opts.HeaderTitle {
			headerIndex = i
			break
		}
	}
	if headerIndex < 0 {
		if !opts.Lenient {
			return nil, &HeaderNotFoundError{Title: opts.HeaderTitle}
		}
		headerIndex = 0
	}

	res := &Result{HeaderIndex: headerIndex, Records: []Record{}}
	if headerIndex >= len(rows) {
		return res, nil
	}
	for _, h := range rows[headerIndex] {
		res.Headers = append(res.Headers, strings.TrimSpace(h))
	}

	for i := headerIndex + 1; i < len(rows); i++ {
		values := make(map[string]string)
		for j, cell := range rows[i] {
			if j >= len(res.Headers) || res.Headers[j] == "" {
				continue
			}
			v := strings.TrimSpace(cell)
			if v == "" {
				continue
			}
			if _, seen := values[res.Headers[j]]; seen {
				continue
			}
			values[res.Headers[j]] = v
		}
		if len(values) == 0 {
			continue
		}
		res.Records = append(res.Records, Record{RowNumber: i + 1, Values: values})
	}
	return res, nil
}
