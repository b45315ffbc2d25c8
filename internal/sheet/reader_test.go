package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		if row == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadFindsSentinelHeader(t *testing.T) {
	data := workbook(t, [][]any{
		{"Department of Agriculture"},
		{"Nursery monitoring report"},
		{"Report Date", "Region", "Quantity", "Remarks"},
		{45000, "Region 1", 12, "ok"},
		{45001, "Region 2", 7},
	})

	res, err := Read(data, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.HeaderIndex)
	assert.Equal(t, []string{"Report Date", "Region", "Quantity", "Remarks"}, res.Headers)
	require.Len(t, res.Records, 2)

	first := res.Records[0]
	assert.Equal(t, 4, first.RowNumber)
	assert.Equal(t, "45000", first.Values["Report Date"])
	assert.Equal(t, "Region 1", first.Values["Region"])
	assert.Equal(t, "12", first.Values["Quantity"])

	second := res.Records[1]
	assert.Equal(t, 5, second.RowNumber)
	_, hasRemarks := second.Values["Remarks"]
	assert.False(t, hasRemarks, "absent cells are omitted")
}

func TestReadRowNumbersFollowHeaderOffset(t *testing.T) {
	data := workbook(t, [][]any{
		{"title"},
		{"Report Date", "Region"},
		{45000, "Region 1"},
		nil,
		{45002, "Region 3"},
	})
	res, err := Read(data, Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 2, "blank rows are skipped")
	// physical row k after the header reports headerIndex + k + 2
	assert.Equal(t, res.HeaderIndex+0+2, res.Records[0].RowNumber)
	assert.Equal(t, res.HeaderIndex+2+2, res.Records[1].RowNumber)
}

func TestReadIsRestartable(t *testing.T) {
	data := workbook(t, [][]any{
		{"Report Date", "Region"},
		{45000, "Region 1"},
	})
	a, err := Read(data, Options{})
	require.NoError(t, err)
	b, err := Read(data, Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReadMissingSentinel(t *testing.T) {
	data := workbook(t, [][]any{
		{"Date", "Region"},
		{45000, "Region 1"},
	})

	_, err := Read(data, Options{})
	var hnf *HeaderNotFoundError
	require.ErrorAs(t, err, &hnf)
	assert.Equal(t, "Report Date", hnf.Title)

	res, err := Read(data, Options{Lenient: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.HeaderIndex)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Region 1", res.Records[0].Values["Region"])
}

func TestReadCustomSentinel(t *testing.T) {
	data := workbook(t, [][]any{
		{"Date Reported", "Region"},
		{45000, "Region 1"},
	})
	res, err := Read(data, Options{HeaderTitle: "Date Reported"})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
}

func TestReadRejectsNonSpreadsheet(t *testing.T) {
	for name, data := range map[string][]byte{
		"text":  []byte("Report Date,Region\n45000,Region 1\n"),
		"empty": nil,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Read(data, Options{})
			var uw *UnreadableWorkbookError
			assert.ErrorAs(t, err, &uw)
		})
	}
}
