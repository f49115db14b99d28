package textextract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFilterSignalLines(t *testing.T) {
	in := []string{
		"  2025-01-01   Coffee\t  -18.00 ",
		"Header Row Without Numbers",
		"",
		"   ",
		"Total 3 items",
	}

	got := FilterSignalLines(in)
	assert.Equal(t, []string{"2025-01-01 Coffee -18.00", "Total 3 items"}, got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "餐饮", Truncate("餐饮消费", 2))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestLines_CSV(t *testing.T) {
	data := []byte("\xef\xbb\xbfdate,desc,amount\n2025-01-01,Coffee,-18\n2025-01-02,\"Taxi, airport\",-95.5,extra\n")

	lines, err := New().Lines(context.Background(), data, "export.CSV")
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "date desc amount", lines[0])
	assert.Equal(t, "2025-01-02 Taxi, airport -95.5 extra", lines[2])
}

func TestLines_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"日期", "摘要", "金额"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"2025-01-01", "瑞幸咖啡", -18.5}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"2025-01-02", "", 200}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	lines, err := New().Lines(context.Background(), buf.Bytes(), "statement.xlsx")
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "2025-01-01 瑞幸咖啡 -18.5", lines[1])
	assert.Equal(t, "2025-01-02 200", lines[2])
}

func TestLines_LegacyXLS(t *testing.T) {
	_, err := New().Lines(context.Background(), []byte{0xd0, 0xcf}, "old.xls")
	assert.ErrorIs(t, err, ErrLegacySpreadsheet)
}

func TestText_CorruptPDF(t *testing.T) {
	_, err := New().Text(context.Background(), []byte("%PDF-1.4 not really"), "broken.pdf")
	assert.Error(t, err)
}

func TestText_CSVJoinsLines(t *testing.T) {
	text, err := New().Text(context.Background(), []byte("a,1\nb,2\n"), "x.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(text, "\n")+1)
}
