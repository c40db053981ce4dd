package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentroll/internal/config"
	"rentroll/internal/rentroll"
)

func newTestWriter(t *testing.T) (*CSVWriter, string) {
	t.Helper()
	base := t.TempDir()
	paths, err := config.ResolvePaths(config.PathsConfig{BaseDir: base})
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	return NewCSVWriter(paths), paths.OutputDir
}

var testTable = &rentroll.Table{
	Columns: []string{"unit_number", "rate", "is_primary"},
	Rows: [][]string{
		{"101A", "3500", "true"},
		{"101A", "", "false"},
	},
}

func TestWriteTable(t *testing.T) {
	writer, outputDir := newTestWriter(t)

	path, err := writer.WriteTable("harbor_court.csv", testTable)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, "harbor_court.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	// BOM prefix for Excel.
	require.True(t, len(content) > 3)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, content[:3])

	records, err := csv.NewReader(strings.NewReader(string(content[3:]))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, testTable.Columns, records[0])
	assert.Equal(t, testTable.Rows[0], records[1])
}

func TestRenderTable(t *testing.T) {
	data, err := RenderTable(testTable)
	require.NoError(t, err)

	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, data[:3])

	records, err := csv.NewReader(strings.NewReader(string(data[3:]))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "101A", records[1][0])
}

func TestAppendToCSV(t *testing.T) {
	writer, _ := newTestWriter(t)

	_, err := writer.WriteTable("roll.csv", testTable)
	require.NoError(t, err)
	require.NoError(t, writer.AppendToCSV("roll.csv", [][]string{{"102B", "2800", "true"}}))

	path := writer.resolvePath("roll.csv")
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(content[3:]))).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestStreamWriter(t *testing.T) {
	writer, _ := newTestWriter(t)

	sw, err := writer.CreateStreamWriter("stream.csv", []string{"unit_number", "rate"})
	require.NoError(t, err)
	require.NoError(t, sw.WriteRecord([]string{"101A", "3500"}))
	require.NoError(t, sw.WriteRecord([]string{"102B", "2800"}))
	require.NoError(t, sw.Close())

	content, err := os.ReadFile(writer.resolvePath("stream.csv"))
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(content[3:]))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"102B", "2800"}, records[2])
}
