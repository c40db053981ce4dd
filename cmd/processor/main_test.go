package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rentroll/internal/infrastructure"
)

func writeWorkbook(t *testing.T, dir string) string {
	t.Helper()

	rows := [][]string{
		{"Harbor Court Senior Living"},
		{"As of 05/31/2024"},
		{"Unit", "Resident Name", "Monthly Rate", "Care Level", "Move-In Date"},
		{"101A", "Jane Smith", "3500", "AL", "01/15/2023"},
		{"102B", "Robert Jones", "4100", "MC", "03/02/2022"},
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Rent Roll"
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}

	path := filepath.Join(dir, "harbor_court.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestRunProcessesWorkbook(t *testing.T) {
	base := t.TempDir()
	t.Setenv("RENTROLL_PATHS_BASE_DIR", base)
	t.Setenv("RENTROLL_LOGGING_OUTPUT", "console")
	infrastructure.ResetLoggerForTesting()

	workbook := writeWorkbook(t, base)

	require.NoError(t, run(workbook, "harbor.csv"))

	data, err := os.ReadFile(filepath.Join(base, "output", "harbor.csv"))
	require.NoError(t, err)

	content := strings.TrimPrefix(string(data), "\xEF\xBB\xBF")
	assert.Contains(t, content, "unit_number")
	assert.Contains(t, content, "101A")
	assert.Contains(t, content, "Jane Smith")
}

func TestRunMissingFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("RENTROLL_PATHS_BASE_DIR", base)
	t.Setenv("RENTROLL_LOGGING_OUTPUT", "console")
	infrastructure.ResetLoggerForTesting()

	err := run(filepath.Join(base, "missing.xlsx"), "")
	require.Error(t, err)
}
