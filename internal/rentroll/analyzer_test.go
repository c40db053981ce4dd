package rentroll

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newAnalyzer() *Analyzer {
	return NewAnalyzer(DefaultPatternConfig(), testLogger())
}

// writeWorkbook builds a temporary xlsx file from sheet name -> rows
func writeWorkbook(t *testing.T, sheets map[string][][]string, order []string) string {
	t.Helper()

	f := excelize.NewFile()
	for i, name := range order {
		if i == 0 {
			f.SetSheetName(f.GetSheetName(0), name)
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for rowIdx, row := range sheets[name] {
			for colIdx, value := range row {
				cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(name, cell, value))
			}
		}
	}

	path := filepath.Join(t.TempDir(), "rentroll.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

var rentRollRows = [][]string{
	{"Harbor Court Senior Living"},
	{"Rent Roll as of 05/31/2024"},
	{"Unit", "Resident Name", "Care Level", "Monthly Rate", "Move In Date"},
	{"101A", "Jane Smith", "AL", "3500", "01/15/2023"},
	{"", "Second Occupant", "", "", ""},
	{"102B", "John Doe", "IL", "2800", "03/01/2022"},
}

func TestFindHeaderRow(t *testing.T) {
	a := newAnalyzer()

	t.Run("detects header row below title rows", func(t *testing.T) {
		assert.Equal(t, 2, a.FindHeaderRow(rentRollRows))
	})

	t.Run("no header in plain data", func(t *testing.T) {
		rows := [][]string{
			{"$3500", "abc"},
			{"$2800", "def"},
		}
		assert.Equal(t, -1, a.FindHeaderRow(rows))
	})

	t.Run("numeric cells penalize the row", func(t *testing.T) {
		// Same pattern hits as a real header but with an amount cell.
		withNumeric := [][]string{
			{"Unit", "Rate", "3500.00"},
		}
		clean := [][]string{
			{"Unit", "Rate", "Resident", "Move In", "Care"},
		}
		assert.Equal(t, -1, a.FindHeaderRow(withNumeric))
		assert.Equal(t, 0, a.FindHeaderRow(clean))
	})

	t.Run("empty grid", func(t *testing.T) {
		assert.Equal(t, -1, a.FindHeaderRow(nil))
	})
}

func TestAnalyzeSheet(t *testing.T) {
	a := newAnalyzer()

	analysis := a.AnalyzeSheet("Roll", rentRollRows)
	assert.Equal(t, 2, analysis.HeaderRowIndex)
	assert.True(t, analysis.HasHeader())

	// unit(10) + resident name(10) + care level(5) + monthly rate(10) + move in date(5)
	assert.Equal(t, 40, analysis.Score)
	assert.Contains(t, analysis.MatchedPatterns[CategoryUnit], "unit")
	assert.Contains(t, analysis.MatchedPatterns[CategoryResident], "resident name")
	assert.Contains(t, analysis.MatchedPatterns[CategoryRate], "monthly rate")

	t.Run("sheet without header scores zero", func(t *testing.T) {
		analysis := a.AnalyzeSheet("Notes", [][]string{{"just some notes"}})
		assert.Equal(t, 0, analysis.Score)
		assert.False(t, analysis.HasHeader())
	})
}

func TestAnalyzeWorkbookAndBestSheet(t *testing.T) {
	a := newAnalyzer()

	order := []string{"Summary", "Rent Roll"}
	path := writeWorkbook(t, map[string][][]string{
		"Summary":   {{"Quarterly totals"}, {"$12000"}},
		"Rent Roll": rentRollRows,
	}, order)

	wb, err := OpenWorkbook(path)
	require.NoError(t, err)
	defer wb.Close()

	analyses, err := a.AnalyzeWorkbook(context.Background(), wb)
	require.NoError(t, err)
	require.Len(t, analyses, 2)

	best, err := a.BestSheet(wb.SheetNames(), analyses)
	require.NoError(t, err)
	assert.Equal(t, "Rent Roll", best.SheetName)
	assert.Equal(t, 2, best.HeaderRowIndex)
}

func TestBestSheetNoValidTabs(t *testing.T) {
	a := newAnalyzer()

	analyses := map[string]TabAnalysis{
		"Notes": {SheetName: "Notes", HeaderRowIndex: -1},
	}

	_, err := a.BestSheet([]string{"Notes"}, analyses)
	assert.ErrorIs(t, err, ErrNoValidTabs)
}
