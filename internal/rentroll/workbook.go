package rentroll

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook wraps an open Excel file and caches sheet contents as string
// grids. Rows come back ragged; CellAt handles out-of-range columns.
type Workbook struct {
	file  *excelize.File
	path  string
	cache map[string][][]string
}

// OpenWorkbook opens an .xlsx/.xls file for analysis
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}

	return &Workbook{
		file:  f,
		path:  path,
		cache: make(map[string][][]string),
	}, nil
}

// Path returns the file path the workbook was opened from
func (w *Workbook) Path() string {
	return w.path
}

// SheetNames returns the worksheet names in workbook order
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// Rows returns all cells of a sheet as strings. Results are cached since
// analysis and processing read the same sheets repeatedly.
func (w *Workbook) Rows(sheet string) ([][]string, error) {
	if rows, ok := w.cache[sheet]; ok {
		return rows, nil
	}

	rows, err := w.file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	w.cache[sheet] = rows
	return rows, nil
}

// Close releases the underlying file
func (w *Workbook) Close() error {
	return w.file.Close()
}

// CellAt returns the trimmed cell value at (row, col), or "" when the
// position is outside the ragged grid.
func CellAt(rows [][]string, row, col int) string {
	if row < 0 || row >= len(rows) {
		return ""
	}
	cells := rows[row]
	if col < 0 || col >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[col])
}

// CleanHeaders returns the non-blank headers of the given row along with
// their column indexes.
func CleanHeaders(rows [][]string, headerRow int) ([]string, []int) {
	if headerRow < 0 || headerRow >= len(rows) {
		return nil, nil
	}

	var headers []string
	var indexes []int
	for col, cell := range rows[headerRow] {
		if name := strings.TrimSpace(cell); name != "" {
			headers = append(headers, name)
			indexes = append(indexes, col)
		}
	}
	return headers, indexes
}

// columnIndex finds the column position of a header by trimmed equality,
// returning -1 when the header is absent or blank.
func columnIndex(headers []string, name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1
	}
	for col, header := range headers {
		if strings.TrimSpace(header) == name {
			return col
		}
	}
	return -1
}
