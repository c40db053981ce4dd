// Package rentroll implements the spreadsheet processing engine: tab
// analysis, header detection, column mapping, row grouping, and export
// table construction for senior living rent rolls.
package rentroll

import (
	"errors"
	"strings"

	"rentroll/internal/config"
)

// Column mapping categories.
const (
	CategoryUnit     = "unit"
	CategoryResident = "resident"
	CategoryRate     = "rate"
	CategoryDate     = "date"
	CategoryCare     = "care"
	CategoryType     = "type"
)

// Sentinel errors surfaced by the processing pipeline.
var (
	ErrNoValidTabs = errors.New("no valid tabs were found in the workbook")
	ErrNoMapping   = errors.New("could not generate valid column mapping")
	ErrNoData      = errors.New("no data to export after processing")
)

// PatternConfig holds the scoring knobs for tab analysis and header
// detection. Weights are per category; header row scoring uses weight/5
// per matched category.
type PatternConfig struct {
	MinTabScore      int
	HeaderSearchRows int
	MinHeaderScore   int
	ColumnPatterns   map[string][]string
	PatternWeights   map[string]int
}

// DefaultPatternConfig returns the standard senior living pattern set
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		MinTabScore:      25,
		HeaderSearchRows: 20,
		MinHeaderScore:   4,
		ColumnPatterns: map[string][]string{
			CategoryUnit:     {"unit", "apt", "room", "apartment", "number", "suite"},
			CategoryResident: {"resident", "tenant", "name", "occupant"},
			CategoryRate:     {"rate", "rent", "charge", "fee", "payment"},
			CategoryDate:     {"move", "date", "admission"},
			CategoryCare:     {"care", "level", "service"},
		},
		PatternWeights: map[string]int{
			CategoryUnit:     10,
			CategoryResident: 10,
			CategoryRate:     10,
			CategoryDate:     5,
			CategoryCare:     5,
		},
	}
}

// PatternConfigFromSettings overlays service configuration thresholds on
// the default pattern set
func PatternConfigFromSettings(pc config.ProcessingConfig) PatternConfig {
	cfg := DefaultPatternConfig()
	if pc.MinTabScore > 0 {
		cfg.MinTabScore = pc.MinTabScore
	}
	if pc.HeaderSearchRows > 0 {
		cfg.HeaderSearchRows = pc.HeaderSearchRows
	}
	if pc.MinHeaderScore > 0 {
		cfg.MinHeaderScore = pc.MinHeaderScore
	}
	return cfg
}

// TabAnalysis holds the scoring result for a single worksheet
type TabAnalysis struct {
	SheetName       string              `json:"sheet_name"`
	Score           int                 `json:"score"`
	HeaderRowIndex  int                 `json:"header_row_index"` // -1 when no header row was detected
	MatchedPatterns map[string][]string `json:"matched_patterns"`
}

// HasHeader reports whether a header row was detected for the tab
func (a TabAnalysis) HasHeader() bool {
	return a.HeaderRowIndex >= 0
}

// ColumnMapping assigns spreadsheet headers to the standard categories.
// Empty fields mean no column was mapped for that category.
type ColumnMapping struct {
	Unit     string `json:"unit"`
	Resident string `json:"resident"`
	Rate     string `json:"rate"`
	Type     string `json:"type"`
	Date     string `json:"date"`
}

// IsEmpty reports whether no category was mapped at all
func (m *ColumnMapping) IsEmpty() bool {
	if m == nil {
		return true
	}
	return m.Unit == "" && m.Resident == "" && m.Rate == "" && m.Type == "" && m.Date == ""
}

// UnitInfo carries the mapped fields extracted from a primary row
type UnitInfo struct {
	Number     string `json:"number"`
	Type       string `json:"type"`
	Rate       string `json:"rate"`
	Resident   string `json:"resident"`
	MoveInDate string `json:"move_in_date"`
}

// RowGroup ties a primary unit row to the secondary rows that belong to it
type RowGroup struct {
	Info      UnitInfo
	Primary   []string
	Secondary [][]string
}

// Record is a flattened export row: the mapped unit fields plus the
// non-empty passthrough cells of the source row.
type Record struct {
	UnitNumber string
	UnitType   string
	Rate       string
	Resident   string
	MoveInDate string
	IsPrimary  bool
	Extra      []Cell
}

// Cell is a passthrough header/value pair preserved in source column order
type Cell struct {
	Header string
	Value  string
}

// Table is an ordered, rectangular view of the export records, ready for
// CSV serialization.
type Table struct {
	Columns []string
	Rows    [][]string
}

// DropEmptyColumns removes columns whose values are blank in every row
func (t *Table) DropEmptyColumns() {
	if t == nil || len(t.Columns) == 0 {
		return
	}

	keep := make([]int, 0, len(t.Columns))
	for col := range t.Columns {
		empty := true
		for _, row := range t.Rows {
			if col < len(row) && strings.TrimSpace(row[col]) != "" {
				empty = false
				break
			}
		}
		if !empty {
			keep = append(keep, col)
		}
	}

	if len(keep) == len(t.Columns) {
		return
	}

	columns := make([]string, 0, len(keep))
	for _, col := range keep {
		columns = append(columns, t.Columns[col])
	}

	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make([]string, 0, len(keep))
		for _, col := range keep {
			if col < len(row) {
				cells = append(cells, row[col])
			} else {
				cells = append(cells, "")
			}
		}
		rows = append(rows, cells)
	}

	t.Columns = columns
	t.Rows = rows
}

// PropertyInfo holds the extracted property name and statement date
type PropertyInfo struct {
	Name     string `json:"property_name"`
	AsOfDate string `json:"as_of_date"`
}
