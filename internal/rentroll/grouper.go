package rentroll

import (
	"log/slog"
	"strings"
)

// Grouper walks the data rows of the selected sheet and ties each primary
// unit row to the secondary rows that follow it.
type Grouper struct {
	logger *slog.Logger
}

// NewGrouper creates a row grouper
func NewGrouper(logger *slog.Logger) *Grouper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grouper{logger: logger}
}

// mappingIndexes resolves the mapped headers to column positions once per
// sheet. A value of -1 means the category is unmapped.
type mappingIndexes struct {
	unit     int
	resident int
	rate     int
	typ      int
	date     int
}

func resolveMapping(headers []string, m *ColumnMapping) mappingIndexes {
	if m == nil {
		return mappingIndexes{unit: -1, resident: -1, rate: -1, typ: -1, date: -1}
	}
	return mappingIndexes{
		unit:     columnIndex(headers, m.Unit),
		resident: columnIndex(headers, m.Resident),
		rate:     columnIndex(headers, m.Rate),
		typ:      columnIndex(headers, m.Type),
		date:     columnIndex(headers, m.Date),
	}
}

// GroupRows groups the data rows under their primary unit rows. A row
// starts a new group when it has a unit value and either a rate or a
// resident; every other row attaches to the current group as secondary.
// Rows seen before the first primary row are discarded.
func (g *Grouper) GroupRows(headers []string, rows [][]string, mapping *ColumnMapping) []RowGroup {
	idx := resolveMapping(headers, mapping)

	var groups []RowGroup
	var current *RowGroup

	for _, row := range rows {
		if g.isPrimaryRow(row, idx) {
			if current != nil {
				groups = append(groups, *current)
			}
			current = &RowGroup{
				Info:    g.unitInfo(row, idx),
				Primary: row,
			}
			continue
		}

		if current != nil {
			current.Secondary = append(current.Secondary, row)
		}
	}

	if current != nil {
		groups = append(groups, *current)
	}

	return groups
}

func (g *Grouper) isPrimaryRow(row []string, idx mappingIndexes) bool {
	hasUnit := cellFilled(row, idx.unit)
	hasRate := cellFilled(row, idx.rate)
	hasResident := cellFilled(row, idx.resident)
	return hasUnit && (hasRate || hasResident)
}

func (g *Grouper) unitInfo(row []string, idx mappingIndexes) UnitInfo {
	return UnitInfo{
		Number:     cellValue(row, idx.unit),
		Type:       cellValue(row, idx.typ),
		Rate:       cellValue(row, idx.rate),
		Resident:   cellValue(row, idx.resident),
		MoveInDate: cellValue(row, idx.date),
	}
}

func cellValue(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func cellFilled(row []string, col int) bool {
	return cellValue(row, col) != ""
}
