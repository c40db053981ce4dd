package rentroll

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Fixed export column names, in output order.
var exportColumns = []string{"unit_number", "unit_type", "rate", "resident", "move_in_date", "is_primary"}

// Processor runs the end-to-end pipeline: tab analysis, sheet selection,
// column mapping, row grouping, and export table construction.
type Processor struct {
	analyzer *Analyzer
	mapper   *Mapper
	grouper  *Grouper
	logger   *slog.Logger
}

// NewProcessor wires the pipeline stages. Pass a nil completer to disable
// AI-assisted mapping.
func NewProcessor(cfg PatternConfig, ai Completer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		analyzer: NewAnalyzer(cfg, logger),
		mapper:   NewMapper(ai, cfg, logger),
		grouper:  NewGrouper(logger),
		logger:   logger,
	}
}

// Session carries the intermediate state of one processing run so the
// pipeline stages can execute independently.
type Session struct {
	Path       string
	Workbook   *Workbook
	SheetOrder []string
	Analyses   map[string]TabAnalysis
	Best       TabAnalysis
	HeaderRow  []string
	DataRows   [][]string
	Mapping    *ColumnMapping
	Groups     []RowGroup
	Records    []Record
	Table      *Table
	Property   PropertyInfo
	StartedAt  time.Time
}

// NewSession opens the workbook at path and prepares a processing session.
// The caller owns the session and must Close it.
func (p *Processor) NewSession(path string) (*Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %s: %w", path, err)
	}

	wb, err := OpenWorkbook(path)
	if err != nil {
		return nil, err
	}

	return &Session{
		Path:       path,
		Workbook:   wb,
		SheetOrder: wb.SheetNames(),
		StartedAt:  time.Now(),
	}, nil
}

// Close releases the session's workbook
func (s *Session) Close() error {
	if s.Workbook == nil {
		return nil
	}
	return s.Workbook.Close()
}

// Analyze scores every tab and selects the best one. Returns
// ErrNoValidTabs when no sheet has a detectable header row.
func (p *Processor) Analyze(ctx context.Context, s *Session) error {
	analyses, err := p.analyzer.AnalyzeWorkbook(ctx, s.Workbook)
	if err != nil {
		return err
	}
	s.Analyses = analyses

	best, err := p.analyzer.BestSheet(s.SheetOrder, analyses)
	if err != nil {
		return err
	}
	s.Best = best

	rows, err := s.Workbook.Rows(best.SheetName)
	if err != nil {
		return err
	}
	s.HeaderRow = rows[best.HeaderRowIndex]
	s.DataRows = rows[best.HeaderRowIndex+1:]

	p.logger.InfoContext(ctx, "selected best tab",
		slog.String("sheet", best.SheetName),
		slog.Int("score", best.Score),
		slog.Int("header_row", best.HeaderRowIndex),
		slog.Int("data_rows", len(s.DataRows)),
	)
	return nil
}

// Map generates the column mapping for the selected sheet. Returns
// ErrNoMapping when neither AI nor rule-based mapping produced anything.
func (p *Processor) Map(ctx context.Context, s *Session) error {
	mapping := p.mapper.MapColumns(ctx, s.HeaderRow, s.DataRows)
	if mapping.IsEmpty() {
		return ErrNoMapping
	}
	s.Mapping = mapping
	return nil
}

// Group groups the data rows under their primary unit rows
func (p *Processor) Group(ctx context.Context, s *Session) error {
	s.Groups = p.grouper.GroupRows(s.HeaderRow, s.DataRows, s.Mapping)
	p.logger.InfoContext(ctx, "grouped rent roll rows",
		slog.Int("groups", len(s.Groups)),
	)
	return nil
}

// Flatten turns the row groups into export records and builds the final
// table. Returns ErrNoData when nothing survives.
func (p *Processor) Flatten(ctx context.Context, s *Session) error {
	records := p.flattenGroups(s.HeaderRow, s.Groups)
	if len(records) == 0 {
		return ErrNoData
	}
	s.Records = records
	s.Table = buildTable(records)
	s.Table.DropEmptyColumns()

	p.logger.InfoContext(ctx, "export table ready",
		slog.Int("records", len(records)),
		slog.Int("columns", len(s.Table.Columns)),
	)
	return nil
}

// ProcessFile runs the full pipeline for a single workbook and returns
// the export table.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*Table, error) {
	session, err := p.NewSession(path)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	for _, stage := range []func(context.Context, *Session) error{
		p.Analyze, p.Map, p.Group, p.Flatten,
	} {
		if err := stage(ctx, session); err != nil {
			return nil, err
		}
	}

	return session.Table, nil
}

// flattenGroups produces one record per row: the primary row first with
// is_primary set, then each secondary row carrying the same unit fields.
// Non-empty cells of the source row pass through under their headers.
func (p *Processor) flattenGroups(headers []string, groups []RowGroup) []Record {
	var records []Record

	for _, group := range groups {
		records = append(records, buildRecord(headers, group.Primary, group.Info, true))
		for _, row := range group.Secondary {
			records = append(records, buildRecord(headers, row, group.Info, false))
		}
	}

	return records
}

func buildRecord(headers []string, row []string, info UnitInfo, primary bool) Record {
	record := Record{
		UnitNumber: info.Number,
		UnitType:   info.Type,
		Rate:       info.Rate,
		Resident:   info.Resident,
		MoveInDate: info.MoveInDate,
		IsPrimary:  primary,
	}

	for col, header := range headers {
		name := strings.TrimSpace(header)
		if name == "" || isExportColumn(name) {
			continue
		}
		value := cellValue(row, col)
		if value == "" {
			continue
		}
		record.Extra = append(record.Extra, Cell{Header: name, Value: value})
	}

	return record
}

func isExportColumn(name string) bool {
	for _, col := range exportColumns {
		if name == col {
			return true
		}
	}
	return false
}

// buildTable lays records out as a rectangular table: the fixed unit
// columns first, then passthrough columns in first-seen order.
func buildTable(records []Record) *Table {
	columns := make([]string, len(exportColumns))
	copy(columns, exportColumns)

	position := make(map[string]int, len(columns))
	for i, col := range columns {
		position[col] = i
	}

	for _, record := range records {
		for _, cell := range record.Extra {
			if _, ok := position[cell.Header]; !ok {
				position[cell.Header] = len(columns)
				columns = append(columns, cell.Header)
			}
		}
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, len(columns))
		row[0] = record.UnitNumber
		row[1] = record.UnitType
		row[2] = record.Rate
		row[3] = record.Resident
		row[4] = record.MoveInDate
		if record.IsPrimary {
			row[5] = "true"
		} else {
			row[5] = "false"
		}
		for _, cell := range record.Extra {
			row[position[cell.Header]] = cell.Value
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}
}
