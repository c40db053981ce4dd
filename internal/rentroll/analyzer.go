package rentroll

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// numericCellPattern matches cells that look like bare amounts, which
// penalizes data rows during header detection.
var numericCellPattern = regexp.MustCompile(`^\$?\d+\.?\d*$`)

// Analyzer scores worksheet tabs and locates header rows
type Analyzer struct {
	cfg    PatternConfig
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer with the given pattern configuration
func NewAnalyzer(cfg PatternConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

// FindHeaderRow scans the first HeaderSearchRows rows and returns the
// index of the most header-like row, or -1 when no row clears the
// minimum header score. Each matched pattern category contributes
// weight/5; rows containing bare numeric cells are penalized.
func (a *Analyzer) FindHeaderRow(rows [][]string) int {
	maxScore := 0
	bestRow := -1

	limit := a.cfg.HeaderSearchRows
	if limit > len(rows) {
		limit = len(rows)
	}

	for idx := 0; idx < limit; idx++ {
		lowered := make([]string, len(rows[idx]))
		for i, cell := range rows[idx] {
			lowered[i] = strings.ToLower(cell)
		}

		score := 0
		for category, patterns := range a.cfg.ColumnPatterns {
			if rowContainsAny(lowered, patterns) {
				score += a.cfg.PatternWeights[category] / 5
			}
		}

		for _, cell := range lowered {
			if numericCellPattern.MatchString(strings.TrimSpace(cell)) {
				score -= 2
				break
			}
		}

		if score > maxScore {
			maxScore = score
			bestRow = idx
		}
	}

	if maxScore < a.cfg.MinHeaderScore {
		return -1
	}
	return bestRow
}

// AnalyzeSheet detects the header row and scores the tab by summing full
// pattern weights over every matched header column.
func (a *Analyzer) AnalyzeSheet(name string, rows [][]string) TabAnalysis {
	analysis := TabAnalysis{
		SheetName:       name,
		HeaderRowIndex:  -1,
		MatchedPatterns: make(map[string][]string, len(a.cfg.ColumnPatterns)),
	}
	for category := range a.cfg.ColumnPatterns {
		analysis.MatchedPatterns[category] = []string{}
	}

	headerRow := a.FindHeaderRow(rows)
	if headerRow < 0 {
		return analysis
	}
	analysis.HeaderRowIndex = headerRow

	for _, cell := range rows[headerRow] {
		header := strings.ToLower(strings.TrimSpace(cell))
		if header == "" {
			continue
		}
		for category, patterns := range a.cfg.ColumnPatterns {
			if containsAny(header, patterns) {
				analysis.Score += a.cfg.PatternWeights[category]
				analysis.MatchedPatterns[category] = append(analysis.MatchedPatterns[category], header)
			}
		}
	}

	return analysis
}

// AnalyzeWorkbook analyzes every sheet concurrently and returns the
// per-sheet results keyed by sheet name.
func (a *Analyzer) AnalyzeWorkbook(ctx context.Context, wb *Workbook) (map[string]TabAnalysis, error) {
	sheets := wb.SheetNames()
	analyses := make(map[string]TabAnalysis, len(sheets))

	// Preload sheet contents serially; excelize reads are not safe for
	// concurrent use on the same file.
	grids := make(map[string][][]string, len(sheets))
	for _, sheet := range sheets {
		rows, err := wb.Rows(sheet)
		if err != nil {
			a.logger.WarnContext(ctx, "skipping unreadable sheet",
				slog.String("sheet", sheet),
				slog.String("error", err.Error()),
			)
			continue
		}
		grids[sheet] = rows
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for sheet, rows := range grids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			analysis := a.AnalyzeSheet(sheet, rows)

			mu.Lock()
			analyses[sheet] = analysis
			mu.Unlock()

			a.logger.DebugContext(gctx, "sheet analyzed",
				slog.String("sheet", sheet),
				slog.Int("score", analysis.Score),
				slog.Int("header_row", analysis.HeaderRowIndex),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return analyses, nil
}

// BestSheet picks the highest-scoring sheet that has a detectable header
// row, preferring earlier sheets on ties. Returns ErrNoValidTabs when no
// sheet qualifies.
func (a *Analyzer) BestSheet(order []string, analyses map[string]TabAnalysis) (TabAnalysis, error) {
	best := TabAnalysis{Score: -1, HeaderRowIndex: -1}
	found := false

	for _, sheet := range order {
		analysis, ok := analyses[sheet]
		if !ok || !analysis.HasHeader() {
			continue
		}
		if analysis.Score > best.Score {
			best = analysis
			found = true
		}
	}

	if !found {
		return TabAnalysis{HeaderRowIndex: -1}, ErrNoValidTabs
	}
	return best, nil
}

func rowContainsAny(cells []string, patterns []string) bool {
	for _, cell := range cells {
		if containsAny(cell, patterns) {
			return true
		}
	}
	return false
}

func containsAny(s string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}
