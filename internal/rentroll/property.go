package rentroll

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

const propertySearchRows = 20

const propertySystemPrompt = "You are a specialized assistant that extracts property names and dates " +
	"from rent roll files. Return only the JSON object, no additional text."

// ExtractPropertyInfo determines the property name and as-of date from
// the workbook contents via the AI client. Any failure falls back to the
// workbook's base filename with an empty date.
func (p *Processor) ExtractPropertyInfo(ctx context.Context, s *Session) PropertyInfo {
	baseName := strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
	fallback := PropertyInfo{Name: baseName}

	if p.mapper.ai == nil {
		return fallback
	}

	tabData := collectTabData(s)
	prompt := buildPropertyPrompt(baseName, tabData)

	raw, err := p.mapper.ai.Complete(ctx, propertySystemPrompt, prompt)
	if err != nil {
		p.logger.WarnContext(ctx, "property extraction failed, using filename",
			slog.String("fallback", baseName),
			slog.String("error", err.Error()),
		)
		return fallback
	}

	var result struct {
		PropertyName *string `json:"property_name"`
		AsOfDate     *string `json:"as_of_date"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		p.logger.WarnContext(ctx, "property extraction returned invalid JSON, using filename",
			slog.String("fallback", baseName),
		)
		return fallback
	}

	if result.PropertyName == nil || *result.PropertyName == "" ||
		result.AsOfDate == nil || *result.AsOfDate == "" {
		return fallback
	}

	return PropertyInfo{Name: *result.PropertyName, AsOfDate: *result.AsOfDate}
}

type tabSample struct {
	TabName string     `json:"tab_name"`
	Rows    [][]string `json:"rows"`
}

// collectTabData gathers the non-empty cells of the first rows of every
// sheet as extraction context.
func collectTabData(s *Session) []tabSample {
	var samples []tabSample

	for _, sheet := range s.SheetOrder {
		rows, err := s.Workbook.Rows(sheet)
		if err != nil {
			continue
		}

		limit := propertySearchRows
		if limit > len(rows) {
			limit = len(rows)
		}

		var cleaned [][]string
		for _, row := range rows[:limit] {
			var cells []string
			for _, cell := range row {
				if value := strings.TrimSpace(cell); value != "" {
					cells = append(cells, value)
				}
			}
			if len(cells) > 0 {
				cleaned = append(cleaned, cells)
			}
		}

		if len(cleaned) > 0 {
			samples = append(samples, tabSample{TabName: sheet, Rows: cleaned})
		}
	}

	return samples
}

func buildPropertyPrompt(baseName string, tabs []tabSample) string {
	tabJSON, _ := json.MarshalIndent(tabs, "", "  ")

	return fmt.Sprintf(`Analyze this information from a senior living rent roll Excel file to identify the property name and as of date:

File name: %s

Tab data from first %d rows of each sheet:
%s

Rules for property name:
- Look for phrases like "Property:", "Community:", "Facility:"
- Common locations: file name, sheet names, top rows of sheets
- Should be a real property name (e.g., "Heartis Peoria", "Harbor Court")
- Ignore generic text like "Rent Roll", "Report"

Rules for as of date:
- Look for phrases like "As of", "As of Period:", "Period:", "For Month Of"
- Common date formats: MM/DD/YYYY, YYYY-MM-DD, Month DD YYYY
- Focus on most recent/relevant date
- Ignore future dates or move-in dates

Return a JSON object in this exact format:
{
    "property_name": "extracted property name",
    "as_of_date": "extracted date in MM-DD-YYYY format"
}

If either value cannot be determined with confidence, use null.`, baseName, propertySearchRows, tabJSON)
}
