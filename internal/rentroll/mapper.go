package rentroll

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Completer is the chat completion surface the mapper needs. A nil
// Completer disables AI mapping and the mapper stays rule-based.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Mapper assigns spreadsheet columns to the standard rent roll
// categories, preferring AI-assisted mapping with a rule-based fallback.
type Mapper struct {
	ai     Completer
	cfg    PatternConfig
	logger *slog.Logger
}

// NewMapper creates a mapper. Pass a nil completer to run rule-based only.
func NewMapper(ai Completer, cfg PatternConfig, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{ai: ai, cfg: cfg, logger: logger}
}

// MapColumns maps the header row to categories. AI mapping failures of
// any kind fall back to rule-based mapping and are never fatal.
func (m *Mapper) MapColumns(ctx context.Context, headerRow []string, dataRows [][]string) *ColumnMapping {
	headers, indexes := cleanHeaderPairs(headerRow)
	if len(headers) == 0 {
		return &ColumnMapping{}
	}

	if m.ai != nil {
		mapping, err := m.mapWithAI(ctx, headers, indexes, dataRows)
		if err == nil {
			return mapping
		}
		m.logger.WarnContext(ctx, "AI column mapping failed, falling back to rule-based mapping",
			slog.String("error", err.Error()),
		)
	}

	return m.RuleBasedMapping(headers)
}

// RuleBasedMapping assigns the first header containing any category
// pattern, one header per category.
func (m *Mapper) RuleBasedMapping(headers []string) *ColumnMapping {
	mapping := &ColumnMapping{}

	assign := func(category string) string {
		patterns := m.cfg.ColumnPatterns[category]
		for _, header := range headers {
			if containsAny(strings.ToLower(header), patterns) {
				return header
			}
		}
		return ""
	}

	mapping.Unit = assign(CategoryUnit)
	mapping.Resident = assign(CategoryResident)
	mapping.Rate = assign(CategoryRate)
	mapping.Date = assign(CategoryDate)
	mapping.Type = assign(CategoryCare)

	return mapping
}

func (m *Mapper) mapWithAI(ctx context.Context, headers []string, indexes []int, dataRows [][]string) (*ColumnMapping, error) {
	prompt := buildMappingPrompt(headers, sampleRows(headers, indexes, dataRows, 3))

	raw, err := m.ai.Complete(ctx, mappingSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var suggested map[string]*string
	if err := json.Unmarshal([]byte(raw), &suggested); err != nil {
		return nil, fmt.Errorf("parse mapping response: %w", err)
	}

	// Validate every suggestion against the real headers; anything the AI
	// invented is dropped.
	mapping := &ColumnMapping{}
	for category, header := range suggested {
		validated := validateHeader(headers, header)
		switch category {
		case CategoryUnit:
			mapping.Unit = validated
		case CategoryResident:
			mapping.Resident = validated
		case CategoryRate:
			mapping.Rate = validated
		case CategoryType:
			mapping.Type = validated
		case CategoryDate:
			mapping.Date = validated
		}
	}

	if mapping.IsEmpty() {
		return nil, fmt.Errorf("no suggested column matched the real headers")
	}

	m.logger.DebugContext(ctx, "AI column mapping validated",
		slog.String("unit", mapping.Unit),
		slog.String("resident", mapping.Resident),
		slog.String("rate", mapping.Rate),
		slog.String("type", mapping.Type),
		slog.String("date", mapping.Date),
	)

	return mapping, nil
}

func validateHeader(headers []string, suggestion *string) string {
	if suggestion == nil {
		return ""
	}
	want := strings.TrimSpace(*suggestion)
	for _, header := range headers {
		if strings.TrimSpace(header) == want {
			return header
		}
	}
	return ""
}

func cleanHeaderPairs(headerRow []string) ([]string, []int) {
	var headers []string
	var indexes []int
	for col, cell := range headerRow {
		if name := strings.TrimSpace(cell); name != "" {
			headers = append(headers, name)
			indexes = append(indexes, col)
		}
	}
	return headers, indexes
}

// sampleRows builds up to n example rows keyed by clean header for the
// mapping prompt.
func sampleRows(headers []string, indexes []int, dataRows [][]string, n int) []map[string]string {
	if n > len(dataRows) {
		n = len(dataRows)
	}

	samples := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		row := dataRows[i]
		sample := make(map[string]string, len(headers))
		for j, header := range headers {
			col := indexes[j]
			if col < len(row) {
				sample[header] = strings.TrimSpace(row[col])
			} else {
				sample[header] = ""
			}
		}
		samples = append(samples, sample)
	}
	return samples
}

const mappingSystemPrompt = "You are a specialized assistant that maps rent roll columns exactly. " +
	"Analyze both header names and data content. Return only the JSON object, no markdown formatting."

func buildMappingPrompt(headers []string, samples []map[string]string) string {
	headerJSON, _ := json.Marshal(headers)
	sampleJSON, _ := json.MarshalIndent(samples, "", "  ")

	return fmt.Sprintf(`Given these column headers and sample data from a senior living rent roll:

Headers:
%s

Sample Data (first %d rows):
%s

Map the columns to these standard senior living categories, analyzing both header names AND sample data values:

1. unit: Column containing unique unit/room/apartment identifiers
   - Look for: Room numbers, unit IDs, apartment numbers
   - Usually short alphanumeric codes (e.g., "101A", "2B", "U203")
   - Example headers: RoomNumber, Unit, AptNum, UnitID

2. resident: Column containing resident names
   - Look for: Full names, typically First/Last name combinations
   - Example headers: ResidentName, Tenant, OccupantName, Name

3. rate: Column containing monthly rent/rate amounts
   - Look for: Numeric values with typical senior living price ranges ($2000-$10000)
   - May include currency symbols ($) or decimal points
   - Example headers: MonthlyRate, RentAmount, BaseRate, Rate

4. type: Column indicating level of care
   - Look for values such as IL (Independent Living), AL (Assisted Living),
     MC (Memory Care), NC (Nursing Care), EAL (Enhanced Assisted Living)
   - Example headers: CareType, ResidentType, LevelOfCare, ServiceType, Type

5. date: Column containing resident move-in dates
   - Look for: Date formats (YYYY-MM-DD, MM/DD/YYYY, etc.)
   - Example headers: MoveInDate, AdmissionDT, StartDate, ResidencyDate

Rules:
- Return exactly ONE best matching column for each category
- Only use column headers that exist in the provided data
- If no good match exists for a category, set it to null
- Base matches on both header names AND actual data content
- Prioritize accuracy over completeness

Return a JSON object in this exact format:
{
    "unit": "exact_matching_column_name",
    "resident": "exact_matching_column_name",
    "rate": "exact_matching_column_name",
    "type": "exact_matching_column_name",
    "date": "exact_matching_column_name"
}`, headerJSON, len(samples), sampleJSON)
}
