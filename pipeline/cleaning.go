package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CleaningRule validates or corrects one row. Returning an error rejects
// the row.
type CleaningRule interface {
	Apply(row []string, columns []string) ([]string, error)
	Name() string
}

// QualityIssue describes a rejected row.
type QualityIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // low, medium, high
	Message  string `json:"message"`
	Row      int    `json:"row"`
}

// DataCleaner runs every rule over every row of a dataset.
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	stats     CleaningStats
	statsLock sync.RWMutex
}

// CleaningStats counts what the cleaner did.
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// NewDataCleaner returns a cleaner with the default rules: row width check,
// whitespace trimming, missing-value token blanking, a required target and
// numeric coercion for the listed numeric columns.
func NewDataCleaner(logger *zap.Logger, target string, numericColumns ...string) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		logger: logger,
		stats:  CleaningStats{Issues: make(map[string]int64)},
	}

	cleaner.AddRule(&RowWidthRule{})
	cleaner.AddRule(&TrimSpaceRule{})
	cleaner.AddRule(NewMissingTokenRule())
	cleaner.AddRule(&RequiredColumnRule{Column: target})
	cleaner.AddRule(&NumericColumnRule{Columns: numericColumns})

	return cleaner
}

func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean returns a new dataset holding the rows that passed every rule.
func (dc *DataCleaner) Clean(ds *Dataset) (*Dataset, []QualityIssue) {
	cleaned := &Dataset{Columns: ds.Columns, Rows: make([][]string, 0, len(ds.Rows))}
	var issues []QualityIssue

	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for i, original := range ds.Rows {
		dc.stats.TotalProcessed++

		row := append([]string(nil), original...)
		var rowIssue *QualityIssue
		for _, rule := range dc.rules {
			out, err := rule.Apply(row, ds.Columns)
			if err != nil {
				rowIssue = &QualityIssue{
					Type:     rule.Name(),
					Severity: "high",
					Message:  err.Error(),
					Row:      i + 1,
				}
				dc.stats.Issues[rule.Name()]++
				break
			}
			row = out
		}

		if rowIssue != nil {
			dc.stats.Rejected++
			issues = append(issues, *rowIssue)
			continue
		}
		if !equalRows(original, row) {
			dc.stats.Corrected++
		}
		dc.stats.Passed++
		cleaned.Rows = append(cleaned.Rows, row)
	}

	dc.stats.LastClean = time.Now()
	return cleaned, issues
}

func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

func equalRows(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ============ rules ============

// RowWidthRule rejects rows whose cell count differs from the header.
type RowWidthRule struct{}

func (r *RowWidthRule) Name() string {
	return "row_width"
}

func (r *RowWidthRule) Apply(row []string, columns []string) ([]string, error) {
	if len(row) != len(columns) {
		return nil, fmt.Errorf("expected %d cells, got %d", len(columns), len(row))
	}
	return row, nil
}

// TrimSpaceRule trims surrounding whitespace from every cell.
type TrimSpaceRule struct{}

func (r *TrimSpaceRule) Name() string {
	return "trim_space"
}

func (r *TrimSpaceRule) Apply(row []string, columns []string) ([]string, error) {
	for i, cell := range row {
		row[i] = strings.TrimSpace(cell)
	}
	return row, nil
}

// MissingTokenRule blanks cells holding a conventional missing-value marker.
type MissingTokenRule struct {
	Tokens map[string]bool
}

func NewMissingTokenRule() *MissingTokenRule {
	tokens := []string{
		"#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
		"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
		"n/a", "nan", "null",
	}
	rule := &MissingTokenRule{Tokens: make(map[string]bool, len(tokens))}
	for _, token := range tokens {
		rule.Tokens[token] = true
	}
	return rule
}

func (r *MissingTokenRule) Name() string {
	return "missing_token"
}

func (r *MissingTokenRule) Apply(row []string, columns []string) ([]string, error) {
	for i, cell := range row {
		if r.Tokens[cell] {
			row[i] = ""
		}
	}
	return row, nil
}

// RequiredColumnRule rejects rows with an empty cell in Column.
type RequiredColumnRule struct {
	Column string
}

func (r *RequiredColumnRule) Name() string {
	return "required_" + strings.ToLower(r.Column)
}

func (r *RequiredColumnRule) Apply(row []string, columns []string) ([]string, error) {
	for i, column := range columns {
		if column != r.Column {
			continue
		}
		if row[i] == "" {
			return nil, fmt.Errorf("%s is empty", r.Column)
		}
		return row, nil
	}
	return nil, fmt.Errorf("column %s not found", r.Column)
}

// NumericColumnRule blanks cells of numeric columns that do not parse as
// numbers so they are imputed later.
type NumericColumnRule struct {
	Columns []string
}

func (r *NumericColumnRule) Name() string {
	return "numeric_column"
}

func (r *NumericColumnRule) Apply(row []string, columns []string) ([]string, error) {
	numeric := make(map[string]bool, len(r.Columns))
	for _, column := range r.Columns {
		numeric[column] = true
	}
	for i, column := range columns {
		if !numeric[column] || row[i] == "" {
			continue
		}
		if _, err := strconv.ParseFloat(row[i], 64); err != nil {
			row[i] = ""
		}
	}
	return row, nil
}
