package pipeline

import (
	"testing"
)

func testDataset() *Dataset {
	return &Dataset{
		Columns: []string{"Age", "Sex", "ALB", "Category"},
		Rows: [][]string{
			{"32", "m", "38.5", "0=Blood Donor"},
			{" 47 ", "f", "NA", "0=Blood Donor"},
			{"50", "m", "abc", "1=Hepatitis"},
			{"61", "f", "40", ""},
			{"29", "m", "41"},
			{"55", "NULL", "36", "nan"},
		},
	}
}

func TestNewDataCleaner(t *testing.T) {
	cleaner := NewDataCleaner(nil, "Category", "Age", "ALB")
	if cleaner == nil {
		t.Fatal("NewDataCleaner returned nil")
	}

	if len(cleaner.rules) != 5 {
		t.Errorf("expected 5 default rules, got %d", len(cleaner.rules))
	}
}

func TestDataCleanerClean(t *testing.T) {
	cleaner := NewDataCleaner(nil, "Category", "Age", "ALB")
	cleaned, issues := cleaner.Clean(testDataset())

	if len(cleaned.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %v", len(cleaned.Rows), cleaned.Rows)
	}
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %d", len(issues))
	}

	if cleaned.Rows[1][0] != "47" {
		t.Errorf("expected trimmed age, got %q", cleaned.Rows[1][0])
	}
	if cleaned.Rows[1][2] != "" {
		t.Errorf("expected NA blanked, got %q", cleaned.Rows[1][2])
	}
	if cleaned.Rows[2][2] != "" {
		t.Errorf("expected unparsable ALB blanked, got %q", cleaned.Rows[2][2])
	}

	wantTypes := []string{"required_category", "row_width", "required_category"}
	for i, issue := range issues {
		if issue.Type != wantTypes[i] {
			t.Errorf("issue %d: expected %s, got %s", i, wantTypes[i], issue.Type)
		}
	}
	if issues[0].Row != 4 {
		t.Errorf("expected issue on row 4, got %d", issues[0].Row)
	}

	stats := cleaner.GetStats()
	if stats.TotalProcessed != 6 || stats.Passed != 3 || stats.Rejected != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Corrected != 2 {
		t.Errorf("expected 2 corrected rows, got %d", stats.Corrected)
	}
	if stats.Issues["required_category"] != 2 {
		t.Errorf("expected 2 required_category issues, got %d", stats.Issues["required_category"])
	}
}

func TestDataCleanerLeavesInputUntouched(t *testing.T) {
	ds := testDataset()
	NewDataCleaner(nil, "Category", "Age", "ALB").Clean(ds)
	if ds.Rows[1][0] != " 47 " {
		t.Errorf("input row was modified: %q", ds.Rows[1][0])
	}
}

func TestRequiredColumnRule(t *testing.T) {
	rule := &RequiredColumnRule{Column: "Category"}
	columns := []string{"Age", "Category"}

	tests := []struct {
		name    string
		row     []string
		columns []string
		wantErr bool
	}{
		{name: "present", row: []string{"30", "Live"}, columns: columns},
		{name: "empty", row: []string{"30", ""}, columns: columns, wantErr: true},
		{name: "column missing", row: []string{"30"}, columns: []string{"Age"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rule.Apply(tt.row, tt.columns)
			if (err != nil) != tt.wantErr {
				t.Errorf("Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMissingTokenRule(t *testing.T) {
	rule := NewMissingTokenRule()
	row, err := rule.Apply([]string{"NaN", "n/a", "None", "0", "m"}, []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"", "", "", "0", "m"}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %d: expected %q, got %q", i, want[i], row[i])
		}
	}
}
