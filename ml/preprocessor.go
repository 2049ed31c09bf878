package ml

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// NumericTransformer imputes missing values with the column mean and then
// standardizes each column to zero mean and unit variance.
type NumericTransformer struct {
	Means   []float64 `json:"means"`
	Centers []float64 `json:"centers"`
	Scales  []float64 `json:"scales"`
}

func (t *NumericTransformer) Fit(columns [][]float64) error {
	t.Means = make([]float64, len(columns))
	t.Centers = make([]float64, len(columns))
	t.Scales = make([]float64, len(columns))
	for i, column := range columns {
		present := make([]float64, 0, len(column))
		for _, v := range column {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		if len(present) > 0 {
			t.Means[i] = stat.Mean(present, nil)
		}

		imputed := t.impute(i, column)
		center, std := stat.PopMeanStdDev(imputed, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		t.Centers[i] = center
		t.Scales[i] = std
	}
	return nil
}

func (t *NumericTransformer) impute(i int, column []float64) []float64 {
	out := make([]float64, len(column))
	for j, v := range column {
		if math.IsNaN(v) {
			v = t.Means[i]
		}
		out[j] = v
	}
	return out
}

// TransformRow imputes and scales a single row of numeric values.
func (t *NumericTransformer) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		if math.IsNaN(v) {
			v = t.Means[i]
		}
		out[i] = (v - t.Centers[i]) / t.Scales[i]
	}
	return out
}

// CategoricalTransformer imputes missing categories with the most frequent
// value and one-hot encodes. Categories unseen during Fit encode to all zeros.
type CategoricalTransformer struct {
	Fill       []string   `json:"fill"`
	Categories [][]string `json:"categories"`
}

func (t *CategoricalTransformer) Fit(columns [][]string) error {
	t.Fill = make([]string, len(columns))
	t.Categories = make([][]string, len(columns))
	for i, column := range columns {
		t.Fill[i] = mostFrequent(column)

		seen := make(map[string]bool)
		categories := make([]string, 0)
		for _, v := range column {
			if v == "" {
				v = t.Fill[i]
			}
			if v != "" && !seen[v] {
				seen[v] = true
				categories = append(categories, v)
			}
		}
		sort.Strings(categories)
		t.Categories[i] = categories
	}
	return nil
}

func (t *CategoricalTransformer) Width() int {
	width := 0
	for _, categories := range t.Categories {
		width += len(categories)
	}
	return width
}

func (t *CategoricalTransformer) TransformRow(row []string) []float64 {
	out := make([]float64, 0, t.Width())
	for i, v := range row {
		if v == "" {
			v = t.Fill[i]
		}
		for _, category := range t.Categories[i] {
			if category == v {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}

// mostFrequent returns the most common non-empty value, the smallest one
// on ties.
func mostFrequent(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	best := ""
	bestCount := 0
	for v, count := range counts {
		if count > bestCount || (count == bestCount && v < best) {
			best = v
			bestCount = count
		}
	}
	return best
}

// Preprocessor routes the numeric and categorical columns of a Record through
// their transformers and concatenates the output, numeric columns first.
type Preprocessor struct {
	Numeric     NumericTransformer     `json:"numeric"`
	Categorical CategoricalTransformer `json:"categorical"`
}

func (p *Preprocessor) Fit(records []Record) error {
	if len(records) == 0 {
		return errors.New("records empty")
	}

	numeric := make([][]float64, len(NumericColumns()))
	for i := range numeric {
		numeric[i] = make([]float64, len(records))
	}
	categorical := make([][]string, len(CategoricalColumns()))
	for i := range categorical {
		categorical[i] = make([]string, len(records))
	}
	for j, record := range records {
		for i, v := range record.NumericVector() {
			numeric[i][j] = v
		}
		for i, v := range record.CategoricalVector() {
			categorical[i][j] = v
		}
	}

	if err := p.Numeric.Fit(numeric); err != nil {
		return errors.Wrap(err, "fit numeric transformer")
	}
	if err := p.Categorical.Fit(categorical); err != nil {
		return errors.Wrap(err, "fit categorical transformer")
	}
	return nil
}

func (p *Preprocessor) Transform(records []Record) ([][]float64, error) {
	if len(p.Numeric.Means) != len(NumericColumns()) || len(p.Categorical.Fill) != len(CategoricalColumns()) {
		return nil, errors.Wrap(ErrModelNotTrained, "preprocessor not fitted")
	}
	out := make([][]float64, len(records))
	for i, record := range records {
		row := p.Numeric.TransformRow(record.NumericVector())
		out[i] = append(row, p.Categorical.TransformRow(record.CategoricalVector())...)
	}
	return out, nil
}
