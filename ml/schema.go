package ml

import (
	"math"
	"strconv"
	"strings"
)

// TargetColumn is the label column of the hepatitis dataset.
const TargetColumn = "Category"

// Record is one clinical record in the fixed feature schema. Missing numeric
// values are NaN, a missing Sex is the empty string.
type Record struct {
	Age  float64
	Sex  string
	ALB  float64
	ALP  float64
	ALT  float64
	AST  float64
	BIL  float64
	CHE  float64
	CHOL float64
	CREA float64
	GGT  float64
	PROT float64
}

// FeatureColumns returns the model input columns in their fixed order.
func FeatureColumns() []string {
	return []string{
		"Age",
		"Sex",
		"ALB",
		"ALP",
		"ALT",
		"AST",
		"BIL",
		"CHE",
		"CHOL",
		"CREA",
		"GGT",
		"PROT",
	}
}

func NumericColumns() []string {
	return []string{
		"Age",
		"ALB",
		"ALP",
		"ALT",
		"AST",
		"BIL",
		"CHE",
		"CHOL",
		"CREA",
		"GGT",
		"PROT",
	}
}

func CategoricalColumns() []string {
	return []string{"Sex"}
}

// MissingRecord returns a record where every field is missing.
func MissingRecord() Record {
	nan := math.NaN()
	return Record{
		Age: nan, ALB: nan, ALP: nan, ALT: nan, AST: nan, BIL: nan,
		CHE: nan, CHOL: nan, CREA: nan, GGT: nan, PROT: nan,
	}
}

// NumericVector returns the numeric features in NumericColumns order.
func (r Record) NumericVector() []float64 {
	return []float64{
		r.Age,
		r.ALB,
		r.ALP,
		r.ALT,
		r.AST,
		r.BIL,
		r.CHE,
		r.CHOL,
		r.CREA,
		r.GGT,
		r.PROT,
	}
}

// CategoricalVector returns the categorical features in CategoricalColumns order.
func (r Record) CategoricalVector() []string {
	return []string{r.Sex}
}

// Values returns the record as a row in FeatureColumns order. Numeric cells
// are float64, categorical cells are strings.
func (r Record) Values() []any {
	return []any{
		r.Age, r.Sex, r.ALB, r.ALP, r.ALT, r.AST,
		r.BIL, r.CHE, r.CHOL, r.CREA, r.GGT, r.PROT,
	}
}

// Get returns the value of a schema column.
func (r Record) Get(column string) (any, bool) {
	for i, name := range FeatureColumns() {
		if name == column {
			return r.Values()[i], true
		}
	}
	return nil, false
}

func (r *Record) setNumeric(column string, value float64) bool {
	switch column {
	case "Age":
		r.Age = value
	case "ALB":
		r.ALB = value
	case "ALP":
		r.ALP = value
	case "ALT":
		r.ALT = value
	case "AST":
		r.AST = value
	case "BIL":
		r.BIL = value
	case "CHE":
		r.CHE = value
	case "CHOL":
		r.CHOL = value
	case "CREA":
		r.CREA = value
	case "GGT":
		r.GGT = value
	case "PROT":
		r.PROT = value
	default:
		return false
	}
	return true
}

// key is a stable string form of the record used for caching.
func (r Record) key() string {
	var b strings.Builder
	for _, v := range r.NumericVector() {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte('|')
	}
	b.WriteString(r.Sex)
	return b.String()
}
