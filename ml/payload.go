package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
)

// Payload is a loosely typed prediction request: field name to a JSON
// decoded value (string, float64, bool or nil). Unknown keys are allowed.
type Payload map[string]any

var (
	maleAliases   = map[string]bool{"m": true, "male": true, "masculino": true, "homem": true}
	femaleAliases = map[string]bool{"f": true, "female": true, "feminino": true, "mulher": true}
)

// RequiredAnyOf lists the fields of which a prediction request must carry at
// least one.
func RequiredAnyOf() []string {
	return []string{"Age", "ALB", "ALT", "AST"}
}

// DecodePayload parses a JSON object. Anything other than an object is an error.
func DecodePayload(body []byte) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}
	return payload, nil
}

// HasAny reports whether the payload carries at least one of keys.
func (p Payload) HasAny(keys ...string) bool {
	for _, key := range keys {
		if _, ok := p[key]; ok {
			return true
		}
	}
	return false
}

// NormalizePayload maps a payload onto the fixed feature schema. Keys are
// trimmed, Sex is normalized, numeric fields that are absent or not numeric
// become NaN and every other key is dropped.
func NormalizePayload(payload Payload) Record {
	norm := make(map[string]any, len(payload))
	for k, v := range payload {
		norm[strings.TrimSpace(k)] = v
	}

	record := MissingRecord()
	record.Sex = NormalizeSex(norm["Sex"])
	for _, column := range NumericColumns() {
		value, ok := norm[column]
		if !ok {
			continue
		}
		if f, ok := ToFloat(value); ok {
			record.setNumeric(column, f)
		}
	}
	return record
}

// NormalizeSex maps the many spellings of sex onto "m" or "f". Numbers map
// 1 to "m" and anything else to "f". Unrecognized strings are returned
// case-folded and trimmed, nil maps to the empty (missing) category.
func NormalizeSex(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		s := cases.Fold().String(strings.TrimSpace(v))
		if maleAliases[s] {
			return "m"
		}
		if femaleAliases[s] {
			return "f"
		}
		return s
	}

	if f, ok := numberValue(value); ok {
		if math.Trunc(f) == 1 {
			return "m"
		}
		return "f"
	}
	return cases.Fold().String(strings.TrimSpace(fmt.Sprint(value)))
}

// ToFloat converts numbers and numeric-looking strings. Empty strings, nil,
// anything unparsable and non-finite values (inf, NaN, out of range) report
// false.
func ToFloat(value any) (float64, bool) {
	var (
		f  float64
		ok bool
	)
	if s, isString := value.(string); isString {
		f, ok = parseFloat(s)
	} else {
		f, ok = numberValue(value)
	}
	if !ok || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func numberValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
