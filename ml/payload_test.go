package ml

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSexVariants(t *testing.T) {
	cases := []struct {
		raw  any
		want string
	}{
		{"m", "m"},
		{"M", "m"},
		{"male", "m"},
		{"MALE", "m"},
		{" Male ", "m"},
		{"masculino", "m"},
		{"homem", "m"},
		{1, "m"},
		{1.0, "m"},
		{true, "m"},
		{"f", "f"},
		{"F", "f"},
		{"female", "f"},
		{"FEMALE", "f"},
		{"feminino", "f"},
		{"mulher", "f"},
		{0, "f"},
		{2, "f"},
		{false, "f"},
		{nil, ""},
		{"Other", "other"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeSex(tc.raw), "raw=%v", tc.raw)
	}
}

func TestNormalizePayloadIgnoresExtraKeys(t *testing.T) {
	payload := Payload{
		"PROT":  70,
		"Age":   45,
		"Sex":   "MALE",
		"GGT":   25.4,
		"ALB":   40.2,
		"ALP":   60.1,
		"ALT":   15.7,
		"AST":   22.3,
		"BIL":   5.1,
		"CHE":   7.2,
		"CHOL":  3.9,
		"CREA":  90,
		"Extra": "ignore-me",
	}
	record := NormalizePayload(payload)

	assert.Equal(t, "m", record.Sex)
	assert.Equal(t, []float64{45, 40.2, 60.1, 15.7, 22.3, 5.1, 7.2, 3.9, 90, 25.4, 70}, record.NumericVector())
	_, ok := record.Get("Extra")
	assert.False(t, ok)
	assert.Len(t, record.Values(), len(FeatureColumns()))
}

func TestNormalizePayloadMissingAndInvalid(t *testing.T) {
	record := NormalizePayload(Payload{"Age": "na", "Sex": "m", "ALB": "oops", " ALT ": "40.5", "AST": ""})

	assert.True(t, math.IsNaN(record.Age))
	assert.True(t, math.IsNaN(record.ALB))
	assert.True(t, math.IsNaN(record.AST))
	assert.True(t, math.IsNaN(record.GGT))
	assert.Equal(t, 40.5, record.ALT)
}

func TestNormalizePayloadNonFinite(t *testing.T) {
	record := NormalizePayload(Payload{"Age": "inf", "ALB": "-Infinity", "ALT": "1e999", "AST": "NaN", "CHE": 7.5})

	for _, v := range []float64{record.Age, record.ALB, record.ALT, record.AST} {
		assert.True(t, math.IsNaN(v), "got %v", v)
	}
	assert.Equal(t, 7.5, record.CHE)
}

func TestNormalizePayloadNumericStrings(t *testing.T) {
	record := NormalizePayload(Payload{"Age": "45", "Sex": "f", "ALB": "40.2", "ALP": " 60 "})

	assert.Equal(t, 45.0, record.Age)
	assert.Equal(t, 40.2, record.ALB)
	assert.Equal(t, 60.0, record.ALP)
	assert.Equal(t, "f", record.Sex)
}

func TestNormalizePayloadEmpty(t *testing.T) {
	record := NormalizePayload(Payload{})
	for _, v := range record.NumericVector() {
		assert.True(t, math.IsNaN(v))
	}
	assert.Equal(t, "", record.Sex)
}

func TestDecodePayload(t *testing.T) {
	payload, err := DecodePayload([]byte(`{"Age": 45, "Sex": "m"}`))
	require.NoError(t, err)
	assert.True(t, payload.HasAny(RequiredAnyOf()...))
	assert.False(t, payload.HasAny("ALB", "ALT"))

	for _, body := range []string{`nao eh json`, `[1, 2]`, `"Age"`, `42`} {
		_, err := DecodePayload([]byte(body))
		assert.Error(t, err, "body=%s", body)
	}
}

func TestToFloat(t *testing.T) {
	cases := []struct {
		value any
		want  float64
		ok    bool
	}{
		{45, 45, true},
		{int64(3), 3, true},
		{2.5, 2.5, true},
		{json.Number("7.25"), 7.25, true},
		{"1e2", 100, true},
		{true, 1, true},
		{"", 0, false},
		{"abc", 0, false},
		{nil, 0, false},
		{[]int{1}, 0, false},
		{"inf", 0, false},
		{"-Infinity", 0, false},
		{"1e999", 0, false},
		{"NaN", 0, false},
		{math.Inf(1), 0, false},
		{math.NaN(), 0, false},
	}
	for _, tc := range cases {
		got, ok := ToFloat(tc.value)
		assert.Equal(t, tc.ok, ok, "value=%v", tc.value)
		if tc.ok {
			assert.Equal(t, tc.want, got, "value=%v", tc.value)
		}
	}
}
