package ml

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// LabelEncoder maps class label strings to contiguous indices. Classes are
// kept sorted so the index of a label is its position in Classes.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.New("labels empty")
	}
	seen := make(map[string]bool)
	classes := make([]string, 0)
	for _, label := range labels {
		if !seen[label] {
			seen[label] = true
			classes = append(classes, label)
		}
	}
	sort.Strings(classes)
	e.Classes = classes
	return nil
}

func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	encoded := make([]int, len(labels))
	for i, label := range labels {
		idx := sort.SearchStrings(e.Classes, label)
		if idx >= len(e.Classes) || e.Classes[idx] != label {
			return nil, fmt.Errorf("unknown label %q", label)
		}
		encoded[i] = idx
	}
	return encoded, nil
}

func (e *LabelEncoder) FitTransform(labels []string) ([]int, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform returns the label of a class index.
func (e *LabelEncoder) InverseTransform(index int) (string, error) {
	if index < 0 || index >= len(e.Classes) {
		return "", fmt.Errorf("class index %d out of range", index)
	}
	return e.Classes[index], nil
}
