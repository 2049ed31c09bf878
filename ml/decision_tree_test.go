package ml

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 2, 2}

	model := NewDecisionTree(2)
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	predicted, err := model.Predict([][]float64{{0.15, 0.15}, {0.85, 0.85}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if predicted[0] != 0 || predicted[1] != 2 {
		t.Fatalf("expected [0 2], got %v", predicted)
	}
}

func TestDecisionTreeDeepSubtrees(t *testing.T) {
	// Four quadrants need a split under both children of the root.
	features := [][]float64{
		{0, 0}, {0.1, 0.1},
		{0, 1}, {0.1, 0.9},
		{1, 0}, {0.9, 0.1},
		{1, 1}, {0.9, 0.9},
	}
	labels := []int{0, 0, 1, 1, 2, 2, 3, 3}

	model := NewDecisionTree(4)
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	predicted, err := model.Predict(features)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, label := range labels {
		if predicted[i] != label {
			t.Fatalf("row %d: expected %d, got %d", i, label, predicted[i])
		}
	}
}

func TestDecisionTreeUntrained(t *testing.T) {
	model := NewDecisionTree(3)
	if _, err := model.Predict([][]float64{{1}}); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
	if err := model.Fit(nil, nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestDecisionTreeJSONRoundTrip(t *testing.T) {
	features := [][]float64{{1}, {2}, {8}, {9}}
	labels := []int{0, 0, 1, 1}
	model := NewDecisionTree(3)
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload, err := json.Marshal(model)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored := &DecisionTree{}
	if err := json.Unmarshal(payload, restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	predicted, err := restored.Predict([][]float64{{1.5}, {8.5}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if predicted[0] != 0 || predicted[1] != 1 {
		t.Fatalf("expected [0 1], got %v", predicted)
	}
}
