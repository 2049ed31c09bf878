package ml

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	ModelTypeKNN          = "knn"
	ModelTypeDecisionTree = "decision_tree"
)

// NewClassifier builds an unfitted classifier of the given type.
func NewClassifier(modelType string, neighbors, maxDepth int) (Classifier, error) {
	switch modelType {
	case "", ModelTypeKNN:
		return NewKNN(neighbors), nil
	case ModelTypeDecisionTree:
		return NewDecisionTree(maxDepth), nil
	default:
		return nil, errors.Errorf("unsupported model type %q", modelType)
	}
}

// decodeClassifier restores a fitted classifier from its persisted form.
func decodeClassifier(modelType string, payload json.RawMessage) (Classifier, error) {
	switch modelType {
	case ModelTypeKNN:
		model := &KNN{}
		if err := json.Unmarshal(payload, model); err != nil {
			return nil, errors.Wrapf(err, "decode %s", modelType)
		}
		if len(model.X) == 0 || len(model.X) != len(model.Y) {
			return nil, errors.Wrap(ErrInvalidArtifact, "knn has no training data")
		}
		return model, nil
	case ModelTypeDecisionTree:
		model := &DecisionTree{}
		if err := json.Unmarshal(payload, model); err != nil {
			return nil, errors.Wrapf(err, "decode %s", modelType)
		}
		return model, nil
	default:
		return nil, errors.Wrapf(ErrInvalidArtifact, "unsupported model type %q", modelType)
	}
}

func classifierType(c Classifier) string {
	switch c.(type) {
	case *KNN:
		return ModelTypeKNN
	case *DecisionTree:
		return ModelTypeDecisionTree
	default:
		return ""
	}
}
