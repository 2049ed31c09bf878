package ml

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrModelNotTrained  = errors.New("model not trained")
	ErrProbaUnsupported = errors.New("classifier does not support probabilities")
	ErrInvalidArtifact  = errors.New("invalid model artifact")
)

// Classifier is fitted on preprocessed rows and predicts class indices.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) ([]int, error)
}

// ProbabilisticClassifier also reports per-class probabilities.
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(X [][]float64) ([][]float64, error)
}

// ModelProvider is what the HTTP layer needs from a predictor.
type ModelProvider interface {
	Train(ctx context.Context, testSize float64) (*TrainResult, error)
	Predict(ctx context.Context, payload Payload) (*Prediction, error)
	Info() ModelInfo
}
