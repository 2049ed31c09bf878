package ml

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Pipeline is a fitted Preprocessor followed by a Classifier, used as one
// fit/predict unit.
type Pipeline struct {
	Preprocessor *Preprocessor
	Classifier   Classifier
}

type pipelineState struct {
	ModelType    string          `json:"model_type"`
	Preprocessor *Preprocessor   `json:"preprocessor"`
	Classifier   json.RawMessage `json:"classifier"`
}

func NewPipeline(classifier Classifier) *Pipeline {
	return &Pipeline{
		Preprocessor: &Preprocessor{},
		Classifier:   classifier,
	}
}

func (p *Pipeline) Fit(records []Record, y []int) error {
	if len(records) != len(y) {
		return errors.New("records and labels size mismatch")
	}
	if err := p.Preprocessor.Fit(records); err != nil {
		return err
	}
	X, err := p.Preprocessor.Transform(records)
	if err != nil {
		return err
	}
	return errors.Wrap(p.Classifier.Fit(X, y), "fit classifier")
}

func (p *Pipeline) Predict(records []Record) ([]int, error) {
	X, err := p.Preprocessor.Transform(records)
	if err != nil {
		return nil, err
	}
	return p.Classifier.Predict(X)
}

// PredictProba returns ErrProbaUnsupported when the classifier cannot
// produce probabilities.
func (p *Pipeline) PredictProba(records []Record) ([][]float64, error) {
	proba, ok := p.Classifier.(ProbabilisticClassifier)
	if !ok {
		return nil, ErrProbaUnsupported
	}
	X, err := p.Preprocessor.Transform(records)
	if err != nil {
		return nil, err
	}
	return proba.PredictProba(X)
}

// Score returns the accuracy of the pipeline on records.
func (p *Pipeline) Score(records []Record, y []int) (float64, error) {
	if len(records) == 0 {
		return 0, errors.New("records empty")
	}
	predicted, err := p.Predict(records)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i, label := range predicted {
		if label == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(records)), nil
}

func (p *Pipeline) ModelType() string {
	return classifierType(p.Classifier)
}

func (p *Pipeline) MarshalJSON() ([]byte, error) {
	classifier, err := json.Marshal(p.Classifier)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pipelineState{
		ModelType:    p.ModelType(),
		Preprocessor: p.Preprocessor,
		Classifier:   classifier,
	})
}

func (p *Pipeline) UnmarshalJSON(payload []byte) error {
	var state pipelineState
	if err := json.Unmarshal(payload, &state); err != nil {
		return err
	}
	if state.Preprocessor == nil {
		return errors.Wrap(ErrInvalidArtifact, "pipeline has no preprocessor")
	}
	classifier, err := decodeClassifier(state.ModelType, state.Classifier)
	if err != nil {
		return err
	}
	p.Preprocessor = state.Preprocessor
	p.Classifier = classifier
	return nil
}
