package ml

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const artifactVersion = 1

// FittedModel is the unit that is trained, persisted and served: the pipeline
// and the label encoder that decodes its class indices.
type FittedModel struct {
	Pipeline     *Pipeline     `json:"pipeline"`
	LabelEncoder *LabelEncoder `json:"label_encoder"`
	Accuracy     float64       `json:"accuracy"`
	TrainedAt    time.Time     `json:"trained_at"`
}

type artifact struct {
	Version int `json:"version"`
	*FittedModel
}

func (m *FittedModel) validate() error {
	if m == nil || m.Pipeline == nil || m.LabelEncoder == nil {
		return errors.Wrap(ErrInvalidArtifact, "pipeline and label encoder must be present together")
	}
	if len(m.LabelEncoder.Classes) == 0 {
		return errors.Wrap(ErrInvalidArtifact, "label encoder has no classes")
	}
	return nil
}

// SaveArtifact writes the model as gzip-compressed JSON. The file is written
// next to path and renamed into place, so readers never see a partial file.
func SaveArtifact(path string, model *FittedModel) error {
	if err := model.validate(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create model dir")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp artifact")
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if err := json.NewEncoder(zw).Encode(artifact{Version: artifactVersion, FittedModel: model}); err != nil {
		tmp.Close()
		return errors.Wrap(err, "encode artifact")
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "compress artifact")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp artifact")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "move artifact into place")
}

// LoadArtifact reads a model written by SaveArtifact.
func LoadArtifact(path string) (*FittedModel, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open artifact")
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArtifact, err.Error())
	}
	defer zr.Close()

	decoded := artifact{FittedModel: &FittedModel{}}
	if err := json.NewDecoder(zr).Decode(&decoded); err != nil {
		return nil, errors.Wrapf(err, "decode artifact %s", path)
	}
	if decoded.Version != artifactVersion {
		return nil, errors.Wrapf(ErrInvalidArtifact, "unsupported artifact version %d", decoded.Version)
	}
	if err := decoded.FittedModel.validate(); err != nil {
		return nil, err
	}
	return decoded.FittedModel, nil
}

func artifactExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "stat artifact")
}
