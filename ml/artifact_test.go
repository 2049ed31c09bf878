package ml

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fittedTestModel(t *testing.T, classifier Classifier) *FittedModel {
	t.Helper()
	records := testRecords()
	encoder := &LabelEncoder{}
	y, err := encoder.FitTransform([]string{"Live", "Die", "Die", "Live"})
	require.NoError(t, err)

	pipe := NewPipeline(classifier)
	require.NoError(t, pipe.Fit(records, y))
	return &FittedModel{
		Pipeline:     pipe,
		LabelEncoder: encoder,
		Accuracy:     0.75,
		TrainedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	for _, classifier := range []Classifier{NewKNN(3), NewDecisionTree(3)} {
		model := fittedTestModel(t, classifier)
		path := filepath.Join(t.TempDir(), "nested", "model.json.gz")
		require.NoError(t, SaveArtifact(path, model))

		loaded, err := LoadArtifact(path)
		require.NoError(t, err)
		assert.Equal(t, model.Pipeline.ModelType(), loaded.Pipeline.ModelType())
		assert.Equal(t, model.LabelEncoder.Classes, loaded.LabelEncoder.Classes)
		assert.Equal(t, model.Accuracy, loaded.Accuracy)
		assert.True(t, model.TrainedAt.Equal(loaded.TrainedAt))

		want, err := model.Pipeline.Predict(testRecords())
		require.NoError(t, err)
		got, err := loaded.Pipeline.Predict(testRecords())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestSaveArtifactLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json.gz")
	require.NoError(t, SaveArtifact(path, fittedTestModel(t, NewKNN(3))))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "model.json.gz", entries[0].Name())
}

func TestSaveArtifactRequiresEncoder(t *testing.T) {
	model := fittedTestModel(t, NewKNN(3))
	model.LabelEncoder = nil
	err := SaveArtifact(filepath.Join(t.TempDir(), "model.json.gz"), model)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestLoadArtifactRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))
	_, err := LoadArtifact(path)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestLoadArtifactRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json.gz")
	file, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(file)
	require.NoError(t, json.NewEncoder(zw).Encode(map[string]any{"version": 99}))
	require.NoError(t, zw.Close())
	require.NoError(t, file.Close())

	_, err = LoadArtifact(path)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestLoadArtifactRejectsMissingEncoder(t *testing.T) {
	model := fittedTestModel(t, NewKNN(3))
	payload, err := json.Marshal(map[string]any{"version": artifactVersion, "pipeline": model.Pipeline})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json.gz")
	file, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(file)
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, file.Close())

	_, err = LoadArtifact(path)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}
