package ml

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClassifier(t *testing.T) {
	model, err := NewClassifier("", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, ModelTypeKNN, classifierType(model))

	model, err = NewClassifier(ModelTypeDecisionTree, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, ModelTypeDecisionTree, classifierType(model))

	_, err = NewClassifier("svm", 3, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported model type "svm"`)
	assert.Contains(t, fmt.Sprintf("%+v", err), "model_loader.go")
}

func TestDecodeClassifierErrors(t *testing.T) {
	_, err := decodeClassifier(ModelTypeKNN, json.RawMessage(`{"k":3}`))
	assert.True(t, errors.Is(err, ErrInvalidArtifact))
	assert.Contains(t, fmt.Sprintf("%+v", err), "model_loader.go")

	_, err = decodeClassifier("svm", json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, ErrInvalidArtifact))

	_, err = decodeClassifier(ModelTypeDecisionTree, json.RawMessage(`not json`))
	assert.Error(t, err)
}
