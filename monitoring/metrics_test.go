package monitoring

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObservePrediction(t *testing.T) {
	m := NewMetrics()
	m.ObservePrediction("Live", 2*time.Millisecond)
	m.ObservePrediction("Live", time.Millisecond)
	m.ObservePrediction("Die", time.Millisecond)
	m.PredictionFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictions.WithLabelValues("Live")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues("Die")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictionErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelLoaded))
}

func TestMetricsObserveTraining(t *testing.T) {
	m := NewMetrics()
	m.ObserveTraining(nil, 0.8333, time.Second)
	m.ObserveTraining(errors.New("boom"), 0, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.trainingRuns.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trainingRuns.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 0.8333, testutil.ToFloat64(m.modelAccuracy))

	m.SetModelLoaded(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.modelLoaded))

	m.SetModelAccuracy(0.75)
	assert.Equal(t, 0.75, testutil.ToFloat64(m.modelAccuracy))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.ObservePrediction("Live", time.Millisecond)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `hepaknn_predictions_total{label="Live"} 1`))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
