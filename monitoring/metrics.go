package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hepaknn"

// Training outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the service's prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	predictions       *prometheus.CounterVec
	predictionErrors  prometheus.Counter
	predictionLatency prometheus.Histogram
	trainingRuns      *prometheus.CounterVec
	trainingDuration  prometheus.Histogram
	modelAccuracy     prometheus.Gauge
	modelLoaded       prometheus.Gauge
	feedClients       prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served, by predicted label.",
		}, []string{"label"}),
		predictionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Prediction requests that failed inside the model.",
		}),
		predictionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent producing a prediction.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		trainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Training runs, by outcome.",
		}, []string{"outcome"}),
		trainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Time spent training a model.",
			Buckets:   prometheus.DefBuckets,
		}),
		modelAccuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_accuracy",
			Help:      "Held-out accuracy of the last trained model.",
		}),
		modelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 when a fitted model is held in memory.",
		}),
		feedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected prediction feed clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.predictions,
		m.predictionErrors,
		m.predictionLatency,
		m.trainingRuns,
		m.trainingDuration,
		m.modelAccuracy,
		m.modelLoaded,
		m.feedClients,
	)
	return m
}

// ObservePrediction records a served prediction.
func (m *Metrics) ObservePrediction(label string, elapsed time.Duration) {
	m.predictions.With(prometheus.Labels{"label": label}).Inc()
	m.predictionLatency.Observe(elapsed.Seconds())
	m.modelLoaded.Set(1)
}

func (m *Metrics) PredictionFailed() {
	m.predictionErrors.Inc()
}

// ObserveTraining records a training run. accuracy is ignored on failure.
func (m *Metrics) ObserveTraining(err error, accuracy float64, elapsed time.Duration) {
	m.trainingDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.trainingRuns.With(prometheus.Labels{"outcome": OutcomeFailure}).Inc()
		return
	}
	m.trainingRuns.With(prometheus.Labels{"outcome": OutcomeSuccess}).Inc()
	m.modelAccuracy.Set(accuracy)
	m.modelLoaded.Set(1)
}

func (m *Metrics) SetModelLoaded(loaded bool) {
	if loaded {
		m.modelLoaded.Set(1)
		return
	}
	m.modelLoaded.Set(0)
}

// SetModelAccuracy reports the accuracy of a model swapped in without a
// training run here, such as one reloaded from disk.
func (m *Metrics) SetModelAccuracy(accuracy float64) {
	m.modelAccuracy.Set(accuracy)
}

func (m *Metrics) SetFeedClients(n int) {
	m.feedClients.Set(float64(n))
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
