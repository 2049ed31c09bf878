package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hepaknn/db"
	"hepaknn/ml"
	"hepaknn/monitoring"
)

// Handlers carries what the endpoints need. Predictions, Metrics and Feed
// are optional.
type Handlers struct {
	Predictor   ml.ModelProvider
	Predictions db.PredictionLogger
	Metrics     *monitoring.Metrics
	Feed        *monitoring.PredictionFeed
	Logger      *zap.Logger
	// Debug adds error details with stack traces to 500 responses.
	Debug bool
}

type trainRequest struct {
	TestSize *float64 `json:"test_size"`
}

func RegisterHandlers(mux *http.ServeMux, h *Handlers) {
	if h.Predictions == nil {
		h.Predictions = db.NopLogger{}
	}
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("POST /train", h.handleTrain)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /model", h.handleModel)
	mux.HandleFunc("GET /predictions", h.handlePredictions)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics.Handler())
	}
	if h.Feed != nil {
		mux.HandleFunc("GET /ws/predictions", h.Feed.HandleWebSocket)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) handleTrain(w http.ResponseWriter, r *http.Request) {
	// 0 lets the predictor use its configured test ratio
	testSize := 0.0
	if body, err := io.ReadAll(r.Body); err != nil {
		h.Logger.Debug("ignoring unreadable train body", zap.Error(err))
	} else if len(bytes.TrimSpace(body)) > 0 {
		var req trainRequest
		if err := json.Unmarshal(body, &req); err != nil {
			h.Logger.Debug("ignoring non-JSON train body", zap.Error(err))
		} else if req.TestSize != nil {
			testSize = *req.TestSize
		}
	}

	start := time.Now()
	result, err := h.Predictor.Train(r.Context(), testSize)
	if h.Metrics != nil {
		accuracy := 0.0
		if result != nil {
			accuracy = result.Accuracy
		}
		h.Metrics.ObserveTraining(err, accuracy, time.Since(start))
	}
	if err != nil {
		h.Logger.Error("training failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		resp := map[string]any{"ok": false, "error": err.Error()}
		if h.Debug {
			resp["details"] = fmt.Sprintf("%+v", err)
		}
		respondJSON(w, http.StatusInternalServerError, resp)
		return
	}

	h.publish(monitoring.TrainingMessage, result)
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"message":  "Model re-trained successfully",
		"accuracy": result.Accuracy,
		"classes":  result.Classes,
		"metrics":  result,
	})
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
		return
	}
	payload, err := ml.DecodePayload(body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
		return
	}
	required := ml.RequiredAnyOf()
	if !payload.HasAny(required...) {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Payload must include at least one of: " + strings.Join(required, ", "),
		})
		return
	}

	start := time.Now()
	prediction, err := h.Predictor.Predict(r.Context(), payload)
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.PredictionFailed()
		}
		h.Logger.Error("prediction failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		resp := map[string]any{"error": "Prediction failed: " + err.Error()}
		if h.Debug {
			resp["details"] = fmt.Sprintf("%+v", err)
		}
		respondJSON(w, http.StatusInternalServerError, resp)
		return
	}
	if h.Metrics != nil {
		h.Metrics.ObservePrediction(prediction.Label, time.Since(start))
	}

	h.Predictions.Log(r.Context(), payload, prediction)
	h.publish(monitoring.PredictionMessage, prediction)
	respondJSON(w, http.StatusOK, prediction)
}

func (h *Handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Predictor.Info())
}

func (h *Handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 0 {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = l
	}

	records, err := h.Predictions.Recent(r.Context(), limit)
	if err != nil {
		h.Logger.Error("list predictions failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"enabled":     h.Predictions.Enabled(),
		"predictions": records,
	})
}

func (h *Handlers) publish(kind monitoring.MessageType, data any) {
	if h.Feed == nil {
		return
	}
	if err := h.Feed.Publish(kind, data); err != nil {
		h.Logger.Warn("publish feed event failed", zap.Error(err))
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode JSON", zap.Error(err))
	}
}
