package ml

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"hepaknn/pipeline"
)

const DefaultTestSize = 0.2

// ErrDatasetNotFound is returned by Train when the dataset file is missing.
var ErrDatasetNotFound = pipeline.ErrDatasetNotFound

// Config holds the predictor's paths and hyperparameters.
type Config struct {
	DataPath     string
	DataEncoding string
	ModelPath    string
	ModelType    string
	RandomState  int64
	Neighbors    int
	MaxTreeDepth int
	TestRatio    float64
	CacheSize    int
}

func DefaultConfig() Config {
	return Config{
		DataPath:     "model/HepatitisCdata.csv",
		ModelPath:    "model/knn_model.json.gz",
		ModelType:    ModelTypeKNN,
		RandomState:  1,
		Neighbors:    5,
		MaxTreeDepth: 5,
		TestRatio:    DefaultTestSize,
		CacheSize:    1024,
	}
}

// State is the lifecycle state of the model slot.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoaded   State = "loaded"
)

// Prediction is the outcome for one record. Confidence is nil when the
// classifier cannot produce probabilities.
type Prediction struct {
	Index      int      `json:"prediction"`
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type TrainResult struct {
	Accuracy  float64   `json:"accuracy"`
	Classes   []string  `json:"classes"`
	TrainSize int       `json:"train_size"`
	TestSize  int       `json:"test_size"`
	TrainedAt time.Time `json:"trained_at"`
}

type ModelInfo struct {
	State     State      `json:"state"`
	ModelType string     `json:"model_type,omitempty"`
	Classes   []string   `json:"classes,omitempty"`
	Accuracy  float64    `json:"accuracy,omitempty"`
	TrainedAt *time.Time `json:"trained_at,omitempty"`
	ModelPath string     `json:"model_path"`
	DataPath  string     `json:"data_path"`
}

// Predictor trains, persists and serves the hepatitis classifier. The fitted
// model lives in a slot that is read-locked by predictions and write-locked
// only while a new model is swapped in.
type Predictor struct {
	config Config
	logger *zap.Logger

	mu    sync.RWMutex
	model *FittedModel

	// trainMu serializes training and the first load so concurrent callers
	// bootstrap the slot once.
	trainMu sync.Mutex

	cache *lru.Cache[string, Prediction]
}

func NewPredictor(config Config, logger *zap.Logger) (*Predictor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if _, err := NewClassifier(config.ModelType, config.Neighbors, config.MaxTreeDepth); err != nil {
		return nil, err
	}

	p := &Predictor{config: config, logger: logger}
	if config.CacheSize > 0 {
		cache, err := lru.New[string, Prediction](config.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "create prediction cache")
		}
		p.cache = cache
	}
	return p, nil
}

func (p *Predictor) Config() Config {
	return p.config
}

func (p *Predictor) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == nil {
		return StateUnloaded
	}
	return StateLoaded
}

func (p *Predictor) Info() ModelInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	info := ModelInfo{
		State:     StateUnloaded,
		ModelPath: p.config.ModelPath,
		DataPath:  p.config.DataPath,
	}
	if p.model != nil {
		info.State = StateLoaded
		info.ModelType = p.model.Pipeline.ModelType()
		info.Classes = append([]string(nil), p.model.LabelEncoder.Classes...)
		info.Accuracy = p.model.Accuracy
		trainedAt := p.model.TrainedAt
		info.TrainedAt = &trainedAt
	}
	return info
}

// Train fits a new model on the dataset, persists it and swaps it in.
// testSize outside (0, 1) falls back to the configured test ratio.
func (p *Predictor) Train(ctx context.Context, testSize float64) (*TrainResult, error) {
	p.trainMu.Lock()
	defer p.trainMu.Unlock()
	return p.train(ctx, testSize)
}

func (p *Predictor) train(ctx context.Context, testSize float64) (*TrainResult, error) {
	if testSize <= 0 || testSize >= 1 {
		testSize = p.config.TestRatio
	}
	if testSize <= 0 || testSize >= 1 {
		testSize = DefaultTestSize
	}

	records, labels, err := p.loadTrainingData()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encoder := &LabelEncoder{}
	y, err := encoder.FitTransform(labels)
	if err != nil {
		return nil, errors.Wrap(err, "encode labels")
	}

	trainIdx, testIdx, err := StratifiedSplit(y, testSize, p.config.RandomState)
	if err != nil {
		return nil, errors.Wrap(err, "split dataset")
	}
	trainX, trainY := subset(records, y, trainIdx)
	testX, testY := subset(records, y, testIdx)

	classifier, err := NewClassifier(p.config.ModelType, p.config.Neighbors, p.config.MaxTreeDepth)
	if err != nil {
		return nil, err
	}
	pipe := NewPipeline(classifier)
	if err := pipe.Fit(trainX, trainY); err != nil {
		return nil, errors.Wrap(err, "fit pipeline")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	score, err := pipe.Score(testX, testY)
	if err != nil {
		return nil, errors.Wrap(err, "score pipeline")
	}

	model := &FittedModel{
		Pipeline:     pipe,
		LabelEncoder: encoder,
		Accuracy:     round4(score),
		TrainedAt:    time.Now().UTC(),
	}
	if err := SaveArtifact(p.config.ModelPath, model); err != nil {
		return nil, errors.Wrap(err, "save model")
	}
	p.swap(model)

	p.logger.Info("model trained",
		zap.String("model_type", pipe.ModelType()),
		zap.Float64("accuracy", model.Accuracy),
		zap.Strings("classes", encoder.Classes),
		zap.Int("train_size", len(trainIdx)),
		zap.Int("test_size", len(testIdx)),
		zap.String("model_path", p.config.ModelPath),
	)

	return &TrainResult{
		Accuracy:  model.Accuracy,
		Classes:   append([]string(nil), encoder.Classes...),
		TrainSize: len(trainIdx),
		TestSize:  len(testIdx),
		TrainedAt: model.TrainedAt,
	}, nil
}

func (p *Predictor) loadTrainingData() ([]Record, []string, error) {
	ds, err := pipeline.LoadDataset(p.config.DataPath, pipeline.LoadOptions{Encoding: p.config.DataEncoding})
	if err != nil {
		return nil, nil, err
	}
	for i, column := range ds.Columns {
		ds.Columns[i] = strings.TrimSpace(column)
	}
	if dropped := ds.DropUnnamedIndex(); dropped > 0 {
		p.logger.Debug("dropped unnamed index columns", zap.Int("count", dropped))
	}
	if _, err := ds.Column(TargetColumn); err != nil {
		return nil, nil, err
	}

	cleaner := pipeline.NewDataCleaner(p.logger, TargetColumn, NumericColumns()...)
	cleaned, _ := cleaner.Clean(ds)
	rows, cols := cleaned.Shape()
	stats := cleaner.GetStats()
	p.logger.Info("dataset loaded",
		zap.String("path", p.config.DataPath),
		zap.Int("rows", rows),
		zap.Int("columns", cols),
		zap.Int64("rejected", stats.Rejected),
		zap.Int64("corrected", stats.Corrected),
		zap.Any("issues", stats.Issues),
	)
	if rows == 0 {
		return nil, nil, errors.Errorf("dataset %s has no usable rows", p.config.DataPath)
	}

	records := make([]Record, 0, rows)
	labels := make([]string, 0, rows)
	for _, row := range cleaned.Records() {
		records = append(records, RecordFromStrings(row))
		labels = append(labels, row[TargetColumn])
	}
	return records, labels, nil
}

// RecordFromStrings builds a record from cleaned dataset cells. Empty or
// unparsable numeric cells are NaN. Sex is taken as is.
func RecordFromStrings(row map[string]string) Record {
	record := MissingRecord()
	for _, column := range NumericColumns() {
		if f, ok := ToFloat(row[column]); ok {
			record.setNumeric(column, f)
		}
	}
	record.Sex = row["Sex"]
	return record
}

// Predict normalizes payload and classifies it, training or loading a model
// first when none is held.
func (p *Predictor) Predict(ctx context.Context, payload Payload) (*Prediction, error) {
	if err := p.EnsureReady(ctx); err != nil {
		return nil, err
	}
	record := NormalizePayload(payload)

	p.mu.RLock()
	defer p.mu.RUnlock()
	model := p.model
	if model == nil {
		return nil, ErrModelNotTrained
	}

	key := record.key()
	if p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			return &cached, nil
		}
	}

	prediction, err := predictRecord(model, record)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("prediction",
		zap.Any("record", record.Values()),
		zap.Int("prediction", prediction.Index),
		zap.String("label", prediction.Label),
	)
	if p.cache != nil {
		p.cache.Add(key, *prediction)
	}
	return prediction, nil
}

func predictRecord(model *FittedModel, record Record) (*Prediction, error) {
	rows := []Record{record}

	var confidence *float64
	proba, err := model.Pipeline.PredictProba(rows)
	switch {
	case err == nil && len(proba) == 1 && len(proba[0]) > 0:
		best := proba[0][0]
		for _, v := range proba[0][1:] {
			best = math.Max(best, v)
		}
		c := round4(best)
		confidence = &c
	case err != nil && !errors.Is(err, ErrProbaUnsupported):
		return nil, errors.Wrap(err, "predict probabilities")
	}

	predicted, err := model.Pipeline.Predict(rows)
	if err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	label, err := model.LabelEncoder.InverseTransform(predicted[0])
	if err != nil {
		return nil, errors.Wrap(err, "decode label")
	}
	return &Prediction{Index: predicted[0], Label: label, Confidence: confidence}, nil
}

// EnsureReady moves the slot from unloaded to loaded: from the artifact when
// one exists, otherwise by training a fresh model.
func (p *Predictor) EnsureReady(ctx context.Context) error {
	if p.State() == StateLoaded {
		return nil
	}

	p.trainMu.Lock()
	defer p.trainMu.Unlock()
	if p.State() == StateLoaded {
		return nil
	}

	exists, err := artifactExists(p.config.ModelPath)
	if err != nil {
		return err
	}
	if exists {
		return p.load()
	}
	p.logger.Info("no model artifact, training", zap.String("model_path", p.config.ModelPath))
	_, err = p.train(ctx, p.config.TestRatio)
	return err
}

// Reload replaces the held model with the artifact on disk. It is a no-op
// when the artifact is the model already held.
func (p *Predictor) Reload(ctx context.Context) error {
	p.trainMu.Lock()
	defer p.trainMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.load()
}

func (p *Predictor) load() error {
	model, err := LoadArtifact(p.config.ModelPath)
	if err != nil {
		return errors.Wrap(err, "load model")
	}

	p.mu.RLock()
	current := p.model
	p.mu.RUnlock()
	if current != nil && current.TrainedAt.Equal(model.TrainedAt) {
		return nil
	}

	p.swap(model)
	p.logger.Info("model loaded",
		zap.String("model_path", p.config.ModelPath),
		zap.Time("trained_at", model.TrainedAt),
	)
	return nil
}

func (p *Predictor) swap(model *FittedModel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model
	if p.cache != nil {
		p.cache.Purge()
	}
}

func subset(records []Record, y []int, idx []int) ([]Record, []int) {
	outX := make([]Record, len(idx))
	outY := make([]int, len(idx))
	for i, j := range idx {
		outX[i] = records[j]
		outY[i] = y[j]
	}
	return outX, outY
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
