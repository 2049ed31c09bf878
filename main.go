package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"hepaknn/db"
	qhttp "hepaknn/http"
	"hepaknn/logger"
	"hepaknn/ml"
	"hepaknn/monitoring"
)

type Config struct {
	Debug    bool `yaml:"debug"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Http struct {
		Port           int      `yaml:"port"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		MaxBodyBytes   int64    `yaml:"max_body_bytes"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log logger.Config `yaml:"log"`
	ML  struct {
		DataPath     string  `yaml:"data_path"`
		DataEncoding string  `yaml:"data_encoding"`
		ModelPath    string  `yaml:"model_path"`
		ModelType    string  `yaml:"model_type"`
		RandomState  int64   `yaml:"random_state"`
		Neighbors    int     `yaml:"neighbors"`
		MaxTreeDepth int     `yaml:"max_tree_depth"`
		TestRatio    float64 `yaml:"test_ratio"`
		CacheSize    int     `yaml:"cache_size"`
		Watch        bool    `yaml:"watch"`
	} `yaml:"ml"`
}

func defaultConfig() *Config {
	server := qhttp.DefaultServerConfig()
	model := ml.DefaultConfig()

	config := &Config{}
	config.Http.Port = server.Port
	config.Http.TimeoutSeconds = int(server.Timeout / time.Second)
	config.Http.MaxBodyBytes = server.MaxBodyBytes
	config.Http.AllowedOrigins = server.AllowedOrigins
	config.Log.Level = "info"
	config.ML.DataPath = model.DataPath
	config.ML.ModelPath = model.ModelPath
	config.ML.ModelType = model.ModelType
	config.ML.RandomState = model.RandomState
	config.ML.Neighbors = model.Neighbors
	config.ML.MaxTreeDepth = model.MaxTreeDepth
	config.ML.TestRatio = model.TestRatio
	config.ML.CacheSize = model.CacheSize
	return config
}

func main() {
	// 1. Load config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := applyEnv(config, os.LookupEnv); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid environment: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger
	log, err := logger.New(config.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := run(config, log); err != nil {
		log.Fatal("service stopped", zap.Error(err))
	}
	log.Info("exiting")
}

func run(config *Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Predictor
	predictor, err := ml.NewPredictor(config.modelConfig(), log.Named("ml"))
	if err != nil {
		return errors.Wrap(err, "create predictor")
	}
	// An existing artifact is loaded up front. Training stays lazy.
	if _, statErr := os.Stat(config.ML.ModelPath); statErr == nil {
		if err := predictor.Reload(ctx); err != nil {
			log.Warn("failed to load model artifact", zap.String("path", config.ML.ModelPath), zap.Error(err))
		}
	}

	metrics := monitoring.NewMetrics()
	observeModel(metrics, predictor.Info())

	// 4. Prediction log
	predictions := db.NewPredictionLogger(ctx, config.Database.URL, log.Named("db"))
	defer predictions.Close()

	// 5. Live feed and artifact watcher
	feed := monitoring.NewPredictionFeed(log.Named("feed"), metrics)
	go feed.Run(ctx)

	if config.ML.Watch {
		watcher, err := ml.NewArtifactWatcher(predictor, log.Named("watcher"))
		if err != nil {
			return errors.Wrap(err, "watch model artifact")
		}
		watcher.OnReload(func(info ml.ModelInfo) {
			observeModel(metrics, info)
		})
		go watcher.Run(ctx)
	}

	// 6. HTTP server
	server := qhttp.NewServer(config.serverConfig(), &qhttp.Handlers{
		Predictor:   predictor,
		Predictions: predictions,
		Metrics:     metrics,
		Feed:        feed,
		Logger:      log.Named("http"),
		Debug:       config.Debug,
	}, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 7. Graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

func observeModel(metrics *monitoring.Metrics, info ml.ModelInfo) {
	loaded := info.State == ml.StateLoaded
	metrics.SetModelLoaded(loaded)
	if loaded {
		metrics.SetModelAccuracy(info.Accuracy)
	}
}

func (c *Config) modelConfig() ml.Config {
	return ml.Config{
		DataPath:     c.ML.DataPath,
		DataEncoding: c.ML.DataEncoding,
		ModelPath:    c.ML.ModelPath,
		ModelType:    c.ML.ModelType,
		RandomState:  c.ML.RandomState,
		Neighbors:    c.ML.Neighbors,
		MaxTreeDepth: c.ML.MaxTreeDepth,
		TestRatio:    c.ML.TestRatio,
		CacheSize:    c.ML.CacheSize,
	}
}

func (c *Config) serverConfig() qhttp.ServerConfig {
	return qhttp.ServerConfig{
		Port:           c.Http.Port,
		Timeout:        time.Duration(c.Http.TimeoutSeconds) * time.Second,
		MaxBodyBytes:   c.Http.MaxBodyBytes,
		AllowedOrigins: c.Http.AllowedOrigins,
	}
}

// loadConfig reads path over the defaults. A missing file leaves the defaults.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return config, nil
}

// applyEnv overrides config from DEBUG, DB_URL, DATA_PATH, MODEL_PATH,
// HTTP_PORT and LOG_LEVEL.
func applyEnv(config *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("DEBUG"); ok {
		config.Debug = isTruthy(v)
	}
	if v, ok := lookup("DB_URL"); ok {
		config.Database.URL = strings.TrimSpace(v)
	}
	if v, ok := lookup("DATA_PATH"); ok && v != "" {
		config.ML.DataPath = v
	}
	if v, ok := lookup("MODEL_PATH"); ok && v != "" {
		config.ML.ModelPath = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		config.Log.Level = v
	}
	if v, ok := lookup("HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return errors.Errorf("invalid HTTP_PORT %q", v)
		}
		config.Http.Port = port
	}
	return nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
