package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"hepaknn/logger"
	"hepaknn/ml"
)

func main() {
	defaults := ml.DefaultConfig()

	dataPath := flag.String("data", defaults.DataPath, "dataset path (.csv or .xlsx)")
	encoding := flag.String("encoding", "", "dataset text encoding, e.g. latin1 (default utf-8)")
	modelPath := flag.String("model_path", defaults.ModelPath, "model artifact output path")
	modelType := flag.String("model_type", defaults.ModelType, "classifier: knn or decision_tree")
	neighbors := flag.Int("neighbors", defaults.Neighbors, "k for the knn classifier")
	maxDepth := flag.Int("max_depth", defaults.MaxTreeDepth, "max tree depth")
	testRatio := flag.Float64("test_ratio", defaults.TestRatio, "held-out fraction")
	seed := flag.Int64("seed", defaults.RandomState, "random seed for the split")
	logLevel := flag.String("log_level", "info", "log level")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *logLevel, Console: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	config := defaults
	config.DataPath = *dataPath
	config.DataEncoding = *encoding
	config.ModelPath = *modelPath
	config.ModelType = *modelType
	config.Neighbors = *neighbors
	config.MaxTreeDepth = *maxDepth
	config.TestRatio = *testRatio
	config.RandomState = *seed
	config.CacheSize = 0

	predictor, err := ml.NewPredictor(config, log)
	if err != nil {
		log.Fatal("invalid training configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := predictor.Train(ctx, config.TestRatio)
	if err != nil {
		log.Fatal("failed to train model", zap.String("data", config.DataPath), zap.Error(err))
	}

	log.Info("model trained",
		zap.String("model_type", config.ModelType),
		zap.Float64("accuracy", result.Accuracy),
		zap.Int("train_size", result.TrainSize),
		zap.Int("test_size", result.TestSize),
	)
	fmt.Printf("model saved to %s\n", config.ModelPath)
	fmt.Printf("accuracy=%.4f classes=%s\n", result.Accuracy, strings.Join(result.Classes, ", "))
}
