package params

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config holds every knob of a training/inference run. It is built once in main
// and handed to each constructor; nothing reads it from package state.
type Config struct {
	// Vocabulary / encoding
	Threshold int `env:"VOCAB_THRESHOLD" default:"5"` // min corpus frequency for a word to get an id
	MaxLen    int `env:"MAX_LEN" default:"100"`        // encoded sequence length

	// Architecture
	EmbedSize     int     `env:"EMBED_SIZE" default:"128"`
	HiddenSize    int     `env:"HIDDEN_SIZE" default:"128"` // per direction
	NumLayers     int     `env:"NUM_LAYERS" default:"2"`
	Bidirectional bool    `env:"BIDIRECTIONAL" default:"true"`
	Dropout       float64 `env:"DROPOUT" default:"0.5"`
	NumClasses    int     `env:"NUM_CLASSES" default:"2"`

	// Optimization
	Epochs       int     `env:"EPOCHS" default:"20"`
	BatchSize    int     `env:"BATCH_SIZE" default:"32"`
	LearningRate float64 `env:"LEARNING_RATE" default:"0.0005"`
	AdamBeta1    float64 `env:"ADAM_BETA1" default:"0.9"`
	AdamBeta2    float64 `env:"ADAM_BETA2" default:"0.999"`
	AdamEps      float64 `env:"ADAM_EPS" default:"1e-8"`
	WeightDecay  float64 `env:"WEIGHT_DECAY" default:"0"`
	GradClip     float64 `env:"GRAD_CLIP" default:"0"` // <=0 disables
	Seed         int64   `env:"SEED" default:"1"`

	// Data + persistence
	TrainPath   string `env:"TRAIN_PATH" default:"../Data/training_data.csv"`
	TestPath    string `env:"TEST_PATH" default:"../Data/test_data.csv"`
	TrainStride int    `env:"TRAIN_STRIDE" default:"40"` // keep every Nth training line
	ModelPath   string `env:"MODEL_PATH" default:"../Data/model"`
	VocabPath   string `env:"VOCAB_PATH" default:"../Data/vocab.json"`
	Workers     int    `env:"LOADER_WORKERS" default:"2"`

	// Ambient
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	MetricsAddr string `env:"METRICS_ADDR"` // empty disables the /metrics listener
}

// Default returns the hyperparameters the classifier was tuned with.
func Default() Config {
	return Config{
		Threshold:     5,
		MaxLen:        100,
		EmbedSize:     128,
		HiddenSize:    128,
		NumLayers:     2,
		Bidirectional: true,
		Dropout:       0.5,
		NumClasses:    2,
		Epochs:        20,
		BatchSize:     32,
		LearningRate:  5e-4,
		AdamBeta1:     0.9,
		AdamBeta2:     0.999,
		AdamEps:       1e-8,
		Seed:          1,
		TrainPath:     "../Data/training_data.csv",
		TestPath:      "../Data/test_data.csv",
		TrainStride:   40,
		ModelPath:     "../Data/model",
		VocabPath:     "../Data/vocab.json",
		Workers:       2,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the model or loops cannot run with.
func (c *Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"VOCAB_THRESHOLD", c.Threshold},
		{"MAX_LEN", c.MaxLen},
		{"EMBED_SIZE", c.EmbedSize},
		{"HIDDEN_SIZE", c.HiddenSize},
		{"NUM_LAYERS", c.NumLayers},
		{"EPOCHS", c.Epochs},
		{"BATCH_SIZE", c.BatchSize},
		{"TRAIN_STRIDE", c.TrainStride},
		{"LOADER_WORKERS", c.Workers},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.NumClasses != 2 {
		return fmt.Errorf("NUM_CLASSES must be 2, got %d", c.NumClasses)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("DROPOUT must be in [0, 1), got %g", c.Dropout)
	}
	if c.LearningRate <= 0 {
		return errors.New("LEARNING_RATE must be positive")
	}
	if c.ModelPath == "" {
		return errors.New("MODEL_PATH is required")
	}
	return nil
}
