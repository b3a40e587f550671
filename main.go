package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/manningwu07/sentiment/IO"
	"github.com/manningwu07/sentiment/logging"
	"github.com/manningwu07/sentiment/metrics"
	"github.com/manningwu07/sentiment/params"
	"github.com/manningwu07/sentiment/rnn"
	"github.com/manningwu07/sentiment/trainer"
)

var (
	forceFlag     bool
	evalFlag      bool
	cliFlag       bool
	inferOnlyFlag bool
	predictFlag   string
)

func init() {
	flag.BoolVar(&forceFlag, "force", false, "Retrain even if a checkpoint exists")
	flag.BoolVar(&evalFlag, "eval", false, "Evaluate the model on the test corpus")
	flag.BoolVar(&cliFlag, "cli", false, "Classify lines typed on stdin")
	flag.BoolVar(&inferOnlyFlag, "infer-only", false, "Load the checkpoint without reading the corpora (with -cli or -predict)")
	flag.StringVar(&predictFlag, "predict", "", "Classify a single text and exit")
}

func main() {
	flag.Parse()

	cfg, err := params.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	cfg.Workers = fitWorkers(cfg.Workers)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
		slog.Info("Serving metrics", "addr", cfg.MetricsAddr)
	}

	if err := run(*cfg); err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

// fitWorkers logs the host CPU and caps loader workers at its logical core count.
func fitWorkers(workers int) int {
	cpu := cpuid.CPU
	slog.Info("Host CPU",
		"brand", cpu.BrandName,
		"physical_cores", cpu.PhysicalCores,
		"logical_cores", cpu.LogicalCores,
		"avx2", cpu.Supports(cpuid.AVX2),
	)
	if cpu.LogicalCores > 0 && workers > cpu.LogicalCores {
		slog.Warn("Capping loader workers to logical cores", "requested", workers, "cores", cpu.LogicalCores)
		return cpu.LogicalCores
	}
	return workers
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func run(cfg params.Config) error {
	var (
		model *rnn.Classifier
		vocab *IO.Vocabulary
		err   error
	)
	if inferOnlyFlag && !forceFlag && !evalFlag {
		model, vocab, err = trainer.LoadForInference(cfg)
		if err != nil {
			return err
		}
	} else {
		m := trainer.NewManager(cfg)
		model, vocab, err = m.BuildOrLoadModel(forceFlag)
		if err != nil {
			return err
		}
		if evalFlag {
			_, acc, loss, err := m.EvaluateTestSet(model)
			if err != nil {
				return err
			}
			fmt.Printf("Test loss: %.4f | Test accuracy: %.2f%%\n", loss, 100*acc)
		}
	}

	if predictFlag != "" {
		preds, err := trainer.Predict(model, vocab, []string{predictFlag}, cfg.MaxLen)
		if err != nil {
			return err
		}
		fmt.Println(metrics.ClassLabel(preds[0]))
	}

	if cliFlag {
		return ClassifyCLI(model, vocab, cfg.MaxLen, os.Stdin, os.Stdout)
	}
	return nil
}
