// Package metrics defines the Prometheus collectors for corpus loading,
// training, evaluation, prediction and checkpoint persistence.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Corpus Metrics
var (
	// CorpusRowsTotal counts corpus rows by outcome (kept, dropped, malformed)
	CorpusRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_corpus_rows_total",
			Help: "Corpus rows read, by outcome",
		},
		[]string{"outcome"},
	)
)

// Training Metrics
var (
	// TrainStepsTotal counts optimizer steps
	TrainStepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentiment_train_steps_total",
			Help: "Total optimizer steps applied",
		},
	)

	// TrainEpochsTotal counts completed epochs
	TrainEpochsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentiment_train_epochs_total",
			Help: "Total training epochs completed",
		},
	)

	// TrainEpochLoss is the mean batch loss of the last completed epoch
	TrainEpochLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentiment_train_epoch_loss",
			Help: "Mean cross-entropy loss of the last training epoch",
		},
	)

	// TrainEpochAccuracy is the mean batch accuracy (0-1) of the last completed epoch
	TrainEpochAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentiment_train_epoch_accuracy",
			Help: "Mean accuracy (0-1) of the last training epoch",
		},
	)

	// TrainEpochDuration tracks wall time per epoch in seconds
	TrainEpochDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentiment_train_epoch_duration_seconds",
			Help:    "Training epoch duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

// Evaluation & Inference Metrics
var (
	// EvalLoss is the mean loss of the last evaluation run
	EvalLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentiment_eval_loss",
			Help: "Mean cross-entropy loss of the last evaluation",
		},
	)

	// EvalAccuracy is the mean accuracy (0-1) of the last evaluation run
	EvalAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentiment_eval_accuracy",
			Help: "Mean accuracy (0-1) of the last evaluation",
		},
	)

	// PredictionsTotal counts predicted classes
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_predictions_total",
			Help: "Predictions made, by predicted class",
		},
		[]string{"class"},
	)
)

// Checkpoint Metrics
var (
	// CheckpointOpsTotal counts checkpoint saves/loads by status
	CheckpointOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_checkpoint_operations_total",
			Help: "Checkpoint operations by operation and status",
		},
		[]string{"operation", "status"},
	)
)

// ClassLabel is the label value used for a predicted class.
func ClassLabel(class int) string {
	switch class {
	case 0:
		return "negative"
	case 1:
		return "positive"
	default:
		return "unknown"
	}
}
