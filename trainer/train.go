package trainer

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/manningwu07/sentiment/IO"
	"github.com/manningwu07/sentiment/metrics"
	"github.com/manningwu07/sentiment/optimizations"
	"github.com/manningwu07/sentiment/rnn"
	"github.com/manningwu07/sentiment/utils"
	"gonum.org/v1/gonum/mat"
)

// Trainable is a SequenceModel that can also be fit.
type Trainable interface {
	rnn.SequenceModel
	ForwardTrain(batch [][]int, rng *rand.Rand) (*mat.Dense, *rnn.Trace)
	Backward(tr *rnn.Trace, dLogits *mat.Dense)
	ZeroGrad()
	Params() []optimizations.Param
}

// BatchSource yields one pass of batches per Each call.
type BatchSource interface {
	Each(yield func(IO.Batch) error) error
	NumBatches() int
}

type Optimizer interface {
	Step(params []optimizations.Param)
}

// LossFunc returns the mean loss of a batch and its gradient with respect to logits.
type LossFunc func(logits *mat.Dense, labels []int) (float64, *mat.Dense)

// EpochStats are batch means over one epoch. Accuracy is a fraction in [0, 1].
type EpochStats struct {
	Epoch    int
	Loss     float64
	Accuracy float64
	Duration time.Duration
}

type trainOptions struct {
	clock    clockwork.Clock
	rng      *rand.Rand
	gradClip float64
	logger   *slog.Logger
}

type TrainOption func(*trainOptions)

// WithClock sets the clock used for epoch durations.
func WithClock(c clockwork.Clock) TrainOption {
	return func(o *trainOptions) { o.clock = c }
}

// WithDropoutRNG sets the source of dropout masks.
func WithDropoutRNG(rng *rand.Rand) TrainOption {
	return func(o *trainOptions) { o.rng = rng }
}

// WithGradClip rescales the global gradient norm to at most maxNorm before each step.
func WithGradClip(maxNorm float64) TrainOption {
	return func(o *trainOptions) { o.gradClip = maxNorm }
}

func WithLogger(l *slog.Logger) TrainOption {
	return func(o *trainOptions) { o.logger = l }
}

// Train fits model for the given number of epochs. Every batch is one
// zero-grad, forward, loss, backward, step cycle, strictly in sequence.
func Train(model Trainable, epochs int, batches BatchSource, opt Optimizer, loss LossFunc, opts ...TrainOption) ([]EpochStats, error) {
	o := trainOptions{
		clock:  clockwork.NewRealClock(),
		rng:    rand.New(rand.NewSource(1)),
		logger: slog.Default(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	if epochs <= 0 {
		return nil, fmt.Errorf("train: epochs must be positive, got %d: %w", epochs, IO.ErrConfiguration)
	}
	if batches.NumBatches() == 0 {
		return nil, fmt.Errorf("train: no full batch in training set: %w", IO.ErrConfiguration)
	}

	params := model.Params()
	grads := make([]*mat.Dense, len(params))
	for i, p := range params {
		grads[i] = p.Grad
	}

	stats := make([]EpochStats, 0, epochs)
	for epoch := 1; epoch <= epochs; epoch++ {
		start := o.clock.Now()
		var sumLoss, sumAcc float64
		n := 0

		err := batches.Each(func(b IO.Batch) error {
			model.ZeroGrad()
			logits, tr := model.ForwardTrain(b.Seqs, o.rng)
			acc := utils.Accuracy(logits, b.Labels)
			l, dLogits := loss(logits, b.Labels)
			model.Backward(tr, dLogits)
			if o.gradClip > 0 {
				utils.ClipGrads(o.gradClip, grads...)
			}
			opt.Step(params)

			sumLoss += l
			sumAcc += acc
			n++
			metrics.TrainStepsTotal.Inc()
			return nil
		})
		if err != nil {
			return stats, fmt.Errorf("train: epoch %d: %w", epoch, err)
		}

		s := EpochStats{
			Epoch:    epoch,
			Loss:     sumLoss / float64(n),
			Accuracy: sumAcc / float64(n),
			Duration: o.clock.Since(start),
		}
		stats = append(stats, s)

		metrics.TrainEpochsTotal.Inc()
		metrics.TrainEpochLoss.Set(s.Loss)
		metrics.TrainEpochAccuracy.Set(s.Accuracy)
		metrics.TrainEpochDuration.Observe(s.Duration.Seconds())
		o.logger.Info("Epoch complete",
			"epoch", epoch,
			"epochs", epochs,
			"loss", s.Loss,
			"accuracy_pct", 100*s.Accuracy,
			"duration", s.Duration,
		)
	}
	return stats, nil
}
