package trainer

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"slices"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/manningwu07/sentiment/IO"
	"github.com/manningwu07/sentiment/metrics"
	"github.com/manningwu07/sentiment/optimizations"
	"github.com/manningwu07/sentiment/params"
	"github.com/manningwu07/sentiment/rnn"
	"github.com/manningwu07/sentiment/utils"
)

// TrainFunc fits a freshly built classifier on the training split.
type TrainFunc func(model *rnn.Classifier, train *IO.Dataset) ([]EpochStats, error)

// Manager owns the datasets of a run and decides whether the classifier is
// loaded from its checkpoint or trained from scratch.
type Manager struct {
	cfg    params.Config
	clock  clockwork.Clock
	logger *slog.Logger
	train  TrainFunc

	trainSet *IO.Dataset
	testSet  *IO.Dataset
}

type ManagerOption func(*Manager)

// WithTrainFunc replaces the default Adam/cross-entropy training run.
func WithTrainFunc(fn TrainFunc) ManagerOption {
	return func(m *Manager) { m.train = fn }
}

func WithManagerClock(c clockwork.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

func NewManager(cfg params.Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	m.train = m.defaultTrain
	for _, o := range opts {
		o(m)
	}
	return m
}

// TrainSet and TestSet are nil until BuildOrLoadModel has loaded the corpora.
func (m *Manager) TrainSet() *IO.Dataset { return m.trainSet }
func (m *Manager) TestSet() *IO.Dataset  { return m.testSet }

// Hyperparameters derives the classifier shape from cfg for a vocabulary of vocabSize.
func Hyperparameters(cfg params.Config, vocabSize int) rnn.Hyperparameters {
	return rnn.Hyperparameters{
		VocabSize:     vocabSize,
		EmbedSize:     cfg.EmbedSize,
		HiddenSize:    cfg.HiddenSize,
		NumLayers:     cfg.NumLayers,
		Bidirectional: cfg.Bidirectional,
		Dropout:       cfg.Dropout,
		NumClasses:    cfg.NumClasses,
		PadIdx:        IO.PadID,
	}
}

// BuildOrLoadModel loads both corpora, rebuilds the vocabulary from the training
// split and returns the checkpointed classifier when one exists. Otherwise, or
// when forceRebuild is set, it trains a new classifier and saves it.
func (m *Manager) BuildOrLoadModel(forceRebuild bool) (*rnn.Classifier, *IO.Vocabulary, error) {
	if err := m.loadDatasets(); err != nil {
		return nil, nil, err
	}
	vocab := m.trainSet.Vocabulary()
	m.logger.Info("Datasets ready",
		"train", m.trainSet.Len(),
		"test", m.testSet.Len(),
		"vocab_size", vocab.Size(),
	)

	if !forceRebuild {
		model, meta, err := rnn.LoadClassifier(m.cfg.ModelPath)
		switch {
		case err == nil:
			metrics.CheckpointOpsTotal.WithLabelValues("load", "success").Inc()
			if !slices.Equal(meta.Vocab, vocab.IDToToken) {
				return nil, nil, fmt.Errorf("%w: checkpoint %s was trained on a different vocabulary (%d tokens, corpus gives %d)",
					IO.ErrConfiguration, m.cfg.ModelPath, len(meta.Vocab), vocab.Size())
			}
			m.logger.Info("Loaded model", "path", m.cfg.ModelPath, "run_id", meta.RunID)
			return model, vocab, nil
		case errors.Is(err, fs.ErrNotExist):
			m.logger.Info("No checkpoint found, training a new model", "path", m.cfg.ModelPath)
		default:
			metrics.CheckpointOpsTotal.WithLabelValues("load", "error").Inc()
			return nil, nil, err
		}
	}

	rng := rand.New(rand.NewSource(m.cfg.Seed))
	model, err := rnn.NewClassifier(Hyperparameters(m.cfg, vocab.Size()), rng)
	if err != nil {
		return nil, nil, err
	}
	runID := uuid.NewString()
	log := m.logger.With("run_id", runID)
	log.Info("Training started", "epochs", m.cfg.Epochs, "batch_size", m.cfg.BatchSize)

	start := m.clock.Now()
	stats, err := m.train(model, m.trainSet)
	if err != nil {
		return nil, nil, err
	}
	if len(stats) > 0 {
		last := stats[len(stats)-1]
		log.Info("Training finished",
			"loss", last.Loss,
			"accuracy_pct", 100*last.Accuracy,
			"duration", m.clock.Since(start),
		)
	}

	if err := rnn.SaveClassifier(model, rnn.Metadata{RunID: runID, Vocab: vocab.IDToToken}, m.cfg.ModelPath); err != nil {
		metrics.CheckpointOpsTotal.WithLabelValues("save", "error").Inc()
		return nil, nil, err
	}
	metrics.CheckpointOpsTotal.WithLabelValues("save", "success").Inc()
	log.Info("Saved model", "path", m.cfg.ModelPath)

	if m.cfg.VocabPath != "" {
		if err := IO.ExportVocabJSON(vocab, m.cfg.VocabPath); err != nil {
			return nil, nil, fmt.Errorf("export vocabulary: %w", err)
		}
	}
	return model, vocab, nil
}

// LoadForInference restores a classifier and its vocabulary from the checkpoint
// alone, without reading either corpus. When a vocabulary export exists next to
// it, the two token lists must be identical.
func LoadForInference(cfg params.Config) (*rnn.Classifier, *IO.Vocabulary, error) {
	model, meta, err := rnn.LoadClassifier(cfg.ModelPath)
	if err != nil {
		metrics.CheckpointOpsTotal.WithLabelValues("load", "error").Inc()
		return nil, nil, err
	}
	metrics.CheckpointOpsTotal.WithLabelValues("load", "success").Inc()
	vocab, err := IO.VocabularyFromTokens(meta.Vocab)
	if err != nil {
		return nil, nil, err
	}

	if cfg.VocabPath != "" {
		exported, err := IO.ImportVocabJSON(cfg.VocabPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, nil, fmt.Errorf("import vocabulary: %w", err)
		case !slices.Equal(exported.IDToToken, vocab.IDToToken):
			return nil, nil, fmt.Errorf("%w: %s does not match the checkpoint vocabulary (%d tokens, checkpoint has %d)",
				IO.ErrConfiguration, cfg.VocabPath, exported.Size(), vocab.Size())
		}
	}
	slog.Info("Loaded model", "path", cfg.ModelPath, "run_id", meta.RunID, "vocab_size", vocab.Size())
	return model, vocab, nil
}

func (m *Manager) loadDatasets() error {
	trainEx, err := IO.LoadCorpus(m.cfg.TrainPath, m.cfg.TrainStride)
	if err != nil {
		return fmt.Errorf("load training corpus: %w", err)
	}
	testEx, err := IO.LoadCorpus(m.cfg.TestPath, 1)
	if err != nil {
		return fmt.Errorf("load test corpus: %w", err)
	}

	trainSet, err := IO.NewDataset(IO.SplitTrain, trainEx, nil, m.cfg.Threshold, m.cfg.MaxLen)
	if err != nil {
		return err
	}
	testSet, err := IO.NewDataset(IO.SplitTest, testEx, trainSet.Vocabulary(), m.cfg.Threshold, m.cfg.MaxLen)
	if err != nil {
		return err
	}
	m.trainSet, m.testSet = trainSet, testSet
	return nil
}

func (m *Manager) defaultTrain(model *rnn.Classifier, train *IO.Dataset) ([]EpochStats, error) {
	cfg := m.cfg
	loader := IO.NewLoader(train, cfg.BatchSize,
		IO.WithShuffle(rand.New(rand.NewSource(cfg.Seed+1))),
		IO.WithDropLast(),
		IO.WithWorkers(cfg.Workers),
	)
	opt := optimizations.NewAdam(cfg.LearningRate, cfg.AdamBeta1, cfg.AdamBeta2, cfg.AdamEps, cfg.WeightDecay)
	return Train(model, cfg.Epochs, loader, opt, utils.CrossEntropy,
		WithClock(m.clock),
		WithDropoutRNG(rand.New(rand.NewSource(cfg.Seed+2))),
		WithGradClip(cfg.GradClip),
		WithLogger(m.logger),
	)
}

// EvaluateTestSet scores model on the test split with batch size 1, in file order.
func (m *Manager) EvaluateTestSet(model rnn.SequenceModel) (preds []int, acc, loss float64, err error) {
	if m.testSet == nil {
		return nil, 0, 0, fmt.Errorf("%w: test set not loaded", IO.ErrConfiguration)
	}
	preds, acc, loss, err = Evaluate(model, IO.NewLoader(m.testSet, 1, IO.WithWorkers(m.cfg.Workers)), utils.CrossEntropy)
	if err != nil {
		return nil, 0, 0, err
	}
	m.logger.Info("Evaluation complete", "examples", len(preds), "loss", loss, "accuracy_pct", 100*acc)
	return preds, acc, loss, nil
}
