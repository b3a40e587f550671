package trainer

import (
	"fmt"

	"github.com/manningwu07/sentiment/IO"
	"github.com/manningwu07/sentiment/metrics"
	"github.com/manningwu07/sentiment/rnn"
	"github.com/manningwu07/sentiment/utils"
)

// Predict classifies raw texts one at a time and returns one class per text, in order.
// Texts go through the same cleaning and encoding as the corpus.
func Predict(model rnn.SequenceModel, vocab *IO.Vocabulary, texts []string, maxLen int) ([]int, error) {
	examples := make([]IO.Example, len(texts))
	for i, text := range texts {
		examples[i] = IO.Example{Label: 0, Tokens: IO.PreprocessString(text)}
	}
	ds, err := IO.NewEncodedDataset(IO.SplitTest, examples, vocab, maxLen)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	preds := make([]int, 0, len(texts))
	err = IO.NewLoader(ds, 1).Each(func(b IO.Batch) error {
		class := utils.RowArgmax(model.Forward(b.Seqs))[0]
		preds = append(preds, class)
		metrics.PredictionsTotal.WithLabelValues(metrics.ClassLabel(class)).Inc()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return preds, nil
}
