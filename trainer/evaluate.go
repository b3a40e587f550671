package trainer

import (
	"fmt"

	"github.com/manningwu07/sentiment/IO"
	"github.com/manningwu07/sentiment/metrics"
	"github.com/manningwu07/sentiment/rnn"
	"github.com/manningwu07/sentiment/utils"
)

// Evaluate runs model in inference mode over one pass of batches. It returns
// the predicted class of every example in source order together with the mean
// batch accuracy (fraction) and mean batch loss.
func Evaluate(model rnn.SequenceModel, batches BatchSource, loss LossFunc) (preds []int, acc, meanLoss float64, err error) {
	n := 0
	err = batches.Each(func(b IO.Batch) error {
		logits := model.Forward(b.Seqs)
		l, _ := loss(logits, b.Labels)
		meanLoss += l
		acc += utils.Accuracy(logits, b.Labels)
		preds = append(preds, utils.RowArgmax(logits)...)
		n++
		return nil
	})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("evaluate: %w", err)
	}
	if n == 0 {
		return nil, 0, 0, fmt.Errorf("evaluate: empty dataset: %w", IO.ErrConfiguration)
	}
	acc /= float64(n)
	meanLoss /= float64(n)

	metrics.EvalAccuracy.Set(acc)
	metrics.EvalLoss.Set(meanLoss)
	return preds, acc, meanLoss, nil
}
