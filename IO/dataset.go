package IO

import "fmt"

// Split names the role a Dataset plays in a run.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// ExampleSource is indexed access to encoded examples.
type ExampleSource interface {
	Len() int
	Example(i int) (seq []int, label int, err error)
}

// Dataset holds fixed-length encoded sequences with their labels.
// Encoding happens once at construction; afterwards it is read-only and safe
// for concurrent readers.
type Dataset struct {
	split  Split
	vocab  *Vocabulary
	maxLen int
	seqs   [][]int
	labels []int
}

// NewTrainDataset builds the vocabulary from examples and encodes them with it.
func NewTrainDataset(examples []Example, threshold, maxLen int) (*Dataset, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("%w: max length must be positive, got %d", ErrConfiguration, maxLen)
	}
	return encode(SplitTrain, examples, BuildVocabulary(examples, threshold), maxLen), nil
}

// NewEncodedDataset encodes a validation/test split with an existing vocabulary.
func NewEncodedDataset(split Split, examples []Example, vocab *Vocabulary, maxLen int) (*Dataset, error) {
	if split == SplitTrain {
		return nil, fmt.Errorf("%w: the train split builds its own vocabulary", ErrConfiguration)
	}
	if vocab == nil {
		return nil, fmt.Errorf("%w: %s split needs the training vocabulary", ErrConfiguration, split)
	}
	if maxLen <= 0 {
		return nil, fmt.Errorf("%w: max length must be positive, got %d", ErrConfiguration, maxLen)
	}
	return encode(split, examples, vocab, maxLen), nil
}

// NewDataset picks the variant by split. Only the train split may build a
// vocabulary; any other split without one is rejected.
func NewDataset(split Split, examples []Example, vocab *Vocabulary, threshold, maxLen int) (*Dataset, error) {
	switch split {
	case SplitTrain:
		if vocab != nil {
			return nil, fmt.Errorf("%w: the train split does not accept an external vocabulary", ErrConfiguration)
		}
		return NewTrainDataset(examples, threshold, maxLen)
	case SplitVal, SplitTest:
		return NewEncodedDataset(split, examples, vocab, maxLen)
	default:
		return nil, fmt.Errorf("%w: unknown split %q", ErrConfiguration, split)
	}
}

func encode(split Split, examples []Example, vocab *Vocabulary, maxLen int) *Dataset {
	d := &Dataset{
		split:  split,
		vocab:  vocab,
		maxLen: maxLen,
		seqs:   make([][]int, len(examples)),
		labels: make([]int, len(examples)),
	}
	for i, ex := range examples {
		d.seqs[i] = vocab.Encode(ex.Tokens, maxLen)
		if ex.Label == 1 {
			d.labels[i] = 1
		}
	}
	return d
}

// Len is the number of retained examples.
func (d *Dataset) Len() int { return len(d.seqs) }

// Example returns the encoded sequence and label at i.
func (d *Dataset) Example(i int) ([]int, int, error) {
	if i < 0 || i >= len(d.seqs) {
		return nil, 0, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(d.seqs))
	}
	return d.seqs[i], d.labels[i], nil
}

func (d *Dataset) Vocabulary() *Vocabulary { return d.vocab }
func (d *Dataset) Split() Split            { return d.split }
func (d *Dataset) MaxLen() int             { return d.maxLen }
