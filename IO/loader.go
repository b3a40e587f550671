package IO

import (
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// Batch is a group of encoded sequences and their labels, in loader order.
type Batch struct {
	Seqs   [][]int
	Labels []int
}

// Len is the number of examples in the batch.
func (b Batch) Len() int { return len(b.Labels) }

// Loader cuts an ExampleSource into batches. Batches are assembled ahead of the
// consumer by a small worker pool; workers only read the source.
type Loader struct {
	src       ExampleSource
	batchSize int
	shuffle   bool
	dropLast  bool
	workers   int
	rng       *rand.Rand
}

type LoaderOption func(*Loader)

// WithShuffle draws a fresh permutation from rng on every pass.
func WithShuffle(rng *rand.Rand) LoaderOption {
	return func(l *Loader) {
		l.shuffle = true
		l.rng = rng
	}
}

// WithDropLast discards the trailing partial batch.
func WithDropLast() LoaderOption {
	return func(l *Loader) { l.dropLast = true }
}

// WithWorkers sets the number of prefetch workers.
func WithWorkers(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

func NewLoader(src ExampleSource, batchSize int, opts ...LoaderOption) *Loader {
	if batchSize <= 0 {
		batchSize = 1
	}
	l := &Loader{src: src, batchSize: batchSize, workers: 1}
	for _, o := range opts {
		o(l)
	}
	if l.shuffle && l.rng == nil {
		l.rng = rand.New(rand.NewSource(1))
	}
	return l
}

// NumBatches is how many batches one pass yields.
func (l *Loader) NumBatches() int {
	n := l.src.Len()
	if l.dropLast {
		return n / l.batchSize
	}
	return (n + l.batchSize - 1) / l.batchSize
}

type batchResult struct {
	batch Batch
	err   error
}

// Each makes one pass over the source and calls yield for every batch, strictly
// in order. It stops at the first error from the source or from yield.
func (l *Loader) Each(yield func(Batch) error) error {
	n := l.NumBatches()
	if n == 0 {
		return nil
	}
	order := l.order()

	slots := make([]chan batchResult, n)
	for i := range slots {
		slots[i] = make(chan batchResult, 1)
	}
	done := make(chan struct{})
	defer close(done)
	window := make(chan struct{}, 2*l.workers) // bounded lookahead

	var g errgroup.Group
	g.SetLimit(l.workers)
	go func() {
		for i := 0; i < n; i++ {
			select {
			case window <- struct{}{}:
			case <-done:
				return
			}
			g.Go(func() error {
				b, err := l.assemble(order, i)
				slots[i] <- batchResult{batch: b, err: err}
				return nil
			})
		}
	}()

	for i := 0; i < n; i++ {
		r := <-slots[i]
		<-window
		if r.err != nil {
			return r.err
		}
		if err := yield(r.batch); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) order() []int {
	if l.shuffle {
		return l.rng.Perm(l.src.Len())
	}
	idx := make([]int, l.src.Len())
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func (l *Loader) assemble(order []int, b int) (Batch, error) {
	lo := b * l.batchSize
	hi := min(lo+l.batchSize, len(order))
	batch := Batch{
		Seqs:   make([][]int, 0, hi-lo),
		Labels: make([]int, 0, hi-lo),
	}
	for _, idx := range order[lo:hi] {
		seq, label, err := l.src.Example(idx)
		if err != nil {
			return Batch{}, err
		}
		batch.Seqs = append(batch.Seqs, append([]int(nil), seq...))
		batch.Labels = append(batch.Labels, label)
	}
	return batch, nil
}
