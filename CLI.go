package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/manningwu07/sentiment/IO"
	"github.com/manningwu07/sentiment/metrics"
	"github.com/manningwu07/sentiment/rnn"
	"github.com/manningwu07/sentiment/trainer"
)

// ClassifyCLI reads one text per line from in and prints its sentiment until
// EOF or "exit".
func ClassifyCLI(model rnn.SequenceModel, vocab *IO.Vocabulary, maxLen int, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	fmt.Fprintln(out, "Type a tweet to classify. Type 'exit' to quit.")
	for {
		fmt.Fprint(out, "You: ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "exit" {
			return nil
		}
		if input != "" {
			preds, perr := trainer.Predict(model, vocab, []string{input}, maxLen)
			if perr != nil {
				return perr
			}
			fmt.Fprintln(out, "Sentiment:", metrics.ClassLabel(preds[0]))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
