package IO

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/manningwu07/sentiment/metrics"
)

// Example is one labeled post: 0 negative, 1 positive.
type Example struct {
	Label  int
	Tokens []string
}

// ASCII punctuation; '@' is kept so mentions stay one token.
const punctuation = "!\"#$%&'()*+,-./:;<=>?[\\]^_`{|}~"

// Corpus column layout: polarity, id, date, query, user, text.
const (
	labelField = 0
	textField  = 5
)

// PreprocessString strips punctuation (except '@') and splits on whitespace.
func PreprocessString(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, s)
	return strings.Fields(cleaned)
}

// ParseRow turns one CSV record into an Example. ok is false for rows that carry
// a neutral (or otherwise unknown) polarity and must not reach a Dataset.
func ParseRow(record []string) (ex Example, ok bool, err error) {
	if len(record) <= textField {
		return Example{}, false, fmt.Errorf("%w: want at least %d fields, got %d", ErrMalformedRow, textField+1, len(record))
	}
	code, err := strconv.Atoi(strings.TrimSpace(record[labelField]))
	if err != nil {
		return Example{}, false, fmt.Errorf("%w: label %q: %v", ErrMalformedRow, record[labelField], err)
	}

	switch code {
	case 0:
		ex.Label = 0
	case 4:
		ex.Label = 1
	default:
		return Example{}, false, nil
	}
	ex.Tokens = PreprocessString(record[textField])
	return ex, true, nil
}

// LoadCorpus reads a labeled CSV file, keeping every stride-th line (stride 1
// keeps all). Malformed rows are logged and skipped; I/O errors are returned.
func LoadCorpus(path string, stride int) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCorpus(f, stride)
}

// ReadCorpus is LoadCorpus over an arbitrary reader.
func ReadCorpus(r io.Reader, stride int) ([]Example, error) {
	if stride <= 0 {
		stride = 1
	}
	cr := csv.NewReader(bufio.NewReaderSize(r, 1<<20)) // 1MB buffer
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var out []Example
	// the stride counts CSV records; a quoted newline does not start a new record
	for rec := 0; ; rec++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		var pe *csv.ParseError
		if err != nil && !errors.As(err, &pe) {
			return nil, err
		}
		if rec%stride != 0 {
			continue
		}
		if pe != nil {
			slog.Warn("Skipping unparsable corpus row", "record", rec+1, "line", pe.StartLine, "error", err)
			metrics.CorpusRowsTotal.WithLabelValues("malformed").Inc()
			continue
		}

		ex, ok, err := ParseRow(record)
		switch {
		case err != nil:
			line, _ := cr.FieldPos(0)
			slog.Warn("Skipping malformed corpus row", "record", rec+1, "line", line, "error", err)
			metrics.CorpusRowsTotal.WithLabelValues("malformed").Inc()
		case !ok:
			metrics.CorpusRowsTotal.WithLabelValues("dropped").Inc()
		default:
			metrics.CorpusRowsTotal.WithLabelValues("kept").Inc()
			out = append(out, ex)
		}
	}
	return out, nil
}
