package IO

import (
	"errors"
	"io"
	"strings"
	"testing/iotest"
	"testing"

	"github.com/manningwu07/sentiment/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessString(t *testing.T) {
	assert.Equal(t, []string{"@bob", "this", "is", "great"}, PreprocessString("@bob this is... great!!"))
	assert.Equal(t, []string{"dont", "stop"}, PreprocessString("don't   stop"))
	assert.Empty(t, PreprocessString("?!"))
}

func TestParseRow(t *testing.T) {
	tests := []struct {
		name      string
		record    []string
		wantOK    bool
		wantLabel int
		wantToks  []string
		wantErr   bool
	}{
		{"negative", []string{"0", "1", "d", "q", "u", "so sad"}, true, 0, []string{"so", "sad"}, false},
		{"positive maps 4 to 1", []string{"4", "1", "d", "q", "u", "Yay, fun!"}, true, 1, []string{"Yay", "fun"}, false},
		{"neutral dropped", []string{"2", "1", "d", "q", "u", "ok"}, false, 0, nil, false},
		{"unknown code dropped", []string{"3", "1", "d", "q", "u", "ok"}, false, 0, nil, false},
		{"too few fields", []string{"0", "1"}, false, 0, nil, true},
		{"label not a number", []string{"x", "1", "d", "q", "u", "ok"}, false, 0, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, ok, err := ParseRow(tt.record)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantLabel, ex.Label)
				assert.Equal(t, tt.wantToks, ex.Tokens)
			}
		})
	}
}

func TestReadCorpus(t *testing.T) {
	csvData := strings.Join([]string{
		`"0","1","Mon","NO_QUERY","a","I hate mondays"`,
		`"4","2","Mon","NO_QUERY","b","love, this"`,
		`"2","3","Mon","NO_QUERY","c","meh"`,
		`"zz","4","Mon","NO_QUERY","d","broken label"`,
		`"4","5","Mon","NO_QUERY","e","great day"`,
	}, "\n")

	examples, err := ReadCorpus(strings.NewReader(csvData), 1)
	require.NoError(t, err)
	require.Len(t, examples, 3)
	assert.Equal(t, Example{Label: 0, Tokens: []string{"I", "hate", "mondays"}}, examples[0])
	assert.Equal(t, Example{Label: 1, Tokens: []string{"love", "this"}}, examples[1])
	assert.Equal(t, Example{Label: 1, Tokens: []string{"great", "day"}}, examples[2])
}

func TestReadCorpus_Stride(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, `"4","1","d","q","u","word"`)
	}

	examples, err := ReadCorpus(strings.NewReader(strings.Join(lines, "\n")), 4)
	require.NoError(t, err)
	assert.Len(t, examples, 3) // lines 0, 4, 8
}

func TestReadCorpus_StrideSkipsBeforeCounting(t *testing.T) {
	csvData := strings.Join([]string{
		`"4","1","d","q","u","kept"`,
		`"zz","2","d","q","u","skipped by stride"`,
		`"zz","3","d","q","u","counted"`,
		`"0","4","d","q","u","skipped too"`,
	}, "\n")
	malformed := metrics.CorpusRowsTotal.WithLabelValues("malformed")
	before := testutil.ToFloat64(malformed)

	examples, err := ReadCorpus(strings.NewReader(csvData), 2)
	require.NoError(t, err)
	assert.Len(t, examples, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(malformed)-before, 1e-9)
}

func TestReadCorpus_StrideCountsRecords(t *testing.T) {
	// the first record spans two physical lines
	csvData := strings.Join([]string{
		`"4","1","d","q","u","first` + "\n" + `half"`,
		`"0","2","d","q","u","second"`,
		`"4","3","d","q","u","third"`,
	}, "\n")

	examples, err := ReadCorpus(strings.NewReader(csvData), 2)
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, []string{"first", "half"}, examples[0].Tokens)
	assert.Equal(t, []string{"third"}, examples[1].Tokens)
}

func TestReadCorpus_ReadErrorOnSkippedRecordIsFatal(t *testing.T) {
	boom := errors.New("disk gone")
	r := io.MultiReader(
		strings.NewReader(`"4","1","d","q","u","kept"`+"\n"),
		iotest.ErrReader(boom),
	)

	_, err := ReadCorpus(r, 2)
	assert.ErrorIs(t, err, boom)
}
