package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/henkan/internal/embedding"
	"github.com/hyperjump/henkan/internal/framer"
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/storage"
	"github.com/hyperjump/henkan/internal/vocab"
)

const sampleCorpus = `Зачем нужен этот класс? %% Для подготовки данных
Привет! %% Привет, как дела?
вопрос без разделителя

Как дела? %%
?!.. %% ответ
один %% два %% три
Что ты умеешь? %% Отвечать на вопросы.
`

func newCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := NewCodec(opts...)
	require.NoError(t, err)
	return c
}

func TestParseCorpus(t *testing.T) {
	c := newCodec(t)
	pairs, stats, err := c.ParseCorpus(strings.NewReader(sampleCorpus))
	require.NoError(t, err)

	assert.Equal(t, 8, stats.Lines)
	assert.Equal(t, 3, stats.Malformed, "no separator, blank line, two separators")
	assert.Equal(t, 1, stats.Empty)
	require.Len(t, pairs, 4)
	assert.Equal(t, RawPair{Line: 1, Question: "Зачем нужен этот класс?", Answer: "Для подготовки данных"}, pairs[0])
	assert.Equal(t, 8, pairs[3].Line)
}

func TestParseCorpus_overlongLine(t *testing.T) {
	c := newCodec(t)
	long := strings.Repeat("очень ", maxLineBytes/len("очень ")+1) + "%% ответ"
	in := "Привет! %% Привет\n" + long + "\nКак дела? %% Хорошо\n"

	pairs, stats, err := c.ParseCorpus(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Lines)
	assert.Equal(t, 1, stats.Malformed)
	require.Len(t, pairs, 2)
	assert.Equal(t, 3, pairs[1].Line)

	corpus, err := c.PrepareCorpus(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, corpus.Stats.Kept)
	assert.Equal(t, 1, corpus.Stats.Malformed)

	questions, err := ListKnownQuestions(strings.NewReader(in), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Привет!", "Как дела?"}, questions)
}

func TestParseLine_malformed(t *testing.T) {
	_, err := parseLine(3, "вопрос без разделителя")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedPair))
	var me *MalformedPairError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 3, me.Line)
}

func TestPrepareCorpus(t *testing.T) {
	c := newCodec(t)
	corpus, err := c.PrepareCorpus(context.Background(), strings.NewReader(sampleCorpus))
	require.NoError(t, err)

	assert.NotEmpty(t, corpus.ID)
	assert.Len(t, corpus.Fingerprint, 64)
	assert.Equal(t, 3, corpus.Stats.Kept)
	assert.Equal(t, 2, corpus.Stats.Empty, "empty field plus a question that cleans to nothing")
	assert.Equal(t, 3, corpus.Stats.Malformed)
	assert.Equal(t, 5, corpus.Stats.Dropped())

	// longest side: "привет , как дела ?" = 5 tokens
	assert.Equal(t, 7, corpus.Length)
	for _, p := range corpus.Pairs {
		assert.Len(t, p.Question, corpus.Length)
		assert.Len(t, p.Answer, corpus.Length)
	}
	want := []string{models.TokenPad, models.TokenPad, "класс", "этот", "нужен", "зачем", models.TokenGo}
	assert.Equal(t, want, corpus.Pairs[0].Question)
	assert.Equal(t, []string{"для", "подготовки", "данных", models.TokenEOS, models.TokenPad, models.TokenPad, models.TokenPad},
		corpus.Pairs[0].Answer)

	assert.Equal(t, models.LengthStats{Min: 1, Max: 4, Median: 3}, corpus.Stats.Questions)
	assert.Equal(t, models.LengthStats{Min: 3, Max: 5, Median: 3}, corpus.Stats.Answers)
}

func TestPrepareCorpus_oversize(t *testing.T) {
	c := newCodec(t, WithMaxTokens(3))
	in := "раз два три четыре %% да\nкороткий %% ответ"
	corpus, err := c.PrepareCorpus(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, corpus.Stats.Oversize)
	assert.Equal(t, 1, corpus.Stats.Kept)
	assert.Equal(t, 3, corpus.Length)
}

func TestPrepareCorpus_empty(t *testing.T) {
	c := newCodec(t)
	_, err := c.PrepareCorpus(context.Background(), strings.NewReader("вопрос без разделителя\n"))
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestPrepareFile_fingerprint(t *testing.T) {
	c := newCodec(t)
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleCorpus), 0644))

	corpus, err := c.PrepareFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, corpus.Source)

	fp, err := c.Fingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, corpus.Fingerprint, fp)
}

func TestListKnownQuestions(t *testing.T) {
	got, err := ListKnownQuestions(strings.NewReader(sampleCorpus), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Зачем нужен этот класс?",
		"Привет!",
		"вопрос без разделителя",
		"Как дела?",
		"?!..",
		"один",
		"Что ты умеешь?",
	}, got)

	got, err = ListKnownQuestions(strings.NewReader(sampleCorpus), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPrepareQuestion(t *testing.T) {
	got, err := PrepareQuestion("Зачем нужен этот класс?", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{models.TokenPad, models.TokenPad, "класс", "этот", "нужен", "зачем", models.TokenGo}, got)

	_, err = PrepareQuestion("раз два три четыре пять шесть", 7)
	assert.ErrorIs(t, err, framer.ErrOversizeSequence)

	got, err = PrepareQuestion("?!", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{models.TokenPad, models.TokenPad, models.TokenPad, models.TokenGo}, got)
}

func buildFixture(t *testing.T, c *Codec) (*models.PreparedCorpus, *vocab.Vocabulary, Artifacts) {
	t.Helper()
	corpus, err := c.PrepareCorpus(context.Background(), strings.NewReader(sampleCorpus))
	require.NoError(t, err)
	dir := t.TempDir()
	artifacts := Artifacts{
		Table:     filepath.Join(dir, "w2v.bin"),
		Listing:   filepath.Join(dir, "vocab.txt"),
		Neighbors: filepath.Join(dir, "neighbors.txt"),
	}
	v, err := c.BuildVocabulary(context.Background(), corpus, embedding.NewCooccurrenceTrainer(),
		embedding.Params{VectorSize: 32, Window: 3, Epochs: 2, Seed: 5}, artifacts)
	require.NoError(t, err)
	return corpus, v, artifacts
}

func TestBuildVocabulary(t *testing.T) {
	c := newCodec(t)
	corpus, v, artifacts := buildFixture(t, c)

	for _, p := range corpus.Pairs {
		for _, tok := range append(p.Question, p.Answer...) {
			assert.True(t, v.Has(tok), "token %q missing", tok)
		}
	}
	loaded, err := vocab.Load(artifacts.Table)
	require.NoError(t, err)
	assert.Equal(t, v.Tokens(), loaded.Tokens())

	listing, err := os.ReadFile(artifacts.Listing)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(listing)), "\n"), v.Size())

	report, err := os.ReadFile(artifacts.Neighbors)
	require.NoError(t, err)
	for _, row := range strings.Split(strings.TrimSpace(string(report)), "\n") {
		_, neighbors, ok := strings.Cut(row, "\t")
		require.True(t, ok)
		assert.Len(t, strings.Fields(neighbors), vocab.DefaultReportNeighbors)
	}
}

func TestEncodeCorpus_orderAndRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var calls []int
	c := newCodec(t, WithWorkers(4), WithProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, done)
	}))
	corpus, v, _ := buildFixture(t, c)
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "corpus.hnke"))

	res, err := c.EncodeCorpus(context.Background(), corpus, v, store, 0)
	require.NoError(t, err)
	assert.Equal(t, corpus.Size(), res.Meta.Pairs)
	assert.Equal(t, 0, res.Lost)
	assert.Len(t, calls, corpus.Size())
	assert.Equal(t, corpus.Size(), calls[len(calls)-1])

	meta, pairs, err := store.ReadEncoded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Meta, meta)
	for i, p := range pairs {
		assert.Equal(t, corpus.Pairs[i].Question, v.Decode(p.Question), "pair %d question", i)
		assert.Equal(t, corpus.Pairs[i].Answer, v.Decode(p.Answer), "pair %d answer", i)
	}
}

func TestEncodeCorpus_limitAndLost(t *testing.T) {
	c := newCodec(t, WithWorkers(2))
	corpus, _, _ := buildFixture(t, c)
	small, err := vocab.New(
		[]string{models.TokenPad, models.TokenGo, models.TokenEOS},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	)
	require.NoError(t, err)

	store, err := storage.OpenBadgerStore("", true, nil)
	require.NoError(t, err)
	defer store.Close()

	res, err := c.EncodeCorpus(context.Background(), corpus, small, store, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Meta.Pairs)
	// зачем нужен этот класс + для подготовки данных
	assert.Equal(t, 7, res.Lost)
	assert.Contains(t, res.Unknown, "класс")

	_, pairs, err := store.ReadEncoded(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Len(t, pairs[0].Question, corpus.Length)
}

func TestEncodeCorpus_cancelled(t *testing.T) {
	c := newCodec(t)
	corpus, v, _ := buildFixture(t, c)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.EncodeCorpus(ctx, corpus, v, storage.NewFileStore(filepath.Join(t.TempDir(), "x")), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewCodec_invalidOptions(t *testing.T) {
	_, err := NewCodec(WithWorkers(0))
	assert.Error(t, err)
	_, err = NewCodec(WithMaxTokens(0))
	assert.Error(t, err)
}
