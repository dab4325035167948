package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/resilience"
)

type recordingNotifier struct {
	runs []BuildRun
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, run BuildRun) error {
	r.runs = append(r.runs, run)
	return r.err
}

func newTestConfig(t *testing.T) config.IndexConfig {
	root := t.TempDir()
	return config.IndexConfig{
		TokenizerDir: filepath.Join(root, "output_tokenizer"),
		ConstructDir: filepath.Join(root, "output_index_construct"),
	}
}

func writeCorpus(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range docs {
		content := "<html><body>" + body + "</body></html>"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestBuild(t *testing.T) {
	cfg := newTestConfig(t)
	corpusDir := writeCorpus(t, map[string]string{
		"a.html": "cat dog cat",
		"b.html": "dog bird",
	})
	notifier := &recordingNotifier{}
	m := metrics.New()
	engine, err := NewEngine(cfg, WithNotifier(notifier), WithMetrics(m))
	require.NoError(t, err)

	tok, con, err := engine.Build(context.Background(), corpusDir)
	require.NoError(t, err)

	assert.Equal(t, 2, tok.Processed)
	assert.Equal(t, 3, con.Terms)
	assert.EqualValues(t, 5, con.Postings)
	assert.Equal(t, 2, con.Documents)

	postings, err := os.ReadFile(filepath.Join(cfg.ConstructDir, index.TermIndexFile))
	require.NoError(t, err)
	assert.Equal(t, "1\t1:1\t0:2\n2\t1:2\t1:1\n3\t2:2\n", string(postings))

	info, err := os.ReadFile(filepath.Join(cfg.ConstructDir, index.TermInfoFile))
	require.NoError(t, err)
	assert.Equal(t, "1\t0\t2\t1\n2\t10\t2\t2\n3\t20\t1\t1\n", string(info))

	require.Len(t, notifier.runs, 2)
	assert.Equal(t, StageTokenize, notifier.runs[0].Stage)
	assert.Equal(t, corpusDir, notifier.runs[0].CorpusDir)
	assert.Equal(t, StageConstruct, notifier.runs[1].Stage)
	assert.Equal(t, con.Checksum, notifier.runs[1].Checksum)
	assert.NotEqual(t, notifier.runs[0].ID, notifier.runs[1].ID)
}

func TestConstructIsDeterministic(t *testing.T) {
	cfg := newTestConfig(t)
	corpusDir := writeCorpus(t, map[string]string{"a.html": "alpha beta alpha gamma beta"})
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	_, err = engine.Tokenize(context.Background(), corpusDir)
	require.NoError(t, err)

	first, err := engine.Construct(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(first.TermIndexPath)
	require.NoError(t, err)

	second, err := engine.Construct(context.Background())
	require.NoError(t, err)
	after, err := os.ReadFile(second.TermIndexPath)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, first.Checksum, second.Checksum)
}

func TestConstructWithoutTokenizerOutput(t *testing.T) {
	engine, err := NewEngine(newTestConfig(t))
	require.NoError(t, err)

	_, err = engine.Construct(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorpusIO)
}

func TestNotifierFailureDoesNotFailStage(t *testing.T) {
	cfg := newTestConfig(t)
	notifier := &recordingNotifier{err: errors.New("broker down")}
	engine, err := NewEngine(cfg, WithNotifier(notifier))
	require.NoError(t, err)

	_, err = engine.Tokenize(context.Background(), writeCorpus(t, map[string]string{"a.html": "cat"}))
	require.NoError(t, err)
	assert.Len(t, notifier.runs, 1)
}

func TestStopwordsFile(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.StopwordsFile = filepath.Join(t.TempDir(), "stop.txt")
	require.NoError(t, os.WriteFile(cfg.StopwordsFile, []byte("cat\n"), 0o644))
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	_, err = engine.Tokenize(context.Background(), writeCorpus(t, map[string]string{"a.html": "the cat sat"}))
	require.NoError(t, err)

	terms, err := index.ReadTermIDs(filepath.Join(cfg.TokenizerDir, index.TermIDsFile))
	require.NoError(t, err)
	assert.Equal(t, []index.TermRecord{{TermID: 1, Term: "the"}, {TermID: 2, Term: "sat"}}, terms)
}

func TestNewEngineMissingStopwordsFile(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.StopwordsFile = filepath.Join(t.TempDir(), "absent.txt")

	_, err := NewEngine(cfg)
	assert.Error(t, err)
}

func TestNotifiersJoinErrors(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: errors.New("db down")}

	err := Notifiers{ok, bad}.Notify(context.Background(), BuildRun{ID: "x"})
	assert.ErrorContains(t, err, "db down")
	assert.Len(t, ok.runs, 1)
	assert.Len(t, bad.runs, 1)
}

type fakePublisher struct {
	key   string
	value any
	fails int
	calls int
}

func (f *fakePublisher) Publish(_ context.Context, key string, value any) error {
	f.calls++
	if f.calls <= f.fails {
		return errors.New("broker unavailable")
	}
	f.key, f.value = key, value
	return nil
}

func TestEventNotifierKeysByRunID(t *testing.T) {
	p := &fakePublisher{}
	run := BuildRun{ID: "run-1", Stage: StageConstruct}

	require.NoError(t, NewEventNotifier(p).Notify(context.Background(), run))
	assert.Equal(t, "run-1", p.key)
	assert.Equal(t, run, p.value)
}

func TestEventNotifierRetriesTransientFailures(t *testing.T) {
	p := &fakePublisher{fails: 2}
	n := NewEventNotifier(p)
	n.backoff = resilience.Backoff{Attempts: 3, Initial: time.Millisecond}

	require.NoError(t, n.Notify(context.Background(), BuildRun{ID: "run-2"}))
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, "run-2", p.key)
}

func TestEventNotifierGivesUp(t *testing.T) {
	p := &fakePublisher{fails: 10}
	n := NewEventNotifier(p)
	n.backoff = resilience.Backoff{Attempts: 2, Initial: time.Millisecond}

	err := n.Notify(context.Background(), BuildRun{ID: "run-3"})
	assert.ErrorContains(t, err, "broker unavailable")
	assert.Equal(t, 2, p.calls)
}
