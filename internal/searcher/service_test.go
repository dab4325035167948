package searcher

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher/reader"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/metrics"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, strings.TrimSuffix(pattern, "*")) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type fixture struct {
	engine    *indexer.Engine
	corpusDir string
	opts      reader.Options
}

func newFixture(t *testing.T, docs map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := config.IndexConfig{
		TokenizerDir: filepath.Join(root, "tok"),
		ConstructDir: filepath.Join(root, "con"),
	}
	engine, err := indexer.NewEngine(cfg)
	require.NoError(t, err)
	f := &fixture{
		engine:    engine,
		corpusDir: filepath.Join(root, "corpus"),
		opts:      reader.Options{TokenizerDir: cfg.TokenizerDir, ConstructDir: cfg.ConstructDir},
	}
	require.NoError(t, os.Mkdir(f.corpusDir, 0o755))
	f.rebuild(t, docs)
	return f
}

func (f *fixture) rebuild(t *testing.T, docs map[string]string) {
	t.Helper()
	for name, body := range docs {
		content := "<html><body>" + body + "</body></html>"
		require.NoError(t, os.WriteFile(filepath.Join(f.corpusDir, name), []byte(content), 0o644))
	}
	_, _, err := f.engine.Build(context.Background(), f.corpusDir)
	require.NoError(t, err)
}

func TestServiceLookupsThroughCache(t *testing.T) {
	f := newFixture(t, map[string]string{"a.html": "cat dog cat"})
	holder := reader.NewHolder(f.opts)
	store := &memStore{data: make(map[string]string)}
	m := metrics.New()
	svc := NewService(holder, cache.New(store, time.Minute, m), m)
	ctx := context.Background()

	_, err := svc.Document(ctx, "a.html")
	require.Error(t, err, "lookups fail before the first load")
	require.NoError(t, svc.Reload(ctx))
	require.NoError(t, svc.Ready(ctx))

	doc, err := svc.Document(ctx, "a.html")
	require.NoError(t, err)
	assert.Equal(t, 3, doc.TotalTerms)

	again, err := svc.Document(ctx, "a.html")
	require.NoError(t, err)
	assert.Equal(t, doc, again)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHitsTotal))

	pos, err := svc.TermInDocument(ctx, "cats", "a.html")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, pos.Positions)

	_, err = svc.Term(ctx, "zebra")
	assert.ErrorIs(t, err, apperrors.ErrTermNotFound)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LookupsTotal.WithLabelValues(KindTerm, "not_found")))
}

func TestHandleIndexBuiltReloadsAndInvalidates(t *testing.T) {
	f := newFixture(t, map[string]string{"a.html": "cat"})
	holder := reader.NewHolder(f.opts)
	store := &memStore{data: make(map[string]string)}
	svc := NewService(holder, cache.New(store, time.Minute, nil), nil)
	ctx := context.Background()
	require.NoError(t, svc.Reload(ctx))

	_, err := svc.Term(ctx, "bird")
	require.ErrorIs(t, err, apperrors.ErrTermNotFound)
	_, err = svc.Term(ctx, "cat")
	require.NoError(t, err)
	require.NotEmpty(t, store.data)

	f.rebuild(t, map[string]string{"b.html": "bird"})

	tokenizeEvent, err := json.Marshal(indexer.BuildRun{ID: "r1", Stage: indexer.StageTokenize})
	require.NoError(t, err)
	require.NoError(t, svc.HandleIndexBuilt(ctx, nil, tokenizeEvent))
	_, err = svc.Term(ctx, "bird")
	assert.ErrorIs(t, err, apperrors.ErrTermNotFound, "tokenize events do not reload")

	constructEvent, err := json.Marshal(indexer.BuildRun{ID: "r2", Stage: indexer.StageConstruct})
	require.NoError(t, err)
	require.NoError(t, svc.HandleIndexBuilt(ctx, nil, constructEvent))

	info, err := svc.Term(ctx, "bird")
	require.NoError(t, err)
	assert.Equal(t, 1, info.DocumentCount)
	assert.Len(t, store.data, 1, "entries from the old index are dropped")
}

func TestHandleIndexBuiltRejectsGarbage(t *testing.T) {
	f := newFixture(t, map[string]string{"a.html": "cat"})
	svc := NewService(reader.NewHolder(f.opts), nil, nil)

	assert.Error(t, svc.HandleIndexBuilt(context.Background(), nil, []byte("{")))
}
