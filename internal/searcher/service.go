// Package searcher serves lookups against the current index, optionally
// through the Redis lookup cache, and reloads the index when a rebuild is
// announced.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher/reader"
	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/metrics"
)

// Lookup kinds, used for metrics labels and cache keys.
const (
	KindDocument     = "document"
	KindTerm         = "term"
	KindTermDocument = "term_document"
)

type Service struct {
	holder  *reader.Holder
	cache   *cache.LookupCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService creates a Service. c and m may be nil.
func NewService(holder *reader.Holder, c *cache.LookupCache, m *metrics.Metrics) *Service {
	return &Service{
		holder:  holder,
		cache:   c,
		metrics: m,
		logger:  slog.Default().With("component", "searcher"),
	}
}

func (s *Service) Document(ctx context.Context, name string) (reader.DocumentInfo, error) {
	return lookup(ctx, s, KindDocument, []string{name}, func(r *reader.Reader) (reader.DocumentInfo, error) {
		return r.Document(name)
	})
}

func (s *Service) Term(ctx context.Context, raw string) (reader.TermInfo, error) {
	return lookup(ctx, s, KindTerm, []string{raw}, func(r *reader.Reader) (reader.TermInfo, error) {
		return r.Term(raw)
	})
}

func (s *Service) TermInDocument(ctx context.Context, raw, name string) (reader.TermDocumentInfo, error) {
	return lookup(ctx, s, KindTermDocument, []string{raw, name}, func(r *reader.Reader) (reader.TermDocumentInfo, error) {
		return r.TermInDocument(raw, name)
	})
}

func lookup[T any](ctx context.Context, s *Service, kind string, args []string, fn func(*reader.Reader) (T, error)) (T, error) {
	start := time.Now()
	r, err := s.holder.Load()
	if err != nil {
		var zero T
		return zero, err
	}

	var v T
	if s.cache != nil {
		v, _, err = cache.GetOrCompute(ctx, s.cache, cache.Key(r.Checksum(), kind, args...), func() (T, error) {
			return fn(r)
		})
	} else {
		v, err = fn(r)
	}
	s.metrics.ObserveLookup(kind, resultLabel(err), time.Since(start))
	return v, err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsNotFound(err):
		return "not_found"
	case errors.Is(err, apperrors.ErrMalformedIndex):
		return "malformed"
	default:
		return "error"
	}
}

// Reload reopens the index from disk. When the checksum changed the lookup
// cache is invalidated; cached entries were keyed by the old checksum, so
// a failed invalidation only leaves unreachable keys to expire.
func (s *Service) Reload(ctx context.Context) error {
	r, changed, err := s.holder.Reload()
	if err != nil {
		s.metrics.IndexReloaded("failed")
		return fmt.Errorf("reloading index: %w", err)
	}
	s.metrics.IndexReloaded("ok")
	s.logger.Info("index reloaded",
		"documents", r.Documents(),
		"terms", r.Terms(),
		"checksum", fmt.Sprintf("%08x", r.Checksum()),
		"changed", changed,
	)
	if changed && s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("cache invalidation failed", "error", err)
		}
	}
	return nil
}

// HandleIndexBuilt is the Kafka handler for IndexBuilt events. Only a
// finished construct stage produces a complete index, so tokenize events
// are acknowledged and ignored.
func (s *Service) HandleIndexBuilt(ctx context.Context, _, value []byte) error {
	run, err := kafka.DecodeJSON[indexer.BuildRun](value)
	if err != nil {
		return err
	}
	if run.Stage != indexer.StageConstruct {
		return nil
	}
	s.logger.Info("index rebuild announced", "run_id", run.ID, "checksum", fmt.Sprintf("%08x", run.Checksum))
	return s.Reload(ctx)
}

// Ready reports whether an index is loaded.
func (s *Service) Ready(context.Context) error {
	_, err := s.holder.Load()
	return err
}
