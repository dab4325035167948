package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/resilience"
)

// Stage names recorded on every BuildRun.
const (
	StageTokenize  = "tokenize"
	StageConstruct = "construct"
)

// BuildRun describes one completed pipeline stage. It is the payload of the
// IndexBuilt event and the row stored in build history.
type BuildRun struct {
	ID        string        `json:"id"`
	Stage     string        `json:"stage"`
	CorpusDir string        `json:"corpusDir,omitempty"`
	OutputDir string        `json:"outputDir"`
	Documents int           `json:"documents"`
	Skipped   int           `json:"skipped"`
	Terms     int           `json:"terms"`
	Postings  int64         `json:"postings"`
	Bytes     int64         `json:"bytes"`
	Checksum  uint32        `json:"checksum"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"durationNs"`
}

// Notifier is told about every successful stage.
type Notifier interface {
	Notify(ctx context.Context, run BuildRun) error
}

// Notifiers fans a run out to several notifiers and joins their errors.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, run BuildRun) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// EventNotifier publishes IndexBuilt events keyed by run id, retrying
// transient broker failures.
type EventNotifier struct {
	producer publisher
	backoff  resilience.Backoff
}

func NewEventNotifier(p publisher) *EventNotifier {
	return &EventNotifier{producer: p, backoff: resilience.DefaultBackoff}
}

func (n *EventNotifier) Notify(ctx context.Context, run BuildRun) error {
	return resilience.Retry(ctx, "publish index event", n.backoff, func(ctx context.Context) error {
		return n.producer.Publish(ctx, run.ID, run)
	})
}
