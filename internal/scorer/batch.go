package scorer

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/adapt-cli/internal/model"
)

// DefaultProgressEvery is how many records pass between progress log lines.
const DefaultProgressEvery = 50

// BatchOptions configures ScoreAll.
type BatchOptions struct {
	// Concurrency bounds the scoring goroutines; 0 means GOMAXPROCS.
	Concurrency int
	// ProgressEvery is the progress log interval in records; 0 means
	// DefaultProgressEvery.
	ProgressEvery int
}

// Scored pairs a record identifier with its scoring result.
type Scored struct {
	ID string
	Result
}

// Batch is the scoring result for a whole input batch, in input order.
type Batch struct {
	Items        []Scored
	HazardCount  int
	RecordsTotal int
}

// ScoreAll scores every record concurrently. Each goroutine writes only its
// own slot, and the result is complete only after every goroutine returns.
func (e *Engine) ScoreAll(ctx context.Context, records []model.Record, opts BatchOptions) (*Batch, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	every := opts.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}

	log := zap.L().With(zap.String("component", "scorer.batch"))
	total := len(records)
	log.Info("starting adaptation score update", zap.Int("records", total))

	items := make([]Scored, total)
	var done atomic.Int64
	progress := rate.Sometimes{Every: every}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range records {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			items[i] = Scored{ID: records[i].ID, Result: e.Compute(records[i])}

			n := done.Add(1)
			progress.Do(func() {
				log.Info("scoring progress", zap.Int64("updated", n), zap.Int("total", total))
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "scorer: score batch")
	}

	b := &Batch{Items: items, RecordsTotal: total}
	for _, it := range items {
		if it.Hazard {
			b.HazardCount++
		}
	}

	log.Info("scoring complete",
		zap.Int("updated", total),
		zap.Int("total", total),
		zap.Int("hazard_triggered", b.HazardCount),
	)
	return b, nil
}

// ScoreMap returns the score sets keyed by record identifier.
func (b *Batch) ScoreMap() map[string]ScoreSet {
	m := make(map[string]ScoreSet, len(b.Items))
	for _, it := range b.Items {
		m[it.ID] = it.Scores
	}
	return m
}
