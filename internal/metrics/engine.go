package metrics

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-intel/internal/config"
	"github.com/sells-group/nonprofit-intel/internal/store"
)

// Engine runs the full-store derivation pass and writes the results
// back through the store.
type Engine struct {
	store   store.Store
	weights config.ScoreConfig
	logger  *zap.Logger
}

func NewEngine(s store.Store, weights config.ScoreConfig) *Engine {
	return &Engine{
		store:   s,
		weights: weights,
		logger:  zap.L().With(zap.String("component", "metrics")),
	}
}

// Recompute derives metrics for every stored filing and upserts them,
// returning the number of rows written.
func (e *Engine) Recompute(ctx context.Context) (int, error) {
	filings, err := e.store.ListFilings(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "metrics: list filings")
	}
	comps, err := e.store.ListCompensation(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "metrics: list compensation")
	}

	derived := Derive(filings, comps, e.weights)
	if err := e.store.UpsertDerivedMetrics(ctx, derived); err != nil {
		return 0, eris.Wrap(err, "metrics: upsert derived metrics")
	}

	e.logger.Info("metrics pass complete",
		zap.Int("filings", len(filings)),
		zap.Int("metrics_written", len(derived)))
	return len(derived), nil
}
