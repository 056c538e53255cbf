// Package ingest drives the filing pipeline over a directory of XML
// documents. Each document is parsed and stored independently so one
// bad file cannot sink a batch, and a single metrics pass runs over
// the whole store once the batch finishes.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-intel/internal/config"
	"github.com/sells-group/nonprofit-intel/internal/efile"
	"github.com/sells-group/nonprofit-intel/internal/metrics"
	"github.com/sells-group/nonprofit-intel/internal/store"
)

// Failure records one document that could not be ingested.
type Failure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report summarizes a completed batch.
type Report struct {
	RunID     string    `json:"run_id"`
	Succeeded int       `json:"succeeded"`
	Failed    []Failure `json:"failed,omitempty"`
	Metrics   int       `json:"metrics_written"`
}

// Runner ingests filing documents into a store.
type Runner struct {
	store  store.Store
	engine *metrics.Engine
	cfg    config.IngestConfig
	logger *zap.Logger
}

func NewRunner(s store.Store, engine *metrics.Engine, cfg config.IngestConfig) *Runner {
	return &Runner{
		store:  s,
		engine: engine,
		cfg:    cfg,
		logger: zap.L().With(zap.String("component", "ingest")),
	}
}

// CollectDocuments lists the .xml files under dir in name order.
func CollectDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read xml dir %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".xml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Run processes every document, then recomputes derived metrics over
// the full store. Per-document failures are collected in the report;
// only run-level problems (cancellation, a failing metrics pass)
// surface as errors. Cancellation between documents leaves committed
// documents intact but skips the metrics pass.
func (r *Runner) Run(ctx context.Context, paths []string) (*Report, error) {
	runID, err := r.store.StartIngestRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: start run")
	}
	report := &Report{RunID: runID}
	r.logger.Info("starting ingest batch",
		zap.String("run_id", runID),
		zap.Int("documents", len(paths)))

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			if ferr := r.store.FailIngestRun(ctx, runID, "cancelled"); ferr != nil {
				r.logger.Error("record failed run",
					zap.String("run_id", runID), zap.Error(ferr))
			}
			return report, eris.Wrapf(err, "ingest: cancelled after %d documents", i)
		}
		if reason := r.ingestOne(ctx, path); reason != "" {
			report.Failed = append(report.Failed, Failure{Name: filepath.Base(path), Reason: reason})
		} else {
			report.Succeeded++
		}
		if r.cfg.ProgressEvery > 0 && (i+1)%r.cfg.ProgressEvery == 0 {
			r.logger.Info("ingest progress",
				zap.Int("processed", i+1),
				zap.Int("total", len(paths)))
		}
	}

	written, err := r.engine.Recompute(ctx)
	if err != nil {
		if ferr := r.store.FailIngestRun(ctx, runID, err.Error()); ferr != nil {
			r.logger.Error("record failed run",
				zap.String("run_id", runID), zap.Error(ferr))
		}
		return report, eris.Wrap(err, "ingest: metrics pass")
	}
	report.Metrics = written

	if err := r.store.CompleteIngestRun(ctx, runID, report.Succeeded, len(report.Failed)); err != nil {
		return report, eris.Wrap(err, "ingest: complete run")
	}
	r.logReport(report)
	return report, nil
}

func (r *Runner) ingestOne(ctx context.Context, path string) (reason string) {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrap(err, "open").Error()
	}
	defer f.Close()

	snap, err := efile.Parse(f, path)
	if err != nil {
		return err.Error()
	}
	if snap == nil {
		return "no EIN found"
	}
	if err := r.store.SaveFiling(ctx, snap); err != nil {
		return err.Error()
	}
	return ""
}

func (r *Runner) logReport(report *Report) {
	detail := report.Failed
	if r.cfg.FailureDetail > 0 && len(detail) > r.cfg.FailureDetail {
		detail = detail[:r.cfg.FailureDetail]
	}
	fields := []zap.Field{
		zap.String("run_id", report.RunID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", len(report.Failed)),
		zap.Int("metrics_written", report.Metrics),
	}
	for _, f := range detail {
		fields = append(fields, zap.String("failure_"+f.Name, f.Reason))
	}
	r.logger.Info("ingest batch complete", fields...)
}
