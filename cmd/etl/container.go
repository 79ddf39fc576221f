// Package main wires the batch ETL pipeline end-to-end: read → cast → rules →
// clean/dedup → upsert, with the rows excluded at each gate diverted to the
// rejects table. The CLI layer stays thin: it depends only on the
// storage-agnostic Repository interface and never imports database drivers
// directly.
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/config"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/metrics"
	csvparser "github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/parser/csv"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/reject"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/schema"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/storage"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/transform"
)

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}

	parseFileFn = func(path string) (records.Dataset, error) {
		return csvparser.NewParser(csvparser.Options{}).ParseFile(path)
	}

	nowFn = time.Now
)

// Stats summarizes one source's run. Conservation holds at every gate:
//
//	RowsRead == ValidAfterCast + CastRejected
//	ValidAfterCast == ValidAfterRules + RuleRejected
//
// Loaded can be smaller than ValidAfterRules because dedup collapses
// duplicate business keys before the upsert.
type Stats struct {
	Source          string
	RowsRead        int
	ValidAfterCast  int
	CastRejected    int
	ValidAfterRules int
	RuleRejected    int
	Deduped         int
	Loaded          int64
	Elapsed         time.Duration
}

// Runner executes the pipeline for every configured source against one
// repository.
type Runner struct {
	Log         logrus.FieldLogger
	Repo        storage.Repository
	RejectTable string
}

// Run processes every source in order. A failing source is logged and does
// not stop the others; Run returns an error if any source failed, so the
// process can exit nonzero.
func (r *Runner) Run(ctx context.Context, cfg config.Config) error {
	var failed []string

	for _, src := range cfg.Sources {
		if src.Type != "csv" {
			r.Log.WithFields(logrus.Fields{"source": src.Name, "type": src.Type}).
				Warn("skipping source: unsupported type")
			continue
		}

		stats, err := r.RunSource(ctx, src)
		r.logSummary(stats, err)
		if err != nil {
			failed = append(failed, src.Name)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d source(s) failed: %v", len(failed), failed)
	}
	return nil
}

// RunSource runs the full pipeline for one source. Rejected rows are data,
// not errors: they land in the rejects table and the remaining rows continue.
// A reject-sink write failure never blocks the main flow; it is collected and
// joined into the returned error after the load completes.
func (r *Runner) RunSource(ctx context.Context, src config.Source) (Stats, error) {
	start := nowFn()
	stats := Stats{Source: src.Name}
	log := r.Log.WithField("source", src.Name)

	// Read.
	readStart := nowFn()
	ds, err := parseFileFn(src.Path)
	metrics.RecordStage(src.Name, "read", err, nowFn().Sub(readStart))
	if err != nil {
		return stats, fmt.Errorf("read %s: %w", src.Path, err)
	}
	stats.RowsRead = ds.Len()
	metrics.RecordRows(src.Name, "read", int64(ds.Len()))
	log.WithField("rows", ds.Len()).Debug("read source")

	sch := schema.FromConfig(src.Schema)
	if missing := sch.Missing(ds.Columns); len(missing) > 0 {
		log.WithField("columns", missing).Warn("schema columns absent from input")
	}

	var sinkErrs []error

	// Cast.
	castStart := nowFn()
	castPart := transform.Caster{Schema: sch}.Apply(ds)
	metrics.RecordStage(src.Name, "cast", nil, nowFn().Sub(castStart))
	stats.ValidAfterCast = castPart.Valid.Len()
	stats.CastRejected = castPart.Rejected.Len()
	metrics.RecordRows(src.Name, "cast_valid", int64(castPart.Valid.Len()))

	if err := r.sinkRejects(ctx, src.Name, castPart.Rejected, reject.ReasonTypeCastFailed); err != nil {
		log.WithError(err).Error("reject sink write failed (cast rejects)")
		sinkErrs = append(sinkErrs, err)
	}

	// Business rules.
	rulesStart := nowFn()
	rulePart, fired := transform.RuleValidator{Rules: transform.DefaultRules()}.Apply(castPart.Valid)
	metrics.RecordStage(src.Name, "rules", nil, nowFn().Sub(rulesStart))
	stats.ValidAfterRules = rulePart.Valid.Len()
	stats.RuleRejected = rulePart.Rejected.Len()
	metrics.RecordRows(src.Name, "rule_valid", int64(rulePart.Valid.Len()))
	for rule, n := range fired {
		metrics.RecordRuleRejects(src.Name, rule, int64(n))
		log.WithFields(logrus.Fields{"rule": rule, "rows": n}).Debug("business rule fired")
	}

	if err := r.sinkRejects(ctx, src.Name, rulePart.Rejected, reject.ReasonBusinessRuleFailed); err != nil {
		log.WithError(err).Error("reject sink write failed (rule rejects)")
		sinkErrs = append(sinkErrs, err)
	}
	metrics.RecordRows(src.Name, "rejected", int64(stats.CastRejected+stats.RuleRejected))

	// Clean and dedup.
	cleanStart := nowFn()
	cleaner := transform.NewCleaner()
	cleaner.KeyColumns = csvKeyColumns(src)
	cleaned := cleaner.Apply(rulePart.Valid)
	metrics.RecordStage(src.Name, "clean", nil, nowFn().Sub(cleanStart))
	stats.Deduped = rulePart.Valid.Len() - cleaned.Len()

	// Rename to destination columns and upsert.
	loadStart := nowFn()
	loaded, err := r.Repo.Upsert(ctx, src.TargetTable, src.KeyColumns, records.Rename(cleaned, src.ColumnMap))
	metrics.RecordStage(src.Name, "upsert", err, nowFn().Sub(loadStart))
	if err != nil {
		stats.Elapsed = nowFn().Sub(start)
		return stats, errors.Join(fmt.Errorf("upsert into %s: %w", src.TargetTable, err), errors.Join(sinkErrs...))
	}
	stats.Loaded = loaded
	metrics.RecordRows(src.Name, "loaded", loaded)

	stats.Elapsed = nowFn().Sub(start)
	return stats, errors.Join(sinkErrs...)
}

// sinkRejects converts a rejected partition into audit records and appends
// them to the rejects table. Empty input writes nothing.
func (r *Runner) sinkRejects(ctx context.Context, sourceName string, ds records.Dataset, reason string) error {
	recs, err := reject.Build(ds, sourceName, reason, nowFn().UTC())
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	sinkStart := nowFn()
	n, err := r.Repo.InsertRejects(ctx, r.RejectTable, recs)
	metrics.RecordStage(sourceName, "rejects", err, nowFn().Sub(sinkStart))
	if err != nil {
		return fmt.Errorf("insert %d rejects into %s: %w", len(recs), r.RejectTable, err)
	}
	if n != int64(len(recs)) {
		r.Log.WithFields(logrus.Fields{"want": len(recs), "got": n}).
			Warn("reject sink wrote fewer rows than expected")
	}
	return nil
}

func (r *Runner) logSummary(s Stats, err error) {
	entry := r.Log.WithFields(logrus.Fields{
		"source":       s.Source,
		"rows_read":    s.RowsRead,
		"cast_valid":   s.ValidAfterCast,
		"rule_valid":   s.ValidAfterRules,
		"rejected":     s.CastRejected + s.RuleRejected,
		"deduplicated": s.Deduped,
		"loaded":       s.Loaded,
		"elapsed":      s.Elapsed.Truncate(time.Millisecond).String(),
	})
	if err != nil {
		entry.WithError(err).Error("source failed")
		return
	}
	entry.Info("source completed")
}

// csvKeyColumns maps the destination-side key columns back onto the CSV-side
// names the cleaner sees, via the inverse of the source's column map. A key
// column with no mapping keeps its name.
func csvKeyColumns(src config.Source) []string {
	inverse := make(map[string]string, len(src.ColumnMap))
	for csvCol, dest := range src.ColumnMap {
		inverse[dest] = csvCol
	}
	keys := make([]string, len(src.KeyColumns))
	for i, k := range src.KeyColumns {
		if csvCol, ok := inverse[k]; ok {
			keys[i] = csvCol
		} else {
			keys[i] = k
		}
	}
	return keys
}
