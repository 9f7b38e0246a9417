package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
	"github.com/babcs2035/enzetsu-navi/internal/metrics"
)

// Orchestrator drives one ingestion pass: every registered source in turn,
// each isolated from the others' failures, followed by exactly one
// normalization sweep. Sources run sequentially to bound load on the scraped
// sites and the shared geocoding quota.
type Orchestrator struct {
	sources    map[string]Source
	order      []string
	resolver   *Resolver
	merger     *Merger
	normalizer *Normalizer
	tx         TransactionManager
	publisher  Publisher
	logger     *slog.Logger
}

func NewOrchestrator(
	resolver *Resolver,
	merger *Merger,
	normalizer *Normalizer,
	tx TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		sources:    make(map[string]Source),
		resolver:   resolver,
		merger:     merger,
		normalizer: normalizer,
		tx:         tx,
		publisher:  publisher,
		logger:     logger.With("component", "orchestrator"),
	}
}

// Register adds a source. Registration order is run order.
func (o *Orchestrator) Register(src Source) {
	if _, ok := o.sources[src.ID()]; ok {
		o.logger.Warn("source already registered, replacing", "source", src.ID())
	} else {
		o.order = append(o.order, src.ID())
	}
	o.sources[src.ID()] = src
}

// RunAll runs every source and returns the aggregate report. Individual
// source failures end up as failed results, never as a returned error; the
// only error here is structural misuse of an empty registry.
func (o *Orchestrator) RunAll(ctx context.Context) (*domain.RunReport, error) {
	if len(o.sources) == 0 {
		return nil, domain.ErrNoSources
	}

	start := time.Now()
	report := &domain.RunReport{
		Results: make([]domain.SourceResult, 0, len(o.order)),
	}

	for _, id := range o.order {
		src := o.sources[id]
		result := domain.SourceResult{Source: id, Party: src.Party()}

		count, err := o.runSource(ctx, src)
		if err != nil {
			o.logger.Error("source run failed", "source", id, "error", err)
			result.Status = domain.StatusFailed
			result.Error = err.Error()
			metrics.SourceRuns.WithLabelValues(id, domain.StatusFailed).Inc()
		} else {
			result.Status = domain.StatusSuccess
			result.Count = count
			metrics.SourceRuns.WithLabelValues(id, domain.StatusSuccess).Inc()
		}
		report.Results = append(report.Results, result)
	}

	o.sweep(ctx)

	report.Message = "ingestion completed"
	report.Duration = time.Since(start)

	o.logger.Info("ingestion run finished",
		"sources", len(report.Results),
		"failed", report.Failed(),
		"duration", report.Duration,
	)
	return report, nil
}

// RunOne runs a single source by ID, then sweeps.
func (o *Orchestrator) RunOne(ctx context.Context, sourceID string) (*domain.RunResult, error) {
	src, ok := o.sources[sourceID]
	if !ok {
		return nil, &domain.UnknownSourceError{Source: sourceID}
	}

	count, err := o.runSource(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("run source %q: %w", sourceID, err)
	}

	o.sweep(ctx)

	return &domain.RunResult{
		Message: "ingestion completed",
		Source:  sourceID,
		Count:   count,
	}, nil
}

func (o *Orchestrator) runSource(ctx context.Context, src Source) (int, error) {
	logger := o.logger.With("source", src.ID())
	logger.Info("starting source run", "party", src.Party())

	party, err := o.resolver.ResolveParty(ctx, src.Party())
	if err != nil {
		return 0, err
	}

	records, err := src.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch records: %w", err)
	}
	logger.Info("fetched records", "count", len(records))

	count := 0
	for _, rec := range records {
		if rec.CandidateName == "" || rec.LocationName == "" || rec.StartAt.IsZero() {
			logger.Warn("skipping malformed record",
				"candidate", rec.CandidateName,
				"location", rec.LocationName,
				"start_at", rec.StartAt,
			)
			metrics.RecordErrors.WithLabelValues(src.ID()).Inc()
			continue
		}

		speech, outcome, err := o.mergeRecord(ctx, party.ID, rec)
		if err != nil {
			// One bad record never aborts the rest of the batch.
			logger.Error("record merge failed",
				"candidate", rec.CandidateName,
				"start_at", rec.StartAt,
				"error", err,
			)
			metrics.RecordErrors.WithLabelValues(src.ID()).Inc()
			continue
		}
		count++
		metrics.SpeechesIngested.WithLabelValues(src.ID(), outcome.String()).Inc()

		if o.publisher != nil && outcome != OutcomeUnchanged {
			if err := o.publisher.Publish(ctx, speech, outcome == OutcomeCreated); err != nil {
				logger.Warn("publish failed", "speech_id", speech.ID, "error", err)
			}
		}
	}

	logger.Info("source run finished", "count", count, "fetched", len(records))
	return count, nil
}

// mergeRecord resolves and merges one record inside a single transaction, so
// a crash mid-merge cannot leave a candidate without its speech update.
func (o *Orchestrator) mergeRecord(ctx context.Context, partyID int64, rec domain.RawSpeech) (*domain.Speech, MergeOutcome, error) {
	var (
		speech  *domain.Speech
		outcome MergeOutcome
	)

	err := o.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		candidate, err := o.resolver.ResolveCandidate(txCtx, rec.CandidateName, partyID)
		if err != nil {
			return err
		}
		speech, outcome, err = o.merger.Merge(txCtx, candidate.ID, rec)
		return err
	})
	if err != nil {
		return nil, OutcomeUnchanged, err
	}
	return speech, outcome, nil
}

func (o *Orchestrator) sweep(ctx context.Context) {
	if err := o.normalizer.Sweep(ctx); err != nil {
		o.logger.Error("normalization sweep failed", "error", err)
	}
}
