package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
)

// MergeOutcome describes what one record did to the canonical store.
type MergeOutcome int

const (
	OutcomeUnchanged MergeOutcome = iota
	OutcomeCreated
	OutcomeUpdated
)

func (o MergeOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Merger folds raw records into canonical speeches. The dedup key is
// (candidate, start time) at minute precision; re-ingesting unchanged
// upstream data performs zero writes.
type Merger struct {
	speeches SpeechStore
	geocoder Geocoder
	logger   *slog.Logger
}

func NewMerger(speeches SpeechStore, geocoder Geocoder, logger *slog.Logger) *Merger {
	return &Merger{
		speeches: speeches,
		geocoder: geocoder,
		logger:   logger.With("component", "merger"),
	}
}

// Merge inserts or idempotently updates the speech for one resolved record.
func (m *Merger) Merge(ctx context.Context, candidateID int64, rec domain.RawSpeech) (*domain.Speech, MergeOutcome, error) {
	startAt := rec.StartAt.Truncate(time.Minute)

	existing, err := m.speeches.GetByCandidateAndStart(ctx, candidateID, startAt)
	if err != nil {
		return nil, OutcomeUnchanged, fmt.Errorf("get speech: %w", err)
	}

	if existing == nil {
		return m.insert(ctx, candidateID, startAt, rec)
	}
	return m.update(ctx, existing, rec)
}

func (m *Merger) insert(ctx context.Context, candidateID int64, startAt time.Time, rec domain.RawSpeech) (*domain.Speech, MergeOutcome, error) {
	speech := &domain.Speech{
		CandidateID:  candidateID,
		StartAt:      startAt,
		LocationName: rec.LocationName,
		Speakers:     dedupSpeakers(rec.Speakers),
	}
	if rec.SourceURL != "" {
		speech.SourceURL = &rec.SourceURL
	}
	if rec.Address != "" {
		speech.Address = &rec.Address
	}

	query := rec.LocationName
	if rec.Address != "" {
		query = rec.Address
	}

	point, err := m.geocoder.Lookup(ctx, query)
	if err != nil {
		m.logger.Warn("geocode lookup failed", "location", query, "error", err)
	}
	if point != nil {
		speech.Lat = &point.Lat
		speech.Lng = &point.Lng
		if point.Address != "" {
			speech.Address = &point.Address
		}
	}

	if _, err := m.speeches.Insert(ctx, speech); err != nil {
		return nil, OutcomeUnchanged, fmt.Errorf("insert speech: %w", err)
	}
	return speech, OutcomeCreated, nil
}

func (m *Merger) update(ctx context.Context, existing *domain.Speech, rec domain.RawSpeech) (*domain.Speech, MergeOutcome, error) {
	var upd domain.SpeechUpdate

	merged := unionSpeakers(existing.Speakers, rec.Speakers)
	if !slices.Equal(dedupSpeakers(existing.Speakers), merged) {
		upd.Speakers = merged
	}

	if rec.LocationName != "" && rec.LocationName != existing.LocationName {
		upd.LocationName = &rec.LocationName
	}
	if rec.SourceURL != "" && (existing.SourceURL == nil || rec.SourceURL != *existing.SourceURL) {
		upd.SourceURL = &rec.SourceURL
	}

	// Re-geocode only when the record moves the event: a new address, or a
	// new location name with no address at all. Anything else keeps the
	// stored coordinates and costs no provider quota.
	query := ""
	if rec.Address != "" && (existing.Address == nil || rec.Address != *existing.Address) {
		query = rec.Address
	} else if rec.Address == "" && rec.LocationName != existing.LocationName {
		query = rec.LocationName
	}

	if query != "" {
		point, err := m.geocoder.Lookup(ctx, query)
		if err != nil {
			m.logger.Warn("geocode lookup failed", "location", query, "error", err)
		}
		if point != nil {
			upd.Lat = &point.Lat
			upd.Lng = &point.Lng
			addr := point.Address
			if addr == "" {
				addr = rec.Address
			}
			if addr != "" {
				upd.Address = &addr
			}
		}
	}

	if upd.Empty() {
		return existing, OutcomeUnchanged, nil
	}

	if err := m.speeches.Update(ctx, existing.ID, upd); err != nil {
		return nil, OutcomeUnchanged, fmt.Errorf("update speech: %w", err)
	}

	applyUpdate(existing, upd)
	return existing, OutcomeUpdated, nil
}

func applyUpdate(sp *domain.Speech, upd domain.SpeechUpdate) {
	if upd.Speakers != nil {
		sp.Speakers = upd.Speakers
	}
	if upd.LocationName != nil {
		sp.LocationName = *upd.LocationName
	}
	if upd.SourceURL != nil {
		sp.SourceURL = upd.SourceURL
	}
	if upd.Lat != nil {
		sp.Lat = upd.Lat
	}
	if upd.Lng != nil {
		sp.Lng = upd.Lng
	}
	if upd.Address != nil {
		sp.Address = upd.Address
	}
	sp.UpdatedAt = time.Now()
}

// dedupSpeakers returns a sorted copy with duplicates and empty names dropped.
func dedupSpeakers(speakers []string) []string {
	out := make([]string, 0, len(speakers))
	for _, s := range speakers {
		if s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// unionSpeakers merges two speaker sets; the result is a superset of both.
func unionSpeakers(a, b []string) []string {
	return dedupSpeakers(append(slices.Clone(a), b...))
}
