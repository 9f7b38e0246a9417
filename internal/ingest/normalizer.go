package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"
)

// Normalizer is the post-run sweep that strips whitespace (ASCII and
// full-width) out of stored candidate names and speaker sets. It runs once
// after every orchestrator invocation, over the full tables; volumes here are
// small enough that the O(N) pass is fine.
type Normalizer struct {
	candidates CandidateStore
	speeches   SpeechStore
	logger     *slog.Logger
}

func NewNormalizer(candidates CandidateStore, speeches SpeechStore, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		candidates: candidates,
		speeches:   speeches,
		logger:     logger.With("component", "normalizer"),
	}
}

// Sweep normalizes every candidate name and every speech's speaker set.
// Renames that would collide with another candidate of the same party are
// skipped and logged; duplicates are never merged automatically. Running the
// sweep twice in a row changes nothing on the second pass.
func (n *Normalizer) Sweep(ctx context.Context) error {
	if err := n.sweepCandidates(ctx); err != nil {
		return fmt.Errorf("sweep candidates: %w", err)
	}
	if err := n.sweepSpeakers(ctx); err != nil {
		return fmt.Errorf("sweep speakers: %w", err)
	}
	return nil
}

func (n *Normalizer) sweepCandidates(ctx context.Context) error {
	candidates, err := n.candidates.List(ctx)
	if err != nil {
		return err
	}

	for _, c := range candidates {
		clean := stripSpace(c.Name)
		if clean == c.Name {
			continue
		}

		other, err := n.candidates.GetByNameAndParty(ctx, clean, c.PartyID)
		if err != nil {
			return err
		}
		if other != nil && other.ID != c.ID {
			n.logger.Warn("skipping candidate rename, normalized name already taken",
				"candidate_id", c.ID,
				"name", c.Name,
				"normalized", clean,
				"existing_id", other.ID,
			)
			continue
		}

		if err := n.candidates.UpdateName(ctx, c.ID, clean); err != nil {
			// A uniqueness race with a concurrent insert lands here; skip it
			// like a detected collision.
			n.logger.Warn("candidate rename failed",
				"candidate_id", c.ID,
				"name", c.Name,
				"error", err,
			)
			continue
		}

		n.logger.Info("normalized candidate name", "candidate_id", c.ID, "name", clean)
	}
	return nil
}

func (n *Normalizer) sweepSpeakers(ctx context.Context) error {
	speeches, err := n.speeches.List(ctx)
	if err != nil {
		return err
	}

	for _, sp := range speeches {
		clean := make([]string, len(sp.Speakers))
		for i, s := range sp.Speakers {
			clean[i] = stripSpace(s)
		}
		clean = dedupSpeakers(clean)

		if slices.Equal(clean, sp.Speakers) {
			continue
		}

		if err := n.speeches.UpdateSpeakers(ctx, sp.ID, clean); err != nil {
			n.logger.Warn("speaker normalization failed", "speech_id", sp.ID, "error", err)
			continue
		}
	}
	return nil
}

// stripSpace removes every whitespace rune, including U+3000.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
