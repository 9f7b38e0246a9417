package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
)

// Resolver maps freeform names to stable identifiers. Matching is exact: no
// normalization happens here, so two spellings of the same person within one
// run create two candidates. The post-run sweep cleans whitespace later.
type Resolver struct {
	parties    PartyStore
	candidates CandidateStore
	logger     *slog.Logger
}

func NewResolver(parties PartyStore, candidates CandidateStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		parties:    parties,
		candidates: candidates,
		logger:     logger.With("component", "resolver"),
	}
}

// ResolveParty looks up seeded reference data. An unseeded party is a
// configuration error fatal to that adapter's run.
func (r *Resolver) ResolveParty(ctx context.Context, name string) (*domain.Party, error) {
	party, err := r.parties.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get party: %w", err)
	}
	if party == nil {
		return nil, &domain.PartyNotFoundError{Party: name}
	}
	return party, nil
}

// ResolveCandidate returns the candidate for (name, party), creating it on
// first sight.
func (r *Resolver) ResolveCandidate(ctx context.Context, name string, partyID int64) (*domain.Candidate, error) {
	candidate, err := r.candidates.GetByNameAndParty(ctx, name, partyID)
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	if candidate != nil {
		return candidate, nil
	}

	candidate, err = r.candidates.Create(ctx, name, partyID)
	if err != nil {
		return nil, fmt.Errorf("create candidate: %w", err)
	}

	r.logger.Info("created candidate", "name", name, "party_id", partyID)
	return candidate, nil
}
