package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
)

type CandidateStore struct {
	db *sqlx.DB
}

func NewCandidateStore(db *sqlx.DB) *CandidateStore {
	return &CandidateStore{db: db}
}

// GetByNameAndParty looks a candidate up by exact (name, party) match.
// Returns (nil, nil) when absent.
func (s *CandidateStore) GetByNameAndParty(ctx context.Context, name string, partyID int64) (*domain.Candidate, error) {
	query := `
		SELECT id, name, party_id, created_at
		FROM candidates
		WHERE name = $1 AND party_id = $2`

	var candidate domain.Candidate
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &candidate, query, name, partyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

// Create inserts a candidate and returns the stored row. A concurrent insert
// of the same (name, party) loses the race silently and the existing row is
// returned instead.
func (s *CandidateStore) Create(ctx context.Context, name string, partyID int64) (*domain.Candidate, error) {
	query := `
		INSERT INTO candidates (name, party_id)
		VALUES ($1, $2)
		ON CONFLICT (name, party_id) DO NOTHING
		RETURNING id, name, party_id, created_at`

	var candidate domain.Candidate
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &candidate, query, name, partyID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.GetByNameAndParty(ctx, name, partyID)
	}
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

// List returns every candidate, for the normalization sweep.
func (s *CandidateStore) List(ctx context.Context) ([]domain.Candidate, error) {
	query := `SELECT id, name, party_id, created_at FROM candidates ORDER BY id`

	var candidates []domain.Candidate
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &candidates, query)
	return candidates, err
}

// UpdateName renames a candidate. Fails on a (name, party) uniqueness
// conflict; callers treat that as a skip, not an error to propagate.
func (s *CandidateStore) UpdateName(ctx context.Context, id int64, name string) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE candidates SET name = $1 WHERE id = $2`,
		name, id,
	)
	return err
}
