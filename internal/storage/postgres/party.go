package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
)

type PartyStore struct {
	db *sqlx.DB
}

func NewPartyStore(db *sqlx.DB) *PartyStore {
	return &PartyStore{db: db}
}

// GetByName looks a party up by its exact name. Returns (nil, nil) when the
// party was never seeded.
func (s *PartyStore) GetByName(ctx context.Context, name string) (*domain.Party, error) {
	query := `SELECT id, name, color, created_at FROM parties WHERE name = $1`

	var party domain.Party
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &party, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &party, nil
}
