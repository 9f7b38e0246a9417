package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
)

type SpeechStore struct {
	db *sqlx.DB
}

func NewSpeechStore(db *sqlx.DB) *SpeechStore {
	return &SpeechStore{db: db}
}

const speechColumns = `
	id, candidate_id, start_at, location_name, address, lat, lng,
	source_url, speakers, created_at, updated_at`

func scanSpeech(row sqlx.ColScanner) (*domain.Speech, error) {
	var sp domain.Speech
	var speakers pq.StringArray
	err := row.Scan(
		&sp.ID,
		&sp.CandidateID,
		&sp.StartAt,
		&sp.LocationName,
		&sp.Address,
		&sp.Lat,
		&sp.Lng,
		&sp.SourceURL,
		&speakers,
		&sp.CreatedAt,
		&sp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sp.Speakers = []string(speakers)
	return &sp, nil
}

// GetByCandidateAndStart fetches the speech identified by the dedup key
// (candidate, start time). Returns (nil, nil) when absent.
func (s *SpeechStore) GetByCandidateAndStart(ctx context.Context, candidateID int64, startAt time.Time) (*domain.Speech, error) {
	query := `SELECT ` + speechColumns + ` FROM speeches WHERE candidate_id = $1 AND start_at = $2`

	row := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query, candidateID, startAt)
	sp, err := scanSpeech(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// Insert persists a new speech. A (candidate_id, start_at) uniqueness
// violation surfaces as an error; the caller logs and skips the record.
func (s *SpeechStore) Insert(ctx context.Context, sp *domain.Speech) (int64, error) {
	query := `
		INSERT INTO speeches (
			candidate_id, start_at, location_name, address, lat, lng,
			source_url, speakers
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		sp.CandidateID,
		sp.StartAt,
		sp.LocationName,
		sp.Address,
		sp.Lat,
		sp.Lng,
		sp.SourceURL,
		pq.Array(sp.Speakers),
	).Scan(&sp.ID, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return sp.ID, nil
}

// Update applies a field-level diff and bumps updated_at. Callers never pass
// an empty update; an unchanged record is a no-op upstream and this method is
// not reached.
func (s *SpeechStore) Update(ctx context.Context, id int64, upd domain.SpeechUpdate) error {
	var sb strings.Builder
	sb.WriteString("UPDATE speeches SET updated_at = now()")
	args := make([]interface{}, 0, 7)

	set := func(column string, value interface{}) {
		args = append(args, value)
		fmt.Fprintf(&sb, ", %s = $%d", column, len(args))
	}

	if upd.Speakers != nil {
		set("speakers", pq.Array(upd.Speakers))
	}
	if upd.LocationName != nil {
		set("location_name", *upd.LocationName)
	}
	if upd.SourceURL != nil {
		set("source_url", *upd.SourceURL)
	}
	if upd.Lat != nil {
		set("lat", *upd.Lat)
	}
	if upd.Lng != nil {
		set("lng", *upd.Lng)
	}
	if upd.Address != nil {
		set("address", *upd.Address)
	}

	args = append(args, id)
	fmt.Fprintf(&sb, " WHERE id = $%d", len(args))

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), args...)
	return err
}

// List returns every speech, for the normalization sweep.
func (s *SpeechStore) List(ctx context.Context) ([]domain.Speech, error) {
	query := `SELECT ` + speechColumns + ` FROM speeches ORDER BY id`

	rows, err := GetExecutor(ctx, s.db).QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var speeches []domain.Speech
	for rows.Next() {
		sp, err := scanSpeech(rows)
		if err != nil {
			return nil, err
		}
		speeches = append(speeches, *sp)
	}
	return speeches, rows.Err()
}

// UpdateSpeakers replaces a speech's speaker set.
func (s *SpeechStore) UpdateSpeakers(ctx context.Context, id int64, speakers []string) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE speeches SET speakers = $1, updated_at = now() WHERE id = $2`,
		pq.Array(speakers), id,
	)
	return err
}
