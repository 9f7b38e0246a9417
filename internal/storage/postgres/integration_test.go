//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
	"github.com/babcs2035/enzetsu-navi/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
	partyID   int64
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_init.up.sql"),
			filepath.Join(migrationsPath, "002_seed_parties.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	err = s.db.GetContext(s.ctx, &s.partyID, "SELECT id FROM parties WHERE name = $1", "自由民主党")
	s.Require().NoError(err)
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM speeches")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM candidates")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM geocode_cache")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestPartyStore_SeededParties() {
	store := NewPartyStore(s.db)

	party, err := store.GetByName(s.ctx, "自由民主党")
	s.NoError(err)
	s.Require().NotNil(party)
	s.Equal("#314b9b", party.Color)

	missing, err := store.GetByName(s.ctx, "架空の党")
	s.NoError(err)
	s.Nil(missing)
}

func (s *PostgresIntegrationSuite) TestCandidateStore_CreateIsRaceSafe() {
	store := NewCandidateStore(s.db)

	first, err := store.Create(s.ctx, "山田太郎", s.partyID)
	s.NoError(err)
	s.Require().NotNil(first)

	// A second create for the same (name, party) returns the existing row.
	second, err := store.Create(s.ctx, "山田太郎", s.partyID)
	s.NoError(err)
	s.Require().NotNil(second)
	s.Equal(first.ID, second.ID)

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count,
		"SELECT COUNT(*) FROM candidates WHERE name = $1 AND party_id = $2", "山田太郎", s.partyID))
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestCandidateStore_UpdateNameConflict() {
	store := NewCandidateStore(s.db)

	clean, err := store.Create(s.ctx, "山田太郎", s.partyID)
	s.Require().NoError(err)
	spaced, err := store.Create(s.ctx, "山田 太郎", s.partyID)
	s.Require().NoError(err)

	err = store.UpdateName(s.ctx, spaced.ID, clean.Name)
	s.Error(err, "renaming onto an existing (name, party) must violate uniqueness")
}

func (s *PostgresIntegrationSuite) TestSpeechStore_InsertAndGet() {
	candidates := NewCandidateStore(s.db)
	store := NewSpeechStore(s.db)

	candidate, err := candidates.Create(s.ctx, "山田太郎", s.partyID)
	s.Require().NoError(err)

	startAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	speech := &domain.Speech{
		CandidateID:  candidate.ID,
		StartAt:      startAt,
		LocationName: "駅前広場",
		Address:      utils.Ptr("東京都新宿区西新宿1-1-1"),
		Lat:          utils.Ptr(35.69),
		Lng:          utils.Ptr(139.70),
		SourceURL:    utils.Ptr("https://example.com/1"),
		Speakers:     []string{"佐藤", "鈴木"},
	}

	id, err := store.Insert(s.ctx, speech)
	s.NoError(err)
	s.Greater(id, int64(0))
	s.False(speech.CreatedAt.IsZero())

	got, err := store.GetByCandidateAndStart(s.ctx, candidate.ID, startAt)
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal("駅前広場", got.LocationName)
	s.Equal([]string{"佐藤", "鈴木"}, got.Speakers)
	s.Equal(35.69, *got.Lat)

	missing, err := store.GetByCandidateAndStart(s.ctx, candidate.ID, startAt.Add(time.Hour))
	s.NoError(err)
	s.Nil(missing)
}

func (s *PostgresIntegrationSuite) TestSpeechStore_DuplicateKeyRejected() {
	candidates := NewCandidateStore(s.db)
	store := NewSpeechStore(s.db)

	candidate, err := candidates.Create(s.ctx, "山田太郎", s.partyID)
	s.Require().NoError(err)

	startAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	speech := &domain.Speech{
		CandidateID:  candidate.ID,
		StartAt:      startAt,
		LocationName: "駅前広場",
		Speakers:     []string{},
	}

	_, err = store.Insert(s.ctx, speech)
	s.Require().NoError(err)

	dup := &domain.Speech{
		CandidateID:  candidate.ID,
		StartAt:      startAt,
		LocationName: "別の場所",
		Speakers:     []string{},
	}
	_, err = store.Insert(s.ctx, dup)
	s.Error(err)
}

func (s *PostgresIntegrationSuite) TestSpeechStore_PartialUpdate() {
	candidates := NewCandidateStore(s.db)
	store := NewSpeechStore(s.db)

	candidate, err := candidates.Create(s.ctx, "山田太郎", s.partyID)
	s.Require().NoError(err)

	startAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	speech := &domain.Speech{
		CandidateID:  candidate.ID,
		StartAt:      startAt,
		LocationName: "駅前広場",
		Speakers:     []string{"鈴木"},
	}
	_, err = store.Insert(s.ctx, speech)
	s.Require().NoError(err)
	inserted, err := store.GetByCandidateAndStart(s.ctx, candidate.ID, startAt)
	s.Require().NoError(err)

	err = store.Update(s.ctx, speech.ID, domain.SpeechUpdate{
		Speakers:  []string{"佐藤", "鈴木"},
		SourceURL: utils.Ptr("https://example.com/2"),
	})
	s.NoError(err)

	got, err := store.GetByCandidateAndStart(s.ctx, candidate.ID, startAt)
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal([]string{"佐藤", "鈴木"}, got.Speakers)
	s.Equal("https://example.com/2", *got.SourceURL)
	s.Equal("駅前広場", got.LocationName, "untouched fields keep their values")
	s.True(got.UpdatedAt.After(inserted.UpdatedAt))
}

func (s *PostgresIntegrationSuite) TestGeocodeStore_EntriesAreImmutable() {
	store := NewGeocodeStore(s.db)

	entry := &domain.GeocodeCacheEntry{
		LocationName: "新宿駅東口",
		Lat:          utils.Ptr(35.69),
		Lng:          utils.Ptr(139.70),
		Address:      utils.Ptr("東京都新宿区"),
	}
	s.NoError(store.Create(s.ctx, entry))

	// A second write for the same literal string is silently dropped.
	overwrite := &domain.GeocodeCacheEntry{
		LocationName: "新宿駅東口",
		Lat:          utils.Ptr(0.0),
		Lng:          utils.Ptr(0.0),
	}
	s.NoError(store.Create(s.ctx, overwrite))

	got, err := store.Get(s.ctx, "新宿駅東口")
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal(35.69, *got.Lat)
	s.Equal("東京都新宿区", *got.Address)
}

func (s *PostgresIntegrationSuite) TestGeocodeStore_NegativeEntry() {
	store := NewGeocodeStore(s.db)

	s.NoError(store.Create(s.ctx, &domain.GeocodeCacheEntry{LocationName: "存在しない場所"}))

	got, err := store.Get(s.ctx, "存在しない場所")
	s.NoError(err)
	s.Require().NotNil(got)
	s.Nil(got.Point())

	miss, err := store.Get(s.ctx, "まだ見ていない場所")
	s.NoError(err)
	s.Nil(miss)
}

func (s *PostgresIntegrationSuite) TestTransactionManager_RollsBackOnError() {
	tm := NewTransactionManager(s.db)
	candidates := NewCandidateStore(s.db)

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		_, err := candidates.Create(txCtx, "消える候補者", s.partyID)
		s.Require().NoError(err)
		return context.Canceled
	})
	s.Error(err)

	got, err := candidates.GetByNameAndParty(s.ctx, "消える候補者", s.partyID)
	s.NoError(err)
	s.Nil(got)
}
