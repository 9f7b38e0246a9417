package ingest

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
)

type PartyStore interface {
	GetByName(ctx context.Context, name string) (*domain.Party, error)
}

type CandidateStore interface {
	GetByNameAndParty(ctx context.Context, name string, partyID int64) (*domain.Candidate, error)
	Create(ctx context.Context, name string, partyID int64) (*domain.Candidate, error)
	List(ctx context.Context) ([]domain.Candidate, error)
	UpdateName(ctx context.Context, id int64, name string) error
}

type SpeechStore interface {
	GetByCandidateAndStart(ctx context.Context, candidateID int64, startAt time.Time) (*domain.Speech, error)
	Insert(ctx context.Context, speech *domain.Speech) (int64, error)
	Update(ctx context.Context, id int64, upd domain.SpeechUpdate) error
	List(ctx context.Context) ([]domain.Speech, error)
	UpdateSpeakers(ctx context.Context, id int64, speakers []string) error
}

// Geocoder is the cache-backed coordinate resolver. A nil point with a nil
// error means the location is unresolvable.
type Geocoder interface {
	Lookup(ctx context.Context, locationName string) (*domain.GeoPoint, error)
}

// Source is one publisher's adapter. Fetch either yields a batch of raw
// records or fails as a unit; there is no partial-record error channel.
type Source interface {
	ID() string
	Party() string
	Fetch(ctx context.Context) ([]domain.RawSpeech, error)
}

type Publisher interface {
	Publish(ctx context.Context, speech *domain.Speech, created bool) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
