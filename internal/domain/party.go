package domain

import "time"

// Party is reference data seeded out-of-band; ingestion never creates parties.
type Party struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Color     string    `db:"color"`
	CreatedAt time.Time `db:"created_at"`
}

// Candidate is unique on (Name, PartyID). Names are matched exactly; the same
// person appearing under two parties is two candidates.
type Candidate struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	PartyID   int64     `db:"party_id"`
	CreatedAt time.Time `db:"created_at"`
}
