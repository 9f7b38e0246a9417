package domain

import "time"

// Speech is the canonical, deduplicated record of one announced street speech.
// Its logical identity is (CandidateID, StartAt) at minute precision; repeated
// scraping runs merge into the same row. Speakers is kept sorted and without
// duplicates.
type Speech struct {
	ID           int64
	CandidateID  int64
	StartAt      time.Time
	LocationName string
	Address      *string
	Lat          *float64
	Lng          *float64
	SourceURL    *string
	Speakers     []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RawSpeech is what a source adapter yields for one announcement. It is never
// persisted as-is; the merger turns it into a Speech insert or update.
type RawSpeech struct {
	CandidateName string
	StartAt       time.Time
	LocationName  string
	SourceURL     string
	Speakers      []string
	Address       string
}

// SpeechUpdate is a field-level diff against a stored speech. Nil pointer
// fields (and a nil Speakers slice) are left untouched.
type SpeechUpdate struct {
	Speakers     []string
	LocationName *string
	SourceURL    *string
	Lat          *float64
	Lng          *float64
	Address      *string
}

// Empty reports whether the update would change nothing.
func (u SpeechUpdate) Empty() bool {
	return u.Speakers == nil &&
		u.LocationName == nil &&
		u.SourceURL == nil &&
		u.Lat == nil &&
		u.Lng == nil &&
		u.Address == nil
}
