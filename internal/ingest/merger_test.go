package ingest

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
	"github.com/babcs2035/enzetsu-navi/internal/ingest/mocks"
	"github.com/babcs2035/enzetsu-navi/testdata/utils"
)

type MergerTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	speeches *mocks.MockSpeechStore
	geocoder *mocks.MockGeocoder

	merger *Merger
	logger *slog.Logger
}

func (s *MergerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.speeches = mocks.NewMockSpeechStore(s.ctrl)
	s.geocoder = mocks.NewMockGeocoder(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.merger = NewMerger(s.speeches, s.geocoder, s.logger)
}

func (s *MergerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestMergerTestSuite(t *testing.T) {
	suite.Run(t, new(MergerTestSuite))
}

func (s *MergerTestSuite) startAt() time.Time {
	return time.Date(2026, 1, 15, 10, 0, 0, 0, time.Local)
}

func (s *MergerTestSuite) TestMerge_InsertGeocodesLocation() {
	ctx := context.Background()

	rec := domain.RawSpeech{
		CandidateName: "山田太郎",
		StartAt:       s.startAt(),
		LocationName:  "新宿駅東口",
		SourceURL:     "https://example.com/schedule",
		Speakers:      []string{"鈴木", "佐藤", "鈴木"},
	}

	s.speeches.EXPECT().GetByCandidateAndStart(ctx, int64(7), s.startAt()).Return(nil, nil)
	s.geocoder.EXPECT().Lookup(ctx, "新宿駅東口").Return(&domain.GeoPoint{
		Lat:     35.6909,
		Lng:     139.7003,
		Address: "東京都新宿区新宿3丁目",
	}, nil)
	s.speeches.EXPECT().Insert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, sp *domain.Speech) (int64, error) {
			s.Equal(int64(7), sp.CandidateID)
			s.Equal(s.startAt(), sp.StartAt)
			s.Equal("新宿駅東口", sp.LocationName)
			s.Equal([]string{"佐藤", "鈴木"}, sp.Speakers)
			s.Equal(35.6909, *sp.Lat)
			s.Equal(139.7003, *sp.Lng)
			s.Equal("東京都新宿区新宿3丁目", *sp.Address)
			s.Equal("https://example.com/schedule", *sp.SourceURL)
			sp.ID = 100
			return 100, nil
		},
	)

	speech, outcome, err := s.merger.Merge(ctx, 7, rec)

	s.NoError(err)
	s.Equal(OutcomeCreated, outcome)
	s.Equal(int64(100), speech.ID)
}

func (s *MergerTestSuite) TestMerge_InsertPrefersAddressForLookup() {
	ctx := context.Background()

	rec := domain.RawSpeech{
		CandidateName: "山田太郎",
		StartAt:       s.startAt(),
		LocationName:  "駅前広場",
		Address:       "東京都新宿区西新宿1-1-1",
	}

	s.speeches.EXPECT().GetByCandidateAndStart(ctx, int64(7), s.startAt()).Return(nil, nil)
	s.geocoder.EXPECT().Lookup(ctx, "東京都新宿区西新宿1-1-1").Return(nil, nil)
	s.speeches.EXPECT().Insert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, sp *domain.Speech) (int64, error) {
			s.Nil(sp.Lat)
			s.Nil(sp.Lng)
			// The record's own address survives a failed lookup.
			s.Equal("東京都新宿区西新宿1-1-1", *sp.Address)
			return 101, nil
		},
	)

	_, outcome, err := s.merger.Merge(ctx, 7, rec)

	s.NoError(err)
	s.Equal(OutcomeCreated, outcome)
}

func (s *MergerTestSuite) TestMerge_TruncatesToMinute() {
	ctx := context.Background()
	withSeconds := s.startAt().Add(42 * time.Second)

	rec := domain.RawSpeech{
		CandidateName: "山田太郎",
		StartAt:       withSeconds,
		LocationName:  "駅前広場",
	}

	s.speeches.EXPECT().GetByCandidateAndStart(ctx, int64(7), s.startAt()).Return(nil, nil)
	s.geocoder.EXPECT().Lookup(ctx, "駅前広場").Return(nil, nil)
	s.speeches.EXPECT().Insert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, sp *domain.Speech) (int64, error) {
			s.Equal(s.startAt(), sp.StartAt)
			return 102, nil
		},
	)

	_, _, err := s.merger.Merge(ctx, 7, rec)
	s.NoError(err)
}

func (s *MergerTestSuite) TestMerge_IdenticalRecordIsNoOp() {
	ctx := context.Background()

	existing := &domain.Speech{
		ID:           100,
		CandidateID:  7,
		StartAt:      s.startAt(),
		LocationName: "駅前広場",
		SourceURL:    utils.Ptr("https://example.com/schedule"),
		Speakers:     []string{"鈴木"},
	}

	rec := domain.RawSpeech{
		CandidateName: "山田太郎",
		StartAt:       s.startAt(),
		LocationName:  "駅前広場",
		SourceURL:     "https://example.com/schedule",
		Speakers:      []string{"鈴木"},
	}

	// No geocode call, no update: re-ingesting unchanged data is free.
	s.speeches.EXPECT().GetByCandidateAndStart(ctx, int64(7), s.startAt()).Return(existing, nil)

	speech, outcome, err := s.merger.Merge(ctx, 7, rec)

	s.NoError(err)
	s.Equal(OutcomeUnchanged, outcome)
	s.Equal(int64(100), speech.ID)
}

func (s *MergerTestSuite) TestMerge_SpeakersOnlyGrow() {
	ctx := context.Background()

	existing := &domain.Speech{
		ID:           100,
		CandidateID:  7,
		StartAt:      s.startAt(),
		LocationName: "駅前広場",
		Speakers:     []string{"鈴木"},
	}

	rec := domain.RawSpeech{
		CandidateName: "山田太郎",
		StartAt:       s.startAt(),
		LocationName:  "駅前広場",
		Speakers:      []string{"佐藤", "鈴木"},
	}

	s.speeches.EXPECT().GetByCandidateAndStart(ctx, int64(7), s.startAt()).Return(existing, nil)
	s.speeches.EXPECT().Update(ctx, int64(100), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, upd domain.SpeechUpdate) error {
			s.Equal([]string{"佐藤", "鈴木"}, upd.Speakers)
			s.Nil(upd.LocationName)
			s.Nil(upd.Lat)
			return nil
		},
	)

	speech, outcome, err := s.merger.Merge(ctx, 7, rec)

	s.NoError(err)
	s.Equal(OutcomeUpdated, outcome)
	s.Equal([]string{"佐藤", "鈴木"}, speech.Speakers)
}

func (s *MergerTestSuite) TestMerge_RecordNeverRemovesSpeakers() {
	ctx := context.Background()

	existing := &domain.Speech{
		ID:           100,
		CandidateID:  7,
		StartAt:      s.startAt(),
		LocationName: "駅前広場",
		Speakers:     []string{"佐藤", "鈴木"},
	}

	rec := domain.RawSpeech{
		CandidateName: "山田太郎",
		StartAt:       s.startAt(),
		LocationName:  "駅前広場",
		Speakers:      []string{"鈴木"},
	}

	// The union equals the stored set, so nothing is written.
	s.speeches.EXPECT().GetByCandidateAndStart(ctx, int64(7), s.startAt()).Return(existing, nil)

	_, outcome, err := s.merger.Merge(ctx, 7, rec)

	s.NoError(err)
	s.Equal(OutcomeUnchanged, outcome)
}

func (s *MergerTestSuite) TestMerge_NewAddressTriggersOneGeocode() {
	ctx := context.Background()

	existing := &domain.Speech{
		ID:           100,
		CandidateID:  7,
		StartAt:      s.startAt(),
		LocationName: "駅前広場",
		Address:      utils.Ptr("東京都新宿区西新宿1-1-1"),
		Lat:          utils.Ptr(35.68),
		Lng:          utils.Ptr(139.69),
	}

	rec := domain.RawSpeech{
		CandidateName: "山田太郎",
		StartAt:       s.startAt(),
		LocationName:  "駅前広場",
		Address:       "東京都渋谷区道玄坂2-1",
	}

	s.speeches.EXPECT().GetByCandidateAndStart(ctx, int64(7), s.startAt()).Return(existing, nil)
	s.geocoder.EXPECT().Lookup(ctx, "東京都渋谷区道玄坂2-1").Return(&domain.GeoPoint{
		Lat:     35.6580,
		Lng:     139.6994,
		Address: "東京都渋谷区道玄坂2丁目1",
	}, nil)
	s.speeches.EXPECT().Update(ctx, int64(100), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, upd domain.SpeechUpdate) error {
			s.Equal(35.6580, *upd.Lat)
			s.Equal(139.6994, *upd.Lng)
			s.Equal("東京都渋谷区道玄坂2丁目1", *upd.Address)
			return nil
		},
	)

	_, outcome, err := s.merger.Merge(ctx, 7, rec)

	s.NoError(err)
	s.Equal(OutcomeUpdated, outcome)
}

func (s *MergerTestSuite) TestMerge_ChangedLocationWithoutAddressTriggersGeocode() {
	ctx := context.Background()

	existing := &domain.Speech{
		ID:           100,
		CandidateID:  7,
		StartAt:      s.startAt(),
		LocationName: "駅前広場",
	}

	rec := domain.RawSpeech{
		CandidateName: "山田太郎",
		StartAt:       s.startAt(),
		LocationName:  "市民会館前",
	}

	s.speeches.EXPECT().GetByCandidateAndStart(ctx, int64(7), s.startAt()).Return(existing, nil)
	s.geocoder.EXPECT().Lookup(ctx, "市民会館前").Return(nil, nil)
	s.speeches.EXPECT().Update(ctx, int64(100), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, upd domain.SpeechUpdate) error {
			s.Equal("市民会館前", *upd.LocationName)
			s.Nil(upd.Lat)
			return nil
		},
	)

	_, outcome, err := s.merger.Merge(ctx, 7, rec)

	s.NoError(err)
	s.Equal(OutcomeUpdated, outcome)
}

func (s *MergerTestSuite) TestMerge_SameAddressDoesNotGeocode() {
	ctx := context.Background()

	existing := &domain.Speech{
		ID:           100,
		CandidateID:  7,
		StartAt:      s.startAt(),
		LocationName: "駅前広場",
		Address:      utils.Ptr("東京都新宿区西新宿1-1-1"),
	}

	// Location name changed but the address is present and identical, so the
	// stored coordinates stay.
	rec := domain.RawSpeech{
		CandidateName: "山田太郎",
		StartAt:       s.startAt(),
		LocationName:  "西口広場",
		Address:       "東京都新宿区西新宿1-1-1",
	}

	s.speeches.EXPECT().GetByCandidateAndStart(ctx, int64(7), s.startAt()).Return(existing, nil)
	s.speeches.EXPECT().Update(ctx, int64(100), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, upd domain.SpeechUpdate) error {
			s.Equal("西口広場", *upd.LocationName)
			s.Nil(upd.Lat)
			s.Nil(upd.Address)
			return nil
		},
	)

	_, outcome, err := s.merger.Merge(ctx, 7, rec)

	s.NoError(err)
	s.Equal(OutcomeUpdated, outcome)
}

func (s *MergerTestSuite) TestMerge_InsertError() {
	ctx := context.Background()

	rec := domain.RawSpeech{
		CandidateName: "山田太郎",
		StartAt:       s.startAt(),
		LocationName:  "駅前広場",
	}

	s.speeches.EXPECT().GetByCandidateAndStart(ctx, int64(7), s.startAt()).Return(nil, nil)
	s.geocoder.EXPECT().Lookup(ctx, "駅前広場").Return(nil, nil)
	s.speeches.EXPECT().Insert(ctx, gomock.Any()).Return(int64(0), assertDBError{})

	_, _, err := s.merger.Merge(ctx, 7, rec)

	s.Error(err)
	s.Contains(err.Error(), "insert speech")
}

type assertDBError struct{}

func (assertDBError) Error() string { return "duplicate key value violates unique constraint" }
