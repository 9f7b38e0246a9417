// Package jsonfeed adapts a party's JSON schedule feed to raw speech records.
package jsonfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
)

// Config holds one feed's settings.
type Config struct {
	ID             string
	Party          string
	URL            string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source fetches and transforms one schedule feed.
type Source struct {
	httpClient     *http.Client
	id             string
	party          string
	url            string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		id:             cfg.ID,
		party:          cfg.Party,
		url:            cfg.URL,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", cfg.ID),
	}
}

func (s *Source) ID() string {
	return s.id
}

func (s *Source) Party() string {
	return s.party
}

// Fetch downloads the feed and transforms it. A timed-out feed degrades to
// zero records so a slow site never blocks the run; structural failures (bad
// status, undecodable body) fail the run as a unit.
func (s *Source) Fetch(ctx context.Context) ([]domain.RawSpeech, error) {
	feed, err := s.fetchFeed(ctx)
	if err != nil {
		if isTimeout(err) {
			s.logger.Warn("feed fetch timed out, producing zero records", "error", err)
			return nil, nil
		}
		return nil, err
	}
	return s.transform(feed.Announcements), nil
}

func (s *Source) fetchFeed(ctx context.Context) (*feedResponse, error) {
	var feed *feedResponse
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		feed, err = s.doRequest(ctx)
		if err == nil {
			return feed, nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context) (*feedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "EnzetsuNavi/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &feed, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

// Feeds announce start times at minute precision, either RFC 3339 or a bare
// local "2006-01-02 15:04".
var startAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func (s *Source) transform(announcements []announcement) []domain.RawSpeech {
	records := make([]domain.RawSpeech, 0, len(announcements))

	for _, a := range announcements {
		startAt, err := parseStartAt(a.StartAt)
		if err != nil {
			s.logger.Warn("failed to parse start time",
				"candidate", a.Candidate,
				"start_at", a.StartAt,
			)
			continue
		}

		records = append(records, domain.RawSpeech{
			CandidateName: a.Candidate,
			StartAt:       startAt.Truncate(time.Minute),
			LocationName:  a.Location,
			SourceURL:     a.URL,
			Speakers:      a.Speakers,
			Address:       a.Address,
		})
	}

	return records
}

func parseStartAt(value string) (time.Time, error) {
	for _, layout := range startAtLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized start time %q", value)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
