package reporting

import (
	"context"
	"errors"
	"time"
)

// AgentDaySummary is one agent's activity for a single day: calls pulled
// from the terminal history log, worked time from login sessions. An open
// session contributes time up to "now" so the summary is current without a
// check-out.
type AgentDaySummary struct {
	ProfileID       string `json:"profile_id"`
	HandledCalls    int    `json:"handled_calls"`
	TalkSeconds     int    `json:"talk_seconds"`
	LoggedInSeconds int    `json:"logged_in_seconds"`
}

// Repository provides the aggregate queries. Read-only by design.
type Repository interface {
	AgentDaySummaries(ctx context.Context, businessID string, from, to, now time.Time) ([]AgentDaySummary, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidArgument = errors.New("reporting: invalid argument")

// AgentsToday reports per-agent summaries for the current day.
func (s *Service) AgentsToday(ctx context.Context, businessID string) ([]AgentDaySummary, error) {
	if businessID == "" {
		return nil, ErrInvalidArgument
	}

	now := s.clock().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.repo.AgentDaySummaries(ctx, businessID, from, from.Add(24*time.Hour), now)
}
