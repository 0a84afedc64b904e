package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/clickrush/apiserver/internal/ratelimit"
	"github.com/clickrush/apiserver/internal/scoring"
	"github.com/clickrush/apiserver/internal/store"
	"github.com/clickrush/apiserver/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultScoreLimit = 10
	MaxScoreLimit     = 100
	DefaultStatsDays  = 30
	MaxStatsDays      = 365

	// UnknownUsername labels leaderboard entries whose user cannot be resolved.
	UnknownUsername = "unknown"
)

// ScoreRepository defines persistence operations for scores.
type ScoreRepository interface {
	Insert(ctx context.Context, score types.Score) (types.Score, error)
	BestFor(ctx context.Context, userID uuid.UUID, mode types.Mode, modeValue int) (types.Score, error)
	RecentFor(ctx context.Context, userID uuid.UUID, filter store.ScoreFilter, limit int) ([]types.Score, error)
	AverageStats(ctx context.Context, userID uuid.UUID, mode types.Mode, modeValue int, since time.Time) (types.AverageStats, error)
	Leaderboard(ctx context.Context, mode types.Mode, modeValue, limit int) ([]types.Score, error)
	PersonalBests(ctx context.Context, userID uuid.UUID) (types.PersonalBests, error)
}

// UserLookup resolves display labels for leaderboard entries.
type UserLookup interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]types.User, error)
}

// ScorePublisher announces recorded scores. A nil publisher disables events.
type ScorePublisher interface {
	PublishScore(ctx context.Context, score types.Score) error
}

// ScoreService implements score submission and the score queries.
type ScoreService struct {
	repo      ScoreRepository
	users     UserLookup
	limiter   ratelimit.Limiter
	publisher ScorePublisher
	logger    zerolog.Logger
	now       func() time.Time
}

type ScoreServiceOption func(*ScoreService)

// WithPublisher enables score-created events.
func WithPublisher(p ScorePublisher) ScoreServiceOption {
	return func(s *ScoreService) { s.publisher = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ScoreServiceOption {
	return func(s *ScoreService) { s.now = now }
}

func NewScoreService(repo ScoreRepository, users UserLookup, limiter ratelimit.Limiter, logger zerolog.Logger, opts ...ScoreServiceOption) *ScoreService {
	s := &ScoreService{
		repo:    repo,
		users:   users,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateScore validates a submission, derives its metrics, applies the
// rate limit and records it. Nothing is written when any step fails.
func (s *ScoreService) CreateScore(ctx context.Context, userID uuid.UUID, sub scoring.Submission) (types.Score, error) {
	if err := scoring.Validate(sub); err != nil {
		return types.Score{}, err
	}
	cps, accuracy := scoring.Compute(sub.CorrectClicks, sub.TotalClicks, sub.Duration)

	log := s.logger.With().
		Str("user_id", userID.String()).
		Str("mode", string(sub.Mode)).
		Int("mode_value", sub.ModeValue).
		Logger()

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, userID, s.now()); err != nil {
			if errors.Is(err, scoring.ErrRateLimited) {
				log.Info().Msg("score submission rate limited")
				return types.Score{}, err
			}
			log.Error().Err(err).Msg("rate limit check failed")
			return types.Score{}, scoring.Persistence("unable to record score", err)
		}
	}

	score, err := s.repo.Insert(ctx, types.Score{
		UserID:        userID,
		Mode:          sub.Mode,
		ModeValue:     sub.ModeValue,
		TotalClicks:   sub.TotalClicks,
		CorrectClicks: sub.CorrectClicks,
		Duration:      sub.Duration,
		CPS:           cps,
		Accuracy:      accuracy,
		Consistency:   sub.Consistency,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to insert score")
		return types.Score{}, scoring.Persistence("unable to record score", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishScore(ctx, score); err != nil {
			log.Warn().Err(err).Str("score_id", score.ID.String()).Msg("failed to publish score event")
		}
	}
	return score, nil
}

// GetUserScores lists the user's recent scores. An empty mode and a zero
// mode value mean no filter; a zero limit means the default.
func (s *ScoreService) GetUserScores(ctx context.Context, userID uuid.UUID, mode string, modeValue, limit int) ([]types.Score, error) {
	filter := store.ScoreFilter{ModeValue: modeValue}
	if mode != "" {
		m, err := parseMode(mode)
		if err != nil {
			return nil, err
		}
		if modeValue != 0 && !m.Allows(modeValue) {
			return nil, scoring.InvalidModeValue(m, modeValue)
		}
		filter.Mode = m
	}
	if modeValue < 0 {
		return nil, scoring.InvalidInput("mode_value must be positive")
	}
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	scores, err := s.repo.RecentFor(ctx, userID, filter, limit)
	if err != nil {
		return nil, s.readFailure(err, userID, filter.Mode, modeValue)
	}
	return scores, nil
}

// GetUserBestScore returns the user's highest-cps score, or nil when the
// user has none for that mode and value.
func (s *ScoreService) GetUserBestScore(ctx context.Context, userID uuid.UUID, mode string, modeValue int) (*types.Score, error) {
	m, err := parseModeValue(mode, modeValue)
	if err != nil {
		return nil, err
	}

	score, err := s.repo.BestFor(ctx, userID, m, modeValue)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, s.readFailure(err, userID, m, modeValue)
	}
	return &score, nil
}

// GetUserAverageStats averages the user's scores over the last days days.
func (s *ScoreService) GetUserAverageStats(ctx context.Context, userID uuid.UUID, mode string, modeValue, days int) (types.AverageStats, error) {
	m, err := parseModeValue(mode, modeValue)
	if err != nil {
		return types.AverageStats{}, err
	}
	if days == 0 {
		days = DefaultStatsDays
	}
	if days < 1 || days > MaxStatsDays {
		return types.AverageStats{}, scoring.InvalidInput(fmt.Sprintf("days must be between 1 and %d", MaxStatsDays))
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	stats, err := s.repo.AverageStats(ctx, userID, m, modeValue, since)
	if err != nil {
		return types.AverageStats{}, s.readFailure(err, userID, m, modeValue)
	}
	return stats, nil
}

// GetLeaderboard ranks each user's best score for mode and value.
func (s *ScoreService) GetLeaderboard(ctx context.Context, mode string, modeValue, limit int) ([]types.LeaderboardEntry, error) {
	m, err := parseModeValue(mode, modeValue)
	if err != nil {
		return nil, err
	}
	limit, err = normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	scores, err := s.repo.Leaderboard(ctx, m, modeValue, limit)
	if err != nil {
		return nil, s.readFailure(err, uuid.Nil, m, modeValue)
	}
	return s.label(ctx, scores), nil
}

// GetUserPersonalBests returns the user's best score per mode and value.
func (s *ScoreService) GetUserPersonalBests(ctx context.Context, userID uuid.UUID) (types.PersonalBests, error) {
	bests, err := s.repo.PersonalBests(ctx, userID)
	if err != nil {
		return nil, s.readFailure(err, userID, "", 0)
	}
	return bests, nil
}

// label attaches usernames. Lookup failures degrade to UnknownUsername.
func (s *ScoreService) label(ctx context.Context, scores []types.Score) []types.LeaderboardEntry {
	entries := make([]types.LeaderboardEntry, len(scores))
	if len(scores) == 0 {
		return entries
	}

	ids := make([]uuid.UUID, len(scores))
	for i, score := range scores {
		ids[i] = score.UserID
	}

	var users map[uuid.UUID]types.User
	if s.users != nil {
		var err error
		users, err = s.users.ListByIDs(ctx, ids)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to resolve leaderboard users")
		}
	}

	for i, score := range scores {
		name := UnknownUsername
		if user, ok := users[score.UserID]; ok {
			name = user.Username
		}
		entries[i] = types.LeaderboardEntry{Score: score, Username: name}
	}
	return entries
}

// readFailure passes scoring errors through and wraps anything else.
func (s *ScoreService) readFailure(err error, userID uuid.UUID, mode types.Mode, modeValue int) error {
	if scoring.KindOf(err) != scoring.KindUnknown {
		return err
	}
	event := s.logger.Error().Err(err)
	if userID != uuid.Nil {
		event = event.Str("user_id", userID.String())
	}
	if mode != "" {
		event = event.Str("mode", string(mode)).Int("mode_value", modeValue)
	}
	event.Msg("failed to load scores")
	return scoring.Persistence("unable to load scores", err)
}

func parseMode(raw string) (types.Mode, error) {
	m, ok := types.ParseMode(raw)
	if !ok {
		return "", scoring.InvalidMode(raw)
	}
	return m, nil
}

// parseModeValue resolves a required mode and value pair.
func parseModeValue(raw string, modeValue int) (types.Mode, error) {
	if raw == "" {
		return "", scoring.InvalidInput("mode is required")
	}
	m, err := parseMode(raw)
	if err != nil {
		return "", err
	}
	if !m.Allows(modeValue) {
		return "", scoring.InvalidModeValue(m, modeValue)
	}
	return m, nil
}

func normalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultScoreLimit, nil
	}
	if limit < 1 || limit > MaxScoreLimit {
		return 0, scoring.InvalidInput("limit must be between 1 and " + strconv.Itoa(MaxScoreLimit))
	}
	return limit, nil
}
