package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clickrush/apiserver/internal/scoring"
	"github.com/clickrush/apiserver/types"
	"github.com/google/uuid"
)

// ScoreRepository handles persistence for scores. Scores are append-only.
type ScoreRepository struct {
	db *sql.DB
}

func NewScoreRepository(db *sql.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// ScoreFilter narrows a user's score history. Zero fields are ignored.
type ScoreFilter struct {
	Mode      types.Mode
	ModeValue int
}

const scoreColumns = `id, user_id, mode, mode_value, total_clicks, correct_clicks, duration, cps, accuracy, consistency, created_at`

func scanScore(row interface{ Scan(...any) error }) (types.Score, error) {
	var score types.Score
	var mode string
	var consistency sql.NullFloat64
	if err := row.Scan(
		&score.ID,
		&score.UserID,
		&mode,
		&score.ModeValue,
		&score.TotalClicks,
		&score.CorrectClicks,
		&score.Duration,
		&score.CPS,
		&score.Accuracy,
		&consistency,
		&score.CreatedAt,
	); err != nil {
		return types.Score{}, err
	}
	score.Mode = types.Mode(mode)
	if consistency.Valid {
		value := consistency.Float64
		score.Consistency = &value
	}
	return score, nil
}

func scanScores(rows *sql.Rows, capacity int) ([]types.Score, error) {
	defer rows.Close()

	scores := make([]types.Score, 0, capacity)
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return scores, nil
}

// Insert stores score as a single statement, assigning ID and CreatedAt
// when they are unset.
func (r *ScoreRepository) Insert(ctx context.Context, score types.Score) (types.Score, error) {
	if score.ID == uuid.Nil {
		score.ID = uuid.New()
	}
	if score.CreatedAt.IsZero() {
		score.CreatedAt = time.Now().UTC()
	}

	var consistency sql.NullFloat64
	if score.Consistency != nil {
		consistency = sql.NullFloat64{Float64: *score.Consistency, Valid: true}
	}

	const query = `
		INSERT INTO scores (
			id, user_id, mode, mode_value, total_clicks, correct_clicks,
			duration, cps, accuracy, consistency, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		score.ID,
		score.UserID,
		string(score.Mode),
		score.ModeValue,
		score.TotalClicks,
		score.CorrectClicks,
		score.Duration,
		score.CPS,
		score.Accuracy,
		consistency,
		score.CreatedAt,
	); err != nil {
		return types.Score{}, err
	}
	return score, nil
}

// CountSince counts the user's scores created at or after since.
func (r *ScoreRepository) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	const query = `SELECT COUNT(1) FROM scores WHERE user_id = $1 AND created_at >= $2`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// BestFor returns the user's highest-cps score for mode and modeValue.
// Ties go to the most recent score. ErrNotFound when there is none.
func (r *ScoreRepository) BestFor(ctx context.Context, userID uuid.UUID, mode types.Mode, modeValue int) (types.Score, error) {
	const query = `
		SELECT ` + scoreColumns + `
		FROM scores
		WHERE user_id = $1 AND mode = $2 AND mode_value = $3
		ORDER BY cps DESC, created_at DESC, id
		LIMIT 1`
	score, err := scanScore(r.db.QueryRowContext(ctx, query, userID, string(mode), modeValue))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Score{}, ErrNotFound
		}
		return types.Score{}, err
	}
	return score, nil
}

// RecentFor lists the user's scores newest first.
func (r *ScoreRepository) RecentFor(ctx context.Context, userID uuid.UUID, filter ScoreFilter, limit int) ([]types.Score, error) {
	if limit <= 0 {
		return nil, scoring.InvalidInput("limit must be greater than zero")
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + scoreColumns + ` FROM scores WHERE user_id = $1`)
	args := []any{userID}
	if filter.Mode != "" {
		args = append(args, string(filter.Mode))
		fmt.Fprintf(&query, ` AND mode = $%d`, len(args))
	}
	if filter.ModeValue != 0 {
		args = append(args, filter.ModeValue)
		fmt.Fprintf(&query, ` AND mode_value = $%d`, len(args))
	}
	args = append(args, limit)
	fmt.Fprintf(&query, ` ORDER BY created_at DESC, id LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	return scanScores(rows, limit)
}

// AverageStats averages the user's scores created at or after since.
// Rows without consistency are ignored for its average.
func (r *ScoreRepository) AverageStats(ctx context.Context, userID uuid.UUID, mode types.Mode, modeValue int, since time.Time) (types.AverageStats, error) {
	const query = `
		SELECT COALESCE(AVG(cps), 0),
		       COALESCE(AVG(accuracy), 0),
		       COALESCE(AVG(consistency), 0),
		       COUNT(id)
		FROM scores
		WHERE user_id = $1 AND mode = $2 AND mode_value = $3 AND created_at >= $4`
	var stats types.AverageStats
	if err := r.db.QueryRowContext(ctx, query, userID, string(mode), modeValue, since).Scan(
		&stats.AvgCPS,
		&stats.AvgAccuracy,
		&stats.AvgConsistency,
		&stats.TotalTests,
	); err != nil {
		return types.AverageStats{}, err
	}
	if stats.TotalTests == 0 {
		return types.AverageStats{}, nil
	}
	return stats, nil
}

// Leaderboard returns each user's best score for mode and modeValue,
// highest cps first. Equal cps ranks the earlier score first.
func (r *ScoreRepository) Leaderboard(ctx context.Context, mode types.Mode, modeValue, limit int) ([]types.Score, error) {
	if limit <= 0 {
		return nil, scoring.InvalidInput("limit must be greater than zero")
	}

	const query = `
		SELECT ` + scoreColumns + `
		FROM (
			SELECT DISTINCT ON (user_id) ` + scoreColumns + `
			FROM scores
			WHERE mode = $1 AND mode_value = $2
			ORDER BY user_id, cps DESC, created_at DESC, id
		) best
		ORDER BY cps DESC, created_at ASC, id
		LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, string(mode), modeValue, limit)
	if err != nil {
		return nil, err
	}
	return scanScores(rows, limit)
}

// PersonalBests returns the user's best score for every mode and value
// they have played. Both mode keys are always present.
func (r *ScoreRepository) PersonalBests(ctx context.Context, userID uuid.UUID) (types.PersonalBests, error) {
	const query = `
		SELECT DISTINCT ON (mode, mode_value) ` + scoreColumns + `
		FROM scores
		WHERE user_id = $1
		ORDER BY mode, mode_value, cps DESC, created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	scores, err := scanScores(rows, 8)
	if err != nil {
		return nil, err
	}

	bests := types.NewPersonalBests()
	for _, score := range scores {
		values, ok := bests[score.Mode]
		if !ok {
			values = map[string]types.Score{}
			bests[score.Mode] = values
		}
		values[strconv.Itoa(score.ModeValue)] = score
	}
	return bests, nil
}
