package services

import (
	"context"
	"fmt"
	"time"

	"github.com/clickrush/apiserver/types"
	"github.com/rs/zerolog"
)

// SnapshotWriter stores a JSON document under key.
type SnapshotWriter interface {
	PutJSON(ctx context.Context, key string, value any) error
}

// LeaderboardSnapshot is the document written for one mode and value.
type LeaderboardSnapshot struct {
	Mode        types.Mode               `json:"mode"`
	ModeValue   int                      `json:"mode_value"`
	GeneratedAt time.Time                `json:"generated_at"`
	Entries     []types.LeaderboardEntry `json:"entries"`
}

// LeaderboardExporter writes every leaderboard to object storage.
type LeaderboardExporter struct {
	scores *ScoreService
	writer SnapshotWriter
	logger zerolog.Logger
	now    func() time.Time
}

func NewLeaderboardExporter(scores *ScoreService, writer SnapshotWriter, logger zerolog.Logger) *LeaderboardExporter {
	return &LeaderboardExporter{scores: scores, writer: writer, logger: logger, now: time.Now}
}

// Export writes one snapshot per mode and value under a shared
// timestamped prefix and returns the keys written.
func (e *LeaderboardExporter) Export(ctx context.Context, limit int) ([]string, error) {
	generatedAt := e.now().UTC()
	prefix := "leaderboards/" + generatedAt.Format("20060102T150405Z")

	var keys []string
	for _, mode := range types.Modes {
		for _, value := range mode.Values() {
			entries, err := e.scores.GetLeaderboard(ctx, string(mode), value, limit)
			if err != nil {
				return keys, fmt.Errorf("load leaderboard %s/%d: %w", mode, value, err)
			}

			key := fmt.Sprintf("%s/%s_%d.json", prefix, mode, value)
			snapshot := LeaderboardSnapshot{
				Mode:        mode,
				ModeValue:   value,
				GeneratedAt: generatedAt,
				Entries:     entries,
			}
			if err := e.writer.PutJSON(ctx, key, snapshot); err != nil {
				return keys, fmt.Errorf("write %s: %w", key, err)
			}
			e.logger.Info().Str("key", key).Int("entries", len(entries)).Msg("leaderboard snapshot written")
			keys = append(keys, key)
		}
	}
	return keys, nil
}
