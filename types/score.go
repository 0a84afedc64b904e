package types

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode identifies how a game session is bounded.
type Mode string

// Supported game modes.
const (
	// ModeTime sessions last a fixed number of seconds.
	ModeTime Mode = "time"

	// ModeClicks sessions last until a fixed number of clicks is reached.
	ModeClicks Mode = "clicks"
)

// Modes lists every supported mode in a stable order.
var Modes = []Mode{ModeTime, ModeClicks}

var modeValues = map[Mode][]int{
	ModeTime:   {15, 30, 60, 120},
	ModeClicks: {25, 50, 100, 200},
}

// ParseMode maps a case-insensitive token to a Mode.
func ParseMode(raw string) (Mode, bool) {
	mode := Mode(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := modeValues[mode]; !ok {
		return "", false
	}
	return mode, true
}

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	_, ok := modeValues[m]
	return ok
}

// Values returns the sorted allowed mode values for m, or nil for an unknown mode.
func (m Mode) Values() []int {
	values, ok := modeValues[m]
	if !ok {
		return nil
	}
	out := append([]int(nil), values...)
	sort.Ints(out)
	return out
}

// Allows reports whether value is an allowed mode value for m.
func (m Mode) Allows(value int) bool {
	for _, v := range modeValues[m] {
		if v == value {
			return true
		}
	}
	return false
}

// Score is the immutable record of one completed game session.
type Score struct {
	// ID is the unique identifier of the score.
	ID uuid.UUID `json:"id" db:"id"`

	// UserID identifies the user who played the session.
	UserID uuid.UUID `json:"user_id" db:"user_id"`

	// Mode is the game mode of the session.
	Mode Mode `json:"mode" db:"mode"`

	// ModeValue is the duration in seconds (time mode) or the target
	// click count (clicks mode).
	ModeValue int `json:"mode_value" db:"mode_value"`

	// TotalClicks counts every click, including misses.
	TotalClicks int `json:"total_clicks" db:"total_clicks"`

	// CorrectClicks counts clicks that hit their target.
	CorrectClicks int `json:"correct_clicks" db:"correct_clicks"`

	// Duration is the measured session length in seconds.
	Duration float64 `json:"duration" db:"duration"`

	// CPS is correct clicks per second, computed server-side.
	CPS float64 `json:"cps" db:"cps"`

	// Accuracy is the percentage of correct clicks, computed server-side.
	Accuracy float64 `json:"accuracy" db:"accuracy"`

	// Consistency is an optional client-reported stability metric in [0, 100].
	Consistency *float64 `json:"consistency" db:"consistency"`

	// CreatedAt is the timestamp when the score was recorded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AverageStats summarizes a user's sessions for one mode and value.
type AverageStats struct {
	AvgCPS         float64 `json:"avg_cps"`
	AvgAccuracy    float64 `json:"avg_accuracy"`
	AvgConsistency float64 `json:"avg_consistency"`
	TotalTests     int     `json:"total_tests"`
}

// PersonalBests maps each mode to its best score per mode value.
// Mode values are keyed by their decimal string. Both mode keys are
// always present when rendered, even if empty.
type PersonalBests map[Mode]map[string]Score

// NewPersonalBests returns a PersonalBests with every mode key present.
func NewPersonalBests() PersonalBests {
	bests := make(PersonalBests, len(Modes))
	for _, mode := range Modes {
		bests[mode] = map[string]Score{}
	}
	return bests
}

// MarshalJSON renders the mapping with string mode keys.
func (p PersonalBests) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]Score, len(p))
	for mode, values := range p {
		if values == nil {
			values = map[string]Score{}
		}
		out[string(mode)] = values
	}
	return json.Marshal(out)
}

// LeaderboardEntry pairs a user's best score with a display label.
type LeaderboardEntry struct {
	Score    Score  `json:"score"`
	Username string `json:"username"`
}

// ScoreEvent is published after a score has been recorded.
type ScoreEvent struct {
	ScoreID   uuid.UUID `json:"score_id"`
	UserID    uuid.UUID `json:"user_id"`
	Mode      Mode      `json:"mode"`
	ModeValue int       `json:"mode_value"`
	CPS       float64   `json:"cps"`
	Accuracy  float64   `json:"accuracy"`
	CreatedAt time.Time `json:"created_at"`
}

// NewScoreEvent builds the event payload for score.
func NewScoreEvent(score Score) ScoreEvent {
	return ScoreEvent{
		ScoreID:   score.ID,
		UserID:    score.UserID,
		Mode:      score.Mode,
		ModeValue: score.ModeValue,
		CPS:       score.CPS,
		Accuracy:  score.Accuracy,
		CreatedAt: score.CreatedAt,
	}
}
