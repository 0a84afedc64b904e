package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/clickrush/apiserver/internal/store"
	"github.com/clickrush/apiserver/types"
	"github.com/google/uuid"
)

type memoryScores struct {
	mu     sync.Mutex
	scores []types.Score
	now    func() time.Time
	err    error
}

func newMemoryScores(now func() time.Time) *memoryScores {
	return &memoryScores{now: now}
}

func (m *memoryScores) Insert(_ context.Context, score types.Score) (types.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.Score{}, m.err
	}
	score.ID = uuid.New()
	score.CreatedAt = m.now()
	m.scores = append(m.scores, score)
	return score, nil
}

func (m *memoryScores) CountSince(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.scores {
		if s.UserID == userID && !s.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func better(a, b types.Score) bool {
	if a.CPS != b.CPS {
		return a.CPS > b.CPS
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (m *memoryScores) BestFor(_ context.Context, userID uuid.UUID, mode types.Mode, modeValue int) (types.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.Score{}, m.err
	}
	var best *types.Score
	for i := range m.scores {
		s := m.scores[i]
		if s.UserID == userID && s.Mode == mode && s.ModeValue == modeValue {
			if best == nil || better(s, *best) {
				best = &m.scores[i]
			}
		}
	}
	if best == nil {
		return types.Score{}, store.ErrNotFound
	}
	return *best, nil
}

func (m *memoryScores) RecentFor(_ context.Context, userID uuid.UUID, filter store.ScoreFilter, limit int) ([]types.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []types.Score
	for i := len(m.scores) - 1; i >= 0 && len(out) < limit; i-- {
		s := m.scores[i]
		if s.UserID != userID {
			continue
		}
		if filter.Mode != "" && s.Mode != filter.Mode {
			continue
		}
		if filter.ModeValue != 0 && s.ModeValue != filter.ModeValue {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryScores) AverageStats(_ context.Context, userID uuid.UUID, mode types.Mode, modeValue int, since time.Time) (types.AverageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.AverageStats{}, m.err
	}
	var stats types.AverageStats
	var consistencySum float64
	var consistencyN int
	for _, s := range m.scores {
		if s.UserID != userID || s.Mode != mode || s.ModeValue != modeValue || s.CreatedAt.Before(since) {
			continue
		}
		stats.TotalTests++
		stats.AvgCPS += s.CPS
		stats.AvgAccuracy += s.Accuracy
		if s.Consistency != nil {
			consistencySum += *s.Consistency
			consistencyN++
		}
	}
	if stats.TotalTests > 0 {
		stats.AvgCPS /= float64(stats.TotalTests)
		stats.AvgAccuracy /= float64(stats.TotalTests)
	}
	if consistencyN > 0 {
		stats.AvgConsistency = consistencySum / float64(consistencyN)
	}
	return stats, nil
}

func (m *memoryScores) Leaderboard(_ context.Context, mode types.Mode, modeValue, limit int) ([]types.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	best := map[uuid.UUID]types.Score{}
	for _, s := range m.scores {
		if s.Mode != mode || s.ModeValue != modeValue {
			continue
		}
		if cur, ok := best[s.UserID]; !ok || better(s, cur) {
			best[s.UserID] = s
		}
	}
	out := make([]types.Score, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CPS != out[j].CPS {
			return out[i].CPS > out[j].CPS
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryScores) PersonalBests(_ context.Context, userID uuid.UUID) (types.PersonalBests, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	bests := types.NewPersonalBests()
	for _, s := range m.scores {
		if s.UserID != userID {
			continue
		}
		key := strconv.Itoa(s.ModeValue)
		if cur, ok := bests[s.Mode][key]; !ok || better(s, cur) {
			bests[s.Mode][key] = s
		}
	}
	return bests, nil
}

type memoryUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]types.User
	err   error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[uuid.UUID]types.User{}}
}

func (m *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) find(match func(types.User) bool) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	return m.find(func(u types.User) bool { return u.Email == email })
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	return m.find(func(u types.User) bool { return u.Username == username })
}

func (m *memoryUsers) ListByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := map[uuid.UUID]types.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *memoryUsers) List(_ context.Context, limit, offset int) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if offset >= len(out) {
		return []types.User{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = uuid.New()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) Update(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	scores []types.Score
	err    error
}

func (p *recordingPublisher) PublishScore(_ context.Context, score types.Score) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.scores = append(p.scores, score)
	return nil
}

type memorySnapshots struct {
	docs map[string]any
	err  error
}

func (m *memorySnapshots) PutJSON(_ context.Context, key string, value any) error {
	if m.err != nil {
		return m.err
	}
	if m.docs == nil {
		m.docs = map[string]any{}
	}
	m.docs[key] = value
	return nil
}

var errDatabaseDown = errors.New("connection refused")
