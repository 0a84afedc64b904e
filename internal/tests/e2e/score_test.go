//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/clickrush/apiserver/config"
	"github.com/clickrush/apiserver/internal/db"
	"github.com/clickrush/apiserver/internal/logging"
	"github.com/clickrush/apiserver/internal/server"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const (
	serverPort  = 18080
	maxRequests = 3
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setEnv()

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type scoreResponse struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Mode      string  `json:"mode"`
	ModeValue int     `json:"mode_value"`
	CPS       float64 `json:"cps"`
	Accuracy  float64 `json:"accuracy"`
}

type leaderboardEntry struct {
	Score    scoreResponse `json:"score"`
	Username string        `json:"username"`
}

func TestScoreLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := strconv.FormatInt(time.Now().UnixNano(), 10)
	username := "player_" + suffix

	var pair tokenPair
	status := doJSON(t, http.MethodPost, baseURL+"/auth/register", "", map[string]string{
		"email":    username + "@example.com",
		"username": username,
		"password": "testpass123!",
	}, &pair)
	if status != http.StatusCreated {
		t.Fatalf("register: unexpected status %d", status)
	}

	submission := map[string]any{
		"mode":           "time",
		"mode_value":     30,
		"total_clicks":   120,
		"correct_clicks": 100,
		"duration":       30.0,
		"consistency":    85.0,
	}

	var created scoreResponse
	status = doJSON(t, http.MethodPost, baseURL+"/scores/", pair.AccessToken, submission, &created)
	if status != http.StatusCreated {
		t.Fatalf("create score: unexpected status %d", status)
	}
	if created.CPS < 3.33 || created.CPS > 3.34 {
		t.Fatalf("unexpected cps: %v", created.CPS)
	}

	var best *scoreResponse
	status = doJSON(t, http.MethodGet, baseURL+"/scores/me/best?mode=time&mode_value=30", pair.AccessToken, nil, &best)
	if status != http.StatusOK || best == nil || best.ID != created.ID {
		t.Fatalf("best score: status %d, got %+v", status, best)
	}

	var bests map[string]map[string]scoreResponse
	status = doJSON(t, http.MethodGet, baseURL+"/scores/me/personal-bests", pair.AccessToken, nil, &bests)
	if status != http.StatusOK {
		t.Fatalf("personal bests: unexpected status %d", status)
	}
	if _, ok := bests["clicks"]; !ok {
		t.Fatalf("personal bests missing clicks key: %+v", bests)
	}
	if _, ok := bests["time"]["30"]; !ok {
		t.Fatalf("personal bests missing time/30: %+v", bests)
	}

	var entries []leaderboardEntry
	status = doJSON(t, http.MethodGet, baseURL+"/scores/leaderboard?mode=time&mode_value=30&limit=100", "", nil, &entries)
	if status != http.StatusOK {
		t.Fatalf("leaderboard: unexpected status %d", status)
	}
	found := false
	for _, entry := range entries {
		if entry.Score.ID == created.ID && entry.Username == username {
			found = true
		}
	}
	if !found {
		t.Fatalf("leaderboard does not contain the new score")
	}

	status = doJSON(t, http.MethodPost, baseURL+"/scores/", pair.AccessToken, map[string]any{
		"mode": "clicks", "mode_value": 999, "total_clicks": 10, "correct_clicks": 5, "duration": 2.0,
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("invalid mode value: unexpected status %d", status)
	}

	for i := 1; i < maxRequests; i++ {
		if status := doJSON(t, http.MethodPost, baseURL+"/scores/", pair.AccessToken, submission, nil); status != http.StatusCreated {
			t.Fatalf("submission %d: unexpected status %d", i+1, status)
		}
	}
	if status := doJSON(t, http.MethodPost, baseURL+"/scores/", pair.AccessToken, submission, nil); status != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit, got status %d", status)
	}

	status = doJSON(t, http.MethodDelete, baseURL+"/users/me", pair.AccessToken, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete user: unexpected status %d", status)
	}
}

func doJSON(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", strconv.Itoa(serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "clickrush")
	_ = os.Setenv("DB_PASSWORD", "clickrush")
	_ = os.Setenv("DB_NAME", "clickrush")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("SCORE_SUBMISSION_MAX_REQUESTS", strconv.Itoa(maxRequests))
	_ = os.Setenv("SCORE_SUBMISSION_WINDOW_SECONDS", "60")
	_ = os.Setenv("MQ_BACKEND", "none")
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.URL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.URL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer(ctx context.Context) (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(ctx, cfg, logging.New(cfg.Log))
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
