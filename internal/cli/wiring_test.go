package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"classquiz-service/internal/app"
	"classquiz-service/internal/config"
)

func TestBuildServicesFallsBackToSampleStore(t *testing.T) {
	var cfg config.Config
	cfg.Defaults()

	svc, err := buildServices(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build services: %v", err)
	}
	defer svc.Close()

	result, err := svc.grouping.Groups(context.Background(), "quiz-1", app.GroupRequest{})
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if result.Error != app.MsgNoSubmissions {
		t.Fatalf("expected no submissions message, got %+v", result)
	}

	ticket, err := svc.live.CreateRoom(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if len(ticket.RoomCode) != cfg.Live.CodeLength {
		t.Fatalf("expected %d character code, got %q", cfg.Live.CodeLength, ticket.RoomCode)
	}
}

func TestBuildServicesSeedsSQLite(t *testing.T) {
	var cfg config.Config
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "quiz.db")
	cfg.Defaults()

	for i := 0; i < 2; i++ {
		svc, err := buildServices(context.Background(), cfg)
		if err != nil {
			t.Fatalf("build services (run %d): %v", i, err)
		}
		result, err := svc.grouping.Groups(context.Background(), "quiz-1", app.GroupRequest{})
		svc.Close()
		if err != nil {
			t.Fatalf("groups: %v", err)
		}
		if result.Error != app.MsgNoSubmissions {
			t.Fatalf("expected seeded quiz without submissions, got %+v", result)
		}
	}
}

func TestGroupsCommandPrintsJSON(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("log:\n  level: error\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	stdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	cmd := NewGroupsCmd(&cfgPath)
	cmd.SetArgs([]string{"missing-quiz", "--size", "3"})
	runErr := cmd.ExecuteContext(context.Background())
	w.Close()
	os.Stdout = stdout
	if runErr != nil {
		t.Fatalf("groups command: %v", runErr)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("read output: %v", err)
	}
	var result app.GroupResult
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("decode output %q: %v", buf.String(), err)
	}
	if result.Error != app.MsgQuizNotFound || result.GroupSize != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
}
