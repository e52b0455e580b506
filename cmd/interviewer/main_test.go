package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
)

func TestNormalizeBasePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/", ""},
		{"api", "/api"},
		{"/api/", "/api"},
		{" /v1/api ", "/v1/api"},
	}
	for _, tt := range tests {
		if got := normalizeBasePath(tt.in); got != tt.want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("interviewer %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestUserAndExportCommands(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")
	resumePath := filepath.Join(dir, "resume.txt")
	if err := os.WriteFile(resumePath, []byte("  Go developer, 3 years\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out := execute(t, "user", "add", "--db", dbPath, "-u", "alice", "-p", "secret1", "--resume-file", resumePath)
	if !strings.Contains(out, "created user alice") {
		t.Errorf("unexpected output: %q", out)
	}

	newResume := filepath.Join(dir, "resume2.txt")
	if err := os.WriteFile(newResume, []byte("SRE, 6 years"), 0o600); err != nil {
		t.Fatal(err)
	}
	execute(t, "user", "resume", "--db", dbPath, "-u", "alice", "-f", newResume)

	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	ctx := context.Background()
	u, err := st.GetUserByUsername(ctx, "alice")
	if err != nil || u == nil {
		t.Fatalf("GetUserByUsername: %v, %v", u, err)
	}
	if u.Resume != "SRE, 6 years" {
		t.Errorf("expected replaced resume, got %q", u.Resume)
	}
	if err := st.CreateInterview(ctx, &model.InterviewSession{OwnerID: u.ID, Round: model.RoundGroupDiscussion, Topic: "Remote work"}); err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	if err := st.CreateInterview(ctx, &model.InterviewSession{
		OwnerID:   u.ID,
		Round:     model.RoundHR,
		Questions: []model.QuestionEntry{{Question: "Why us?"}},
	}); err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	st.Close()

	outPath := filepath.Join(dir, "export.json")
	execute(t, "export", "--db", dbPath, "--type", "hr", "-o", outPath)

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	var export struct {
		RoundType  string `json:"round_type"`
		Count      int    `json:"count"`
		Interviews []struct {
			Username  string `json:"username"`
			Interview struct {
				Type  string         `json:"interview_type"`
				Score map[string]any `json:"score"`
			} `json:"interview"`
		} `json:"interviews"`
	}
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if export.RoundType != "HR" || export.Count != 1 || len(export.Interviews) != 1 {
		t.Fatalf("unexpected export: %+v", export)
	}
	got := export.Interviews[0]
	if got.Username != "alice" || got.Interview.Type != "HR" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if _, ok := got.Interview.Score["question_1"]; !ok {
		t.Errorf("expected question_1 in score, got %v", got.Interview.Score)
	}
}

func TestExportRejectsUnknownType(t *testing.T) {
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"export", "--db", filepath.Join(t.TempDir(), "x.db"), "--type", "coding"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for unknown interview type")
	}
}
