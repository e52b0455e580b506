package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pavelanni/interviewer/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestUser(t *testing.T, s *Store, username string) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), model.User{
		Username:     username,
		DisplayName:  "User " + username,
		PasswordHash: "hash",
		Resume:       "Go developer, 5 years",
		Active:       true,
	})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func TestNewClosesDatabaseOnFailure(t *testing.T) {
	var opened *sql.DB
	orig := openDB
	openDB = func(driver, dsn string) (*sql.DB, error) {
		db, err := orig(driver, dsn)
		opened = db
		return db, err
	}
	t.Cleanup(func() { openDB = orig })

	// The parent directory does not exist, so the first connection fails.
	_, err := New(filepath.Join(t.TempDir(), "missing", "x.db"))
	if err == nil {
		t.Fatal("expected error for unreachable database path")
	}
	if opened == nil {
		t.Fatal("database was never opened")
	}
	if err := opened.Ping(); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("expected closed database after failed New, ping returned %v", err)
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.UserCount(ctx)
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	id := insertTestUser(t, s, "alice")

	u, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatalf("expected user %d, got %+v", id, u)
	}
	if u.Role != model.UserRoleCandidate {
		t.Errorf("expected default role candidate, got %q", u.Role)
	}
	if !u.Active {
		t.Error("expected user to be active")
	}

	missing, err := s.GetUserByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown user, got %+v", missing)
	}

	newName := "alice2"
	newResume := "Rust developer"
	if err := s.UpdateUser(ctx, id, UserUpdate{Username: &newName, Resume: &newResume}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	u, err = s.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u.Username != "alice2" {
		t.Errorf("expected username alice2, got %q", u.Username)
	}
	if u.PasswordHash != "hash" {
		t.Errorf("password hash should be untouched, got %q", u.PasswordHash)
	}
	resume, err := s.Resume(ctx, id)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resume != "Rust developer" {
		t.Errorf("expected updated resume, got %q", resume)
	}

	if err := s.UpdateUser(ctx, 9999, UserUpdate{Resume: &newResume}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}

	// Duplicate username.
	if _, err := s.CreateUser(ctx, model.User{Username: "alice2", PasswordHash: "x", Active: true}); !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate username, got %v", err)
	}
}

func TestListAndToggleUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", users)
	}

	a := insertTestUser(t, s, "alice")
	insertTestUser(t, s, "bob")

	users, err = s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[1].Username != "bob" {
		t.Fatalf("unexpected users: %+v", users)
	}

	if err := s.ToggleUserActive(ctx, a); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, _ := s.GetUserByID(ctx, a)
	if u.Active {
		t.Error("expected alice to be inactive after toggle")
	}
	if err := s.ToggleUserActive(ctx, a); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, _ = s.GetUserByID(ctx, a)
	if !u.Active {
		t.Error("expected alice to be active after second toggle")
	}

	if err := s.ToggleUserActive(ctx, 9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertTestUser(t, s, "bob")

	token, err := s.CreateAuthSession(ctx, id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64-char token, got %d", len(token))
	}

	u, err := s.UserForToken(ctx, token)
	if err != nil {
		t.Fatalf("UserForToken: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatalf("expected user %d for token, got %+v", id, u)
	}

	if err := s.DeleteAuthSession(ctx, token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	u, err = s.UserForToken(ctx, token)
	if err != nil {
		t.Fatalf("UserForToken: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil after logout, got %+v", u)
	}
}

func TestInterviewLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := insertTestUser(t, s, "carol")

	sess := &model.InterviewSession{OwnerID: owner, Round: model.RoundTechnical}
	if err := s.CreateInterview(ctx, sess); err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("expected generated ID")
	}
	if sess.Version != 1 {
		t.Errorf("expected version 1, got %d", sess.Version)
	}

	sess.Questions = append(sess.Questions, model.QuestionEntry{Question: "What is a goroutine?"})
	if err := s.UpdateInterview(ctx, sess); err != nil {
		t.Fatalf("UpdateInterview: %v", err)
	}
	if sess.Version != 2 {
		t.Errorf("expected version 2, got %d", sess.Version)
	}

	got, err := s.GetInterview(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	if got.Round != model.RoundTechnical {
		t.Errorf("expected TECHNICAL, got %q", got.Round)
	}
	if len(got.Questions) != 1 || got.Questions[0].Question != "What is a goroutine?" {
		t.Errorf("unexpected questions: %+v", got.Questions)
	}
	if got.Final != nil || got.GD != nil {
		t.Error("expected no final evaluation and no GD score")
	}

	if err := s.DeleteInterview(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteInterview: %v", err)
	}
	if _, err := s.GetInterview(ctx, sess.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteInterview(ctx, sess.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUpdateInterviewVersionConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := insertTestUser(t, s, "dave")

	sess := &model.InterviewSession{OwnerID: owner, Round: model.RoundHR}
	if err := s.CreateInterview(ctx, sess); err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}

	// Two readers load the same version.
	a, err := s.GetInterview(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	b, err := s.GetInterview(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}

	a.Questions = append(a.Questions, model.QuestionEntry{Question: "Tell me about yourself."})
	if err := s.UpdateInterview(ctx, a); err != nil {
		t.Fatalf("first UpdateInterview: %v", err)
	}

	b.Questions = append(b.Questions, model.QuestionEntry{Question: "Why this company?"})
	if err := s.UpdateInterview(ctx, b); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale version, got %v", err)
	}

	got, err := s.GetInterview(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	if len(got.Questions) != 1 || got.Questions[0].Question != "Tell me about yourself." {
		t.Errorf("stale write must not land, got %+v", got.Questions)
	}

	missing := &model.InterviewSession{ID: "nope", Round: model.RoundHR, Version: 1}
	if err := s.UpdateInterview(ctx, missing); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown interview, got %v", err)
	}
}

func TestInterviewRejectsMixedShapes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := insertTestUser(t, s, "erin")

	sess := &model.InterviewSession{
		OwnerID:   owner,
		Round:     model.RoundGroupDiscussion,
		Questions: []model.QuestionEntry{{Question: "q"}},
	}
	if err := s.CreateInterview(ctx, sess); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	sess = &model.InterviewSession{OwnerID: owner, Round: "PANEL"}
	if err := s.CreateInterview(ctx, sess); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected ErrValidation for unknown round, got %v", err)
	}
}

func TestListInterviewsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := insertTestUser(t, s, "alice")
	bob := insertTestUser(t, s, "bob")

	for _, iv := range []model.InterviewSession{
		{OwnerID: alice, Round: model.RoundGroupDiscussion, Topic: "AI in education"},
		{OwnerID: alice, Round: model.RoundTechnical},
		{OwnerID: alice, Round: model.RoundTechnical},
		{OwnerID: bob, Round: model.RoundHR},
	} {
		if err := s.CreateInterview(ctx, &iv); err != nil {
			t.Fatalf("CreateInterview: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter InterviewFilter
		want   int
	}{
		{"all", InterviewFilter{}, 4},
		{"alice", InterviewFilter{OwnerID: alice}, 3},
		{"alice technical", InterviewFilter{OwnerID: alice, Round: model.RoundTechnical}, 2},
		{"bob gd", InterviewFilter{OwnerID: bob, Round: model.RoundGroupDiscussion}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListInterviews(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListInterviews: %v", err)
			}
			if got == nil {
				t.Fatal("expected non-nil slice")
			}
			if len(got) != tt.want {
				t.Errorf("expected %d interviews, got %d", tt.want, len(got))
			}
			for _, iv := range got {
				if tt.filter.OwnerID != 0 && iv.OwnerID != tt.filter.OwnerID {
					t.Errorf("interview %s belongs to %d", iv.ID, iv.OwnerID)
				}
			}
		})
	}
}

func TestDeleteUserCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertTestUser(t, s, "frank")

	sess := &model.InterviewSession{OwnerID: id, Round: model.RoundHR}
	if err := s.CreateInterview(ctx, sess); err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	token, err := s.CreateAuthSession(ctx, id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}

	if err := s.DeleteUser(ctx, id); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.GetInterview(ctx, sess.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected interview to be gone, got %v", err)
	}
	u, err := s.UserForToken(ctx, token)
	if err != nil {
		t.Fatalf("UserForToken: %v", err)
	}
	if u != nil {
		t.Error("expected token to be revoked with the user")
	}
	if err := s.DeleteUser(ctx, id); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestExportInterviews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertTestUser(t, s, "grace")

	gd := &model.InterviewSession{
		OwnerID:           id,
		Round:             model.RoundGroupDiscussion,
		Topic:             "Remote work",
		CandidateResponse: "It depends on the team.",
		GD:                &model.GDScore{Relevance: 8, Clarity: 7, Depth: 6, Confidence: 7, Grammar: 9, OverallScore: 37},
	}
	tech := &model.InterviewSession{OwnerID: id, Round: model.RoundTechnical}
	for _, iv := range []*model.InterviewSession{gd, tech} {
		if err := s.CreateInterview(ctx, iv); err != nil {
			t.Fatalf("CreateInterview: %v", err)
		}
	}

	all, err := s.ExportInterviews(ctx, "")
	if err != nil {
		t.Fatalf("ExportInterviews: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 results, got %d", len(all))
	}
	if all[1].SessionNumber != 2 {
		t.Errorf("expected session number 2, got %d", all[1].SessionNumber)
	}

	onlyGD, err := s.ExportInterviews(ctx, model.RoundGroupDiscussion)
	if err != nil {
		t.Fatalf("ExportInterviews: %v", err)
	}
	if len(onlyGD) != 1 {
		t.Fatalf("expected 1 GD result, got %d", len(onlyGD))
	}
	r := onlyGD[0]
	if r.Username != "grace" {
		t.Errorf("expected username grace, got %q", r.Username)
	}
	if r.OverallScore == nil || *r.OverallScore != 37 {
		t.Errorf("expected overall score 37, got %v", r.OverallScore)
	}
}
