// Package memrepo holds in-memory repositories used by service and handler
// tests. They enforce the same uniqueness rules as the Postgres schema.
package memrepo

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"proconnect/internal/domain/model"
	"proconnect/internal/domain/repository"
)

type weekKey struct {
	year, week int
}

type pair struct {
	a, b string
}

type Store struct {
	mu sync.Mutex

	users         map[string]*model.User
	projects      map[string]*model.Project
	likes         map[string]map[string]bool
	comments      []*model.Comment
	contestants   map[string]*model.Contestant
	winners       []*model.ProjectOfTheWeek
	weeks         map[weekKey]*model.ContestWeek
	notifications []*model.Notification
	certificates  []*model.Certificate
	requests      map[string]*model.FriendRequest
	friendships   map[pair]bool
	reports       map[string]*model.Report
	seq           int
}

func New() *Store {
	return &Store{
		users:       map[string]*model.User{},
		projects:    map[string]*model.Project{},
		likes:       map[string]map[string]bool{},
		contestants: map[string]*model.Contestant{},
		weeks:       map[weekKey]*model.ContestWeek{},
		requests:    map[string]*model.FriendRequest{},
		friendships: map[pair]bool{},
		reports:     map[string]*model.Report{},
	}
}

// tick returns strictly increasing timestamps so ordering by time is stable.
func (s *Store) tick() time.Time {
	s.seq++
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Millisecond)
}

func (s *Store) Users() repository.UserRepository                 { return &userRepo{s} }
func (s *Store) Projects() repository.ProjectRepository           { return &projectRepo{s} }
func (s *Store) Contest() repository.ContestRepository            { return &contestRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }
func (s *Store) Certificates() repository.CertificateRepository   { return &certificateRepo{s} }
func (s *Store) Friends() repository.FriendRepository             { return &friendRepo{s} }
func (s *Store) Reports() repository.ReportRepository             { return &reportRepo{s} }

// Tx runs fn without a real transaction; fn receives a nil *sql.Tx.
func (s *Store) Tx() repository.TxRunner { return txRunner{} }

type txRunner struct{}

func (txRunner) WithinTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func summary(u *model.User) *model.UserSummary {
	if u == nil {
		return nil
	}
	sum := u.Summary()
	return &sum
}
