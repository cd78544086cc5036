package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &Store{db: db}, mock
}

func sampleResult() MatchResult {
	now := time.Now()
	return MatchResult{
		ID:        "m-1",
		SessionID: "s-1",
		Map:       "maps/level1.txt",
		Outcome:   "Won",
		StartedAt: now.Add(-time.Minute),
		EndedAt:   now,
		Players: []PlayerResult{
			{Name: "alice", RoleID: 0, Score: 1020},
			{Name: "bob", RoleID: 2, Score: 1000},
		},
	}
}

func TestRecordMatch_RejectsEmptyResultBeforeTouchingDB(t *testing.T) {
	s := &Store{}

	err := s.RecordMatch(context.Background(), MatchResult{ID: "m-1"})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("want ErrEmptyResult got %v", err)
	}
}

func TestRecordMatch_WritesMatchAndPlayersInOneTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	res := sampleResult()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO matches")).
		WithArgs(res.ID, res.SessionID, res.Map, res.Outcome, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for _, p := range res.Players {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO match_players")).
			WithArgs(res.ID, p.Name, p.RoleID, p.Score).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := s.RecordMatch(context.Background(), res); err != nil {
		t.Fatalf("record match: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordMatch_RollsBackWhenPlayerInsertFails(t *testing.T) {
	s, mock := newMockStore(t)
	res := sampleResult()
	boom := errors.New("unique violation")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO matches")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO match_players")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO match_players")).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := s.RecordMatch(context.Background(), res)
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped insert error got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeaderboard_ScansAggregates(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"name", "count", "sum", "max"}).
		AddRow("alice", 3, 2500, 1500).
		AddRow("bob", 1, 1000, 1000)

	mock.ExpectQuery(regexp.QuoteMeta("FROM match_players")).
		WithArgs(10).
		WillReturnRows(rows)

	entries, err := s.Leaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("want 2 entries got %d", len(entries))
	}
	want := LeaderboardEntry{Name: "alice", Matches: 3, TotalScore: 2500, BestScore: 1500}
	if entries[0] != want {
		t.Fatalf("want %+v got %+v", want, entries[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeaderboard_WrapsQueryError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta("FROM match_players")).
		WithArgs(5).
		WillReturnError(boom)

	if _, err := s.Leaderboard(context.Background(), 5); !errors.Is(err, boom) {
		t.Fatalf("want wrapped query error got %v", err)
	}
}
