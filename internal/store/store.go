package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var ErrEmptyResult = errors.New("对局结果中没有玩家")

type Store struct {
	db *sql.DB
}

// PlayerResult 是某个玩家在一局中的最终角色与得分
type PlayerResult struct {
	Name   string `json:"name"`
	RoleID int    `json:"role_id"`
	Score  int    `json:"score"`
}

type MatchResult struct {
	ID        string
	SessionID string
	Map       string
	Outcome   string
	StartedAt time.Time
	EndedAt   time.Time
	Players   []PlayerResult
}

type LeaderboardEntry struct {
	Name       string `json:"name"`
	Matches    int    `json:"matches"`
	TotalScore int    `json:"total_score"`
	BestScore  int    `json:"best_score"`
}

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	map         TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS match_players (
	match_id  TEXT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	role_id   INTEGER NOT NULL,
	score     INTEGER NOT NULL,
	PRIMARY KEY (match_id, name)
);

CREATE INDEX IF NOT EXISTS idx_match_players_name ON match_players(name);
`

func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	zap.L().Info("数据库连接成功")

	return &Store{db: db}, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化数据表失败: %w", err)
	}
	return nil
}

// RecordMatch 在一个事务中写入对局和所有玩家的得分
func (s *Store) RecordMatch(ctx context.Context, res MatchResult) error {
	if len(res.Players) == 0 {
		return ErrEmptyResult
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO matches (id, session_id, map, outcome, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, res.SessionID, res.Map, res.Outcome, res.StartedAt, res.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("写入对局失败: %w", err)
	}

	for _, p := range res.Players {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO match_players (match_id, name, role_id, score) VALUES ($1, $2, $3, $4)`,
			res.ID, p.Name, p.RoleID, p.Score,
		)
		if err != nil {
			return fmt.Errorf("写入玩家 %s 得分失败: %w", p.Name, err)
		}
	}

	return tx.Commit()
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, COUNT(*), COALESCE(SUM(score), 0), COALESCE(MAX(score), 0)
		 FROM match_players
		 GROUP BY name
		 ORDER BY SUM(score) DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("查询排行榜失败: %w", err)
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.Matches, &e.TotalScore, &e.BestScore); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
