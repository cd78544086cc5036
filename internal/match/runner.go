package match

import (
	"context"
	"time"

	"pacman-lan/internal/analytics"
	"pacman-lan/internal/level"
	"pacman-lan/internal/session"
	"pacman-lan/internal/store"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

const DEFAULT_TICK_RATE = 30

// Recorder 保存对局结果，未配置数据库时为 nil
type Recorder interface {
	RecordMatch(ctx context.Context, res store.MatchResult) error
}

type RunnerOptions struct {
	TickRate int
	Recorder Recorder
	Events   analytics.Publisher
}

// Runner 以固定帧率驱动关卡，所有对关卡的访问都经过它的锁
type Runner struct {
	mu deadlock.Mutex

	level *level.Level
	sess  *session.Session
	opts  RunnerOptions

	startedAt time.Time
	done      chan struct{}
	outcome   string
}

func NewRunner(l *level.Level, sess *session.Session, opts RunnerOptions) *Runner {
	if opts.TickRate <= 0 {
		opts.TickRate = DEFAULT_TICK_RATE
	}
	if opts.Events == nil {
		opts.Events = analytics.Nop{}
	}

	return &Runner{
		level: l,
		sess:  sess,
		opts:  opts,
		done:  make(chan struct{}),
	}
}

// Run 阻塞直到本局结束或 ctx 被取消
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	r.startedAt = time.Now()

	interval := time.Second / time.Duration(r.opts.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("对局被中止", zap.String("session", r.sess.ID()))
			return ctx.Err()

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			if r.Step(dt) {
				r.finish(ctx)
				return nil
			}
		}
	}
}

// Step 推进一帧，返回本局是否已经结束
func (r *Runner) Step(dt float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.level.Update(dt)

	return r.level.GameOver()
}

// Snapshot 返回当前关卡状态串与阶段
func (r *Runner) Snapshot() (data, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.level.ToGameData(), r.level.State
}

func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) Outcome() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.outcome
}

// Scores 按角色编号收集当前得分
func (r *Runner) Scores() map[int]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.scoresLocked()
}

func (r *Runner) scoresLocked() map[int]int {
	scores := make(map[int]int)
	for slot, a := range r.level.Actors {
		if a != nil {
			scores[slot] = a.Score()
		}
	}
	return scores
}

func (r *Runner) finish(ctx context.Context) {
	r.mu.Lock()
	r.outcome = r.level.State
	scores := r.scoresLocked()
	outcome := r.outcome
	r.mu.Unlock()

	r.sess.ApplyScores(scores)

	users := r.sess.Users()
	byName := make(map[string]int, len(users))
	players := make([]store.PlayerResult, 0, len(users))
	for _, u := range users {
		if u.RoleID == session.ROLE_OBSERVER {
			continue
		}
		byName[u.Name] = u.Score
		players = append(players, store.PlayerResult{
			Name:   u.Name,
			RoleID: u.RoleID,
			Score:  u.Score,
		})
	}

	zap.L().Info(
		"对局结束",
		zap.String("session", r.sess.ID()),
		zap.String("outcome", outcome),
		zap.Any("scores", byName),
	)

	if !r.sess.IsHost() {
		return
	}

	analytics.Emit(r.opts.Events, analytics.MatchEndEvent(r.sess.ID(), outcome, byName))

	if r.opts.Recorder == nil || len(players) == 0 {
		return
	}

	res := store.MatchResult{
		ID:        session.GenID(),
		SessionID: r.sess.ID(),
		Map:       r.sess.Settings().Map,
		Outcome:   outcome,
		StartedAt: r.startedAt,
		EndedAt:   time.Now(),
		Players:   players,
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := r.opts.Recorder.RecordMatch(recordCtx, res); err != nil {
		zap.L().Error("保存对局结果失败", zap.String("match", res.ID), zap.Error(err))
	}
}
