package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"pacman-lan/internal/grid"
	"pacman-lan/internal/level"
	"pacman-lan/internal/match"
	"pacman-lan/internal/netplay"
	"pacman-lan/internal/service/dto"
	"pacman-lan/internal/session"

	"go.uber.org/zap"
)

var (
	ErrLobbyClosed    = errors.New("大厅已经关闭")
	ErrLobbyBusy      = errors.New("大厅无法及时处理请求")
	ErrNoLeaderboard  = errors.New("未配置数据库，排行榜不可用")
	ErrInvalidRequest = errors.New("请求参数无效")
)

const REQUEST_TIMEOUT = 5 * time.Second

type MatchOptions struct {
	Lives    int
	TickRate int
}

// LobbyService 是主机的管理入口：座位、设置与开局请求都交给同一个协程串行处理
type LobbyService struct {
	ctx  context.Context
	peer *netplay.HostPeer
	opts MatchOptions

	input    *level.InputController
	recorder match.Recorder
	board    LeaderboardSource

	reqCh chan LobbyRequestAction
	done  chan struct{}

	runner atomic.Pointer[match.Runner]
}

// NewLobbyService 启动大厅协程，ctx 结束时协程与正在进行的对局一起退出。
// recorder 与 board 可以为 nil。
func NewLobbyService(
	ctx context.Context,
	peer *netplay.HostPeer,
	opts MatchOptions,
	recorder match.Recorder,
	board LeaderboardSource,
) *LobbyService {
	ls := &LobbyService{
		ctx:      ctx,
		peer:     peer,
		opts:     opts,
		input:    level.NewInputController(),
		recorder: recorder,
		board:    board,
		reqCh:    make(chan LobbyRequestAction),
		done:     make(chan struct{}),
	}

	go ls.lobbyLoop()

	return ls
}

func (ls *LobbyService) Peer() *netplay.HostPeer {
	return ls.peer
}

// Input 是主机本地玩家的方向输入
func (ls *LobbyService) Input() *level.InputController {
	return ls.input
}

func (ls *LobbyService) Runner() *match.Runner {
	return ls.runner.Load()
}

func (ls *LobbyService) Close() {
	select {
	case ls.reqCh <- LobbyRequestAction{Done: &struct{}{}}:
	case <-ls.done:
	}
	<-ls.done
}

func (ls *LobbyService) Snapshot() dto.LobbyResponse {
	sess := ls.peer.Session()
	users := sess.Users()

	resp := dto.LobbyResponse{
		SessionID: sess.ID(),
		Host:      sess.Me().Name,
		Settings:  sess.Settings(),
		Seats:     make([]dto.Seat, 0, session.MAX_PLAYER_COUNT),
		Observers: make([]string, 0),
		Users:     users,
	}

	for role := 0; role < session.MAX_PLAYER_COUNT; role++ {
		resp.Seats = append(resp.Seats, dto.Seat{RoleID: role, Role: dto.RoleName(role)})
	}
	for _, u := range users {
		if u.RoleID == session.ROLE_OBSERVER {
			resp.Observers = append(resp.Observers, u.Name)
			continue
		}
		resp.Seats[u.RoleID].Name = u.Name
	}

	switch sess.Stage() {
	case session.STAGE_LOBBY:
		resp.Status = dto.STATUS_LOBBY
	case session.STAGE_CLOSED:
		resp.Status = dto.STATUS_CLOSED
	default:
		resp.Status = dto.STATUS_PLAYING
	}

	if r := ls.runner.Load(); r != nil {
		select {
		case <-r.Done():
			resp.Status = dto.STATUS_FINISHED
			resp.Outcome = r.Outcome()
		default:
		}
	}

	return resp
}

func (ls *LobbyService) AssignSeat(req dto.SeatRequest) error {
	_, err := ls.send(LobbyRequestAction{SeatReq: &req})
	return err
}

func (ls *LobbyService) UpdateSettings(req dto.SettingsRequest) error {
	_, err := ls.send(LobbyRequestAction{SettingsReq: &req})
	return err
}

func (ls *LobbyService) StartMatch() (dto.StartMatchResponse, error) {
	res, err := ls.send(LobbyRequestAction{StartReq: &struct{}{}})
	return res.StartResp, err
}

func (ls *LobbyService) Leaderboard(ctx context.Context, limit int) (dto.LeaderboardResponse, error) {
	if ls.board == nil {
		return dto.LeaderboardResponse{}, ErrNoLeaderboard
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	entries, err := ls.board.Leaderboard(ctx, limit)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	return toLeaderboard(entries), nil
}

// send 把请求交给大厅协程并等待结果，两个阶段各自有超时
func (ls *LobbyService) send(req LobbyRequestAction) (lobbyResponseWrapper, error) {
	req.resCh = make(chan lobbyResponseWrapper, 1)

	reqTimer := time.NewTimer(REQUEST_TIMEOUT)
	defer reqTimer.Stop()

	select {
	case ls.reqCh <- req:
	case <-ls.done:
		return lobbyResponseWrapper{}, ErrLobbyClosed
	case <-reqTimer.C:
		zap.S().Warnf("大厅 %s 无法及时处理请求", ls.peer.Session().ID())
		return lobbyResponseWrapper{}, ErrLobbyBusy
	}

	resTimer := time.NewTimer(REQUEST_TIMEOUT)
	defer resTimer.Stop()

	select {
	case res := <-req.resCh:
		return res, res.Err
	case <-resTimer.C:
		zap.S().Warnf("大厅 %s 请求响应超时", ls.peer.Session().ID())
		return lobbyResponseWrapper{}, ErrLobbyBusy
	}
}

func (ls *LobbyService) lobbyLoop() {
	sessionID := ls.peer.Session().ID()

	defer func() {
		close(ls.done)
		zap.S().Infof("大厅 %s 协程退出", sessionID)
	}()

	for {
		select {
		case <-ls.ctx.Done():
			zap.S().Infof("大厅 %s 随上下文结束", sessionID)
			return

		case req := <-ls.reqCh:
			if req.Done != nil {
				zap.S().Infof("大厅 %s 收到关闭指令", sessionID)
				return
			}

			var res lobbyResponseWrapper

			switch {
			case req.SeatReq != nil:
				res.Err = ls.handleSeat(req.SeatReq)
			case req.SettingsReq != nil:
				res.Err = ls.handleSettings(req.SettingsReq)
			case req.StartReq != nil:
				res.StartResp, res.Err = ls.handleStart()
			default:
				res.Err = ErrInvalidRequest
			}

			if res.Err != nil {
				zap.S().Warnf("大厅 %s 处理请求失败：%v", sessionID, res.Err)
			}

			req.resCh <- res
		}
	}
}

func (ls *LobbyService) handleSeat(req *dto.SeatRequest) error {
	sess := ls.peer.Session()

	if req.Name == "" {
		if req.RoleID < 0 || req.RoleID >= session.MAX_PLAYER_COUNT {
			return fmt.Errorf("%w: %d", session.ErrInvalidRole, req.RoleID)
		}
		return sess.EmptyPosition(req.RoleID)
	}

	if req.Name == sess.Me().Name {
		return sess.TakePosition(req.RoleID)
	}

	return sess.AssignRole(req.Name, req.RoleID)
}

func (ls *LobbyService) handleSettings(req *dto.SettingsRequest) error {
	if req.Map == "" {
		return fmt.Errorf("%w: 地图不能为空", ErrInvalidRequest)
	}

	if _, err := grid.Load(req.Map); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return ls.peer.Session().SetSettings(session.Settings{
		Map:        req.Map,
		GhostSpeed: req.GhostSpeed,
	})
}

// handleStart 先确认地图可用再广播开始信号，开始后按冻结的名单创建关卡
func (ls *LobbyService) handleStart() (dto.StartMatchResponse, error) {
	sess := ls.peer.Session()

	if _, err := grid.Load(sess.Settings().Map); err != nil {
		return dto.StartMatchResponse{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	driver, err := ls.peer.Start()
	if err != nil {
		return dto.StartMatchResponse{}, err
	}

	l, err := match.NewLevel(sess, ls.input, ls.opts.Lives)
	if err != nil {
		zap.L().Error("开局后创建关卡失败，中止房间", zap.Error(err))
		ls.peer.Abort()
		return dto.StartMatchResponse{}, err
	}

	driver.Attach(l)

	r := match.NewRunner(l, sess, match.RunnerOptions{
		TickRate: ls.opts.TickRate,
		Recorder: ls.recorder,
		Events:   ls.peer.Events(),
	})
	ls.runner.Store(r)

	go func() {
		if err := r.Run(ls.ctx); err != nil && !errors.Is(err, context.Canceled) {
			zap.L().Error("对局异常结束", zap.Error(err))
		}
	}()

	return dto.StartMatchResponse{
		SessionID: sess.ID(),
		Players:   sess.Users(),
	}, nil
}
