package session

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/huandu/go-clone"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// Session 是一局多人游戏的协调上下文。主机持有权威名单，客户端只持有镜像，
// 镜像只会被主机发来的消息整体覆盖。
type Session struct {
	mu deadlock.Mutex

	id     string
	isHost bool
	meName string

	users    []*User
	settings Settings
	handler  StageHandler
	lastErr  error

	// 在持锁期间被置位，解锁后据此决定是否广播名单
	dirty bool

	out       Broadcaster
	up        Upstream
	onRefresh func()
}

func GenID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("Failed to generate UUID: " + err.Error())
	}

	return id.String()
}

// NewHost 创建主机会话，主机默认坐在吃豆人的位置上
func NewHost(name string, settings Settings) *Session {
	return &Session{
		id:       GenID(),
		isHost:   true,
		meName:   name,
		users:    []*User{{Name: name, RoleID: ROLE_PACMAN}},
		settings: settings,
		handler:  newStageHandler(STAGE_LOBBY),
	}
}

func NewClient(name string) *Session {
	return &Session{
		id:      GenID(),
		meName:  name,
		users:   []*User{{Name: name, RoleID: ROLE_OBSERVER}},
		handler: newStageHandler(STAGE_LOBBY),
	}
}

func (s *Session) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.out = b
}

func (s *Session) SetUpstream(u Upstream) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.up = u
}

// OnRefresh 注册名单或阶段变化后的回调，回调在锁外执行
func (s *Session) OnRefresh(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onRefresh = fn
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) IsHost() bool {
	return s.isHost
}

func (s *Session) Stage() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.handler.Stage()
}

func (s *Session) Started() bool {
	return s.Stage() == STAGE_STARTED
}

func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

func (s *Session) Me() User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.findByName(s.meName); u != nil {
		return *u
	}

	return User{Name: s.meName, RoleID: ROLE_OBSERVER}
}

// Users 返回名单的深拷贝，调用方可以随意修改
func (s *Session) Users() []User {
	s.mu.Lock()
	snapshot := clone.Clone(s.users).([]*User)
	s.mu.Unlock()

	users := make([]User, 0, len(snapshot))
	for _, u := range snapshot {
		users = append(users, *u)
	}

	return users
}

func (s *Session) RoleOf(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.findByName(name); u != nil {
		return u.RoleID, true
	}

	return ROLE_OBSERVER, false
}

func (s *Session) UserByRole(role int) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.findByRole(role); u != nil {
		return *u, true
	}

	return User{}, false
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}

// SetError 记录面向用户的错误，例如加入房间时连接失败
func (s *Session) SetError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	s.refresh()
}

func (s *Session) findByName(name string) *User {
	for _, u := range s.users {
		if u.Name == name {
			return u
		}
	}

	return nil
}

// findByRole 观战者不算占位
func (s *Session) findByRole(role int) *User {
	if role == ROLE_OBSERVER {
		return nil
	}

	for _, u := range s.users {
		if u.RoleID == role {
			return u
		}
	}

	return nil
}

func (s *Session) refresh() {
	s.mu.Lock()
	fn := s.onRefresh
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// commit 在锁外调用：名单有变化时广播给所有客户端，然后刷新界面
func (s *Session) commit() {
	s.mu.Lock()
	dirty := s.dirty
	s.dirty = false

	var (
		out     Broadcaster
		payload string
	)

	if dirty && s.isHost && s.handler.Stage() == STAGE_LOBBY && s.out != nil {
		out = s.out
		payload = s.toGameDataLocked()
	}
	s.mu.Unlock()

	if out != nil {
		out.Broadcast("#", payload)
	}

	if dirty {
		s.refresh()
	}
}

func (s *Session) switchStage(stage string) {
	if s.handler.Stage() == stage {
		return
	}

	zap.L().Info(
		"会话阶段切换",
		zap.String("session_id", s.id),
		zap.String("from", s.handler.Stage()),
		zap.String("to", stage),
	)

	s.handler = newStageHandler(stage)
	s.dirty = true
}

func (s *Session) AddUser(name string) error {
	if !s.isHost {
		return ErrNotHost
	}

	s.mu.Lock()
	if s.findByName(name) == nil {
		s.users = append(s.users, &User{Name: name, RoleID: ROLE_OBSERVER})
		s.dirty = true
	}
	s.mu.Unlock()

	s.commit()

	return nil
}

func (s *Session) RemoveUser(name string) error {
	if !s.isHost {
		return ErrNotHost
	}

	s.mu.Lock()
	for i, u := range s.users {
		if u.Name == name {
			s.users = append(s.users[:i], s.users[i+1:]...)
			s.dirty = true
			break
		}
	}
	s.mu.Unlock()

	s.commit()

	return nil
}

// Rename 客户端在昵称冲突后换用新名字
func (s *Session) Rename(name string) {
	s.mu.Lock()
	if u := s.findByName(s.meName); u != nil {
		u.Name = name
	}
	s.meName = name
	s.mu.Unlock()
}

// requestRole 需要持锁调用。目标角色被他人占用时静默忽略。
func (s *Session) requestRole(sender string, role int) error {
	if !ValidRole(role) {
		return fmt.Errorf("%w: %d", ErrInvalidRole, role)
	}

	u := s.findByName(sender)
	if u == nil {
		return fmt.Errorf("%w: %s", ErrUnknownUser, sender)
	}

	if occupant := s.findByRole(role); occupant != nil {
		return nil
	}

	if u.RoleID != role {
		u.RoleID = role
		s.dirty = true
	}

	return nil
}

// Command 主机侧的命令分发入口
func (s *Session) Command(sender, cmd, payload string) error {
	if !s.isHost {
		return ErrNotHost
	}

	s.mu.Lock()
	err := s.handler.OnCommand(s, sender, cmd, payload)
	s.mu.Unlock()

	s.commit()

	return err
}

// TakePosition 主机可以强占任意位置，原占用者变为观战；客户端只能申请空位
func (s *Session) TakePosition(role int) error {
	if !ValidRole(role) {
		return fmt.Errorf("%w: %d", ErrInvalidRole, role)
	}

	s.mu.Lock()

	if s.handler.Stage() != STAGE_LOBBY {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}

	occupant := s.findByRole(role)
	if occupant != nil && occupant.Name != s.meName {
		if !s.isHost {
			s.mu.Unlock()
			return ErrRoleTaken
		}
		occupant.RoleID = ROLE_OBSERVER
	}

	if !s.isHost {
		up := s.up
		s.mu.Unlock()

		if up == nil {
			return errors.New("尚未连接到主机")
		}
		return up.SendMessage("#" + CMD_ID + "#: " + strconv.Itoa(role))
	}

	err := s.requestRole(s.meName, role)
	s.mu.Unlock()

	s.commit()

	return err
}

// AssignRole 主机强制调整某个用户的角色
func (s *Session) AssignRole(name string, role int) error {
	if !s.isHost {
		return ErrNotHost
	}
	if !ValidRole(role) {
		return fmt.Errorf("%w: %d", ErrInvalidRole, role)
	}

	s.mu.Lock()

	if s.handler.Stage() != STAGE_LOBBY {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}

	u := s.findByName(name)
	if u == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownUser, name)
	}

	if occupant := s.findByRole(role); occupant != nil && occupant != u {
		occupant.RoleID = ROLE_OBSERVER
	}
	u.RoleID = role
	s.dirty = true
	s.mu.Unlock()

	s.commit()

	return nil
}

// EmptyPosition 主机把某个位置上的玩家移到观战席
func (s *Session) EmptyPosition(role int) error {
	if !s.isHost {
		return ErrNotHost
	}

	s.mu.Lock()
	if occupant := s.findByRole(role); occupant != nil {
		occupant.RoleID = ROLE_OBSERVER
		s.dirty = true
	}
	s.mu.Unlock()

	s.commit()

	return nil
}

func (s *Session) SetSettings(settings Settings) error {
	if !s.isHost {
		return ErrNotHost
	}

	s.mu.Lock()
	if s.settings != settings {
		s.settings = settings
		s.dirty = true
	}
	s.mu.Unlock()

	s.commit()

	return nil
}

// StartGame 只有主机可以开始游戏，开始信号广播给所有客户端
func (s *Session) StartGame() error {
	if !s.isHost {
		return ErrNotHost
	}

	s.mu.Lock()
	if s.handler.Stage() != STAGE_LOBBY {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.switchStage(STAGE_STARTED)
	out := s.out
	s.mu.Unlock()

	if out != nil {
		out.Broadcast("#"+CMD_START+"#", "#")
	}

	s.commit()

	zap.L().Info("主机开始游戏", zap.String("session_id", s.id))

	return nil
}

// MarkStarted 客户端收到开始信号
func (s *Session) MarkStarted() {
	s.mu.Lock()
	s.switchStage(STAGE_STARTED)
	s.mu.Unlock()

	s.commit()
}

func (s *Session) Close() {
	s.mu.Lock()
	s.switchStage(STAGE_CLOSED)
	s.mu.Unlock()

	s.commit()
}

// DoSwapUsers 原子地交换两个角色编号上的用户以及对应的控制器槽位。
// a == b 时不做任何修改。
func (s *Session) DoSwapUsers(a, b int, sw Swapper) error {
	if a == b {
		return ErrSelfSwap
	}
	if a < 0 || b < 0 || a >= MAX_PLAYER_COUNT || b >= MAX_PLAYER_COUNT {
		return fmt.Errorf("%w: %d,%d", ErrInvalidRole, a, b)
	}

	s.mu.Lock()
	ua, ub := s.findByRole(a), s.findByRole(b)
	if ua != nil {
		ua.RoleID = b
	}
	if ub != nil {
		ub.RoleID = a
	}
	if sw != nil {
		sw.Swap(a, b)
	}
	s.dirty = true
	s.mu.Unlock()

	s.commit()

	return nil
}

// SwapUsersCommand 主机本地执行交换后广播给客户端重放。
// 自身交换不修改状态，但仍然广播，客户端据此重置位置。
func (s *Session) SwapUsersCommand(a, b int, sw Swapper) error {
	if !s.isHost {
		return ErrNotHost
	}

	err := s.DoSwapUsers(a, b, sw)
	if err != nil && !errors.Is(err, ErrSelfSwap) {
		return err
	}

	s.mu.Lock()
	out := s.out
	s.mu.Unlock()

	if out != nil {
		out.Broadcast("#"+CMD_SWAP+"#", strconv.Itoa(a)+","+strconv.Itoa(b))
	}

	return nil
}

// ApplyScores 把本轮各角色的得分写回名单
func (s *Session) ApplyScores(scores map[int]int) {
	s.mu.Lock()
	for role, score := range scores {
		if u := s.findByRole(role); u != nil {
			u.Score = score
			s.dirty = true
		}
	}
	s.mu.Unlock()

	s.commit()
}
