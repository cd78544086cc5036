package level

import (
	"errors"
	"fmt"
	"strings"

	"pacman-lan/internal/grid"

	"go.uber.org/zap"
)

// 槽位编号与角色编号一一对应：0 吃豆人，1 第二个吃豆人，2-5 幽灵
const (
	SLOT_PACMAN      = 0
	SLOT_MS_PACMAN   = 1
	SLOT_FIRST_GHOST = 2
	MAX_SLOTS        = 6
)

const (
	STATE_STARTING = "Starting"
	STATE_RUNNING  = "Running"
	STATE_WON      = "Won"
	STATE_LOST     = "Lost"
)

const (
	SCORE_ORB       = 10
	SCORE_SUPER_ORB = 25
	SCORE_GHOST     = 500
	SCORE_CATCH     = 1000
	SCORE_ROUND     = 1000

	// 开局与结束时的倒计时，单位秒
	COUNTDOWN = 0.99
)

var ErrMalformedState = errors.New("关卡状态格式错误")

type Options struct {
	Lives      int
	GhostSpeed bool
}

// Slots 保存每个槽位的控制器，nil 表示该槽位没有角色
type Slots [MAX_SLOTS]Controller

type Level struct {
	Grid    *grid.Grid
	Actors  [MAX_SLOTS]*Actor
	Ctrls   Slots
	Pickups []Pickup

	// Player 是本地玩家控制的槽位，-1 表示观战
	Player int
	State  string

	// OnCaught 在吃豆人耗尽生命时被调用，参数为抓住它的幽灵槽位。
	// 多人模式下由同步驱动接管，未设置时按单机规则直接判定胜负。
	OnCaught func(l *Level, killer int)

	opts      Options
	timeLeft  float64
	hook      SyncHook
	maxPickup int
}

func New(g *grid.Grid, ctrls Slots, player int, opts Options) (*Level, error) {
	if opts.Lives <= 0 {
		opts.Lives = 1
	}

	pacSpawns := g.Spawns(grid.CELL_PACMAN_SPAWN)
	if len(pacSpawns) == 0 {
		return nil, errors.New("地图缺少吃豆人出生点")
	}
	ghostSpawns := g.Spawns(grid.CELL_GHOST_SPAWN)

	l := &Level{
		Grid:    g,
		Ctrls:   ctrls,
		Pickups: InitialPickups(g),
		Player:  player,
		opts:    opts,
	}
	l.maxPickup = len(l.Pickups)

	for slot := 0; slot < MAX_SLOTS; slot++ {
		if ctrls[slot] == nil {
			continue
		}

		switch {
		case slot == SLOT_PACMAN:
			l.Actors[slot] = newActor(KIND_PACMAN, slot, pacSpawns[0])
		case slot == SLOT_MS_PACMAN:
			l.Actors[slot] = newActor(KIND_PACMAN, slot, pacSpawns[len(pacSpawns)-1])
		case slot-SLOT_FIRST_GHOST < len(ghostSpawns):
			l.Actors[slot] = newActor(KIND_GHOST, slot, ghostSpawns[slot-SLOT_FIRST_GHOST])
		default:
			zap.L().Warn(
				"地图幽灵出生点不足，忽略该槽位",
				zap.Int("slot", slot),
			)
			continue
		}

		if l.Actors[slot].Kind == KIND_PACMAN {
			l.Actors[slot].Lives = opts.Lives
		}
	}

	l.start()

	return l, nil
}

func (l *Level) SetSyncHook(h SyncHook) {
	l.hook = h
}

func (l *Level) Actor(slot int) *Actor {
	if slot < 0 || slot >= MAX_SLOTS {
		return nil
	}
	return l.Actors[slot]
}

func IsPacManSlot(slot int) bool {
	return slot == SLOT_PACMAN || slot == SLOT_MS_PACMAN
}

// Swap 交换两个槽位的控制器，本地玩家槽位随之移动
func (l *Level) Swap(a, b int) {
	l.Ctrls[a], l.Ctrls[b] = l.Ctrls[b], l.Ctrls[a]

	switch l.Player {
	case a:
		l.Player = b
	case b:
		l.Player = a
	}
}

func (l *Level) start() {
	l.State = STATE_STARTING
	l.timeLeft = COUNTDOWN
}

func (l *Level) finish(state string) {
	l.State = state
	l.timeLeft = COUNTDOWN
}

// ResetPositions 所有角色回到出生点并重新进入开局倒计时
func (l *Level) ResetPositions() {
	for _, a := range l.Actors {
		if a != nil {
			a.respawn()
		}
	}

	if ic, ok := l.localInput(); ok {
		ic.Clear()
	}

	l.start()
}

func (l *Level) RefillLives() {
	for _, slot := range []int{SLOT_PACMAN, SLOT_MS_PACMAN} {
		if a := l.Actors[slot]; a != nil {
			a.Lives = l.opts.Lives
		}
	}
}

func (l *Level) localInput() (*InputController, bool) {
	if l.Player < 0 || l.Player >= MAX_SLOTS {
		return nil, false
	}
	ic, ok := l.Ctrls[l.Player].(*InputController)
	return ic, ok
}

func (l *Level) GameOver() bool {
	return (l.State == STATE_WON || l.State == STATE_LOST) && l.timeLeft < 0
}

func (l *Level) Update(dt float64) {
	if l.hook != nil {
		l.hook.BeforeMove(l, dt)
	}

	switch l.State {
	case STATE_STARTING:
		l.pollDirections()
		l.timeLeft -= dt
		if l.timeLeft < 0 {
			l.State = STATE_RUNNING
			l.timeLeft = 0
		}

	case STATE_RUNNING:
		l.pollDirections()
		for _, a := range l.Actors {
			if a != nil {
				l.move(a, a.Pending, dt)
			}
		}
		l.tickGhosts(dt)
		l.resolvePickups()
		l.resolveCollisions()

	case STATE_WON, STATE_LOST:
		l.timeLeft -= dt
	}

	if l.hook != nil {
		l.hook.AfterMove(l, dt)
	}
}

func (l *Level) pollDirections() {
	for slot, a := range l.Actors {
		if a == nil {
			continue
		}

		a.Pending = DIR_NONE
		if c := l.Ctrls[slot]; c != nil {
			a.Pending = c.Direction(l, a)
		}
	}
}

func (l *Level) canEnter(a *Actor, gx, gy int, d Direction) bool {
	if d == DIR_NONE {
		return false
	}

	dx, dy := d.Offset()
	nx, ny := gx+dx, gy+dy

	if !l.Grid.IsMoveable(nx, ny) {
		return false
	}

	// 吃豆人不能进入幽灵的出生区域
	return a.Kind != KIND_PACMAN || l.Grid.At(nx, ny) != grid.CELL_GHOST_SPAWN
}

// move 沿网格移动，只在经过格子中心时转向或停下，掉头可以随时进行
func (l *Level) move(a *Actor, want Direction, dt float64) {
	gx, gy := a.GridPos()
	cx, cy := grid.GridToWorld(gx, gy)

	if want != DIR_NONE && a.Heading != DIR_NONE && want == a.Heading.Opposite() {
		a.Heading = want
	}

	if a.Heading == DIR_NONE {
		if !l.canEnter(a, gx, gy, want) {
			return
		}
		a.X, a.Y = cx, cy
		a.Heading = want
	}

	step := a.Speed(l.opts.GhostSpeed) * dt
	dx, dy := a.Heading.Vector()
	ahead := (cx-a.X)*dx + (cy-a.Y)*dy

	if ahead < 0 || ahead > step {
		a.X += dx * step
		a.Y += dy * step
		return
	}

	rest := step - ahead
	a.X, a.Y = cx, cy

	if want != a.Heading && l.canEnter(a, gx, gy, want) {
		a.Heading = want
	} else if !l.canEnter(a, gx, gy, a.Heading) {
		a.Heading = DIR_NONE
		return
	}

	dx, dy = a.Heading.Vector()
	a.X += dx * rest
	a.Y += dy * rest
}

func (l *Level) tickGhosts(dt float64) {
	for slot := SLOT_FIRST_GHOST; slot < MAX_SLOTS; slot++ {
		g := l.Actors[slot]
		if g == nil || g.Ghost != GHOST_VULNERABLE {
			continue
		}

		g.vulnerableLeft -= dt
		if g.vulnerableLeft <= 0 {
			g.Ghost = GHOST_ALIVE
			g.vulnerableLeft = 0
		}
	}
}

func (l *Level) resolvePickups() {
	for _, slot := range []int{SLOT_PACMAN, SLOT_MS_PACMAN} {
		p := l.Actors[slot]
		if p == nil {
			continue
		}

		gx, gy := p.GridPos()
		i, ok := findPickup(l.Pickups, gx, gy)
		if !ok {
			continue
		}

		kind := l.Pickups[i].Kind
		l.Pickups = append(l.Pickups[:i], l.Pickups[i+1:]...)

		switch kind {
		case grid.CELL_ORB:
			p.AddScore(SCORE_ORB)
		case grid.CELL_SUPER_ORB:
			p.AddScore(SCORE_SUPER_ORB)
			l.frightenGhosts()
		}

		if l.CheckWinCondition(true) {
			return
		}
	}
}

func (l *Level) frightenGhosts() {
	for slot := SLOT_FIRST_GHOST; slot < MAX_SLOTS; slot++ {
		if g := l.Actors[slot]; g != nil {
			g.Ghost = GHOST_VULNERABLE
			g.vulnerableLeft = VULNERABLE_DURATION
		}
	}
}

func (l *Level) resolveCollisions() {
	if l.State != STATE_RUNNING {
		return
	}

	for _, ps := range []int{SLOT_PACMAN, SLOT_MS_PACMAN} {
		p := l.Actors[ps]
		if p == nil {
			continue
		}

		for gs := SLOT_FIRST_GHOST; gs < MAX_SLOTS; gs++ {
			g := l.Actors[gs]
			if g == nil || !p.Collides(g) {
				continue
			}

			if g.Ghost == GHOST_VULNERABLE {
				p.AddScore(SCORE_GHOST)
				g.respawn()
				continue
			}

			l.catchPacMan(p, gs)
			return
		}
	}
}

func (l *Level) catchPacMan(p *Actor, killer int) {
	l.Actors[killer].AddScore(SCORE_CATCH)

	p.Lives--
	if p.Lives > 0 {
		l.ResetPositions()
		return
	}

	p.AddScore(-SCORE_CATCH)

	if l.OnCaught != nil {
		l.OnCaught(l, killer)
		return
	}

	if IsPacManSlot(l.Player) {
		l.finish(STATE_LOST)
	} else {
		l.finish(STATE_WON)
	}
}

func (l *Level) orbsCleared() bool {
	for _, p := range l.Pickups {
		if p.Kind == grid.CELL_ORB {
			return false
		}
	}
	return true
}

// CheckWinCondition 豆子全部吃完时本轮结束，控制吃豆人的一方获胜
func (l *Level) CheckWinCondition(givePoints bool) bool {
	if l.maxPickup == 0 || !l.orbsCleared() {
		return false
	}

	if givePoints {
		if p := l.Actors[SLOT_PACMAN]; p != nil {
			p.AddScore(SCORE_ROUND)
		}
	}

	if IsPacManSlot(l.Player) {
		l.finish(STATE_WON)
	} else {
		l.finish(STATE_LOST)
	}

	return true
}

// SetRemoteDirection 把远端玩家的方向写入对应槽位的 SimController
func (l *Level) SetRemoteDirection(slot int, d Direction) bool {
	if slot < 0 || slot >= MAX_SLOTS || slot == l.Player {
		return false
	}

	sc, ok := l.Ctrls[slot].(*SimController)
	if !ok {
		return false
	}

	sc.Set(d)
	return true
}

// ToGameData 格式：道具位图|吃豆人|第二个吃豆人|幽灵0|幽灵1|幽灵2|幽灵3，空字段表示没有该角色
func (l *Level) ToGameData() string {
	fields := make([]string, 0, MAX_SLOTS+1)
	fields = append(fields, EncodePickups(l.Grid, l.Pickups))

	for _, a := range l.Actors {
		if a == nil {
			fields = append(fields, "")
			continue
		}
		fields = append(fields, a.ToGameData())
	}

	return strings.Join(fields, "|")
}

// FromGameData 用主机的状态整体覆盖本地镜像，解析失败时本地状态保持不变
func (l *Level) FromGameData(data string) error {
	fields := strings.Split(data, "|")
	if len(fields) > MAX_SLOTS+1 {
		return fmt.Errorf("%w: 字段数量 %d", ErrMalformedState, len(fields))
	}

	var states [MAX_SLOTS]*ActorState

	for i, f := range fields[1:] {
		if f == "" {
			continue
		}

		st, err := ParseActorState(f)
		if err != nil {
			return fmt.Errorf("%w: 槽位 %d: %w", ErrMalformedState, i, err)
		}
		states[i] = &st
	}

	pickups, err := DecodePickups(l.Grid, fields[0], l.Pickups)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedState, err)
	}
	l.Pickups = pickups

	for slot, st := range states {
		a := l.Actors[slot]
		if st == nil || a == nil {
			continue
		}

		a.Apply(*st)
		if slot != l.Player {
			l.SetRemoteDirection(slot, st.Pending)
		}
	}

	// 主机先吃完豆子时，本地镜像只能从位图得知本轮已经结束
	if l.State == STATE_STARTING || l.State == STATE_RUNNING {
		l.CheckWinCondition(false)
	}

	return nil
}
