package level

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"pacman-lan/internal/grid"
)

type Kind int

const (
	KIND_PACMAN Kind = iota
	KIND_GHOST
)

type GhostState int

const (
	GHOST_ALIVE GhostState = iota
	GHOST_VULNERABLE
)

const (
	PACMAN_SPEED           = 7.0
	GHOST_SPEED_FAST       = 7.4
	GHOST_SPEED_VULNERABLE = 6.0

	// 吃下能量豆后幽灵保持可被吃的时长，单位秒
	VULNERABLE_DURATION = 6.0
)

type Actor struct {
	Kind Kind
	Slot int

	X float64
	Y float64

	// Heading 是当前移动方向，Pending 是本帧控制器给出的方向请求
	Heading Direction
	Pending Direction

	Lives int
	Ghost GhostState

	vulnerableLeft float64
	score          int

	spawn grid.Point
}

func newActor(kind Kind, slot int, spawn grid.Point) *Actor {
	a := &Actor{
		Kind:  kind,
		Slot:  slot,
		spawn: spawn,
	}
	a.respawn()

	return a
}

func (a *Actor) respawn() {
	a.X, a.Y = grid.GridToWorld(a.spawn.X, a.spawn.Y)
	a.Heading = DIR_NONE
	a.Pending = DIR_NONE
	a.Ghost = GHOST_ALIVE
	a.vulnerableLeft = 0
}

func (a *Actor) Score() int {
	return a.score
}

// SetScore 分数不会小于 0
func (a *Actor) SetScore(v int) {
	a.score = max(v, 0)
}

func (a *Actor) AddScore(delta int) {
	a.SetScore(a.score + delta)
}

func (a *Actor) GridPos() (int, int) {
	return grid.WorldToGrid(a.X, a.Y)
}

func (a *Actor) Speed(ghostSpeed bool) float64 {
	if a.Kind == KIND_PACMAN {
		return PACMAN_SPEED
	}

	switch {
	case a.Ghost == GHOST_VULNERABLE:
		return GHOST_SPEED_VULNERABLE
	case ghostSpeed:
		return GHOST_SPEED_FAST
	default:
		return PACMAN_SPEED
	}
}

func (a *Actor) Collides(other *Actor) bool {
	if other == nil {
		return false
	}

	return math.Hypot(a.X-other.X, a.Y-other.Y) < 0.5
}

// ActorState 是单个角色在线上传输的部分：x,y;方向打包值;分数
type ActorState struct {
	X       float64
	Y       float64
	Heading Direction
	Pending Direction
	Score   int
}

func (a *Actor) State() ActorState {
	return ActorState{
		X:       a.X,
		Y:       a.Y,
		Heading: a.Heading,
		Pending: a.Pending,
		Score:   a.score,
	}
}

func (a *Actor) Apply(st ActorState) {
	a.X = st.X
	a.Y = st.Y
	a.Heading = st.Heading
	a.Pending = st.Pending
	a.SetScore(st.Score)
}

func (a *Actor) ToGameData() string {
	return a.State().String()
}

func (st ActorState) String() string {
	return strconv.FormatFloat(st.X, 'f', -1, 64) + "," +
		strconv.FormatFloat(st.Y, 'f', -1, 64) + ";" +
		strconv.Itoa(PackDirections(st.Heading, st.Pending)) + ";" +
		strconv.Itoa(st.Score)
}

func ParseActorState(data string) (ActorState, error) {
	parts := strings.Split(data, ";")
	if len(parts) != 3 {
		return ActorState{}, fmt.Errorf("角色数据字段数量错误: %q", data)
	}

	pos := strings.Split(parts[0], ",")
	if len(pos) != 2 {
		return ActorState{}, fmt.Errorf("角色坐标格式错误: %q", parts[0])
	}

	x, err := strconv.ParseFloat(pos[0], 64)
	if err != nil {
		return ActorState{}, fmt.Errorf("解析 x 坐标失败: %w", err)
	}

	y, err := strconv.ParseFloat(pos[1], 64)
	if err != nil {
		return ActorState{}, fmt.Errorf("解析 y 坐标失败: %w", err)
	}

	packed, err := strconv.Atoi(parts[1])
	if err != nil {
		return ActorState{}, fmt.Errorf("解析方向失败: %w", err)
	}

	heading, pending := UnpackDirections(packed)
	if !heading.Valid() || !pending.Valid() {
		return ActorState{}, fmt.Errorf("方向编码越界: %d", packed)
	}

	score, err := strconv.Atoi(parts[2])
	if err != nil {
		return ActorState{}, fmt.Errorf("解析分数失败: %w", err)
	}

	return ActorState{
		X:       x,
		Y:       y,
		Heading: heading,
		Pending: pending,
		Score:   score,
	}, nil
}
