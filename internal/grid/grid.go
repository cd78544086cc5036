package grid

import "math"

// 关卡中每个格子的静态分类，整局游戏中不会变化
type Cell int

const (
	CELL_BLOCKED Cell = iota
	CELL_WALL
	CELL_EMPTY
	CELL_ORB
	CELL_SUPER_ORB
	CELL_PICKUP_SPAWN
	CELL_PACMAN_SPAWN
	CELL_GHOST_SPAWN
)

func (c Cell) String() string {
	switch c {
	case CELL_BLOCKED:
		return "blocked"
	case CELL_WALL:
		return "wall"
	case CELL_EMPTY:
		return "empty"
	case CELL_ORB:
		return "orb"
	case CELL_SUPER_ORB:
		return "super_orb"
	case CELL_PICKUP_SPAWN:
		return "pickup_spawn"
	case CELL_PACMAN_SPAWN:
		return "pacman_spawn"
	case CELL_GHOST_SPAWN:
		return "ghost_spawn"
	default:
		return "unknown"
	}
}

// IsPickupCell 判断格子能否承载道具（豆子、能量豆、道具生成点）
func IsPickupCell(c Cell) bool {
	return c == CELL_ORB || c == CELL_SUPER_ORB || c == CELL_PICKUP_SPAWN
}

type Point struct {
	X int
	Y int
}

// Grid 是只读的关卡网格，主机与所有客户端必须加载同一份地图
type Grid struct {
	Width  int
	Height int

	cells []Cell
}

func New(width, height int) *Grid {
	cells := make([]Cell, width*height)
	for i := range cells {
		cells[i] = CELL_BLOCKED
	}

	return &Grid{
		Width:  width,
		Height: height,
		cells:  cells,
	}
}

func (g *Grid) InRange(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// At 越界时返回 CELL_BLOCKED
func (g *Grid) At(x, y int) Cell {
	if !g.InRange(x, y) {
		return CELL_BLOCKED
	}

	return g.cells[y*g.Width+x]
}

func (g *Grid) Set(x, y int, c Cell) {
	if !g.InRange(x, y) {
		return
	}

	g.cells[y*g.Width+x] = c
}

func (g *Grid) IsMoveable(x, y int) bool {
	c := g.At(x, y)
	return c != CELL_BLOCKED && c != CELL_WALL
}

// PickupCells 按行优先（y 外层，x 内层）返回所有可承载道具的格子。
// 道具位图的编解码都依赖这个顺序。
func (g *Grid) PickupCells() []Point {
	points := make([]Point, 0)

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if IsPickupCell(g.At(x, y)) {
				points = append(points, Point{X: x, Y: y})
			}
		}
	}

	return points
}

// Spawns 按行优先返回指定类型的出生点
func (g *Grid) Spawns(kind Cell) []Point {
	points := make([]Point, 0)

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.At(x, y) == kind {
				points = append(points, Point{X: x, Y: y})
			}
		}
	}

	return points
}

// 一个格子在世界坐标中占 1 个单位，格子中心落在整数坐标上
func GridToWorld(x, y int) (float64, float64) {
	return float64(x), float64(y)
}

func WorldToGrid(wx, wy float64) (int, int) {
	return int(math.Floor(wx + 0.5)), int(math.Floor(wy + 0.5))
}
