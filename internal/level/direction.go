package level

// 线上协议中的方向编码：0 静止，1 北，2 东，3 南，4 西
type Direction int

const (
	DIR_NONE Direction = iota
	DIR_NORTH
	DIR_EAST
	DIR_SOUTH
	DIR_WEST
)

func (d Direction) Valid() bool {
	return d >= DIR_NONE && d <= DIR_WEST
}

// Vector 返回网格坐标系中的单位向量，y 轴向下
func (d Direction) Vector() (float64, float64) {
	switch d {
	case DIR_NORTH:
		return 0, -1
	case DIR_EAST:
		return 1, 0
	case DIR_SOUTH:
		return 0, 1
	case DIR_WEST:
		return -1, 0
	default:
		return 0, 0
	}
}

func (d Direction) Offset() (int, int) {
	x, y := d.Vector()
	return int(x), int(y)
}

func (d Direction) Opposite() Direction {
	switch d {
	case DIR_NORTH:
		return DIR_SOUTH
	case DIR_SOUTH:
		return DIR_NORTH
	case DIR_EAST:
		return DIR_WEST
	case DIR_WEST:
		return DIR_EAST
	default:
		return DIR_NONE
	}
}

func (d Direction) String() string {
	switch d {
	case DIR_NORTH:
		return "N"
	case DIR_EAST:
		return "E"
	case DIR_SOUTH:
		return "S"
	case DIR_WEST:
		return "W"
	default:
		return "-"
	}
}

// PackDirections 低 3 位为当前移动方向，再往上 3 位为待执行的方向请求
func PackDirections(current, pending Direction) int {
	return int(current)&7 | (int(pending)&7)<<3
}

func UnpackDirections(v int) (current, pending Direction) {
	return Direction(v & 7), Direction((v >> 3) & 7)
}
