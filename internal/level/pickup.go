package level

import (
	"encoding/base64"
	"fmt"
	"sort"

	"pacman-lan/internal/grid"
)

// Pickup 是仍留在场上的道具，列表始终按行优先排序，碰撞检测依赖二分查找
type Pickup struct {
	X    int
	Y    int
	Kind grid.Cell
}

func pickupLess(ax, ay, bx, by int) bool {
	if ay != by {
		return ay < by
	}
	return ax < bx
}

func findPickup(pickups []Pickup, x, y int) (int, bool) {
	i := sort.Search(len(pickups), func(i int) bool {
		p := pickups[i]
		return !pickupLess(p.X, p.Y, x, y)
	})

	if i < len(pickups) && pickups[i].X == x && pickups[i].Y == y {
		return i, true
	}
	return i, false
}

// InitialPickups 按地图静态分类生成开局的道具，道具生成点开局为空
func InitialPickups(g *grid.Grid) []Pickup {
	pickups := make([]Pickup, 0)

	for _, p := range g.PickupCells() {
		kind := g.At(p.X, p.Y)
		if kind == grid.CELL_ORB || kind == grid.CELL_SUPER_ORB {
			pickups = append(pickups, Pickup{X: p.X, Y: p.Y, Kind: kind})
		}
	}

	return pickups
}

func bitmapLen(cells int) int {
	return (cells + 7) / 8
}

// EncodePickups 每个可承载道具的格子占 1 位，按行优先、字节内低位优先打包后做 base64
func EncodePickups(g *grid.Grid, pickups []Pickup) string {
	cells := g.PickupCells()
	buf := make([]byte, bitmapLen(len(cells)))

	for i, c := range cells {
		if _, ok := findPickup(pickups, c.X, c.Y); ok {
			buf[i>>3] |= 1 << (i & 7)
		}
	}

	return base64.StdEncoding.EncodeToString(buf)
}

// DecodePickups 返回按位图更新后的道具列表。
// 位为 1 且本地缺失时按静态分类补回（生成点不会被补回），位为 0 时移除本地道具。
// 本地列表为空说明这一轮已经结束，直接原样返回。
func DecodePickups(g *grid.Grid, data string, pickups []Pickup) ([]Pickup, error) {
	if len(pickups) == 0 {
		return pickups, nil
	}

	buf, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return pickups, fmt.Errorf("解码道具位图失败: %w", err)
	}

	cells := g.PickupCells()
	if len(buf) < bitmapLen(len(cells)) {
		return pickups, fmt.Errorf("道具位图长度不足，需要 %d 字节，实际 %d 字节", bitmapLen(len(cells)), len(buf))
	}

	out := make([]Pickup, 0, len(pickups))
	j := 0

	for i, c := range cells {
		for j < len(pickups) && pickupLess(pickups[j].X, pickups[j].Y, c.X, c.Y) {
			out = append(out, pickups[j])
			j++
		}

		existing := j < len(pickups) && pickups[j].X == c.X && pickups[j].Y == c.Y
		present := buf[i>>3]>>(i&7)&1 == 1

		switch {
		case present && existing:
			out = append(out, pickups[j])
		case present:
			kind := g.At(c.X, c.Y)
			if kind == grid.CELL_ORB || kind == grid.CELL_SUPER_ORB {
				out = append(out, Pickup{X: c.X, Y: c.Y, Kind: kind})
			}
		}

		if existing {
			j++
		}
	}

	out = append(out, pickups[j:]...)

	return out, nil
}
