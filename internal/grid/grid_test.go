package grid

import (
	"strings"
	"testing"
)

func TestFromRows_ClassifiesCells(t *testing.T) {
	g, err := FromRows([]string{
		"#.o#",
		"#*P#",
		"#G #",
	})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if g.Width != 4 || g.Height != 3 {
		t.Fatalf("unexpected size, want 4x3 got %dx%d", g.Width, g.Height)
	}

	cases := []struct {
		x, y int
		want Cell
	}{
		{0, 0, CELL_WALL},
		{1, 0, CELL_ORB},
		{2, 0, CELL_SUPER_ORB},
		{1, 1, CELL_PICKUP_SPAWN},
		{2, 1, CELL_PACMAN_SPAWN},
		{1, 2, CELL_GHOST_SPAWN},
		{2, 2, CELL_EMPTY},
		{-1, 0, CELL_BLOCKED},
		{4, 2, CELL_BLOCKED},
	}

	for _, c := range cases {
		if got := g.At(c.x, c.y); got != c.want {
			t.Fatalf("cell (%d,%d): want %s got %s", c.x, c.y, c.want, got)
		}
	}
}

func TestFromRows_PadsShortRows(t *testing.T) {
	g, err := FromRows([]string{"###", "#"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if got := g.At(2, 1); got != CELL_BLOCKED {
		t.Fatalf("padding should be blocked, got %s", got)
	}
}

func TestParse_RejectsUnknownCharacter(t *testing.T) {
	if _, err := Parse(strings.NewReader("#?#\n")); err == nil {
		t.Fatalf("unknown map character should be rejected")
	}

	if _, err := Parse(strings.NewReader("\n\n")); err != ErrEmptyMap {
		t.Fatalf("empty map should return ErrEmptyMap, got %v", err)
	}
}

func TestPickupCells_RowMajorOrder(t *testing.T) {
	g, err := FromRows([]string{
		".#o",
		"#*.",
	})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	want := []Point{{0, 0}, {2, 0}, {1, 1}, {2, 1}}
	got := g.PickupCells()

	if len(got) != len(want) {
		t.Fatalf("want %d pickup cells got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pickup cell %d: want %v got %v", i, want[i], got[i])
		}
	}
}

func TestWorldToGrid_RoundsToNearestCell(t *testing.T) {
	wx, wy := GridToWorld(3, 5)

	if x, y := WorldToGrid(wx+0.49, wy-0.49); x != 3 || y != 5 {
		t.Fatalf("want (3,5) got (%d,%d)", x, y)
	}

	if x, y := WorldToGrid(wx+0.51, wy); x != 4 || y != 5 {
		t.Fatalf("want (4,5) got (%d,%d)", x, y)
	}
}

func TestLoad_ShippedMap(t *testing.T) {
	g, err := Load("../../maps/level1.txt")
	if err != nil {
		t.Fatalf("load shipped map failed: %v", err)
	}

	if n := len(g.Spawns(CELL_PACMAN_SPAWN)); n != 2 {
		t.Fatalf("shipped map should have 2 pacman spawns, got %d", n)
	}
	if n := len(g.Spawns(CELL_GHOST_SPAWN)); n != 4 {
		t.Fatalf("shipped map should have 4 ghost spawns, got %d", n)
	}
}
