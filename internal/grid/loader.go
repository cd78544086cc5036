package grid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrEmptyMap = errors.New("地图为空")

// 文本地图中每个字符对应一个格子
var legend = map[rune]Cell{
	'X': CELL_BLOCKED,
	'#': CELL_WALL,
	' ': CELL_EMPTY,
	'-': CELL_EMPTY,
	'.': CELL_ORB,
	'o': CELL_SUPER_ORB,
	'*': CELL_PICKUP_SPAWN,
	'P': CELL_PACMAN_SPAWN,
	'G': CELL_GHOST_SPAWN,
}

func Load(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开地图文件失败: %w", err)
	}
	defer f.Close()

	g, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("解析地图 %s 失败: %w", path, err)
	}

	return g, nil
}

func Parse(r io.Reader) (*Grid, error) {
	rows := make([]string, 0)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		row := strings.TrimRight(scanner.Text(), "\r")
		if row == "" {
			continue
		}
		rows = append(rows, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return FromRows(rows)
}

// FromRows 以最长的一行作为宽度，较短的行用 CELL_BLOCKED 补齐
func FromRows(rows []string) (*Grid, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyMap
	}

	width := 0
	for _, row := range rows {
		if n := len([]rune(row)); n > width {
			width = n
		}
	}

	g := New(width, len(rows))

	for y, row := range rows {
		for x, ch := range []rune(row) {
			c, ok := legend[ch]
			if !ok {
				return nil, fmt.Errorf("第 %d 行第 %d 列出现未知字符 %q", y+1, x+1, ch)
			}
			g.Set(x, y, c)
		}
	}

	return g, nil
}
