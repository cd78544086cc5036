package match

import (
	"bufio"
	"context"
	"io"

	"pacman-lan/internal/level"
)

var keyDirections = map[byte]level.Direction{
	'w': level.DIR_NORTH,
	'd': level.DIR_EAST,
	's': level.DIR_SOUTH,
	'a': level.DIR_WEST,
	'x': level.DIR_NONE,
}

// ReadKeys 从终端读取 wasd 控制本地角色，x 停下。读到 EOF 或 ctx 结束时返回
func ReadKeys(ctx context.Context, r io.Reader, input *level.InputController) error {
	br := bufio.NewReader(r)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		ApplyKey(input, b)
	}
}

// ApplyKey 把一个按键写入输入控制器，不是方向键时返回 false
func ApplyKey(input *level.InputController, b byte) bool {
	d, ok := keyDirections[b|0x20]
	if !ok {
		return false
	}

	if d == level.DIR_NONE {
		input.Clear()
	} else {
		input.Set(d)
	}

	return true
}
