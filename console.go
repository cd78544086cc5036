package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"pacman-lan/internal/level"
	"pacman-lan/internal/match"
	"pacman-lan/internal/session"

	"go.uber.org/zap"
)

// console 读取终端输入：大厅阶段支持 /seat /start /quit 与聊天，开始后每个字符都是方向键
type console struct {
	input   *level.InputController
	started func() bool
	seat    func(role int) error
	start   func() error
	chat    func(text string) error

	quit chan struct{}
}

func (c *console) run(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if c.started() {
			if line == "/quit" {
				break
			}
			for i := 0; i < len(line); i++ {
				match.ApplyKey(c.input, line[i])
			}
			continue
		}

		if err := c.handle(line); err != nil {
			if err == io.EOF {
				break
			}
			fmt.Printf("*** %v ***\n", err)
		}
	}

	close(c.quit)
}

func (c *console) handle(line string) error {
	fields := strings.Fields(line)

	switch fields[0] {
	case "/quit":
		return io.EOF

	case "/start":
		if c.start == nil {
			return fmt.Errorf("只有主机可以开始游戏")
		}
		return c.start()

	case "/seat":
		if len(fields) != 2 {
			return fmt.Errorf("用法: /seat <-1..5>")
		}
		role, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("用法: /seat <-1..5>")
		}
		return c.seat(role)

	default:
		if strings.ContainsRune(line, '#') {
			zap.L().Debug("聊天消息不能包含 #", zap.String("line", line))
			return fmt.Errorf("聊天消息不能包含 #")
		}
		return c.chat(line)
	}
}

func scoreboard(users []session.User) string {
	sort.Slice(users, func(i, j int) bool {
		return users[i].Score > users[j].Score
	})

	var b strings.Builder
	b.WriteString("=== 对局结束 ===\n")
	for _, u := range users {
		if u.RoleID == session.ROLE_OBSERVER {
			continue
		}
		fmt.Fprintf(&b, "%-16s %6d\n", u.Name, u.Score)
	}

	return b.String()
}
