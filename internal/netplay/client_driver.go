package netplay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pacman-lan/internal/level"
	"pacman-lan/internal/session"
	"pacman-lan/internal/transport"

	"go.uber.org/zap"
)

// ClientDriver 挂在客户端的模拟循环上：移动前应用主机的命令与状态，移动后上报本地方向
type ClientDriver struct {
	sess *session.Session
	up   session.Upstream
	box  *Mailbox
}

func NewClientDriver(sess *session.Session, up session.Upstream) *ClientDriver {
	return &ClientDriver{
		sess: sess,
		up:   up,
		box:  NewMailbox(),
	}
}

func (d *ClientDriver) Attach(l *level.Level) {
	l.SetSyncHook(d)
	l.OnCaught = func(*level.Level, int) {
		zap.L().Debug("吃豆人被抓，等待主机裁决")
	}
}

// OnMessageReceived 在读协程中调用
func (d *ClientDriver) OnMessageReceived(msg string) {
	if transport.IsStateMsg(msg) {
		d.box.PutState(transport.TrimLabel(msg))
		return
	}

	d.box.PushCommand(msg)
}

func (d *ClientDriver) BeforeMove(l *level.Level, _ float64) {
	cmds, state, ok := d.box.Drain()

	for _, cmd := range cmds {
		if err := d.applyCommand(l, cmd); err != nil {
			zap.L().Warn("无法处理主机命令，已丢弃", zap.String("cmd", cmd), zap.Error(err))
		}
	}

	if !ok {
		return
	}

	if err := l.FromGameData(state); err != nil {
		zap.L().Warn("关卡状态解析失败，已丢弃", zap.Error(err))
	}
}

func (d *ClientDriver) applyCommand(l *level.Level, cmd string) error {
	switch {
	case transport.IsTaggedCmd(cmd, session.CMD_SWAP):
		a, b, err := parseSwap(transport.TrimLabel(cmd))
		if err != nil {
			return err
		}

		if err := d.sess.DoSwapUsers(a, b, l); err != nil && !errors.Is(err, session.ErrSelfSwap) {
			return err
		}
		l.RefillLives()
		l.ResetPositions()
		return nil

	case transport.IsTaggedCmd(cmd, session.CMD_START):
		return nil

	default:
		return session.ErrUnknownCommand
	}
}

func parseSwap(payload string) (int, int, error) {
	parts := strings.Split(payload, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("交换命令格式错误: %q", payload)
	}

	a, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("交换命令格式错误: %w", err)
	}

	b, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("交换命令格式错误: %w", err)
	}

	return a, b, nil
}

func (d *ClientDriver) AfterMove(l *level.Level, _ float64) {
	a := l.Actor(l.Player)
	if a == nil {
		return
	}

	if err := d.up.SendMessage("#" + strconv.Itoa(int(a.Pending))); err != nil {
		zap.L().Debug("上报方向失败", zap.Error(err))
	}
}
