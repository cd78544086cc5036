package netplay

import (
	"strconv"

	"pacman-lan/internal/analytics"
	"pacman-lan/internal/level"
	"pacman-lan/internal/session"

	"go.uber.org/zap"
)

// HostDriver 挂在主机的模拟循环上：移动前应用远端方向，移动后广播整份关卡状态
type HostDriver struct {
	sess   *session.Session
	out    session.Broadcaster
	buf    *DirectionBuffer
	events analytics.Publisher
}

func NewHostDriver(sess *session.Session, out session.Broadcaster, events analytics.Publisher) *HostDriver {
	return &HostDriver{
		sess:   sess,
		out:    out,
		buf:    NewDirectionBuffer(),
		events: events,
	}
}

// Attach 接管关卡的同步钩子与被抓裁决
func (d *HostDriver) Attach(l *level.Level) {
	l.SetSyncHook(d)
	l.OnCaught = d.onCaught
}

// MessageReceived 处理游戏阶段客户端发来的方向，payload 已去掉开头的 #
func (d *HostDriver) MessageReceived(name, payload string) {
	role, ok := d.sess.RoleOf(name)
	if !ok || role == session.ROLE_OBSERVER {
		zap.L().Debug("忽略观战者的方向消息", zap.String("nickname", name))
		return
	}

	v, err := strconv.Atoi(payload)
	if err != nil || !level.Direction(v).Valid() {
		zap.L().Warn(
			"方向消息格式错误，已丢弃",
			zap.String("nickname", name),
			zap.String("payload", payload),
		)
		return
	}

	d.buf.Put(role, level.Direction(v))
}

// ReleaseRole 在下一帧把该角色的方向清空
func (d *HostDriver) ReleaseRole(role int) {
	d.buf.Put(role, level.DIR_NONE)
}

func (d *HostDriver) BeforeMove(l *level.Level, _ float64) {
	for role, dir := range d.buf.Drain() {
		l.SetRemoteDirection(role, dir)
	}
}

func (d *HostDriver) AfterMove(l *level.Level, _ float64) {
	d.out.Broadcast("#", l.ToGameData())
}

// onCaught 把抓住吃豆人的幽灵换到吃豆人的位置上，未达成胜利条件时开始新一轮
func (d *HostDriver) onCaught(l *level.Level, killer int) {
	ghost := l.Actor(killer)

	pac := -1
	for _, slot := range []int{level.SLOT_PACMAN, level.SLOT_MS_PACMAN} {
		if a := l.Actor(slot); a != nil && a.Collides(ghost) {
			pac = slot
			break
		}
	}

	if pac < 0 {
		zap.L().Warn("没有找到与幽灵相撞的吃豆人，忽略本次裁决", zap.Int("killer", killer))
		return
	}

	if err := d.sess.SwapUsersCommand(pac, killer, l); err != nil {
		zap.L().Warn("交换角色失败", zap.Error(err))
		return
	}

	analytics.Emit(d.events, analytics.RoleSwapEvent(d.sess.ID(), pac, killer))

	if !l.CheckWinCondition(false) {
		l.RefillLives()
		l.ResetPositions()
	}
}
