package netplay

import (
	"context"
	"sync/atomic"

	"pacman-lan/internal/analytics"
	"pacman-lan/internal/session"
	"pacman-lan/internal/transport"

	"go.uber.org/zap"
)

// HostPeer 把传输层的连接事件接到主机会话上
type HostPeer struct {
	sess   *session.Session
	server *transport.Server
	events analytics.Publisher

	driver atomic.Pointer[HostDriver]
}

func NewHostPeer(sess *session.Session, events analytics.Publisher) *HostPeer {
	if events == nil {
		events = analytics.Nop{}
	}

	p := &HostPeer{
		sess:   sess,
		events: events,
	}

	hostName := sess.Me().Name
	p.server = transport.NewServer(p, transport.ServerOptions{
		ValidateNickname: func(name string) bool {
			return transport.ValidNickname(name) && name != hostName
		},
	})

	sess.SetBroadcaster(p.server)

	return p
}

func (p *HostPeer) Session() *session.Session {
	return p.sess
}

func (p *HostPeer) Server() *transport.Server {
	return p.server
}

func (p *HostPeer) Events() analytics.Publisher {
	return p.events
}

func (p *HostPeer) Listen(ctx context.Context, host string, port int) error {
	return p.server.Listen(ctx, host, port)
}

func (p *HostPeer) OnClientAdded(name string) {
	if err := p.sess.AddUser(name); err != nil {
		zap.L().Warn("加入名单失败", zap.String("nickname", name), zap.Error(err))
		return
	}

	p.server.SystemBroadcast(name + " has joined the room.")
	analytics.Emit(p.events, analytics.PlayerJoinEvent(p.sess.ID(), name))
}

func (p *HostPeer) OnClientRemoved(name string) {
	role, seated := p.sess.RoleOf(name)

	if err := p.sess.RemoveUser(name); err != nil {
		zap.L().Warn("移出名单失败", zap.String("nickname", name), zap.Error(err))
	}

	// 掉线玩家的角色原地停下
	if d := p.driver.Load(); d != nil && seated && role != session.ROLE_OBSERVER {
		d.ReleaseRole(role)
	}

	p.server.SystemBroadcast(name + " has left the room.")
	analytics.Emit(p.events, analytics.PlayerLeaveEvent(p.sess.ID(), name))
}

// OnReceiveMessage 不以 # 开头的是聊天消息，原样转发；
// 游戏开始后 # 开头的是方向消息，之前则是大厅命令
func (p *HostPeer) OnReceiveMessage(name, msg string) {
	if msg == "" {
		return
	}

	if msg[0] != '#' {
		p.server.Broadcast(name, msg)
		return
	}

	if d := p.driver.Load(); d != nil {
		d.MessageReceived(name, msg[1:])
		return
	}

	cmd, payload, ok := transport.ParseTagged(msg)
	if !ok {
		zap.L().Warn(
			"命令缺少分隔符，已丢弃",
			zap.String("nickname", name),
			zap.String("msg", msg),
		)
		return
	}

	if err := p.sess.Command(name, cmd, payload); err != nil {
		zap.L().Warn(
			"处理命令失败，已丢弃",
			zap.String("nickname", name),
			zap.String("cmd", cmd),
			zap.Error(err),
		)
	}
}

// Start 开始游戏并停止接受新连接，返回的驱动需要挂到关卡上
func (p *HostPeer) Start() (*HostDriver, error) {
	d := NewHostDriver(p.sess, p.server, p.events)
	if !p.driver.CompareAndSwap(nil, d) {
		return nil, session.ErrAlreadyStarted
	}

	if err := p.sess.StartGame(); err != nil {
		p.driver.Store(nil)
		return nil, err
	}

	p.server.StopAccepting()

	analytics.Emit(p.events, analytics.MatchStartEvent(
		p.sess.ID(),
		p.sess.Settings().Map,
		len(p.sess.Users()),
	))

	return d, nil
}

func (p *HostPeer) Driver() *HostDriver {
	return p.driver.Load()
}

func (p *HostPeer) Abort() {
	p.server.Close()
	p.sess.Close()
}
