package netplay

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"pacman-lan/internal/session"
	"pacman-lan/internal/transport"

	"go.uber.org/zap"
)

// ClientPeer 处理客户端收到的每一行：昵称协商、名单镜像、开始信号和聊天
type ClientPeer struct {
	sess   *session.Session
	client *transport.Client

	baseName string
	retries  int

	driver atomic.Pointer[ClientDriver]

	started     chan struct{}
	startedOnce sync.Once

	OnChat func(line string)
}

func NewClientPeer(sess *session.Session) *ClientPeer {
	return &ClientPeer{
		sess:     sess,
		baseName: sess.Me().Name,
		started:  make(chan struct{}),
	}
}

// Join 连接主机并开始读取，连接失败会记录到会话上供界面展示
func (p *ClientPeer) Join(ctx context.Context, host string, port int) error {
	c, err := transport.Dial(ctx, host, port, p)
	if err != nil {
		p.sess.SetError(err)
		return err
	}

	p.client = c
	p.sess.SetUpstream(c)
	c.Start(ctx)

	return nil
}

func (p *ClientPeer) Session() *session.Session {
	return p.sess
}

// Started 在收到主机的开始信号后关闭
func (p *ClientPeer) Started() <-chan struct{} {
	return p.started
}

func (p *ClientPeer) Client() *transport.Client {
	return p.client
}

func (p *ClientPeer) Driver() *ClientDriver {
	return p.driver.Load()
}

func (p *ClientPeer) Done() <-chan struct{} {
	if p.client == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.client.Done()
}

func (p *ClientPeer) OnMessage(line string) {
	if line == "" {
		return
	}

	if d := p.driver.Load(); d != nil && line[0] == '#' {
		d.OnMessageReceived(line)
		return
	}

	switch {
	case line == transport.NICKNAME_PROMPT:
		p.send(p.sess.Me().Name)

	case line == transport.NICKNAME_RETRY:
		p.retries++
		name := p.baseName + strconv.Itoa(p.retries+1)
		p.sess.Rename(name)
		p.send(name)

	case transport.IsStateMsg(line):
		if err := p.sess.FromGameData(transport.TrimLabel(line)); err != nil {
			zap.L().Warn("名单解析失败，已丢弃", zap.Error(err))
		}

	case transport.IsTaggedCmd(line, session.CMD_START):
		p.driver.Store(NewClientDriver(p.sess, p.client))
		p.sess.MarkStarted()
		p.startedOnce.Do(func() { close(p.started) })

	default:
		if p.OnChat != nil {
			p.OnChat(line)
			return
		}
		zap.S().Infof("[聊天] %s", line)
	}
}

func (p *ClientPeer) send(line string) {
	if p.client == nil {
		return
	}

	if err := p.client.SendMessage(line); err != nil {
		zap.L().Warn("发送消息失败", zap.Error(err))
	}
}

func (p *ClientPeer) OnError(err error) {
	p.sess.SetError(err)
	p.sess.Close()
}

func (p *ClientPeer) Close() {
	if p.client != nil {
		p.client.Close()
	}
	p.sess.Close()
}
