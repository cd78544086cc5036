package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

var (
	ErrNicknameRejected = errors.New("昵称协商失败")
	ErrServerClosed     = errors.New("服务器已关闭")
)

const (
	DEFAULT_WRITE_TIMEOUT    = 5 * time.Second
	DEFAULT_NICKNAME_TIMEOUT = 30 * time.Second
)

// Handler 接收服务器侧的连接事件，回调不会在持有服务器锁时触发
type Handler interface {
	OnClientAdded(name string)
	OnClientRemoved(name string)
	OnReceiveMessage(name, msg string)
}

type ServerOptions struct {
	WriteTimeout    time.Duration
	NicknameTimeout time.Duration

	// ValidateNickname 为空时使用 ValidNickname
	ValidateNickname func(string) bool
}

type clientConn struct {
	name   string
	conn   net.Conn
	reader *bufio.Reader

	writeMu deadlock.Mutex
}

func (c *clientConn) writeLine(line string, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}

	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

func (c *clientConn) readLine(timeout time.Duration) (string, error) {
	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		c.conn.SetReadDeadline(time.Time{})
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// Server 是一行一条消息的 TCP 广播服务器，每个连接有独立的读协程
type Server struct {
	mu deadlock.Mutex

	handler Handler
	opts    ServerOptions

	listener net.Listener

	// 已登记的客户端按昵称索引，pending 为仍在协商昵称的连接
	clients map[string]*clientConn
	pending map[net.Conn]struct{}

	watchers  map[int]chan string
	nextWatch int

	accepting bool
	closed    bool
	closeOnce sync.Once

	wg sync.WaitGroup
}

func NewServer(handler Handler, opts ServerOptions) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DEFAULT_WRITE_TIMEOUT
	}
	if opts.NicknameTimeout <= 0 {
		opts.NicknameTimeout = DEFAULT_NICKNAME_TIMEOUT
	}
	if opts.ValidateNickname == nil {
		opts.ValidateNickname = ValidNickname
	}

	return &Server{
		handler:  handler,
		opts:     opts,
		clients:  make(map[string]*clientConn),
		pending:  make(map[net.Conn]struct{}),
		watchers: make(map[int]chan string),
	}
}

// Listen 开始接受连接，ctx 取消时服务器关闭
func (s *Server) Listen(ctx context.Context, host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("监听 %s:%d 失败: %w", host, port, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.accepting = true
	s.mu.Unlock()

	zap.L().Info("游戏服务器开始监听", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop(ln)

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				zap.L().Debug("监听器已关闭，停止接受连接")
				return
			}

			zap.L().Warn("接受连接失败", zap.Error(err))
			continue
		}

		s.mu.Lock()
		if !s.accepting {
			s.mu.Unlock()
			conn.Close()
			continue
		}
		s.pending[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()

	c := &clientConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}

	name, err := s.negotiate(c)

	s.mu.Lock()
	delete(s.pending, conn)
	s.mu.Unlock()

	if err != nil {
		zap.L().Info(
			"昵称协商失败，关闭连接",
			zap.String("remote_addr", conn.RemoteAddr().String()),
			zap.Error(err),
		)
		conn.Close()
		return
	}

	s.handler.OnClientAdded(name)
	s.readLoop(c)
}

// negotiate 发送昵称提示并等待回复，名字为空、非法、重复或读取超时都会再次提示，
// 超过 MAX_NICKNAME_RETRIES 次后放弃。成功时连接已经登记到名单中。
func (s *Server) negotiate(c *clientConn) (string, error) {
	prompt := NICKNAME_PROMPT

	for attempt := 0; ; attempt++ {
		if err := c.writeLine(prompt, s.opts.WriteTimeout); err != nil {
			return "", err
		}

		name, err := c.readLine(s.opts.NicknameTimeout)
		if err != nil {
			var ne net.Error
			if !errors.As(err, &ne) || !ne.Timeout() {
				return "", err
			}
		} else if s.opts.ValidateNickname(name) {
			c.name = name
			if s.admit(c) {
				return name, nil
			}
		}

		if attempt == MAX_NICKNAME_RETRIES {
			return "", ErrNicknameRejected
		}

		prompt = NICKNAME_RETRY
	}
}

// admit 检查昵称是否重复并登记，两步在同一把锁内完成
func (s *Server) admit(c *clientConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if _, ok := s.clients[c.name]; ok {
		return false
	}

	s.clients[c.name] = c

	return true
}

func (s *Server) readLoop(c *clientConn) {
	for {
		line, err := c.readLine(0)
		if err != nil {
			zap.L().Debug(
				"读取客户端消息失败",
				zap.String("nickname", c.name),
				zap.Error(err),
			)
			s.removeClient(c)
			return
		}

		s.handler.OnReceiveMessage(c.name, line)
	}
}

// removeClient 幂等：同一个连接只会触发一次 OnClientRemoved
func (s *Server) removeClient(c *clientConn) {
	s.mu.Lock()
	cur, ok := s.clients[c.name]
	if !ok || cur != c {
		s.mu.Unlock()
		return
	}

	delete(s.clients, c.name)
	closing := s.closed
	s.mu.Unlock()

	c.conn.Close()

	zap.L().Info("客户端已移除", zap.String("nickname", c.name))

	if !closing {
		s.handler.OnClientRemoved(c.name)
	}
}

func (s *Server) snapshot() []*clientConn {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*clientConn, 0, len(s.clients))
	for _, c := range s.clients {
		list = append(list, c)
	}

	return list
}

// Broadcast 发送 label + ": " + payload 给所有客户端，写失败的客户端被视为断开
func (s *Server) Broadcast(label, payload string) {
	s.sendAll(label + ": " + payload)
}

func (s *Server) SystemBroadcast(text string) {
	s.sendAll(SystemLine(text))
}

func (s *Server) sendAll(line string) {
	s.publish(line)

	for _, c := range s.snapshot() {
		if err := c.writeLine(line, s.opts.WriteTimeout); err != nil {
			zap.L().Warn(
				"广播失败，移除客户端",
				zap.String("nickname", c.name),
				zap.Error(err),
			)
			s.removeClient(c)
		}
	}
}

// Send 单播一行给指定客户端
func (s *Server) Send(name, line string) error {
	s.mu.Lock()
	c, ok := s.clients[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("客户端 %s 不存在", name)
	}

	if err := c.writeLine(line, s.opts.WriteTimeout); err != nil {
		s.removeClient(c)
		return err
	}

	return nil
}

func (s *Server) Clients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.clients))
	for name := range s.clients {
		names = append(names, name)
	}

	return names
}

// Subscribe 订阅所有广播行，消费过慢时丢弃新行
func (s *Server) Subscribe(buffer int) (<-chan string, func()) {
	ch := make(chan string, buffer)

	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(ch)
			}
			s.mu.Unlock()
		})
	}

	return ch, cancel
}

func (s *Server) publish(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.watchers {
		select {
		case ch <- line:
		default:
			zap.L().Debug("订阅通道已满，丢弃广播", zap.Int("watcher", id))
		}
	}
}

// StopAccepting 游戏开始后不再接受新连接
func (s *Server) StopAccepting() {
	s.mu.Lock()
	s.accepting = false
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
}

// Close 通知所有客户端后关闭全部连接，阻塞的读取会因此返回错误。
// 不能在 Handler 回调中调用。
func (s *Server) Close() {
	s.closeOnce.Do(s.close)
}

func (s *Server) close() {
	s.SystemBroadcast(SERVER_ABORTED)

	s.mu.Lock()
	s.closed = true
	s.accepting = false
	ln := s.listener
	conns := make([]net.Conn, 0, len(s.clients)+len(s.pending))
	for _, c := range s.clients {
		conns = append(conns, c.conn)
	}
	for conn := range s.pending {
		conns = append(conns, conn)
	}
	s.clients = make(map[string]*clientConn)
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, conn := range conns {
		conn.Close()
	}

	s.wg.Wait()

	zap.L().Info("游戏服务器已关闭")
}
