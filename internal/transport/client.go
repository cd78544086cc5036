package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

var ErrClientClosed = errors.New("连接已关闭")

// ClientHandler 在读协程中被调用
type ClientHandler interface {
	OnMessage(line string)
	OnError(err error)
}

type Client struct {
	conn    net.Conn
	handler ClientHandler

	writeMu      deadlock.Mutex
	writeTimeout time.Duration

	closed atomic.Bool
	done   chan struct{}
}

func Dial(ctx context.Context, host string, port int, handler ClientHandler) (*Client, error) {
	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("连接主机 %s:%d 失败: %w", host, port, err)
	}

	return &Client{
		conn:         conn,
		handler:      handler,
		writeTimeout: DEFAULT_WRITE_TIMEOUT,
		done:         make(chan struct{}),
	}, nil
}

// Start 启动读协程，ctx 取消时关闭连接让阻塞的读取返回
func (c *Client) Start(ctx context.Context) {
	go c.readLoop()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
}

func (c *Client) readLoop() {
	defer close(c.done)

	reader := bufio.NewReader(c.conn)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if !c.closed.Load() {
				zap.L().Warn("与主机的连接中断", zap.Error(err))
				c.handler.OnError(err)
			}
			return
		}

		c.handler.OnMessage(strings.TrimRight(line, "\r\n"))
	}
}

func (c *Client) SendMessage(line string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))

	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}

	return nil
}

// Done 在读协程退出后关闭
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	return c.conn.Close()
}
