package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 浏览器只会发来零星的聊天文本
	WATCH_READ_BUFFER = 512
	// 一行关卡状态通常在几百字节以内
	WATCH_WRITE_BUFFER = 4096

	// 浏览器聊天单条上限，超过时连接被关闭
	WATCH_MAX_MESSAGE = 1024

	HEARTBEAT_INTERVAL = 30 * time.Second
	HEARTBEAT_TIMEOUT  = 45 * time.Second

	// 单次推送的写超时，小于心跳间隔
	WATCH_WRITE_TIMEOUT = 10 * time.Second
)

// 管理接口只在局域网内开放，观战页面可能来自任意来源
var upgrader = websocket.Upgrader{
	CheckOrigin:     func(*http.Request) bool { return true },
	ReadBufferSize:  WATCH_READ_BUFFER,
	WriteBufferSize: WATCH_WRITE_BUFFER,
}

// prepareWatchConn 设置读限制与心跳：收到 pong 后延长读超时
func prepareWatchConn(conn *websocket.Conn) {
	conn.SetReadLimit(WATCH_MAX_MESSAGE)
	conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
	})
}

func writeDeadline() time.Time {
	return time.Now().Add(WATCH_WRITE_TIMEOUT)
}
