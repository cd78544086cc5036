package websocket

import (
	"strings"
	"time"

	"pacman-lan/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

const WATCH_BUFFER = 256

// WatchMessage 是转发给浏览器的一行广播，Label 为空表示聊天或系统消息
type WatchMessage struct {
	Label   string `json:"label,omitempty"`
	Payload string `json:"payload"`
}

func toWatchMessage(line string) WatchMessage {
	if strings.HasPrefix(line, "#") {
		if i := strings.Index(line, ": "); i >= 0 {
			return WatchMessage{Label: line[:i], Payload: line[i+2:]}
		}
	}
	return WatchMessage{Payload: line}
}

// Watch 把主机发出的每一行广播推送给浏览器，浏览器发来的文本作为主机的聊天消息转发
func Watch(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			ctx.StatusCode(iris.StatusBadRequest)
			return
		}

		defer conn.Close()

		prepareWatchConn(conn)

		peer := appState.LobbySvc.Peer()
		lines, cancel := peer.Server().Subscribe(WATCH_BUFFER)
		defer cancel()

		clientIP := ctx.RemoteAddr()
		zap.L().Info("观战连接建立", zap.String("client_ip", clientIP))

		// 先推送一次当前名单
		conn.SetWriteDeadline(writeDeadline())
		if err := conn.WriteJSON(WatchMessage{
			Label:   "#",
			Payload: peer.Session().ToGameData(),
		}); err != nil {
			return
		}

		writeDoneCh := make(chan struct{})
		defer close(writeDoneCh)

		go func() {
			ticker := time.NewTicker(HEARTBEAT_INTERVAL)
			defer ticker.Stop()

			for {
				select {
				case <-writeDoneCh:
					return

				case <-ticker.C:
					conn.SetWriteDeadline(writeDeadline())
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						zap.L().Warn(
							"发送心跳失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						conn.Close()
						return
					}

				case line, ok := <-lines:
					if !ok {
						zap.L().Info("游戏服务器已关闭，结束观战", zap.String("client_ip", clientIP))
						conn.WriteMessage(
							websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						)
						conn.Close()
						return
					}

					conn.SetWriteDeadline(writeDeadline())
					if err := conn.WriteJSON(toWatchMessage(line)); err != nil {
						zap.L().Warn(
							"推送广播失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						conn.Close()
						return
					}
				}
			}
		}()

		hostName := peer.Session().Me().Name

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
					websocket.CloseNormalClosure,
				) {
					zap.L().Warn(
						"读取消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}
				break
			}

			text := strings.TrimSpace(string(msg))
			if text == "" || strings.ContainsAny(text, "#\r\n") {
				continue
			}

			peer.Server().Broadcast(hostName, text)
		}

		zap.L().Info("观战连接断开", zap.String("client_ip", clientIP))
	}
}
