package http

import (
	"context"
	"fmt"
	"time"

	"pacman-lan/internal/api/http/websocket"
	"pacman-lan/internal/state"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

func NewApp(appState *state.AppState) *iris.Application {
	app := iris.Default()

	api := app.Party("/api/v1")

	api.Get("/lobby", GetLobby(appState))
	api.Post("/lobby/seat", AssignSeat(appState))
	api.Post("/lobby/settings", UpdateSettings(appState))
	api.Post("/lobby/start", StartMatch(appState))
	api.Get("/leaderboard", GetLeaderboard(appState))

	api.Get("/ws/watch", websocket.Watch(appState))

	return app
}

// RunServer 阻塞直到 ctx 结束，随后优雅关闭
func RunServer(ctx context.Context, appState *state.AppState) {
	app := NewApp(appState)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := app.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("关闭管理接口失败", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(
		"%s:%d",
		appState.Cfg.Host,
		appState.Cfg.APIPort,
	)

	if err := app.Listen(addr, iris.WithoutServerError(iris.ErrServerClosed)); err != nil {
		zap.L().Error("管理接口退出", zap.Error(err))
	}
}
