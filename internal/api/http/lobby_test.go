package http

import (
	"context"
	"testing"

	"pacman-lan/internal/config"
	"pacman-lan/internal/netplay"
	"pacman-lan/internal/service"
	"pacman-lan/internal/session"
	"pacman-lan/internal/state"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/httptest"
)

func newTestState(t *testing.T) *state.AppState {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	sess := session.NewHost("host", session.Settings{Map: "../../../maps/level1.txt"})
	peer := netplay.NewHostPeer(sess, nil)
	svc := service.NewLobbyService(ctx, peer, service.MatchOptions{Lives: 3}, nil, nil)

	t.Cleanup(func() {
		cancel()
		peer.Abort()
	})

	return state.NewAppState(&config.AppConfig{Host: "127.0.0.1"}, svc)
}

func TestLobbyRoutes(t *testing.T) {
	appState := newTestState(t)
	_ = appState.LobbySvc.Peer().Session().AddUser("alice")

	e := httptest.New(t, NewApp(appState))

	lobby := e.GET("/api/v1/lobby").Expect().Status(iris.StatusOK).JSON().Object()
	lobby.Value("status").String().IsEqual("Lobby")
	lobby.Value("seats").Array().Length().IsEqual(session.MAX_PLAYER_COUNT)

	e.POST("/api/v1/lobby/seat").
		WithJSON(map[string]any{"name": "alice", "role_id": 1}).
		Expect().Status(iris.StatusOK).
		JSON().Object().Value("seats").Array().Value(1).Object().Value("name").String().IsEqual("alice")

	e.POST("/api/v1/lobby/seat").
		WithJSON(map[string]any{"name": "ghost", "role_id": 2}).
		Expect().Status(iris.StatusNotFound)

	e.POST("/api/v1/lobby/seat").
		WithText("not json").
		Expect().Status(iris.StatusBadRequest)

	e.POST("/api/v1/lobby/settings").
		WithJSON(map[string]any{"map": "missing.txt"}).
		Expect().Status(iris.StatusBadRequest)

	e.GET("/api/v1/leaderboard").Expect().Status(iris.StatusServiceUnavailable)

	e.POST("/api/v1/lobby/start").Expect().Status(iris.StatusOK).
		JSON().Object().Value("players").Array().Length().IsEqual(2)

	e.POST("/api/v1/lobby/start").Expect().Status(iris.StatusConflict)

	e.GET("/api/v1/lobby").Expect().Status(iris.StatusOK).
		JSON().Object().Value("status").String().IsEqual("Playing")
}
