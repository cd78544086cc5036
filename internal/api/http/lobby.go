package http

import (
	"errors"

	"pacman-lan/internal/service"
	"pacman-lan/internal/service/dto"
	"pacman-lan/internal/session"
	"pacman-lan/internal/state"

	"github.com/kataras/iris/v12"
)

func writeError(ctx iris.Context, err error) {
	status := iris.StatusBadRequest

	switch {
	case errors.Is(err, session.ErrAlreadyStarted), errors.Is(err, session.ErrRoleTaken):
		status = iris.StatusConflict
	case errors.Is(err, session.ErrUnknownUser):
		status = iris.StatusNotFound
	case errors.Is(err, service.ErrNoLeaderboard):
		status = iris.StatusServiceUnavailable
	case errors.Is(err, service.ErrLobbyBusy), errors.Is(err, service.ErrLobbyClosed):
		status = iris.StatusServiceUnavailable
	}

	ctx.StatusCode(status)
	ctx.JSON(iris.Map{
		"error": err.Error(),
	})
}

func GetLobby(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		ctx.JSON(appState.LobbySvc.Snapshot())
	}
}

func AssignSeat(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.SeatRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "请求参数无效",
			})
			return
		}

		if err := appState.LobbySvc.AssignSeat(req); err != nil {
			writeError(ctx, err)
			return
		}

		ctx.JSON(appState.LobbySvc.Snapshot())
	}
}

func UpdateSettings(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.SettingsRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "请求参数无效",
			})
			return
		}

		if err := appState.LobbySvc.UpdateSettings(req); err != nil {
			writeError(ctx, err)
			return
		}

		ctx.JSON(appState.LobbySvc.Snapshot())
	}
}

func StartMatch(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		resp, err := appState.LobbySvc.StartMatch()
		if err != nil {
			writeError(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

func GetLeaderboard(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", 10)

		resp, err := appState.LobbySvc.Leaderboard(ctx.Request().Context(), limit)
		if err != nil {
			writeError(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}
