package state

import (
	"pacman-lan/internal/config"
	"pacman-lan/internal/service"
)

type AppState struct {
	Cfg      *config.AppConfig
	LobbySvc *service.LobbyService
}

func NewAppState(
	cfg *config.AppConfig,
	lobbySvc *service.LobbyService,
) *AppState {
	return &AppState{
		Cfg:      cfg,
		LobbySvc: lobbySvc,
	}
}
