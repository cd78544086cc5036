package service

import (
	"context"

	"pacman-lan/internal/service/dto"
	"pacman-lan/internal/store"
)

// LobbyRequestAction 是发给大厅协程的请求，每次只有一个字段非空
type LobbyRequestAction struct {
	SeatReq     *dto.SeatRequest
	SettingsReq *dto.SettingsRequest
	StartReq    *struct{}
	Done        *struct{}

	resCh chan lobbyResponseWrapper
}

type lobbyResponseWrapper struct {
	StartResp dto.StartMatchResponse
	Err       error
}

// LeaderboardSource 由数据库实现，未配置数据库时为 nil
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error)
}

func toLeaderboard(entries []store.LeaderboardEntry) dto.LeaderboardResponse {
	resp := dto.LeaderboardResponse{
		Entries: make([]dto.LeaderboardEntry, 0, len(entries)),
	}

	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.LeaderboardEntry{
			Name:       e.Name,
			Matches:    e.Matches,
			TotalScore: e.TotalScore,
			BestScore:  e.BestScore,
		})
	}

	return resp
}
