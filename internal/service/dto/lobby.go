package dto

import "pacman-lan/internal/session"

const (
	STATUS_LOBBY    = "Lobby"
	STATUS_PLAYING  = "Playing"
	STATUS_FINISHED = "Finished"
	STATUS_CLOSED   = "Closed"
)

// Seat 对应一个可入座的角色位置，Name 为空表示空位
type Seat struct {
	RoleID int    `json:"role_id"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
}

type LobbyResponse struct {
	SessionID string           `json:"session_id"`
	Status    string           `json:"status"`
	Host      string           `json:"host"`
	Settings  session.Settings `json:"settings"`
	Seats     []Seat           `json:"seats"`
	Observers []string         `json:"observers"`
	Users     []session.User   `json:"users"`
	// 仅在对局进行中或结束后有值
	Outcome string `json:"outcome,omitempty"`
}

// 名字为空时清空该位置；RoleID 为 -1 时把该玩家移到观战席
type SeatRequest struct {
	Name   string `json:"name"`
	RoleID int    `json:"role_id"`
}

type SettingsRequest struct {
	Map        string `json:"map"`
	GhostSpeed bool   `json:"ghost_speed"`
}

type StartMatchResponse struct {
	SessionID string         `json:"session_id"`
	Players   []session.User `json:"players"`
}

type LeaderboardResponse struct {
	Entries []LeaderboardEntry `json:"entries"`
}

type LeaderboardEntry struct {
	Name       string `json:"name"`
	Matches    int    `json:"matches"`
	TotalScore int    `json:"total_score"`
	BestScore  int    `json:"best_score"`
}

func RoleName(role int) string {
	switch {
	case role == session.ROLE_PACMAN:
		return "PacMan"
	case role == session.ROLE_MS_PACMAN:
		return "MsPacMan"
	case role >= session.ROLE_FIRST_GHOST && role < session.MAX_PLAYER_COUNT:
		return "Ghost"
	default:
		return "Observer"
	}
}
