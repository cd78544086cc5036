package session

import (
	"fmt"
	"strconv"
	"strings"
)

// 会话分为三个阶段：
// 1. 大厅阶段（Lobby）：玩家加入、选择角色，主机广播名单
// 2. 游戏阶段（Started）：主机发出 start 之后，名单不再变化，只同步关卡状态
// 3. 关闭阶段（Closed）：连接断开或主动退出
const (
	STAGE_LOBBY   = "Lobby"
	STAGE_STARTED = "Started"
	STAGE_CLOSED  = "Closed"
)

type StageHandler interface {
	Stage() string

	OnCommand(s *Session, sender, cmd, payload string) error
}

func newStageHandler(stage string) StageHandler {
	switch stage {
	case STAGE_STARTED:
		return startedStageHandler{}
	case STAGE_CLOSED:
		return closedStageHandler{}
	default:
		return lobbyStageHandler{}
	}
}

type lobbyStageHandler struct{}

func (lobbyStageHandler) Stage() string {
	return STAGE_LOBBY
}

func (lobbyStageHandler) OnCommand(s *Session, sender, cmd, payload string) error {
	switch cmd {
	case CMD_ID:
		role, err := strconv.Atoi(strings.TrimSpace(payload))
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidRole, payload)
		}
		return s.requestRole(sender, role)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
}

// 游戏开始后不再接受换位请求，否则控制器槽位会与名单脱节
type startedStageHandler struct{}

func (startedStageHandler) Stage() string {
	return STAGE_STARTED
}

func (startedStageHandler) OnCommand(s *Session, sender, cmd, payload string) error {
	if cmd == CMD_ID {
		return ErrAlreadyStarted
	}

	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
}

type closedStageHandler struct{}

func (closedStageHandler) Stage() string {
	return STAGE_CLOSED
}

func (closedStageHandler) OnCommand(*Session, string, string, string) error {
	return nil
}
