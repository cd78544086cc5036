package session

import "errors"

// 角色编号：-1 观战，0 吃豆人，1 第二个吃豆人，2-5 幽灵。观战者可以有多个
const (
	ROLE_OBSERVER    = -1
	ROLE_PACMAN      = 0
	ROLE_MS_PACMAN   = 1
	ROLE_FIRST_GHOST = 2
	MAX_PLAYER_COUNT = 6
)

// 主机能识别的带标签命令
const (
	CMD_ID    = "id"
	CMD_SWAP  = "swap"
	CMD_START = "start"
)

// 参与同步的共享设置项
const (
	SETTING_MAP   = "map"
	SETTING_SPEED = "speed"
)

var (
	ErrNotHost        = errors.New("只有主机可以执行该操作")
	ErrUnknownUser    = errors.New("用户不存在")
	ErrUnknownCommand = errors.New("未知的命令")
	ErrInvalidRole    = errors.New("角色编号无效")
	ErrRoleTaken      = errors.New("该角色已被占用")
	ErrSelfSwap       = errors.New("不能与自身交换角色")
	ErrAlreadyStarted = errors.New("游戏已经开始")
	ErrMalformed      = errors.New("房间数据格式错误")
)

type User struct {
	Name   string `json:"name"`
	RoleID int    `json:"role_id"`
	Score  int    `json:"score"`
}

type Settings struct {
	Map        string `json:"map"`
	GhostSpeed bool   `json:"ghost_speed"`
}

func ValidRole(role int) bool {
	return role >= ROLE_OBSERVER && role < MAX_PLAYER_COUNT
}

// Broadcaster 是主机侧的广播出口，发出的每一行为 label + ": " + payload
type Broadcaster interface {
	Broadcast(label, payload string)
}

// Upstream 是客户端发往主机的出口
type Upstream interface {
	SendMessage(line string) error
}

// Swapper 在角色交换时同步交换控制器槽位
type Swapper interface {
	Swap(a, b int)
}
