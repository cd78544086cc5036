package match

import (
	"errors"
	"fmt"

	"pacman-lan/internal/grid"
	"pacman-lan/internal/level"
	"pacman-lan/internal/session"
)

var ErrNoMap = errors.New("没有选择地图")

// BuildControllers 按名单为每个槽位分配控制器：本地玩家使用键盘输入，
// 其他已入座的玩家由网络同步重放，空位没有角色。返回本地玩家所在的槽位。
func BuildControllers(users []session.User, me string, input *level.InputController) (level.Slots, int) {
	var slots level.Slots
	player := session.ROLE_OBSERVER

	for _, u := range users {
		if u.RoleID < 0 || u.RoleID >= level.MAX_SLOTS {
			continue
		}

		if u.Name == me {
			slots[u.RoleID] = input
			player = u.RoleID
			continue
		}

		slots[u.RoleID] = level.NewSimController()
	}

	return slots, player
}

// NewLevel 用会话当前的名单与设置创建关卡
func NewLevel(sess *session.Session, input *level.InputController, lives int) (*level.Level, error) {
	settings := sess.Settings()
	if settings.Map == "" {
		return nil, ErrNoMap
	}

	g, err := grid.Load(settings.Map)
	if err != nil {
		return nil, fmt.Errorf("加载地图 %s 失败: %w", settings.Map, err)
	}

	slots, player := BuildControllers(sess.Users(), sess.Me().Name, input)

	return level.New(g, slots, player, level.Options{
		Lives:      lives,
		GhostSpeed: settings.GhostSpeed,
	})
}
