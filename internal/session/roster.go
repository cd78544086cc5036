package session

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// 名单格式：设置项以 key;value 表示并用 ~ 连接，之后每个用户以 |name;id;score 追加
func (s *Session) ToGameData() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.toGameDataLocked()
}

func (s *Session) toGameDataLocked() string {
	var sb strings.Builder

	sb.WriteString(encodeSettings(s.settings))

	for _, u := range s.users {
		sb.WriteString("|")
		sb.WriteString(u.Name)
		sb.WriteString(";")
		sb.WriteString(strconv.Itoa(u.RoleID))
		sb.WriteString(";")
		sb.WriteString(strconv.Itoa(u.Score))
	}

	return sb.String()
}

func encodeSettings(st Settings) string {
	pairs := []string{
		SETTING_MAP + ";" + st.Map,
		SETTING_SPEED + ";" + strconv.FormatBool(st.GhostSpeed),
	}

	return strings.Join(pairs, "~")
}

// decodeSettings 只接受白名单内的设置项，其余键被忽略
func decodeSettings(data string, st Settings) (Settings, error) {
	for _, pair := range strings.Split(data, "~") {
		if pair == "" {
			continue
		}

		kv := strings.SplitN(pair, ";", 2)
		if len(kv) != 2 {
			return st, fmt.Errorf("%w: 设置项 %q", ErrMalformed, pair)
		}

		switch kv[0] {
		case SETTING_MAP:
			st.Map = kv[1]
		case SETTING_SPEED:
			v, err := strconv.ParseBool(kv[1])
			if err != nil {
				return st, fmt.Errorf("%w: 设置项 %q", ErrMalformed, pair)
			}
			st.GhostSpeed = v
		default:
			zap.L().Debug("忽略未知的设置项", zap.String("key", kv[0]))
		}
	}

	return st, nil
}

func decodeUser(data string) (*User, error) {
	parts := strings.Split(data, ";")
	if len(parts) != 3 || parts[0] == "" {
		return nil, fmt.Errorf("%w: 用户 %q", ErrMalformed, data)
	}

	role, err := strconv.Atoi(parts[1])
	if err != nil || !ValidRole(role) {
		return nil, fmt.Errorf("%w: 用户角色 %q", ErrMalformed, data)
	}

	score, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: 用户分数 %q", ErrMalformed, data)
	}

	return &User{Name: parts[0], RoleID: role, Score: score}, nil
}

// FromGameData 客户端用主机的名单整体覆盖本地镜像，解析失败时镜像保持不变
func (s *Session) FromGameData(data string) error {
	fields := strings.Split(data, "|")

	s.mu.Lock()
	current := s.settings
	s.mu.Unlock()

	settings, err := decodeSettings(fields[0], current)
	if err != nil {
		return err
	}

	users := make([]*User, 0, len(fields)-1)
	for _, f := range fields[1:] {
		u, err := decodeUser(f)
		if err != nil {
			return err
		}
		users = append(users, u)
	}

	s.mu.Lock()
	s.settings = settings
	s.users = users
	if s.findByName(s.meName) == nil {
		// 主机还没把自己加入名单时保留本地身份
		s.users = append(s.users, &User{Name: s.meName, RoleID: ROLE_OBSERVER})
	}
	s.dirty = true
	s.mu.Unlock()

	s.commit()

	return nil
}
