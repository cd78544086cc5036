package netplay

import (
	"pacman-lan/internal/level"

	"github.com/sasha-s/go-deadlock"
)

// Mailbox 连接读协程与模拟循环之间的信箱：命令按到达顺序全部保留，
// 状态只保留最新的一份，未被消费的旧状态会被覆盖。
type Mailbox struct {
	mu deadlock.Mutex

	commands []string
	state    string
	hasState bool

	overwritten int
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		commands: make([]string, 0, 4),
	}
}

func (m *Mailbox) PushCommand(cmd string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands = append(m.commands, cmd)
}

func (m *Mailbox) PutState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasState {
		m.overwritten++
	}
	m.state = state
	m.hasState = true
}

// Drain 每帧调用一次，先返回的命令必须先于状态被应用
func (m *Mailbox) Drain() (cmds []string, state string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmds = m.commands
	m.commands = make([]string, 0, 4)

	state, ok = m.state, m.hasState
	m.state, m.hasState = "", false

	return cmds, state, ok
}

// Overwritten 返回被覆盖而未应用的状态数量
func (m *Mailbox) Overwritten() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.overwritten
}

// DirectionBuffer 主机侧按角色缓存远端玩家最近一次的方向
type DirectionBuffer struct {
	mu deadlock.Mutex

	dirs [level.MAX_SLOTS]level.Direction
	set  [level.MAX_SLOTS]bool
}

func NewDirectionBuffer() *DirectionBuffer {
	return &DirectionBuffer{}
}

func (b *DirectionBuffer) Put(role int, d level.Direction) {
	if role < 0 || role >= level.MAX_SLOTS {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.dirs[role] = d
	b.set[role] = true
}

func (b *DirectionBuffer) Drain() map[int]level.Direction {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[int]level.Direction)
	for role := range b.dirs {
		if b.set[role] {
			out[role] = b.dirs[role]
			b.set[role] = false
		}
	}

	return out
}
