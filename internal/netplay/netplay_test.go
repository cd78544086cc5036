package netplay

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"pacman-lan/internal/grid"
	"pacman-lan/internal/level"
	"pacman-lan/internal/session"
)

type recordingBroadcaster struct {
	mu    sync.Mutex
	lines []string
}

func (rb *recordingBroadcaster) Broadcast(label, payload string) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.lines = append(rb.lines, label+": "+payload)
}

func (rb *recordingBroadcaster) all() []string {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return append([]string(nil), rb.lines...)
}

type recordingUpstream struct {
	mu    sync.Mutex
	lines []string
}

func (ru *recordingUpstream) SendMessage(line string) error {
	ru.mu.Lock()
	defer ru.mu.Unlock()

	ru.lines = append(ru.lines, line)
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMailbox_KeepsAllCommandsAndLatestState(t *testing.T) {
	m := NewMailbox()

	m.PushCommand("#swap#: 0,2")
	m.PutState("s1")
	m.PushCommand("#swap#: 1,3")
	m.PutState("s2")

	cmds, state, ok := m.Drain()
	if len(cmds) != 2 || cmds[0] != "#swap#: 0,2" || cmds[1] != "#swap#: 1,3" {
		t.Fatalf("commands must be kept in order, got %v", cmds)
	}
	if !ok || state != "s2" {
		t.Fatalf("latest state should win, got %q ok=%v", state, ok)
	}
	if m.Overwritten() != 1 {
		t.Fatalf("want 1 overwritten state got %d", m.Overwritten())
	}

	cmds, _, ok = m.Drain()
	if len(cmds) != 0 || ok {
		t.Fatalf("drain should empty the mailbox")
	}
}

func TestDirectionBuffer_LatestPerRole(t *testing.T) {
	b := NewDirectionBuffer()

	b.Put(2, level.DIR_EAST)
	b.Put(2, level.DIR_WEST)
	b.Put(4, level.DIR_NORTH)
	b.Put(9, level.DIR_NORTH)

	got := b.Drain()
	if len(got) != 2 || got[2] != level.DIR_WEST || got[4] != level.DIR_NORTH {
		t.Fatalf("unexpected buffer contents %v", got)
	}
	if len(b.Drain()) != 0 {
		t.Fatalf("drain should reset the buffer")
	}
}

func corridor(t *testing.T) *grid.Grid {
	t.Helper()

	g, err := grid.FromRows([]string{
		"#P..G#",
		"#....#",
	})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	return g
}

func TestHostDriver_AppliesBufferedDirectionsThenBroadcasts(t *testing.T) {
	sess := session.NewHost("host", session.Settings{})
	_ = sess.AddUser("alice")
	_ = sess.AssignRole("alice", level.SLOT_FIRST_GHOST)
	_ = sess.AddUser("olga")

	out := &recordingBroadcaster{}
	d := NewHostDriver(sess, out, nil)

	var slots level.Slots
	slots[level.SLOT_PACMAN] = level.NewInputController()
	ghost := level.NewSimController()
	slots[level.SLOT_FIRST_GHOST] = ghost

	l, err := level.New(corridor(t), slots, level.SLOT_PACMAN, level.Options{Lives: 1})
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	d.Attach(l)

	d.MessageReceived("alice", "4")
	d.MessageReceived("olga", "2")
	d.MessageReceived("alice", "banana")

	l.Update(0.01)

	if got := ghost.Direction(l, l.Actor(level.SLOT_FIRST_GHOST)); got != level.DIR_WEST {
		t.Fatalf("ghost should follow alice's direction, got %s", got)
	}

	lines := out.all()
	if len(lines) != 1 || lines[0] != "#: "+l.ToGameData() {
		t.Fatalf("want one state broadcast after the tick, got %v", lines)
	}
}

func TestHostDriver_CatchSwapsKillerIntoPacManSeat(t *testing.T) {
	sess := session.NewHost("host", session.Settings{})
	_ = sess.AddUser("alice")
	_ = sess.AssignRole("alice", level.SLOT_FIRST_GHOST)

	out := &recordingBroadcaster{}
	sess.SetBroadcaster(out)
	d := NewHostDriver(sess, out, nil)

	var slots level.Slots
	hostInput := level.NewInputController()
	slots[level.SLOT_PACMAN] = hostInput
	slots[level.SLOT_FIRST_GHOST] = level.NewSimController()

	l, err := level.New(corridor(t), slots, level.SLOT_PACMAN, level.Options{Lives: 1})
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	d.Attach(l)

	swapped := func() bool {
		for _, line := range out.all() {
			if line == "#swap#: 0,2" {
				return true
			}
		}
		return false
	}

	for i := 0; i < 300 && !swapped(); i++ {
		d.MessageReceived("alice", "4")
		l.Update(0.02)
	}

	if !swapped() {
		t.Fatalf("catch should broadcast a swap")
	}

	if role, _ := sess.RoleOf("alice"); role != level.SLOT_PACMAN {
		t.Fatalf("killer should take the pacman seat, got %d", role)
	}
	if role, _ := sess.RoleOf("host"); role != level.SLOT_FIRST_GHOST {
		t.Fatalf("caught host should become the ghost, got %d", role)
	}
	if l.Player != level.SLOT_FIRST_GHOST || l.Ctrls[level.SLOT_FIRST_GHOST] != hostInput {
		t.Fatalf("host input should move with the swap")
	}
	if l.State != level.STATE_STARTING {
		t.Fatalf("round should restart, state %s", l.State)
	}
	if l.Actor(level.SLOT_PACMAN).Lives != 1 {
		t.Fatalf("lives should be refilled")
	}
}

func TestClientDriver_AppliesSwapBeforeState(t *testing.T) {
	host := session.NewHost("host", session.Settings{})
	_ = host.AddUser("bob")
	_ = host.AssignRole("bob", level.SLOT_FIRST_GHOST)

	sess := session.NewClient("bob")
	if err := sess.FromGameData(host.ToGameData()); err != nil {
		t.Fatalf("roster: %v", err)
	}
	sess.MarkStarted()

	up := &recordingUpstream{}
	d := NewClientDriver(sess, up)

	var slots level.Slots
	slots[level.SLOT_PACMAN] = level.NewSimController()
	input := level.NewInputController()
	slots[level.SLOT_FIRST_GHOST] = input

	l, err := level.New(corridor(t), slots, level.SLOT_FIRST_GHOST, level.Options{Lives: 1})
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	d.Attach(l)

	// 主机侧交换之后的状态：吃豆人在 (3,1)
	hostView, err := level.New(corridor(t), mirrorSlots(), -1, level.Options{Lives: 1})
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	hostView.Actor(level.SLOT_PACMAN).X = 3
	hostView.Actor(level.SLOT_PACMAN).Y = 1
	hostView.Actor(level.SLOT_PACMAN).Heading = level.DIR_SOUTH

	d.OnMessageReceived("#swap#: 0,2")
	d.OnMessageReceived("#: garbage|state")
	d.OnMessageReceived("#: " + hostView.ToGameData())
	d.OnMessageReceived("#bogus#: 1")

	input.Set(level.DIR_EAST)
	l.Update(0.01)
	input.Set(level.DIR_EAST)
	l.Update(0.01)

	if role := sess.Me().RoleID; role != level.SLOT_PACMAN {
		t.Fatalf("client should replay the swap, role %d", role)
	}
	if l.Player != level.SLOT_PACMAN {
		t.Fatalf("local slot should follow the swap, got %d", l.Player)
	}

	pac := l.Actor(level.SLOT_PACMAN)
	if pac.X != 3 || pac.Y != 1 || pac.Heading != level.DIR_SOUTH {
		t.Fatalf("state should be applied after the swap reset, got (%v,%v) %s", pac.X, pac.Y, pac.Heading)
	}

	up.mu.Lock()
	defer up.mu.Unlock()
	// 交换后的重置会清空本地输入
	if len(up.lines) != 2 || up.lines[0] != "#0" || up.lines[1] != "#2" {
		t.Fatalf("client should send its direction once per tick, got %v", up.lines)
	}
}

func mirrorSlots() level.Slots {
	var s level.Slots
	s[level.SLOT_PACMAN] = level.NewSimController()
	s[level.SLOT_FIRST_GHOST] = level.NewSimController()
	return s
}

func TestHostPeer_DropsMalformedCommands(t *testing.T) {
	sess := session.NewHost("host", session.Settings{})
	p := NewHostPeer(sess, nil)

	_ = sess.AddUser("alice")
	before := sess.ToGameData()

	p.OnReceiveMessage("alice", "#id")
	p.OnReceiveMessage("alice", "#warp#: 1")
	p.OnReceiveMessage("alice", "#id#: nine")

	if sess.ToGameData() != before {
		t.Fatalf("malformed commands must not change the roster")
	}

	p.OnReceiveMessage("alice", "#id#: 3")
	if role, _ := sess.RoleOf("alice"); role != 3 {
		t.Fatalf("valid command should apply, got %d", role)
	}
}

func TestPeers_LobbyToStartOverTCP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hostSess := session.NewHost("host", session.Settings{Map: "maps/level1.txt", GhostSpeed: true})
	hp := NewHostPeer(hostSess, nil)
	if err := hp.Listen(ctx, "127.0.0.1", 0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer hp.Abort()

	port := hp.Server().Addr().(*net.TCPAddr).Port

	// 与主机同名的客户端需要改名
	clientSess := session.NewClient("host")
	cp := NewClientPeer(clientSess)
	if err := cp.Join(ctx, "127.0.0.1", port); err != nil {
		t.Fatalf("join: %v", err)
	}
	defer cp.Close()

	waitFor(t, "client in host roster", func() bool {
		_, ok := hostSess.RoleOf("host2")
		return ok
	})

	waitFor(t, "roster mirrored", func() bool {
		u, ok := clientSess.UserByRole(session.ROLE_PACMAN)
		return ok && u.Name == "host"
	})

	if got := clientSess.Settings(); got.Map != "maps/level1.txt" || !got.GhostSpeed {
		t.Fatalf("settings should be mirrored, got %+v", got)
	}

	if err := clientSess.TakePosition(3); err != nil {
		t.Fatalf("take position: %v", err)
	}

	waitFor(t, "host accepts role", func() bool {
		role, _ := hostSess.RoleOf("host2")
		return role == 3
	})
	waitFor(t, "client sees its role", func() bool {
		return clientSess.Me().RoleID == 3
	})

	if _, err := hp.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-cp.Started():
	case <-time.After(5 * time.Second):
		t.Fatalf("client never saw the start signal")
	}

	if !clientSess.Started() || cp.Driver() == nil {
		t.Fatalf("client should switch to game mode")
	}

	if err := cp.Client().SendMessage("#3"); err != nil {
		t.Fatalf("send direction: %v", err)
	}

	waitFor(t, "direction buffered on host", func() bool {
		return hp.Driver().buf.Drain()[3] == level.DIR_SOUTH
	})
}

func TestHostPeer_DisconnectStopsSeatedActor(t *testing.T) {
	sess := session.NewHost("host", session.Settings{})
	p := NewHostPeer(sess, nil)
	defer p.Abort()

	p.OnClientAdded("alice")
	p.OnReceiveMessage("alice", "#id#: 2")

	d, err := p.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	var slots level.Slots
	slots[level.SLOT_PACMAN] = level.NewInputController()
	ghost := level.NewSimController()
	slots[level.SLOT_FIRST_GHOST] = ghost

	l, err := level.New(corridor(t), slots, level.SLOT_PACMAN, level.Options{Lives: 1})
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	d.Attach(l)

	p.OnReceiveMessage("alice", "#4")
	l.Update(0.01)
	if got := ghost.Direction(l, l.Actor(level.SLOT_FIRST_GHOST)); got != level.DIR_WEST {
		t.Fatalf("ghost should follow alice, got %s", got)
	}

	p.OnClientRemoved("alice")
	l.Update(0.01)

	if got := ghost.Direction(l, l.Actor(level.SLOT_FIRST_GHOST)); got != level.DIR_NONE {
		t.Fatalf("orphaned ghost should stop, got %s", got)
	}
	if _, ok := sess.RoleOf("alice"); ok {
		t.Fatalf("alice should leave the roster")
	}
}
