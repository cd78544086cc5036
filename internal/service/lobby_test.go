package service

import (
	"context"
	"errors"
	"testing"

	"pacman-lan/internal/netplay"
	"pacman-lan/internal/service/dto"
	"pacman-lan/internal/session"
	"pacman-lan/internal/store"
)

const testMap = "../../maps/level1.txt"

type fakeBoard struct {
	entries []store.LeaderboardEntry
	limit   int
}

func (fb *fakeBoard) Leaderboard(_ context.Context, limit int) ([]store.LeaderboardEntry, error) {
	fb.limit = limit
	return fb.entries, nil
}

func newTestLobby(t *testing.T, board LeaderboardSource) *LobbyService {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	sess := session.NewHost("host", session.Settings{Map: testMap})
	peer := netplay.NewHostPeer(sess, nil)
	ls := NewLobbyService(ctx, peer, MatchOptions{Lives: 3, TickRate: 60}, nil, board)

	t.Cleanup(func() {
		cancel()
		<-ls.done
		peer.Abort()
	})

	return ls
}

func TestLobbyService_SeatsAndSnapshot(t *testing.T) {
	ls := newTestLobby(t, nil)
	sess := ls.Peer().Session()

	_ = sess.AddUser("alice")
	_ = sess.AddUser("bob")

	if err := ls.AssignSeat(dto.SeatRequest{Name: "alice", RoleID: 2}); err != nil {
		t.Fatalf("assign alice: %v", err)
	}
	if err := ls.AssignSeat(dto.SeatRequest{Name: "bob", RoleID: 2}); err != nil {
		t.Fatalf("assign bob: %v", err)
	}
	if err := ls.AssignSeat(dto.SeatRequest{Name: "nobody", RoleID: 3}); !errors.Is(err, session.ErrUnknownUser) {
		t.Fatalf("want ErrUnknownUser got %v", err)
	}

	snap := ls.Snapshot()
	if snap.Status != dto.STATUS_LOBBY {
		t.Fatalf("want lobby status got %s", snap.Status)
	}
	if snap.Seats[0].Name != "host" || snap.Seats[2].Name != "bob" || snap.Seats[2].Role != "Ghost" {
		t.Fatalf("unexpected seats %+v", snap.Seats)
	}
	if len(snap.Observers) != 1 || snap.Observers[0] != "alice" {
		t.Fatalf("kicked player should observe, got %v", snap.Observers)
	}

	if err := ls.AssignSeat(dto.SeatRequest{RoleID: 2}); err != nil {
		t.Fatalf("empty seat: %v", err)
	}
	if ls.Snapshot().Seats[2].Name != "" {
		t.Fatalf("seat 2 should be empty")
	}
}

func TestLobbyService_SettingsValidatesMap(t *testing.T) {
	ls := newTestLobby(t, nil)

	if err := ls.UpdateSettings(dto.SettingsRequest{Map: "no/such/map.txt"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("want ErrInvalidRequest got %v", err)
	}

	if err := ls.UpdateSettings(dto.SettingsRequest{Map: testMap, GhostSpeed: true}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if !ls.Peer().Session().Settings().GhostSpeed {
		t.Fatalf("settings should be applied")
	}
}

func TestLobbyService_StartOnlyOnce(t *testing.T) {
	ls := newTestLobby(t, nil)

	resp, err := ls.StartMatch()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if resp.SessionID == "" || len(resp.Players) != 1 {
		t.Fatalf("unexpected start response %+v", resp)
	}
	if ls.Runner() == nil {
		t.Fatalf("runner should be running")
	}
	if ls.Snapshot().Status != dto.STATUS_PLAYING {
		t.Fatalf("status should be playing")
	}

	if _, err := ls.StartMatch(); !errors.Is(err, session.ErrAlreadyStarted) {
		t.Fatalf("want ErrAlreadyStarted got %v", err)
	}
	if err := ls.AssignSeat(dto.SeatRequest{Name: "host", RoleID: 2}); !errors.Is(err, session.ErrAlreadyStarted) {
		t.Fatalf("seats are frozen after start, got %v", err)
	}
}

func TestLobbyService_Leaderboard(t *testing.T) {
	ls := newTestLobby(t, nil)
	if _, err := ls.Leaderboard(context.Background(), 5); !errors.Is(err, ErrNoLeaderboard) {
		t.Fatalf("want ErrNoLeaderboard got %v", err)
	}

	board := &fakeBoard{entries: []store.LeaderboardEntry{{Name: "alice", Matches: 2, TotalScore: 3000, BestScore: 2000}}}
	ls = newTestLobby(t, board)

	resp, err := ls.Leaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if board.limit != 10 {
		t.Fatalf("default limit should be 10 got %d", board.limit)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].BestScore != 2000 {
		t.Fatalf("unexpected entries %+v", resp.Entries)
	}
}
