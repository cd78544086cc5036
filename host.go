package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pacman-lan/internal/api/http"
	"pacman-lan/internal/config"
	"pacman-lan/internal/match"
	"pacman-lan/internal/netplay"
	"pacman-lan/internal/service"
	"pacman-lan/internal/session"
	"pacman-lan/internal/state"
	"pacman-lan/internal/store"

	"go.uber.org/zap"
)

func runHost(ctx context.Context, cfg *config.AppConfig) error {
	events := newPublisher(cfg)
	defer events.Close()

	var (
		recorder match.Recorder
		board    service.LeaderboardSource
	)

	if cfg.Database.DSN != "" {
		st, err := store.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.EnsureSchema(ctx); err != nil {
			return err
		}

		recorder, board = st, st
	}

	sess := session.NewHost(cfg.Name, session.Settings{
		Map:        cfg.Map,
		GhostSpeed: cfg.GhostSpeed,
	})
	if cfg.Seat != session.ROLE_PACMAN {
		if err := sess.TakePosition(cfg.Seat); err != nil {
			return fmt.Errorf("无法入座 %d: %w", cfg.Seat, err)
		}
	}

	peer := netplay.NewHostPeer(sess, events)
	if err := peer.Listen(ctx, cfg.Host, cfg.Port); err != nil {
		return err
	}
	defer peer.Abort()

	lobbySvc := service.NewLobbyService(
		ctx,
		peer,
		service.MatchOptions{Lives: cfg.Lives, TickRate: cfg.TickRate},
		recorder,
		board,
	)
	defer lobbySvc.Close()

	// 组装应用状态
	appState := state.NewAppState(cfg, lobbySvc)

	if cfg.APIPort > 0 {
		go http.RunServer(ctx, appState)
	}

	lines, cancel := peer.Server().Subscribe(64)
	defer cancel()
	go printLines(lines)

	zap.S().Infof("房间已创建，等待玩家加入 %s:%d", cfg.Host, cfg.Port)

	con := &console{
		quit:  make(chan struct{}),
		input: lobbySvc.Input(),
		started: func() bool {
			return sess.Started()
		},
		seat: func(role int) error {
			return sess.TakePosition(role)
		},
		start: func() error {
			_, err := lobbySvc.StartMatch()
			return err
		},
		chat: func(text string) error {
			peer.Server().Broadcast(cfg.Name, text)
			return nil
		},
	}
	go con.run(ctx, os.Stdin)

	// 对局可能由终端或管理接口开始，定期检查
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-con.quit:
			return nil
		case <-runnerDone(lobbySvc):
			fmt.Println(scoreboard(sess.Users()))
			return nil
		case <-ticker.C:
		}
	}
}

// runnerDone 对局开始前返回 nil 通道
func runnerDone(svc *service.LobbyService) <-chan struct{} {
	if r := svc.Runner(); r != nil {
		return r.Done()
	}
	return nil
}

func printLines(lines <-chan string) {
	for line := range lines {
		// 状态广播过于频繁，只打印聊天与系统消息
		if len(line) > 0 && line[0] == '#' {
			continue
		}
		fmt.Println(line)
	}
}
