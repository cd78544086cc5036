package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"pacman-lan/internal/config"
	"pacman-lan/internal/level"
	"pacman-lan/internal/match"
	"pacman-lan/internal/netplay"
	"pacman-lan/internal/session"

	"go.uber.org/zap"
)

func runJoin(ctx context.Context, cfg *config.AppConfig) error {
	sess := session.NewClient(cfg.Name)

	peer := netplay.NewClientPeer(sess)
	peer.OnChat = func(line string) {
		fmt.Println(line)
	}

	if err := peer.Join(ctx, cfg.Host, cfg.Port); err != nil {
		return err
	}
	defer peer.Close()

	input := level.NewInputController()

	con := &console{
		quit:  make(chan struct{}),
		input: input,
		started: func() bool {
			return sess.Started()
		},
		seat: func(role int) error {
			return sess.TakePosition(role)
		},
		chat: func(text string) error {
			return peer.Client().SendMessage(text)
		},
	}
	go con.run(ctx, os.Stdin)

	zap.S().Infof("已连接到主机 %s:%d", cfg.Host, cfg.Port)

	select {
	case <-ctx.Done():
		return nil
	case <-con.quit:
		return nil
	case <-peer.Done():
		return disconnected(sess)
	case <-peer.Started():
	}

	l, err := match.NewLevel(sess, input, cfg.Lives)
	if err != nil {
		return err
	}
	peer.Driver().Attach(l)

	runner := match.NewRunner(l, sess, match.RunnerOptions{TickRate: cfg.TickRate})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-con.quit:
		case <-peer.Done():
		case <-runCtx.Done():
		}
		cancel()
	}()

	if err := runner.Run(runCtx); err != nil {
		if errors.Is(err, context.Canceled) {
			select {
			case <-peer.Done():
				return disconnected(sess)
			default:
				return nil
			}
		}
		return err
	}

	fmt.Println(scoreboard(sess.Users()))

	return nil
}

func disconnected(sess *session.Session) error {
	if err := sess.Err(); err != nil {
		return fmt.Errorf("与主机的连接断开: %w", err)
	}
	return errors.New("与主机的连接断开")
}
