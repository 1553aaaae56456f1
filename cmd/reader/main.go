package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/app"
	"github.com/aliskhannn/quran-companion/internal/config"
	"github.com/aliskhannn/quran-companion/internal/delivery/tui"
	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/infra/audio"
	"github.com/aliskhannn/quran-companion/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The terminal belongs to the reader, logs go to a file.
	lg, err := logger.NewFile(cfg, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	start := 1
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil || !entities.ValidChapter(n) {
			return fmt.Errorf("chapter %q: %w", os.Args[1], entities.ErrInvalidReference)
		}
		start = n
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	kv, closeStorage, err := app.OpenStorage(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeStorage()

	reading := app.NewReading(cfg, lg)
	session, err := reading.NewSession(ctx, audio.NewPlayer(cfg.Player, lg), kv)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			lg.Warn("failed to close reader session", zap.Error(err))
		}
	}()

	p := tea.NewProgram(
		tui.NewModel(ctx, session, start),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	session.SetObserver(func() { p.Send(tui.StateChanged{}) })

	_, err = p.Run()
	session.SetObserver(nil)
	return err
}
