package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/sveltemachine/conveyor/internal/config"
	"github.com/sveltemachine/conveyor/internal/machine"
	"github.com/sveltemachine/conveyor/internal/render/termview"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := "config/conveyor.toml"
	if p := os.Getenv("CONVEYOR_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger. The preview owns the terminal, so logs go to a file.
	log, err := newLogger(cfg.Logging, cfg.Preview.Enabled)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	m := machine.New(cfg, log)

	// 3. Terminal preview
	var (
		screen tcell.Screen
		view   *termview.View
	)
	if cfg.Preview.Enabled {
		screen, err = tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("create screen: %w", err)
		}
		if err := screen.Init(); err != nil {
			return fmt.Errorf("init screen: %w", err)
		}
		defer screen.Fini()
		view = termview.New(screen, cfg.Preview.Scale)
		m.AttachPreview(view)
	}

	// 4. Load data, scripts and build the scene
	if err := m.Start(); err != nil {
		return fmt.Errorf("start conveyor: %w", err)
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if view != nil {
		g.Go(func() error {
			err := view.Run()
			if errors.Is(err, termview.ErrQuit) {
				log.Info("preview closed")
				stop()
				return nil
			}
			return err
		})
	}

	if cfg.Scripting.Watch {
		g.Go(func() error {
			if err := m.Scripts().Watch(ctx, m.ReloadSignal()); err != nil {
				log.Warn("script watcher stopped", zap.Error(err))
			}
			return nil
		})
	}

	// 5. Simulation loop
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Simulation.TickRate)
		defer ticker.Stop()
		log.Info("simulation loop started", zap.Duration("tick", cfg.Simulation.TickRate))
		for {
			select {
			case <-ticker.C:
				if err := m.Tick(cfg.Simulation.TickRate); err != nil {
					return err
				}
			case <-ctx.Done():
				log.Info("shutting down")
				if screen != nil {
					// unblocks the preview event loop
					screen.Fini()
				}
				return nil
			}
		}
	})

	return g.Wait()
}

func newLogger(cfg config.LoggingConfig, toFile bool) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if toFile {
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zapCfg.OutputPaths = []string{"conveyor.log"}
	}

	return zapCfg.Build()
}
