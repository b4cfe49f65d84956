package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Joseda-hg/lazytodo/internal/config"
	"github.com/Joseda-hg/lazytodo/internal/db"
	"github.com/Joseda-hg/lazytodo/internal/notify"
	"github.com/Joseda-hg/lazytodo/internal/reminder"
	"github.com/Joseda-hg/lazytodo/internal/tasks"
	"github.com/Joseda-hg/lazytodo/internal/tui"
	"github.com/Joseda-hg/lazytodo/internal/voice"
	"github.com/Joseda-hg/lazytodo/internal/web"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "lazytodo",
		Usage: "Personal to-do list with deadline reminders and voice entry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file path",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "sqlite db path",
			},
			&cli.BoolFlag{
				Name:  "web",
				Usage: "enable web server",
			},
			&cli.BoolFlag{
				Name:  "web-only",
				Usage: "run web server only",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "web server port",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfgPath, err := resolveConfigPath(cmd.String("config"))
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cmd.IsSet("db") {
		cfg.DBPath = cmd.String("db")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "lazytodo.db")
	}
	if cmd.Bool("web") {
		cfg.WebEnabled = true
	}
	if cmd.IsSet("port") {
		cfg.WebPort = cmd.Int("port")
	}
	if cfg.WebPort == 0 {
		cfg.WebPort = 8080
	}
	webOnly := cmd.Bool("web-only")

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	level := cfg.Level()
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	setupLogging(level, webOnly)

	sqlDB, err := openDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	repo := db.NewTaskRepository(db.NewKV(sqlDB), cfg.StorageKey)
	initial := repo.Load(ctx)

	serveWeb := cfg.WebEnabled || webOnly
	hub := web.NewHub()

	var notifier notify.Provider = notify.Unavailable{}
	var haptics notify.Haptics = notify.NoHaptics{}
	if serveWeb {
		notifier = notify.NewRemote(hub)
		haptics = notify.NewRemoteHaptics(hub)
	}

	scheduler := reminder.New(reminder.Config{Notifier: notifier, Lead: cfg.Lead()})
	defer scheduler.Stop()

	store := tasks.New(tasks.Config{
		Persister: repo,
		Scheduler: scheduler,
		Haptics:   haptics,
		Initial:   initial,
	})
	if cfg.RearmReminders {
		slog.Info("reminders re-armed", "count", store.RearmReminders())
	}

	interpreter := voice.NewInterpreter(store, notifier)
	var prompt *voice.Typed
	var recognizer voice.Recognizer
	if serveWeb {
		recognizer = voice.NewRemote(hub)
	} else {
		prompt = &voice.Typed{}
		recognizer = prompt
	}
	session := voice.NewSession(recognizer, interpreter, cfg.Locale)

	slog.Debug("tasks loaded", "count", len(initial), "db", cfg.DBPath)

	var server *web.Server
	serverErr := make(chan error, 1)
	if serveWeb {
		server = web.NewServer(web.Deps{
			Store:    store,
			Voice:    session,
			Notifier: notifier,
			Hub:      hub,
		})
		addr := fmt.Sprintf(":%d", cfg.WebPort)
		go func() {
			serverErr <- server.ListenAndServe(addr)
		}()
	}

	if webOnly {
		select {
		case <-ctx.Done():
		case err := <-serverErr:
			if err != nil {
				return fmt.Errorf("web server: %w", err)
			}
		}
		return shutdown(server)
	}

	uiErr := tui.Run(tui.Deps{
		Store:    store,
		Voice:    session,
		Prompt:   prompt,
		Notifier: notifier,
	})
	if err := shutdown(server); err != nil {
		slog.Error("web server shutdown", "error", err)
	}
	return uiErr
}

func shutdown(server *web.Server) error {
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}

// setupLogging sends logs to stderr when only the web server runs. With the
// terminal UI on screen they go to a file in the user cache dir instead.
func setupLogging(level slog.Level, webOnly bool) {
	out := os.Stderr
	if !webOnly {
		if file, err := openLogFile(); err == nil {
			out = file
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
}

func openLogFile() (*os.File, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(cacheDir, "lazytodo", "lazytodo.log")
	if err := config.EnsureDir(path); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

func openDB(path string) (*sql.DB, error) {
	if err := config.EnsureDir(path); err != nil {
		return nil, err
	}

	sqlDB, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	return sqlDB, nil
}
