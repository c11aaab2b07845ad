package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/stefanpenner/horizon/pkg/cache"
	"github.com/stefanpenner/horizon/pkg/config"
	"github.com/stefanpenner/horizon/pkg/remote"
	"github.com/stefanpenner/horizon/pkg/store"
	hsync "github.com/stefanpenner/horizon/pkg/sync"
	"github.com/stefanpenner/horizon/pkg/tui"
)

// logFile receives TUI logs inside the data dir.
const logFile = "horizon.log"

// errUnsynced marks a command whose changes are only in the local cache.
var errUnsynced = errors.New("changes not synced to the remote; they are kept in the local cache (run 'horizon sync' to push them)")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUnsynced) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// app holds the global flags and the wired components of one invocation.
type app struct {
	dir     string
	remote  string
	json    bool
	force   bool
	noCache bool

	cfg     config.Config
	log     *slog.Logger
	cache   cache.Cache
	engine  *hsync.Engine
	store   *store.Store
	guard   *hsync.UnloadGuard
	closers []func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "horizon",
		Short:        "Daily, weekly, monthly and yearly goals",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  horizon

  # Scriptable commands
  horizon add weekly "Call grandma"
  horizon list weekly --json
  horizon move weekly:1 daily 1
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI()
		},
	}

	cmd.PersistentFlags().StringVar(&a.dir, "dir", "", "Data directory (default: $"+config.EnvDir+" or the OS data dir)")
	cmd.PersistentFlags().StringVar(&a.remote, "remote", "", "Base URL of a horizond server (overrides config)")
	cmd.PersistentFlags().BoolVar(&a.json, "json", false, "Output JSON")
	cmd.PersistentFlags().BoolVar(&a.force, "force", false, "Exit zero even when changes could not be synced")
	cmd.PersistentFlags().BoolVar(&a.noCache, "no-cache", false, "Keep the local cache in memory only")

	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newStatsCmd(a))
	cmd.AddCommand(newAddCmd(a))
	cmd.AddCommand(newToggleCmd(a))
	cmd.AddCommand(newEditCmd(a))
	cmd.AddCommand(newRemoveCmd(a))
	cmd.AddCommand(newReorderCmd(a))
	cmd.AddCommand(newMoveCmd(a))
	cmd.AddCommand(newColorCmd(a))
	cmd.AddCommand(newDueCmd(a))
	cmd.AddCommand(newClearCompletedCmd(a))
	cmd.AddCommand(newResetCmd(a))
	cmd.AddCommand(newSyncCmd(a))

	return cmd
}

// open loads the config and wires cache, remote, engine and store. Logs go
// to logOut.
func (a *app) open(logOut io.Writer) error {
	cfg, err := config.Load(a.dir)
	if err != nil {
		return err
	}
	if a.remote != "" {
		cfg.RemoteURL = a.remote
	}
	a.cfg = cfg
	a.log = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.Level()}))

	if a.noCache {
		a.cache = cache.NewMemory()
	} else {
		c, err := cache.OpenSQLite(filepath.Join(cfg.Dir, cache.FileName))
		if err != nil {
			return err
		}
		a.cache = c
	}
	a.closers = append(a.closers, a.cache.Close)

	var r hsync.Remote = hsync.Local{Cache: a.cache}
	if cfg.RemoteURL != "" {
		client, err := remote.New(cfg.RemoteURL, cfg.RemoteTimeout)
		if err != nil {
			return err
		}
		r = client
	}

	var limiter *rate.Limiter
	if cfg.RetryRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RetryRate), 1)
	}

	a.engine = hsync.New(hsync.Options{
		Remote:   r,
		Cache:    a.cache,
		Debounce: cfg.Debounce,
		Timeout:  cfg.RemoteTimeout,
		Limiter:  limiter,
		Logger:   a.log,
	})
	// Registered after the cache so it runs first.
	a.closers = append(a.closers, a.engine.Close)
	a.store = store.New(
		store.WithListener(a.engine),
		store.WithLoader(a.engine),
		store.WithLogger(a.log),
	)
	a.guard = hsync.NewUnloadGuard(a.engine)
	a.log.Debug("opened", "dir", cfg.Dir, "remote", cfg.RemoteURL)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) runTUI() error {
	dir, err := a.dataDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	if err := a.open(f); err != nil {
		return err
	}
	defer a.close()
	slog.SetDefault(a.log)

	m := tui.NewModel(a.store, a.engine, a.cfg.Dir)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithReportFocus())

	// Start file watcher
	cleanup, err := tui.StartWatcher(a.cfg.Dir, p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file watcher failed: %v\n", err)
	} else {
		defer cleanup()
	}

	if _, err := p.Run(); err != nil {
		return err
	}
	if a.guard.Blocked() {
		fmt.Fprintln(os.Stderr, "Warning: "+errUnsynced.Error())
	}
	return nil
}

// dataDir resolves the data dir before the config is loaded.
func (a *app) dataDir() (string, error) {
	cfg, err := config.Load(a.dir)
	if err != nil {
		return "", err
	}
	return cfg.Dir, nil
}
