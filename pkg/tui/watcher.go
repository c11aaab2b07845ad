package tui

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/stefanpenner/horizon/pkg/cache"
)

const watchDebounce = 200 * time.Millisecond

// StartWatcher watches the local cache in dir and sends FileChangedMsg when
// another process writes it.
func StartWatcher(dir string, program *tea.Program) (func(), error) {
	return watch(dir, func() { program.Send(FileChangedMsg{}) })
}

// watch calls notify, debounced, whenever a cache file in dir changes. The
// directory is watched rather than the file so journal and WAL files count.
func watch(dir string, notify func()) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})

	go func() {
		var debounceTimer *time.Timer

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasPrefix(filepath.Base(event.Name), cache.FileName) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(watchDebounce, notify)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Debug("watcher error", "component", "tui", "error", err)

			case <-done:
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				return
			}
		}
	}()

	cleanup := func() {
		close(done)
		watcher.Close()
	}

	return cleanup, nil
}
