package zone

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/domain"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Watch reloads dir whenever a zone file in it changes and hands the fresh
// zones to onChange. A reload that fails to parse is logged and the previous
// zones stay in effect. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, dir string, debounce time.Duration, logger log.Logger, onChange func(map[string][]domain.ResourceRecord)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			logger.Debug(map[string]any{"file": event.Name, "op": event.Op.String()}, "Zone file changed")
			timer.Reset(debounce)
		case <-timer.C:
			zones, err := LoadZoneDirectory(dir)
			if err != nil {
				logger.Warn(map[string]any{"dir": dir, "error": err}, "Zone reload failed, keeping previous zones")
				continue
			}
			logger.Info(map[string]any{"dir": dir, "zones": len(zones)}, "Zones reloaded")
			onChange(zones)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(map[string]any{"error": err}, "Zone watcher error")
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if parserFor(filepath.Base(ev.Name)) == nil {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}
