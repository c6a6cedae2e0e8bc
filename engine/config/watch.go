package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/pkg/errors"
)

const _RELOAD_DEBOUNCE = 500 * time.Millisecond

// Watch reloads the config file whenever it changes and calls onChange with the new config.
// Invalid config files are logged and ignored, the current config stays in effect.
// Watch blocks until ctx is done. onChange is called from the watcher goroutine.
func Watch(ctx context.Context, onChange func(cfg *NetGodConfig)) error {
	path := GetConfigFilePath()
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create config watcher")
	}
	defer watcher.Close()

	// editors often replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "watch config dir of %s", path)
	}
	gwlog.Infof("Watching config file %s for changes", path)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				debounce = time.After(_RELOAD_DEBOUNCE)
			}
		case <-debounce:
			debounce = nil
			cfg, err := Load(path)
			if err != nil {
				gwlog.Errorf("config reload failed, keeping current config: %s", err)
				continue
			}
			set(cfg)
			gwlog.Infof("Config file %s reloaded", path)
			if onChange != nil {
				onChange(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			gwlog.Warnf("config watcher error: %s", err)
		}
	}
}
