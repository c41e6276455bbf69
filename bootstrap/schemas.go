package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artpar/modelkit/core/schema"
	"github.com/fsnotify/fsnotify"
)

// schemaSettle is how long the watcher waits after the last file event
// before reloading, so an editor's burst of writes triggers one reload.
const schemaSettle = 150 * time.Millisecond

// ReloadSchemas parses the configured schema directory and replaces the
// model catalog. On any error the previous catalog stays in place. A missing
// directory yields an empty catalog.
func (a *App) ReloadSchemas() error {
	dir := a.Config.Get().Schemas.Dir

	models, err := schema.ParseDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		a.Logger.Warn().Str("dir", dir).Msg("schema directory not found, no models loaded")
		models, err = nil, nil
	}
	if err == nil {
		err = a.Classes.Replace(models)
	}
	if err != nil {
		if a.Metrics != nil {
			a.Metrics.SchemaReloadErrors.Inc()
		}
		a.Logger.Error().Err(err).Str("dir", dir).Msg("schema load failed")
		return err
	}

	if a.Metrics != nil {
		a.Metrics.SchemaReloads.Inc()
		a.Metrics.SchemasLoaded.Set(float64(len(models)))
	}

	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	a.Logger.Info().Str("dir", dir).Strs("models", names).Msg("schemas loaded")
	return nil
}

// WatchSchemas reloads the catalog whenever a schema file in the configured
// directory changes. Calling it again for the same directory does nothing;
// for a new directory the old watch is replaced.
func (a *App) WatchSchemas() error {
	dir := a.Config.Get().Schemas.Dir

	a.schemaMu.Lock()
	defer a.schemaMu.Unlock()

	if a.schemaWatcher != nil {
		if a.schemaDir == dir {
			return nil
		}
		a.stopSchemaWatchLocked()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	stop := make(chan struct{})
	a.schemaWatcher = watcher
	a.schemaStop = stop
	a.schemaDir = dir

	go a.schemaWatchLoop(watcher, stop)

	a.Logger.Info().Str("dir", dir).Msg("watching schemas for changes")
	return nil
}

func (a *App) stopSchemaWatch() {
	a.schemaMu.Lock()
	defer a.schemaMu.Unlock()
	a.stopSchemaWatchLocked()
}

func (a *App) stopSchemaWatchLocked() {
	if a.schemaWatcher == nil {
		return
	}
	close(a.schemaStop)
	a.schemaWatcher.Close()
	a.schemaWatcher = nil
	a.schemaStop = nil
	a.schemaDir = ""
}

func (a *App) schemaWatchLoop(watcher *fsnotify.Watcher, stop <-chan struct{}) {
	var settle <-chan time.Time

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						a.Logger.Error().Err(err).Str("dir", event.Name).Msg("watch new schema directory")
					}
					settle = time.After(schemaSettle)
					continue
				}
			}

			if !isSchemaFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			a.Logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("schema file changed")
			settle = time.After(schemaSettle)

		case <-settle:
			settle = nil
			// Failures are logged and counted by ReloadSchemas.
			_ = a.ReloadSchemas()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			a.Logger.Error().Err(err).Msg("schema watcher error")

		case <-stop:
			return
		}
	}
}

func isSchemaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
