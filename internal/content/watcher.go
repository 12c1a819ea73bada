package content

import (
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

type Loader interface {
	Load(path string) error
}

type Watcher struct {
	stop chan struct{}
	done chan error
}

// LoadAndWatch loads path once and reloads it whenever the file changes until
// Close. The parent directory is watched so a save that replaces the file by
// rename is still seen. A reload that fails keeps the previous catalog.
func LoadAndWatch(path string, loader Loader) (*Watcher, error) {
	if err := loader.Load(path); err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolve catalog path")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrap(err, "watch catalog directory")
	}
	stop := make(chan struct{})
	done := make(chan error)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					continue
				}
				if isCatalogChange(event, target) {
					reload(loader, path, target)
				}
			case err, ok := <-watcher.Errors:
				if ok {
					log.Printf("watch catalog %s failed: %v", path, err)
				}
			case <-stop:
				done <- watcher.Close()
				return
			}
		}
	}()
	return &Watcher{stop: stop, done: done}, nil
}

func isCatalogChange(event fsnotify.Event, target string) bool {
	if filepath.Clean(event.Name) != target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// reload skips a catalog that was moved away and not yet replaced.
func reload(loader Loader, path string, target string) {
	if _, err := os.Stat(target); err != nil {
		return
	}
	if err := loader.Load(path); err != nil {
		log.Printf("reload catalog %s failed: %v", path, err)
	}
}

func (w *Watcher) Close() error {
	close(w.stop)
	return <-w.done
}
