package settings

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// A Store is the external key-value settings store the gateway reconciles
// against.
type Store interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, settings *Settings) error
}

// FileStore persists settings as a single JSON file.
type FileStore struct {
	file     string
	fileLock sync.Mutex

	// Incremented on every Save so the change watcher can tell our own
	// writes apart from external ones.
	writes int
}

func NewFileStore(filename string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{file: filename}, nil
}

// Load implements the Store interface. A missing file yields empty settings.
func (store *FileStore) Load(ctx context.Context) (*Settings, error) {
	store.fileLock.Lock()
	defer store.fileLock.Unlock()

	file, err := os.Open(store.file)
	if os.IsNotExist(err) {
		return &Settings{}, nil
	} else if err != nil {
		return nil, err
	}
	defer file.Close()

	var settings Settings
	if err := json.NewDecoder(file).Decode(&settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save implements the Store interface.
func (store *FileStore) Save(ctx context.Context, settings *Settings) error {
	store.fileLock.Lock()
	defer store.fileLock.Unlock()

	store.writes++
	file, err := os.Create(store.file)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewEncoder(file).Encode(settings)
}

// Watch invokes fn whenever the settings file is modified by another
// process. Writes issued through this store do not trigger fn. Watching
// stops when the context is canceled.
func (store *FileStore) Watch(ctx context.Context, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(store.file)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		seenWrites := store.selfWrites()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != store.file || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if w := store.selfWrites(); w != seenWrites {
					seenWrites = w
					continue
				}
				fn()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithField("file", store.file).Warnf("Settings watcher: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (store *FileStore) selfWrites() int {
	store.fileLock.Lock()
	defer store.fileLock.Unlock()
	return store.writes
}
