package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/illarion/keylock/internal/security"
	"github.com/illarion/keylock/internal/store"
)

// YAMLStore is a store.Store persisted as a flat YAML mapping inside a
// store directory. Every mutation rewrites the file with 0600 permissions.
type YAMLStore struct {
	dir     *security.Dir
	name    string
	ownsDir bool

	mu     sync.RWMutex
	values map[string]string
}

var _ store.ConfigStore = (*YAMLStore)(nil)

// OpenYAML loads the store at path, creating its directory if needed. A
// missing file yields an empty store; the file is created on the first
// write.
func OpenYAML(path string) (*YAMLStore, error) {
	dir, err := security.OpenDir(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	y, err := OpenYAMLIn(dir, filepath.Base(path))
	if err != nil {
		dir.Close()
		return nil, err
	}
	y.ownsDir = true
	return y, nil
}

// OpenYAMLIn loads the store kept in file name of dir. The caller keeps
// ownership of dir.
func OpenYAMLIn(dir *security.Dir, name string) (*YAMLStore, error) {
	if _, err := dir.Validate(name); err != nil {
		return nil, err
	}
	y := &YAMLStore{
		dir:    dir,
		name:   name,
		values: make(map[string]string),
	}

	data, err := dir.ReadFile(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return y, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	if err := yaml.Unmarshal(data, &y.values); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if y.values == nil {
		y.values = make(map[string]string)
	}
	log.Debugf("Loaded %d entries from %s", len(y.values), y.Path())

	return y, nil
}

// Path returns the backing file path
func (y *YAMLStore) Path() string {
	return filepath.Join(y.dir.Path(), y.name)
}

// Close releases the directory handle if OpenYAML opened it
func (y *YAMLStore) Close() error {
	if y.ownsDir {
		return y.dir.Close()
	}
	return nil
}

// save writes the current values; callers hold y.mu
func (y *YAMLStore) save() error {
	out, err := yaml.Marshal(y.values)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := y.dir.WriteFile(y.name, out); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (y *YAMLStore) Get(key string) (string, bool) {
	y.mu.RLock()
	defer y.mu.RUnlock()
	v, ok := y.values[key]
	return v, ok
}

func (y *YAMLStore) Set(key, value string) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	prev, had := y.values[key]
	y.values[key] = value
	if err := y.save(); err != nil {
		if had {
			y.values[key] = prev
		} else {
			delete(y.values, key)
		}
		return err
	}
	return nil
}

func (y *YAMLStore) Contains(key string) bool {
	_, ok := y.Get(key)
	return ok
}

func (y *YAMLStore) Items() ([]store.Item, error) {
	y.mu.RLock()
	defer y.mu.RUnlock()
	items := make([]store.Item, 0, len(y.values))
	for k, v := range y.values {
		items = append(items, store.Item{Key: k, Value: v})
	}
	store.SortItems(items)
	return items, nil
}

func (y *YAMLStore) Len() int {
	y.mu.RLock()
	defer y.mu.RUnlock()
	return len(y.values)
}

func (y *YAMLStore) Delete(key string) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	prev, had := y.values[key]
	if !had {
		return nil
	}
	delete(y.values, key)
	if err := y.save(); err != nil {
		y.values[key] = prev
		return err
	}
	return nil
}

// Wipe empties the store and removes the backing file
func (y *YAMLStore) Wipe() error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if err := y.dir.Remove(y.name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	y.values = make(map[string]string)
	log.Infof("Wiped %s", y.Path())
	return nil
}
