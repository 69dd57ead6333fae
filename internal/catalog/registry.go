package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry holds the instance reference data, loaded once at startup
// from a data directory. Lookups are read-only.
type Registry struct {
	mu        sync.RWMutex
	byID      map[int]*Instance
	instances []Instance
}

// NewRegistry loads every instance file (.json, .yaml or .yml) from the
// given directory. Instances are ordered by id.
func NewRegistry(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read instance directory: %w", err)
	}

	r := &Registry{byID: make(map[int]*Instance)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := r.loadFile(filepath.Join(dir, entry.Name()), ext); err != nil {
			return nil, err
		}
	}

	sort.Slice(r.instances, func(i, j int) bool {
		return r.instances[i].ID < r.instances[j].ID
	})
	for i := range r.instances {
		r.byID[r.instances[i].ID] = &r.instances[i]
	}

	return r, nil
}

func (r *Registry) loadFile(path, ext string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var instance Instance
	if ext == ".json" {
		err = json.Unmarshal(data, &instance)
	} else {
		err = yaml.Unmarshal(data, &instance)
	}
	if err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}

	r.instances = append(r.instances, instance)
	return nil
}

// List returns all instances in id order.
func (r *Registry) List() []Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instances
}

// ByID returns one instance by id.
func (r *Registry) ByID(id int) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instance, ok := r.byID[id]
	return instance, ok
}

// Len returns the number of loaded instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}
