// Package discovery maintains the on-disk registry of running agents.
// Each agent writes one JSON file under the instances directory; writers
// coordinate through a file lock so concurrent agents never corrupt the
// registry, and dead entries are swept opportunistically.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFileName = ".registry.lock"
	lockTimeout  = 5 * time.Second
	dirMode      = 0o755
	fileMode     = 0o644
)

// Instance describes one running agent.
type Instance struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	HTTPPort  int       `json:"http_port"`
	RelayPort int       `json:"relay_port"`
	Hostname  string    `json:"hostname,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Register writes the instance file atomically under the registry lock.
func Register(instancesDir string, instance *Instance) error {
	return withLock(instancesDir, func() error {
		data, err := json.MarshalIndent(instance, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal instance: %w", err)
		}
		return atomicWriteFile(instancePath(instancesDir, instance.ID), data, fileMode)
	})
}

// Unregister removes the instance file; a missing file is not an error.
func Unregister(instancesDir, instanceID string) error {
	return withLock(instancesDir, func() error {
		if err := os.Remove(instancePath(instancesDir, instanceID)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove instance file: %w", err)
		}
		return nil
	})
}

// List returns the live instances. Entries whose process is gone are
// removed from disk as they are encountered.
func List(instancesDir string) ([]*Instance, error) {
	var instances []*Instance
	err := withLock(instancesDir, func() error {
		entries, err := os.ReadDir(instancesDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		for _, entry := range entries {
			if entry.IsDir() || !isInstanceFile(entry.Name()) {
				continue
			}
			path := filepath.Join(instancesDir, entry.Name())

			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var instance Instance
			if err := json.Unmarshal(data, &instance); err != nil || instance.ID == "" {
				continue
			}

			if !processAlive(instance.PID) {
				// Stale entry from a crashed agent.
				os.Remove(path)
				continue
			}
			instances = append(instances, &instance)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return instances, nil
}

// withLock runs fn while holding the registry's exclusive file lock.
func withLock(instancesDir string, fn func() error) error {
	if err := os.MkdirAll(instancesDir, dirMode); err != nil {
		return fmt.Errorf("create instances directory: %w", err)
	}

	fileLock := flock.New(filepath.Join(instancesDir, lockFileName))

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire registry lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("registry lock not acquired within %v", lockTimeout)
	}
	defer fileLock.Unlock()

	return fn()
}

// atomicWriteFile writes via a temp file in the same directory so the
// rename is atomic on the same filesystem.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tempFile = nil

	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func instancePath(instancesDir, instanceID string) string {
	return filepath.Join(instancesDir, instanceID+".json")
}

func isInstanceFile(name string) bool {
	return filepath.Ext(name) == ".json" && len(name) > 5
}

func instanceIDFromFile(name string) string {
	if !isInstanceFile(name) {
		return ""
	}
	return name[:len(name)-5]
}
