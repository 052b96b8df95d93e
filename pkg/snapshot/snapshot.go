package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sgsync/pkg/logger"
	"sgsync/pkg/models"
)

// Version is the current snapshot file format
const Version = 1

// Snapshot is the on-disk form of a collected dataset
type Snapshot struct {
	Version   int            `json:"version"`
	Source    string         `json:"source"`
	Dataset   models.Dataset `json:"dataset"`
	CreatedAt time.Time      `json:"created_at"`
}

// Manager handles snapshot operations
type Manager struct {
	path   string
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

// NewManager creates a snapshot manager for the file at path. Snapshots older
// than ttl are treated as absent.
func NewManager(path string, ttl time.Duration, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{path: path, ttl: ttl, logger: log, now: time.Now}
}

// WithClock replaces the wall clock
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Path returns the snapshot file location
func (m *Manager) Path() string {
	return m.path
}

// Load returns the stored snapshot for source, or nil when there is none, it
// was collected from another source, or it has gone stale.
func (m *Manager) Load(source string) (*Snapshot, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	var snap Snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if snap.Version != Version || snap.Source != source {
		m.logger.InfoWithFields("Snapshot does not match, ignoring it", map[string]interface{}{
			"version": snap.Version,
			"source":  snap.Source,
		})
		return nil, nil
	}

	age := m.now().Sub(snap.Dataset.LastCheck)
	if m.ttl > 0 && age > m.ttl {
		m.logger.InfoWithFields("Snapshot expired, cache cleared", map[string]interface{}{
			"last_check": snap.Dataset.LastCheck,
			"age":        age.Round(time.Second).String(),
		})
		return nil, nil
	}

	m.logger.InfoWithFields("Snapshot loaded", map[string]interface{}{
		"users":      len(snap.Dataset.Users),
		"last_check": snap.Dataset.LastCheck,
	})
	return &snap, nil
}

// Save writes data atomically, replacing any previous snapshot
func (m *Manager) Save(source string, data models.Dataset) error {
	snap := Snapshot{
		Version:   Version,
		Source:    source,
		Dataset:   data,
		CreatedAt: m.now(),
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&snap); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync snapshot file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}

	m.logger.DebugWithFields("Snapshot saved", map[string]interface{}{
		"users": len(data.Users),
		"path":  m.path,
	})
	return nil
}

// Delete removes the snapshot file
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	m.logger.Info("Snapshot deleted")
	return nil
}

// Exists checks if a snapshot file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}
