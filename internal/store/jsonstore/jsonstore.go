// Package jsonstore is the default persistence backend: flat JSON/text
// files under a data directory, guarded by one mutex. Every load reads its
// file afresh and every save rewrites the whole file.
package jsonstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mazegame/server/internal/registry"
	"mazegame/server/internal/store"
)

// JSONStore persists players.json, maze_data.json, config.json, and
// chat_log.txt under dataDir, with timestamped copies placed in
// dataDir/backups on Backup.
type JSONStore struct {
	dataDir string
	mu      sync.Mutex
}

// New opens (creating if absent) a JSON store rooted at dataDir.
func New(dataDir string) (*JSONStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("jsonstore: create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "backups"), 0755); err != nil {
		return nil, fmt.Errorf("jsonstore: create backups dir: %w", err)
	}
	return &JSONStore{dataDir: dataDir}, nil
}

func (s *JSONStore) path(name string) string {
	return filepath.Join(s.dataDir, name)
}

// SavePlayers overwrites players.json with records.
func (s *JSONStore) SavePlayers(records []registry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONFile(s.path("players.json"), records)
}

// LoadPlayers reads players.json, returning an empty slice if it doesn't
// exist yet.
func (s *JSONStore) LoadPlayers() ([]registry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []registry.Record
	ok, err := readJSONFile(s.path("players.json"), &records)
	if err != nil {
		return nil, fmt.Errorf("jsonstore: load players: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return records, nil
}

// SaveMaze overwrites maze_data.json with snap.
func (s *JSONStore) SaveMaze(snap store.MazeSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONFile(s.path("maze_data.json"), snap)
}

// LoadMaze reads maze_data.json. ok is false if the file doesn't exist.
func (s *JSONStore) LoadMaze() (store.MazeSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap store.MazeSnapshot
	ok, err := readJSONFile(s.path("maze_data.json"), &snap)
	if err != nil {
		return store.MazeSnapshot{}, false, fmt.Errorf("jsonstore: load maze: %w", err)
	}
	return snap, ok, nil
}

// SaveConfig overwrites config.json with v.
func (s *JSONStore) SaveConfig(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONFile(s.path("config.json"), v)
}

// LoadConfig reads config.json into v. ok is false if the file doesn't
// exist.
func (s *JSONStore) LoadConfig(v interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readJSONFile(s.path("config.json"), v)
}

// AppendChatLog appends one line to chat_log.txt.
func (s *JSONStore) AppendChatLog(sender, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path("chat_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("jsonstore: open chat log: %w", err)
	}
	defer f.Close()
	line := fmt.Sprintf("[%s] %s: %s\n", time.Now().Format(time.RFC3339), sender, message)
	_, err = f.WriteString(line)
	return err
}

// Backup copies every top-level data file into a fresh
// dataDir/backups/<timestamp>/ directory, one backup per directory.
func (s *JSONStore) Backup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp := time.Now().Format("20060102-150405")
	dir := filepath.Join(s.dataDir, "backups", stamp)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("jsonstore: create backup dir: %w", err)
	}
	for _, name := range []string{"players.json", "maze_data.json", "config.json", "chat_log.txt"} {
		data, err := os.ReadFile(s.path(name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("jsonstore: backup %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return fmt.Errorf("jsonstore: write backup %s: %w", name, err)
		}
	}
	return nil
}

// Close is a no-op: every write already goes straight to disk.
func (s *JSONStore) Close() error { return nil }

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// readJSONFile decodes path into v. ok is false and err is nil if the file
// does not exist.
func readJSONFile(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}
