package jsonstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mazegame/server/internal/registry"
	"mazegame/server/internal/store"
)

func TestSaveLoadPlayersRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "jsonstore-*")
	if err != nil {
		t.Fatalf("mkdtemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	records := []registry.Record{
		{PlayerID: "PLAYER_000001", Fingerprint: "aa:bb:cc:dd:ee:ff", TotalCoins: 10, LastLoginAt: time.Now().Truncate(time.Second)},
	}
	if err := s.SavePlayers(records); err != nil {
		t.Fatalf("SavePlayers failed: %v", err)
	}

	loaded, err := s.LoadPlayers()
	if err != nil {
		t.Fatalf("LoadPlayers failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].PlayerID != "PLAYER_000001" || loaded[0].TotalCoins != 10 {
		t.Fatalf("unexpected loaded records: %+v", loaded)
	}
}

func TestLoadMazeMissingReturnsNotOK(t *testing.T) {
	dir, err := os.MkdirTemp("", "jsonstore-*")
	if err != nil {
		t.Fatalf("mkdtemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, ok, err := s.LoadMaze()
	if err != nil {
		t.Fatalf("LoadMaze failed: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false when no maze has been saved yet")
	}
}

func TestSaveLoadMazeRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "jsonstore-*")
	if err != nil {
		t.Fatalf("mkdtemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	snap := store.MazeSnapshot{
		Width: 3, Height: 3, Layers: 1,
		Cells: make([]int, 9),
		Coins: []store.CoinSnapshot{{Pos: [3]int{1, 1, 0}}},
		Start: [3]int{1, 1, 0},
		End:   [3]int{2, 2, 0},
	}
	if err := s.SaveMaze(snap); err != nil {
		t.Fatalf("SaveMaze failed: %v", err)
	}

	loaded, ok, err := s.LoadMaze()
	if err != nil || !ok {
		t.Fatalf("LoadMaze failed: ok=%v err=%v", ok, err)
	}
	if loaded.Width != 3 || loaded.Height != 3 || len(loaded.Coins) != 1 {
		t.Fatalf("unexpected round-tripped maze: %+v", loaded)
	}
}

func TestAppendChatLogAndBackup(t *testing.T) {
	dir, err := os.MkdirTemp("", "jsonstore-*")
	if err != nil {
		t.Fatalf("mkdtemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.AppendChatLog("Alice", "hello"); err != nil {
		t.Fatalf("AppendChatLog failed: %v", err)
	}
	if err := s.Backup(); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	entries, err := os.ReadDir(dir + "/backups")
	if err != nil {
		t.Fatalf("reading backups dir failed: %v", err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		t.Fatalf("expected exactly one backup directory, got %+v", entries)
	}
	if _, err := os.Stat(filepath.Join(dir, "backups", entries[0].Name(), "chat_log.txt")); err != nil {
		t.Fatalf("expected chat_log.txt inside the backup directory: %v", err)
	}
}
