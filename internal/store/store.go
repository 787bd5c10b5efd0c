// Package store defines the persistence boundary: durable player records,
// the maze snapshot, server configuration, and the append-only chat log.
// Two backends implement it: jsonstore (flat files under a data
// directory) and pgstore (Postgres).
package store

import "mazegame/server/internal/registry"

// MazeSnapshot is the on-disk form of a generated maze: enough to
// reconstruct an equal maze.Maze on load.
type MazeSnapshot struct {
	Width, Height, Layers int
	Cells                 []int // flattened [z][y][x], matching maze.Grid's layer-major layout
	Coins                 []CoinSnapshot
	Start, End            [3]int
}

// CoinSnapshot is one coin pool entry on disk.
type CoinSnapshot struct {
	Pos       [3]int
	Collected bool
}

// Store is the persistence boundary every backend implements.
type Store interface {
	SavePlayers(records []registry.Record) error
	LoadPlayers() ([]registry.Record, error)

	SaveMaze(snap MazeSnapshot) error
	LoadMaze() (MazeSnapshot, bool, error)

	SaveConfig(v interface{}) error
	LoadConfig(v interface{}) (bool, error)

	AppendChatLog(sender, message string) error

	Backup() error

	Close() error
}
