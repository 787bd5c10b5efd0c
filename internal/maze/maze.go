// Package maze defines the 3D cell grid and coin pool that the game
// engine treats as its static world data.
package maze

import "fmt"

// Cell is the kind of a single maze position.
type Cell int

const (
	Wall Cell = iota
	Path
	StairUp
	StairDown
	Start
	End
)

func (c Cell) String() string {
	switch c {
	case Wall:
		return "WALL"
	case Path:
		return "PATH"
	case StairUp:
		return "STAIR_UP"
	case StairDown:
		return "STAIR_DOWN"
	case Start:
		return "START"
	case End:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// Blocking reports whether a cell obstructs movement.
func (c Cell) Blocking() bool {
	return c == Wall
}

// Pos is an integer cell coordinate.
type Pos struct {
	X, Y, Z int
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Grid is a W×H×L grid of cells, indexed [z][y][x] to match the layer-major
// storage the maze generator and persistence format both use.
type Grid struct {
	Width, Height, Layers int
	cells                 [][][]Cell
}

// NewGrid allocates a grid of the given dimensions, every cell a Wall.
func NewGrid(width, height, layers int) *Grid {
	cells := make([][][]Cell, layers)
	for z := range cells {
		cells[z] = make([][]Cell, height)
		for y := range cells[z] {
			cells[z][y] = make([]Cell, width)
		}
	}
	return &Grid{Width: width, Height: height, Layers: layers, cells: cells}
}

// InBounds reports whether p addresses a cell inside the grid.
func (g *Grid) InBounds(p Pos) bool {
	return p.X >= 0 && p.X < g.Width &&
		p.Y >= 0 && p.Y < g.Height &&
		p.Z >= 0 && p.Z < g.Layers
}

// At returns the cell at p. Callers must check InBounds first.
func (g *Grid) At(p Pos) Cell {
	return g.cells[p.Z][p.Y][p.X]
}

// Set assigns the cell at p. Callers must check InBounds first.
func (g *Grid) Set(p Pos, c Cell) {
	g.cells[p.Z][p.Y][p.X] = c
}

// Blocking reports whether p is out of bounds or a wall.
func (g *Grid) Blocking(p Pos) bool {
	if !g.InBounds(p) {
		return true
	}
	return g.At(p).Blocking()
}

// StairPartner returns the paired stair cell for a STAIR_UP/STAIR_DOWN cell
// at p, and whether p actually holds a stair cell.
func (g *Grid) StairPartner(p Pos) (Pos, bool) {
	if !g.InBounds(p) {
		return Pos{}, false
	}
	switch g.At(p) {
	case StairUp:
		return Pos{X: p.X, Y: p.Y, Z: p.Z + 1}, true
	case StairDown:
		return Pos{X: p.X, Y: p.Y, Z: p.Z - 1}, true
	default:
		return Pos{}, false
	}
}

// Flatten returns the grid's cells in layer-major [z][y][x] order, the
// same order NewGridFromCells expects back.
func (g *Grid) Flatten() []int {
	out := make([]int, 0, g.Width*g.Height*g.Layers)
	for z := 0; z < g.Layers; z++ {
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				out = append(out, int(g.cells[z][y][x]))
			}
		}
	}
	return out
}

// NewGridFromCells rebuilds a grid from a Flatten-ordered slice.
func NewGridFromCells(width, height, layers int, flat []int) *Grid {
	g := NewGrid(width, height, layers)
	i := 0
	for z := 0; z < layers; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g.cells[z][y][x] = Cell(flat[i])
				i++
			}
		}
	}
	return g
}

// Coin is one collectible position in the coin pool.
type Coin struct {
	Pos       Pos
	Collected bool
}

// CoinPool is the ordered sequence of coin positions for a match.
type CoinPool struct {
	coins []Coin
}

// NewCoinPool wraps a slice of positions as an uncollected coin pool.
func NewCoinPool(positions []Pos) *CoinPool {
	coins := make([]Coin, len(positions))
	for i, p := range positions {
		coins[i] = Coin{Pos: p}
	}
	return &CoinPool{coins: coins}
}

// Len returns the number of coins in the pool.
func (cp *CoinPool) Len() int { return len(cp.coins) }

// At returns the coin at index i and whether the index is valid.
func (cp *CoinPool) At(i int) (Coin, bool) {
	if i < 0 || i >= len(cp.coins) {
		return Coin{}, false
	}
	return cp.coins[i], true
}

// Collect marks coin i collected. Returns false if the index is invalid or
// the coin was already collected.
func (cp *CoinPool) Collect(i int) bool {
	if i < 0 || i >= len(cp.coins) {
		return false
	}
	if cp.coins[i].Collected {
		return false
	}
	cp.coins[i].Collected = true
	return true
}

// IndexAt returns the index of the coin at pos, if the pool has one there.
func (cp *CoinPool) IndexAt(pos Pos) (int, bool) {
	for i, c := range cp.coins {
		if c.Pos == pos {
			return i, true
		}
	}
	return 0, false
}

// Remaining returns the count of not-yet-collected coins.
func (cp *CoinPool) Remaining() int {
	n := 0
	for _, c := range cp.coins {
		if !c.Collected {
			n++
		}
	}
	return n
}

// Reset clears every coin's collected bit.
func (cp *CoinPool) Reset() {
	for i := range cp.coins {
		cp.coins[i].Collected = false
	}
}

// Positions returns the coin positions in pool order.
func (cp *CoinPool) Positions() []Pos {
	out := make([]Pos, len(cp.coins))
	for i, c := range cp.coins {
		out[i] = c.Pos
	}
	return out
}

// All returns a copy of every coin, collected bit included, in pool order.
func (cp *CoinPool) All() []Coin {
	out := make([]Coin, len(cp.coins))
	copy(out, cp.coins)
	return out
}

// NewCoinPoolFromCoins wraps an already-built coin slice (e.g. loaded from
// disk, collected bits included) as a coin pool.
func NewCoinPoolFromCoins(coins []Coin) *CoinPool {
	out := make([]Coin, len(coins))
	copy(out, coins)
	return &CoinPool{coins: out}
}

// Maze bundles a grid with its coin pool and start/end markers.
type Maze struct {
	Grid  *Grid
	Coins *CoinPool
	Start Pos
	End   Pos
}
