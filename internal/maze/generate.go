package maze

import "math/rand"

// DefaultWidth, DefaultHeight, and DefaultLayers are the maze dimensions
// used when no explicit size is requested.
const (
	DefaultWidth  = 50
	DefaultHeight = 50
	DefaultLayers = 7

	MinCoins = 100
	MaxCoins = 120
)

// Generate builds a fresh maze of the given dimensions: one START on layer
// 0, one END on the layer farthest (by BFS hop count) from START, a
// recursive-division path network per layer, a stair pair linking every
// pair of adjacent layers, and a scatter of MinCoins..MaxCoins coins on
// distinct non-wall, non-start, non-end cells.
//
// Ported from the reference maze generator's recursive-division carving
// strategy; this version works directly against the Cell grid instead of
// a separate bool/CellType split.
func Generate(width, height, layers int, rng *rand.Rand) *Maze {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	g := NewGrid(width, height, layers)
	for z := 0; z < layers; z++ {
		carveLayer(g, z, rng)
	}

	linkLayers(g, rng)

	start := Pos{X: 1, Y: 1, Z: 0}
	g.Set(start, Start)

	end := farthestCell(g, start, rng)
	g.Set(end, End)

	coinCount := MinCoins + rng.Intn(MaxCoins-MinCoins+1)
	coins := scatterCoins(g, start, end, coinCount, rng)

	return &Maze{Grid: g, Coins: NewCoinPool(coins), Start: start, End: end}
}

// carveLayer fills layer z with a border of walls and a recursively
// divided interior of paths, mirroring recursiveDivision in the reference
// generator: start from an all-path interior and drop walls with a single
// gap until the regions are minimum-sized.
func carveLayer(g *Grid, z int, rng *rand.Rand) {
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			p := Pos{X: x, Y: y, Z: z}
			if x == 0 || y == 0 || x == g.Width-1 || y == g.Height-1 {
				g.Set(p, Wall)
			} else {
				g.Set(p, Path)
			}
		}
	}
	divide(g, z, 1, g.Width-2, 1, g.Height-2, rng)
}

func divide(g *Grid, z, minX, maxX, minY, maxY int, rng *rand.Rand) {
	if maxX-minX < 2 || maxY-minY < 2 {
		return
	}
	horizontal := (maxY - minY) > (maxX - minX)
	if maxX == minX || maxY == minY {
		horizontal = maxY-minY > maxX-minX
	} else {
		horizontal = rng.Intn(2) == 0
	}

	if horizontal {
		wallY := minY + 1 + rng.Intn(maxY-minY-1)
		gapX := minX + rng.Intn(maxX-minX+1)
		for x := minX; x <= maxX; x++ {
			if x == gapX {
				continue
			}
			g.Set(Pos{X: x, Y: wallY, Z: z}, Wall)
		}
		divide(g, z, minX, maxX, minY, wallY-1, rng)
		divide(g, z, minX, maxX, wallY+1, maxY, rng)
	} else {
		wallX := minX + 1 + rng.Intn(maxX-minX-1)
		gapY := minY + rng.Intn(maxY-minY+1)
		for y := minY; y <= maxY; y++ {
			if y == gapY {
				continue
			}
			g.Set(Pos{X: wallX, Y: y, Z: z}, Wall)
		}
		divide(g, z, minX, wallX-1, minY, maxY, rng)
		divide(g, z, wallX+1, maxX, minY, maxY, rng)
	}
}

// linkLayers places one STAIR_UP/STAIR_DOWN pair between every pair of
// adjacent layers, at a non-wall column shared by both layers.
func linkLayers(g *Grid, rng *rand.Rand) {
	for z := 0; z < g.Layers-1; z++ {
		x, y := pickStairColumn(g, z, rng)
		g.Set(Pos{X: x, Y: y, Z: z}, StairUp)
		g.Set(Pos{X: x, Y: y, Z: z + 1}, StairDown)
	}
}

func pickStairColumn(g *Grid, z int, rng *rand.Rand) (int, int) {
	for attempts := 0; attempts < 10000; attempts++ {
		x := 1 + rng.Intn(g.Width-2)
		y := 1 + rng.Intn(g.Height-2)
		p := Pos{X: x, Y: y, Z: z}
		pAbove := Pos{X: x, Y: y, Z: z + 1}
		if !g.Blocking(p) && !g.Blocking(pAbove) {
			return x, y
		}
	}
	return 1, 1
}

// farthestCell runs a BFS from start across the whole 3D grid (walking
// stairs as edges) and returns the most distant traversable cell found,
// breaking ties in favor of a deeper layer so END tends to sit away from
// START's layer.
func farthestCell(g *Grid, start Pos, rng *rand.Rand) Pos {
	dist := map[Pos]int{start: 0}
	queue := []Pos{start}
	best := start
	bestDist := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range neighbors(g, cur) {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
			if dist[next] > bestDist || (dist[next] == bestDist && next.Z > best.Z) {
				bestDist = dist[next]
				best = next
			}
		}
	}
	if best == start {
		// Degenerate maze (shouldn't happen with a sane generator); fall
		// back to a random non-wall, non-start cell.
		for attempts := 0; attempts < 10000; attempts++ {
			p := Pos{X: rng.Intn(g.Width), Y: rng.Intn(g.Height), Z: rng.Intn(g.Layers)}
			if !g.Blocking(p) && p != start {
				return p
			}
		}
	}
	return best
}

func neighbors(g *Grid, p Pos) []Pos {
	candidates := []Pos{
		{X: p.X + 1, Y: p.Y, Z: p.Z},
		{X: p.X - 1, Y: p.Y, Z: p.Z},
		{X: p.X, Y: p.Y + 1, Z: p.Z},
		{X: p.X, Y: p.Y - 1, Z: p.Z},
	}
	if partner, ok := g.StairPartner(p); ok {
		candidates = append(candidates, partner)
	}
	out := make([]Pos, 0, len(candidates))
	for _, c := range candidates {
		if g.InBounds(c) && !g.Blocking(c) {
			out = append(out, c)
		}
	}
	return out
}

func scatterCoins(g *Grid, start, end Pos, count int, rng *rand.Rand) []Pos {
	positions := make([]Pos, 0, count)
	seen := make(map[Pos]bool)
	attempts := 0
	for len(positions) < count && attempts < count*200 {
		attempts++
		p := Pos{X: rng.Intn(g.Width), Y: rng.Intn(g.Height), Z: rng.Intn(g.Layers)}
		if g.Blocking(p) || p == start || p == end || seen[p] {
			continue
		}
		switch g.At(p) {
		case StairUp, StairDown:
			continue
		}
		seen[p] = true
		positions = append(positions, p)
	}
	return positions
}
