// Package game implements the coarse-locked match engine: player runtime
// state, movement and collision against a maze, the item economy, and the
// ephemeral effects (speed boosts, broken walls, slow traps) that a tick
// loop expires over time.
package game

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"mazegame/server/internal/maze"
)

const (
	baseMoveSpeed  = 0.1
	boostMoveSpeed = 0.2

	speedBoostDuration = 10 * time.Second
	wallRepairDelay    = 60 * time.Second
	slowTrapDuration   = 30 * time.Second
	slowTrapPenalty    = 0.5 // multiplies the mover's speed while standing on a trap
)

// Engine owns one match's worth of maze, coin pool, and player runtime
// state behind a single mutex. Every exported method is a complete
// operation: callers never need to hold a lock across two calls.
type Engine struct {
	mu sync.Mutex

	rng  *rand.Rand
	maze *maze.Maze

	players map[string]*PlayerState
	order   []string // insertion order, for AllPlayerIDs

	brokenWalls map[maze.Pos]time.Time
	traps       map[maze.Pos]time.Time

	nextFinishRank int
	finishedCount  int
}

// New creates an engine bound to m. The engine takes ownership of m; callers
// must not mutate it directly afterward.
func New(m *maze.Maze, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		rng:            rng,
		maze:           m,
		players:        make(map[string]*PlayerState),
		brokenWalls:    make(map[maze.Pos]time.Time),
		traps:          make(map[maze.Pos]time.Time),
		nextFinishRank: 1,
	}
}

// Maze returns the engine's maze. The returned pointer must be treated as
// read-only by callers outside the game package.
func (e *Engine) Maze() *maze.Maze { return e.maze }

// AddPlayer creates runtime state for playerId at START, with an empty
// inventory and zero coins, and returns it. It fails if playerId already
// has runtime state.
func (e *Engine) AddPlayer(playerID string) (*PlayerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.players[playerID]; ok {
		return nil, newErr(ErrInvalidTarget, "player already present")
	}
	p := newPlayerState(playerID, e.maze.Start)
	e.players[playerID] = p
	e.order = append(e.order, playerID)
	return p, nil
}

// RemovePlayer discards playerId's runtime state. It is not an error to
// remove a player that was never added.
func (e *Engine) RemovePlayer(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.players, playerID)
	for i, id := range e.order {
		if id == playerID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns a shallow copy of playerId's current state and whether
// the player exists.
func (e *Engine) Snapshot(playerID string) (PlayerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[playerID]
	if !ok {
		return PlayerState{}, false
	}
	return *p, true
}

// AllPlayerIDs returns every player with runtime state, in addition order.
func (e *Engine) AllPlayerIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// MoveResult reports the side effects of a successful Move or ApplyMove:
// whether the step auto-collected a coin sitting on the landed cell, and
// whether it was the step that carried the player onto END for the first
// time.
type MoveResult struct {
	CoinCollected bool
	CoinIndex     int
	ReachedGoal   bool
	FinishRank    int
	Bonus         int
}

// Move attempts to step playerId one unit of move-speed in direction.
// Horizontal directions are resolved against the player's yaw; Up and Down
// only succeed when the player currently stands on the matching half of a
// stair pair.
func (e *Engine) Move(playerID string, dir Direction) (MoveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return MoveResult{}, newErr(ErrPlayerNotFound, "player not found")
	}
	if !p.Alive {
		return MoveResult{}, newErr(ErrInvalidMove, "player is not alive")
	}

	now := time.Now()
	candidate, ok := e.resolveMove(p, dir, now)
	if !ok {
		return MoveResult{}, newErr(ErrInvalidMove, "move is not possible from the current position")
	}

	cell := candidate.Cell()
	if e.maze.Grid.Blocking(cell) {
		return MoveResult{}, newErr(ErrInvalidMove, "destination cell is blocked")
	}

	p.Pos = candidate
	return e.settleMoveLocked(p), nil
}

// settleMoveLocked applies the auto-collect and goal-check side effects
// common to every successful position update. Callers must already hold
// e.mu.
func (e *Engine) settleMoveLocked(p *PlayerState) MoveResult {
	var res MoveResult
	if idx, collected := e.collectCoinAtLocked(p); collected {
		res.CoinCollected = true
		res.CoinIndex = idx
	}
	rank, bonus, justReached := e.checkGoalLocked(p)
	res.ReachedGoal = justReached
	res.FinishRank = rank
	res.Bonus = bonus
	return res
}

// collectCoinAtLocked auto-collects whichever coin sits at p's current
// cell, mirroring a player walking onto a COIN tile. Callers must already
// hold e.mu.
func (e *Engine) collectCoinAtLocked(p *PlayerState) (int, bool) {
	idx, ok := e.maze.Coins.IndexAt(p.Pos.Cell())
	if !ok {
		return 0, false
	}
	if !e.maze.Coins.Collect(idx) {
		return 0, false
	}
	p.Coins++
	return idx, true
}

// resolveMove computes the candidate position for dir from the player's
// current yaw. ok is false when dir is a vertical move attempted off a
// stair cell. Forward/Backward move along the yaw vector; Left/Right
// strafe perpendicular to it.
func (e *Engine) resolveMove(p *PlayerState, dir Direction, now time.Time) (Vec3, bool) {
	switch dir {
	case Up, Down:
		cur := p.Pos.Cell()
		cell := e.maze.Grid.At(cur)
		wantUp := dir == Up
		if (wantUp && cell != maze.StairUp) || (!wantUp && cell != maze.StairDown) {
			return Vec3{}, false
		}
		partner, ok := e.maze.Grid.StairPartner(cur)
		if !ok {
			return Vec3{}, false
		}
		return vecFromPos(partner), true
	case Forward, Backward, Left, Right:
		speed := e.speedAtLocked(p, now)
		heading := p.Yaw
		switch dir {
		case Backward:
			heading += math.Pi
		case Left:
			heading -= math.Pi / 2
		case Right:
			heading += math.Pi / 2
		}
		dx := math.Sin(heading) * speed
		dy := math.Cos(heading) * speed
		return Vec3{X: p.Pos.X + dx, Y: p.Pos.Y + dy, Z: p.Pos.Z}, true
	default:
		return Vec3{}, false
	}
}

// speedAtLocked returns the player's current move speed: doubled under an
// active speed boost, halved while standing on a live slow trap.
func (e *Engine) speedAtLocked(p *PlayerState, now time.Time) float64 {
	speed := baseMoveSpeed
	if p.speedBoosted(now) {
		speed = boostMoveSpeed
	}
	if placedAt, trapped := e.traps[p.Pos.Cell()]; trapped && now.Sub(placedAt) < slowTrapDuration {
		speed *= slowTrapPenalty
	}
	return speed
}

// ApplyMove is the authoritative path for a client-submitted position and
// yaw: it accepts the submission only if it lands within a single move
// step's distance of the player's last accepted position and on a
// non-blocking cell, otherwise the player's position is left untouched so
// the caller can re-send the last validated position back to the client.
func (e *Engine) ApplyMove(playerID string, pos Vec3, yaw float64) (MoveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return MoveResult{}, newErr(ErrPlayerNotFound, "player not found")
	}
	if !p.Alive {
		return MoveResult{}, newErr(ErrInvalidMove, "player is not alive")
	}

	maxStep := e.speedAtLocked(p, time.Now())
	if distance(p.Pos, pos) > maxStep+1e-6 {
		return MoveResult{}, newErr(ErrInvalidMove, "submitted position exceeds reachable distance")
	}
	cell := pos.Cell()
	if !e.maze.Grid.InBounds(cell) || e.maze.Grid.Blocking(cell) {
		return MoveResult{}, newErr(ErrInvalidMove, "submitted position is blocked or out of bounds")
	}

	p.Pos = pos
	p.Yaw = yaw
	return e.settleMoveLocked(p), nil
}

func distance(a, b Vec3) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// CollectCoin marks coin index collected and credits the player. Fails on
// an invalid index or one already collected, matching the reference
// pickup logic's precondition exactly.
func (e *Engine) CollectCoin(playerID string, coinIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return newErr(ErrPlayerNotFound, "player not found")
	}
	if !e.maze.Coins.Collect(coinIndex) {
		return newErr(ErrInvalidTarget, "coin already collected or invalid index")
	}
	p.Coins++
	return nil
}

// PurchaseItem deducts the item's price from playerId's coins and adds one
// to their inventory. Fails with InsufficientCoins if the player cannot
// afford it.
func (e *Engine) PurchaseItem(playerID string, kind ItemKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return newErr(ErrPlayerNotFound, "player not found")
	}
	price, purchasable := Price(kind)
	if !purchasable {
		return newErr(ErrInvalidTarget, "item is not purchasable")
	}
	if p.Coins < price {
		return newErr(ErrInsufficientCoins, "not enough coins")
	}
	p.Coins -= price
	p.Inventory[kind]++
	return nil
}

// UseItem consumes one unit of kind from playerId's inventory and applies
// its effect. targetID names the other player affected by KILL_SWORD or
// SWAP_ITEM; targetCell names the cell affected by HAMMER or SLOW_TRAP.
// Both are ignored by kinds that don't use them.
func (e *Engine) UseItem(playerID string, kind ItemKind, targetID string, targetCell *maze.Pos) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return newErr(ErrPlayerNotFound, "player not found")
	}
	if p.Inventory[kind] <= 0 {
		return newErr(ErrItemNotOwned, "item not owned")
	}

	now := time.Now()
	switch kind {
	case SpeedPotion:
		p.SpeedBoostUntil = now.Add(speedBoostDuration)
	case Compass:
		p.HasCompass = true
	case Hammer:
		if targetCell == nil {
			return newErr(ErrInvalidTarget, "hammer requires a target cell")
		}
		if err := e.breakWallAtLocked(*targetCell); err != nil {
			return err
		}
	case KillSword:
		target, ok := e.players[targetID]
		if !ok {
			return newErr(ErrInvalidTarget, "target player not found")
		}
		if target.PlayerID == p.PlayerID {
			return newErr(ErrInvalidTarget, "cannot target self")
		}
		e.respawnLocked(target)
	case SlowTrap:
		if targetCell == nil {
			return newErr(ErrInvalidTarget, "slow trap requires a target cell")
		}
		e.traps[*targetCell] = now
	case SwapItem:
		target, ok := e.players[targetID]
		if !ok {
			return newErr(ErrInvalidTarget, "target player not found")
		}
		if target.PlayerID == p.PlayerID {
			return newErr(ErrInvalidTarget, "cannot target self")
		}
		p.Pos, target.Pos = target.Pos, p.Pos
	default:
		return newErr(ErrInvalidTarget, "item kind is not usable")
	}

	p.Inventory[kind]--
	return nil
}

// breakWallAtLocked converts target into a path if it is in-bounds and
// currently a wall, scheduling its repair after wallRepairDelay.
func (e *Engine) breakWallAtLocked(target maze.Pos) error {
	if !e.maze.Grid.InBounds(target) || e.maze.Grid.At(target) != maze.Wall {
		return newErr(ErrInvalidTarget, "target cell is not a breakable wall")
	}
	e.maze.Grid.Set(target, maze.Path)
	e.brokenWalls[target] = time.Now().Add(wallRepairDelay)
	return nil
}

// checkGoalLocked marks p as having reached the goal the first time it
// steps onto the END cell, assigning the next finish rank and its coin
// reward. Later arrivals on the same cell are no-ops. Returns the finish
// rank, the coin bonus awarded, and whether this call is what reached it.
func (e *Engine) checkGoalLocked(p *PlayerState) (rank, bonus int, justReached bool) {
	if p.ReachedGoal {
		return p.FinishRank, 0, false
	}
	if p.Pos.Cell() != e.maze.End {
		return 0, 0, false
	}
	p.ReachedGoal = true
	p.FinishRank = e.nextFinishRank
	e.nextFinishRank++
	e.finishedCount++
	bonus = coinReward(p.FinishRank)
	p.Coins += bonus
	return p.FinishRank, bonus, true
}

// coinReward is the reference reward curve: the first finisher earns 60
// coins, decreasing by one per rank thereafter, floored at zero.
func coinReward(rank int) int {
	reward := 61 - rank
	if reward < 0 {
		return 0
	}
	return reward
}

// Tick expires ephemeral effects that have run past their deadline as of
// now: speed boosts, slow traps, and broken walls. Callers drive this from
// a periodic loop; it is safe to call at any cadence.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range e.players {
		if !p.SpeedBoostUntil.IsZero() && now.After(p.SpeedBoostUntil) {
			p.SpeedBoostUntil = time.Time{}
		}
	}
	for pos, placedAt := range e.traps {
		if now.Sub(placedAt) >= slowTrapDuration {
			delete(e.traps, pos)
		}
	}
	for pos, repairAt := range e.brokenWalls {
		if now.After(repairAt) || now.Equal(repairAt) {
			e.maze.Grid.Set(pos, maze.Wall)
			delete(e.brokenWalls, pos)
		}
	}
}

// --- operator-privileged operations -----------------------------------

// Give grants qty units of kind to playerId's inventory, or qty coins when
// kind is CoinItem.
func (e *Engine) Give(playerID string, kind ItemKind, qty int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[playerID]
	if !ok {
		return newErr(ErrPlayerNotFound, "player not found")
	}
	if !ValidItemKind(kind) {
		return newErr(ErrInvalidTarget, "unknown item kind")
	}
	if kind == CoinItem {
		p.Coins += qty
		return nil
	}
	p.Inventory[kind] += qty
	return nil
}

// Teleport moves playerId directly to pos, bypassing collision and stair
// checks, and re-evaluates the goal condition at the destination.
func (e *Engine) Teleport(playerID string, pos maze.Pos) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[playerID]
	if !ok {
		return newErr(ErrPlayerNotFound, "player not found")
	}
	if !e.maze.Grid.InBounds(pos) {
		return newErr(ErrInvalidTarget, "position out of bounds")
	}
	p.Pos = vecFromPos(pos)
	e.checkGoalLocked(p)
	return nil
}

// FinishedCount returns how many players have reached the goal so far
// this match.
func (e *Engine) FinishedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finishedCount
}

// Kill marks playerId dead and immediately respawns them at a random spawn
// point, per the instant-respawn resolution of KILL_SWORD.
func (e *Engine) Kill(playerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[playerID]
	if !ok {
		return newErr(ErrPlayerNotFound, "player not found")
	}
	e.respawnLocked(p)
	return nil
}

// respawnLocked marks p alive again at a fresh random spawn point. Coins,
// inventory, and finish state are untouched: death is a position reset,
// not a match reset.
func (e *Engine) respawnLocked(p *PlayerState) {
	p.Alive = true
	p.Pos = vecFromPos(e.randomSpawnLocked())
	p.SpeedBoostUntil = time.Time{}
	p.HasCompass = false
}

// SetCoins sets playerId's coin balance directly.
func (e *Engine) SetCoins(playerID string, coins int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[playerID]
	if !ok {
		return newErr(ErrPlayerNotFound, "player not found")
	}
	p.Coins = coins
	return nil
}

// Reset restores match state for a fresh round: every player returns to
// START, alive, with cleared compass/boost/goal/rank state; every coin is
// restored; every broken wall is repaired and every trap cleared. Coins
// and inventory already earned persist across the reset.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for pos := range e.brokenWalls {
		e.maze.Grid.Set(pos, maze.Wall)
	}
	e.brokenWalls = make(map[maze.Pos]time.Time)
	e.traps = make(map[maze.Pos]time.Time)
	e.maze.Coins.Reset()

	for _, p := range e.players {
		p.Alive = true
		p.Pos = vecFromPos(e.maze.Start)
		p.Yaw = 0
		p.HasCompass = false
		p.SpeedBoostUntil = time.Time{}
		p.ReachedGoal = false
		p.FinishRank = 0
	}
	e.nextFinishRank = 1
	e.finishedCount = 0
}

// randomSpawnLocked picks a uniformly random non-blocking cell on layer 0.
// Callers must already hold e.mu.
func (e *Engine) randomSpawnLocked() maze.Pos {
	g := e.maze.Grid
	for attempts := 0; attempts < 10000; attempts++ {
		p := maze.Pos{X: e.rng.Intn(g.Width), Y: e.rng.Intn(g.Height), Z: 0}
		if !g.Blocking(p) {
			return p
		}
	}
	return e.maze.Start
}
