package game

import (
	"math/rand"
	"testing"
	"time"

	"mazegame/server/internal/maze"
)

func newTestEngine() *Engine {
	rng := rand.New(rand.NewSource(99))
	m := maze.Generate(20, 20, 3, rng)
	return New(m, rng)
}

func TestCollectCoinIdempotent(t *testing.T) {
	e := newTestEngine()
	p, _ := e.AddPlayer("PLAYER_000001")

	coins := e.maze.Coins.Positions()
	if len(coins) == 0 {
		t.Fatalf("maze has no coins to test against")
	}
	if err := e.Teleport(p.PlayerID, coins[0]); err != nil {
		t.Fatalf("teleport failed: %v", err)
	}

	if err := e.CollectCoin(p.PlayerID, 0); err != nil {
		t.Fatalf("first collect failed: %v", err)
	}
	snap, _ := e.Snapshot(p.PlayerID)
	if snap.Coins != 1 {
		t.Fatalf("expected 1 coin after first collect, got %d", snap.Coins)
	}

	err := e.CollectCoin(p.PlayerID, 0)
	if err == nil {
		t.Fatalf("expected second collect of an already-collected coin to fail")
	}
	gameErr, ok := err.(*Error)
	if !ok || gameErr.Kind != ErrInvalidTarget {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
	snap, _ = e.Snapshot(p.PlayerID)
	if snap.Coins != 1 {
		t.Fatalf("expected coin count unchanged by repeat collect, got %d", snap.Coins)
	}

	total := e.maze.Coins.Len()
	remaining := e.maze.Coins.Remaining()
	if remaining != total-1 {
		t.Fatalf("remainingCoins + collected invariant violated: remaining=%d total=%d", remaining, total)
	}
}

func TestPurchaseItemInsufficientCoins(t *testing.T) {
	e := newTestEngine()
	p, _ := e.AddPlayer("PLAYER_000002")

	err := e.PurchaseItem(p.PlayerID, Compass)
	if err == nil {
		t.Fatalf("expected purchase to fail with 0 coins")
	}
	gameErr, ok := err.(*Error)
	if !ok || gameErr.Kind != ErrInsufficientCoins {
		t.Fatalf("expected ErrInsufficientCoins, got %v", err)
	}

	if err := e.SetCoins(p.PlayerID, 25); err != nil {
		t.Fatalf("SetCoins failed: %v", err)
	}
	if err := e.PurchaseItem(p.PlayerID, Compass); err != nil {
		t.Fatalf("expected purchase to succeed, got %v", err)
	}
	snap, _ := e.Snapshot(p.PlayerID)
	if snap.Coins != 0 {
		t.Fatalf("expected 0 coins after spending 25, got %d", snap.Coins)
	}
	if snap.Inventory[Compass] != 1 {
		t.Fatalf("expected 1 compass, got %d", snap.Inventory[Compass])
	}
}

func TestUseItemNotOwned(t *testing.T) {
	e := newTestEngine()
	p, _ := e.AddPlayer("PLAYER_000003")

	err := e.UseItem(p.PlayerID, SpeedPotion, "", nil)
	if err == nil {
		t.Fatalf("expected error using an item with none in inventory")
	}
	gameErr, ok := err.(*Error)
	if !ok || gameErr.Kind != ErrItemNotOwned {
		t.Fatalf("expected ErrItemNotOwned, got %v", err)
	}
}

func TestMoveNeverLandsOnBlockingCell(t *testing.T) {
	e := newTestEngine()
	p, _ := e.AddPlayer("PLAYER_000004")

	for i := 0; i < 500; i++ {
		_, _ = e.Move(p.PlayerID, Direction(i%6))
		snap, _ := e.Snapshot(p.PlayerID)
		if e.maze.Grid.Blocking(snap.Pos.Cell()) {
			t.Fatalf("player landed on a blocking cell at %v", snap.Pos.Cell())
		}
	}
}

func TestMoveVerticalOutsideStairFails(t *testing.T) {
	e := newTestEngine()
	p, _ := e.AddPlayer("PLAYER_000005")

	// Place the player on a plain path cell, not a stair.
	for y := 1; y < e.maze.Grid.Height-1; y++ {
		for x := 1; x < e.maze.Grid.Width-1; x++ {
			pos := maze.Pos{X: x, Y: y, Z: 0}
			if e.maze.Grid.At(pos) == maze.Path {
				if err := e.Teleport(p.PlayerID, pos); err != nil {
					t.Fatalf("teleport failed: %v", err)
				}
				goto placed
			}
		}
	}
placed:
	_, err := e.Move(p.PlayerID, Up)
	if err == nil {
		t.Fatalf("expected vertical move off a stair cell to fail")
	}
	gameErr, ok := err.(*Error)
	if !ok || gameErr.Kind != ErrInvalidMove {
		t.Fatalf("expected ErrInvalidMove, got %v", err)
	}
}

func TestFinishRankContiguous(t *testing.T) {
	e := newTestEngine()
	ids := []string{"PLAYER_A", "PLAYER_B", "PLAYER_C"}
	for _, id := range ids {
		e.AddPlayer(id)
	}

	for i, id := range ids {
		if err := e.Teleport(id, e.maze.End); err != nil {
			t.Fatalf("teleport failed: %v", err)
		}
		snap, _ := e.Snapshot(id)
		if snap.FinishRank != i+1 {
			t.Fatalf("expected contiguous finish rank %d, got %d", i+1, snap.FinishRank)
		}
		want := coinReward(i + 1)
		if snap.Coins != want {
			t.Fatalf("expected coin reward %d for rank %d, got %d", want, i+1, snap.Coins)
		}
	}

	// Re-arriving at END must not re-rank or re-reward.
	snapBefore, _ := e.Snapshot(ids[0])
	if err := e.Teleport(ids[0], e.maze.End); err != nil {
		t.Fatalf("teleport failed: %v", err)
	}
	snapAfter, _ := e.Snapshot(ids[0])
	if snapAfter.FinishRank != snapBefore.FinishRank || snapAfter.Coins != snapBefore.Coins {
		t.Fatalf("re-reaching the goal mutated finish state: before=%+v after=%+v", snapBefore, snapAfter)
	}
}

func TestHammerBreaksThenRepairsWall(t *testing.T) {
	e := newTestEngine()
	p, _ := e.AddPlayer("PLAYER_000006")

	var wallPos maze.Pos
	var playerPos maze.Pos
	found := false
outer:
	for y := 1; y < e.maze.Grid.Height-1; y++ {
		for x := 1; x < e.maze.Grid.Width-1; x++ {
			pos := maze.Pos{X: x, Y: y, Z: 0}
			if e.maze.Grid.At(pos) != maze.Path {
				continue
			}
			right := maze.Pos{X: x + 1, Y: y, Z: 0}
			if e.maze.Grid.InBounds(right) && e.maze.Grid.At(right) == maze.Wall {
				wallPos, playerPos, found = right, pos, true
				break outer
			}
		}
	}
	if !found {
		t.Skip("no adjacent wall found in generated maze to test against")
	}

	if err := e.Teleport(p.PlayerID, playerPos); err != nil {
		t.Fatalf("teleport failed: %v", err)
	}
	if err := e.Give(p.PlayerID, Hammer, 1); err != nil {
		t.Fatalf("give failed: %v", err)
	}
	if err := e.UseItem(p.PlayerID, Hammer, "", &wallPos); err != nil {
		t.Fatalf("use hammer failed: %v", err)
	}
	if e.maze.Grid.At(wallPos) != maze.Path {
		t.Fatalf("expected wall to be broken into a path")
	}

	e.Tick(time.Now().Add(wallRepairDelay + time.Second))
	if e.maze.Grid.At(wallPos) != maze.Wall {
		t.Fatalf("expected wall to have repaired after %v", wallRepairDelay)
	}
}

func TestInventoryNeverNegative(t *testing.T) {
	e := newTestEngine()
	p, _ := e.AddPlayer("PLAYER_000007")
	if err := e.Give(p.PlayerID, SpeedPotion, 1); err != nil {
		t.Fatalf("give failed: %v", err)
	}
	if err := e.UseItem(p.PlayerID, SpeedPotion, "", nil); err != nil {
		t.Fatalf("use failed: %v", err)
	}
	snap, _ := e.Snapshot(p.PlayerID)
	if snap.Inventory[SpeedPotion] != 0 {
		t.Fatalf("expected 0 potions remaining, got %d", snap.Inventory[SpeedPotion])
	}
	err := e.UseItem(p.PlayerID, SpeedPotion, "", nil)
	if err == nil {
		t.Fatalf("expected using a depleted item to fail rather than go negative")
	}
	snap, _ = e.Snapshot(p.PlayerID)
	if snap.Inventory[SpeedPotion] < 0 {
		t.Fatalf("inventory went negative: %d", snap.Inventory[SpeedPotion])
	}
}

func TestResetPreservesCoinsRestoresWorld(t *testing.T) {
	e := newTestEngine()
	p, _ := e.AddPlayer("PLAYER_000008")
	if err := e.SetCoins(p.PlayerID, 42); err != nil {
		t.Fatalf("set coins failed: %v", err)
	}
	if err := e.Teleport(p.PlayerID, e.maze.End); err != nil {
		t.Fatalf("teleport failed: %v", err)
	}
	_ = e.maze.Coins.Collect(0)

	e.Reset()

	snap, _ := e.Snapshot(p.PlayerID)
	if snap.Coins < 42 {
		t.Fatalf("expected earned coins to persist across reset, got %d", snap.Coins)
	}
	if snap.ReachedGoal || snap.FinishRank != 0 {
		t.Fatalf("expected finish state cleared by reset, got %+v", snap)
	}
	if e.maze.Coins.Remaining() != e.maze.Coins.Len() {
		t.Fatalf("expected all coins restored by reset")
	}
}

func TestHammerRejectsNonWallTarget(t *testing.T) {
	e := newTestEngine()
	p, _ := e.AddPlayer("PLAYER_000009")
	if err := e.Give(p.PlayerID, Hammer, 1); err != nil {
		t.Fatalf("give failed: %v", err)
	}
	pathCell := p.Pos.Cell() // the player's own spawn cell is never a wall
	err := e.UseItem(p.PlayerID, Hammer, "", &pathCell)
	if err == nil {
		t.Fatalf("expected hammer against a non-wall cell to fail")
	}
	gameErr, ok := err.(*Error)
	if !ok || gameErr.Kind != ErrInvalidTarget {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
	snap, _ := e.Snapshot(p.PlayerID)
	if snap.Inventory[Hammer] != 1 {
		t.Fatalf("expected hammer to remain in inventory after a failed use, got %d", snap.Inventory[Hammer])
	}
}

func TestMoveAutoCollectsCoinOnLandedCell(t *testing.T) {
	e := newTestEngine()
	p, _ := e.AddPlayer("PLAYER_000010")

	coins := e.maze.Coins.Positions()
	if len(coins) == 0 {
		t.Fatalf("maze has no coins to test against")
	}
	if err := e.Teleport(p.PlayerID, coins[0]); err != nil {
		t.Fatalf("teleport failed: %v", err)
	}

	result, err := e.ApplyMove(p.PlayerID, p.Pos, p.Yaw)
	if err != nil {
		t.Fatalf("apply move failed: %v", err)
	}
	if !result.CoinCollected || result.CoinIndex != 0 {
		t.Fatalf("expected move onto a coin cell to auto-collect index 0, got %+v", result)
	}
	snap, _ := e.Snapshot(p.PlayerID)
	if snap.Coins != 1 {
		t.Fatalf("expected 1 coin credited by auto-collect, got %d", snap.Coins)
	}
}

func TestApplyMoveReportsGoalBonusAndFinishedCount(t *testing.T) {
	e := newTestEngine()
	p, _ := e.AddPlayer("PLAYER_000011")

	// Place the player on END and submit that same position, so the
	// zero-distance submission passes ApplyMove's own distance check.
	p.Pos = vecFromPos(e.maze.End)
	result, err := e.ApplyMove(p.PlayerID, p.Pos, p.Yaw)
	if err != nil {
		t.Fatalf("apply move failed: %v", err)
	}
	if !result.ReachedGoal || result.FinishRank != 1 || result.Bonus != coinReward(1) {
		t.Fatalf("expected first-place goal result, got %+v", result)
	}
	if e.FinishedCount() != 1 {
		t.Fatalf("expected finished count 1, got %d", e.FinishedCount())
	}
}

func TestKillSwordRespawnClearsCompassAndBoost(t *testing.T) {
	e := newTestEngine()
	attacker, _ := e.AddPlayer("PLAYER_000012")
	victim, _ := e.AddPlayer("PLAYER_000013")

	if err := e.Give(attacker.PlayerID, KillSword, 1); err != nil {
		t.Fatalf("give failed: %v", err)
	}
	if err := e.Give(victim.PlayerID, Compass, 1); err != nil {
		t.Fatalf("give failed: %v", err)
	}
	if err := e.UseItem(victim.PlayerID, Compass, "", nil); err != nil {
		t.Fatalf("use compass failed: %v", err)
	}
	if err := e.UseItem(attacker.PlayerID, KillSword, victim.PlayerID, nil); err != nil {
		t.Fatalf("use kill sword failed: %v", err)
	}
	snap, _ := e.Snapshot(victim.PlayerID)
	if snap.HasCompass {
		t.Fatalf("expected compass cleared by respawn")
	}
	if !snap.Alive {
		t.Fatalf("expected victim alive again after instant respawn")
	}
}
