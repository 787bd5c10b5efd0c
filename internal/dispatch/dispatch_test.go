package dispatch

import (
	"testing"

	"mazegame/server/internal/game"
)

func TestCapCodepoints(t *testing.T) {
	short := "hello"
	if got := capCodepoints(short, 200); got != short {
		t.Fatalf("expected short string unchanged, got %q", got)
	}

	long := make([]rune, 250)
	for i := range long {
		long[i] = 'a'
	}
	capped := capCodepoints(string(long), chatMessageMaxCodepoints)
	if len([]rune(capped)) != chatMessageMaxCodepoints {
		t.Fatalf("expected cap at %d codepoints, got %d", chatMessageMaxCodepoints, len([]rune(capped)))
	}
}

func TestSnapshotToPlayerData(t *testing.T) {
	snap := game.PlayerState{
		PlayerID:   "PLAYER_000001",
		Pos:        game.Vec3{X: 1, Y: 2, Z: 0},
		Coins:      5,
		Inventory:  map[game.ItemKind]int{game.Compass: 1},
		HasCompass: true,
	}
	out := snapshotToPlayerData(snap)
	if out.PlayerID != snap.PlayerID || out.Coins != 5 || !out.HasCompass {
		t.Fatalf("unexpected payload: %+v", out)
	}
	if out.Inventory["compass"] != 1 {
		t.Fatalf("expected wire-form compass key in inventory, got %+v", out.Inventory)
	}
}
