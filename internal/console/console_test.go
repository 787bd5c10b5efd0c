package console

import (
	"math/rand"
	"testing"

	"mazegame/server/internal/game"
	"mazegame/server/internal/maze"
	"mazegame/server/internal/registry"
)

func newTestConsole() (*Console, *game.Engine, *registry.Registry) {
	rng := rand.New(rand.NewSource(5))
	m := maze.Generate(15, 15, 2, rng)
	eng := game.New(m, rng)
	reg := registry.New(rng)
	c := New(eng, reg, nil, nil, nil)
	return c, eng, reg
}

func TestTokenizeQuotedSpan(t *testing.T) {
	tokens := tokenize(`system "server restarting in 5m"`)
	want := []string{"system", "server restarting in 5m"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %v, got %v", want, tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, tokens)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	c, _, _ := newTestConsole()
	res := c.Execute("frobnicate", "console")
	if res.Success {
		t.Fatalf("expected unknown command to fail")
	}
}

func TestPrivilegeGating(t *testing.T) {
	c, _, _ := newTestConsole()
	res := c.Execute("clear", "anonymous")
	if res.Success {
		t.Fatalf("expected super-admin-only command to fail for an unprivileged executor")
	}
	res = c.Execute("clear", "console")
	if !res.Success {
		t.Fatalf("expected console executor to have super-admin privilege, got %q", res.Message)
	}
}

func TestGiveAndCoinCommands(t *testing.T) {
	c, eng, _ := newTestConsole()
	eng.AddPlayer("PLAYER_000001")

	res := c.Execute("coin PLAYER_000001 50", "console")
	if !res.Success {
		t.Fatalf("expected coin command to succeed, got %q", res.Message)
	}
	snap, _ := eng.Snapshot("PLAYER_000001")
	if snap.Coins != 50 {
		t.Fatalf("expected 50 coins, got %d", snap.Coins)
	}

	res = c.Execute("give PLAYER_000001 compass 2", "console")
	if !res.Success {
		t.Fatalf("expected give command to succeed, got %q", res.Message)
	}
	snap, _ = eng.Snapshot("PLAYER_000001")
	if snap.Inventory[game.Compass] != 2 {
		t.Fatalf("expected 2 compasses, got %d", snap.Inventory[game.Compass])
	}
}

func TestHistoryBounded(t *testing.T) {
	c, _, _ := newTestConsole()
	for i := 0; i < historyCap+10; i++ {
		c.Execute("help", "console")
	}
	if len(c.History()) != historyCap {
		t.Fatalf("expected history capped at %d, got %d", historyCap, len(c.History()))
	}
}
