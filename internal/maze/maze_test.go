package maze

import (
	"math/rand"
	"testing"
)

func TestGenerateInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	m := Generate(20, 20, 3, rng)

	if m.Grid.At(m.Start) != Start {
		t.Fatalf("start cell is not START")
	}
	if m.Start.Z != 0 {
		t.Fatalf("start must be on layer 0, got z=%d", m.Start.Z)
	}
	if m.Grid.At(m.End) != End {
		t.Fatalf("end cell is not END")
	}

	// outer shell of every layer is WALL
	for z := 0; z < m.Grid.Layers; z++ {
		for x := 0; x < m.Grid.Width; x++ {
			for _, y := range []int{0, m.Grid.Height - 1} {
				if c := m.Grid.At(Pos{X: x, Y: y, Z: z}); c != Wall {
					t.Fatalf("expected outer shell wall at (%d,%d,%d), got %v", x, y, z, c)
				}
			}
		}
	}

	if n := m.Coins.Len(); n < MinCoins || n > MaxCoins {
		t.Fatalf("coin count %d out of range [%d,%d]", n, MinCoins, MaxCoins)
	}
	for _, p := range m.Coins.Positions() {
		if p == m.Start || p == m.End {
			t.Fatalf("coin placed on start/end cell: %v", p)
		}
		if m.Grid.Blocking(p) {
			t.Fatalf("coin placed on blocking cell: %v", p)
		}
	}
}

func TestStairPairing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := Generate(15, 15, 4, rng)

	for z := 0; z < m.Grid.Layers-1; z++ {
		found := false
		for y := 0; y < m.Grid.Height; y++ {
			for x := 0; x < m.Grid.Width; x++ {
				p := Pos{X: x, Y: y, Z: z}
				if m.Grid.At(p) == StairUp {
					partner, ok := m.Grid.StairPartner(p)
					if !ok {
						t.Fatalf("stair up at %v reports no partner", p)
					}
					if m.Grid.At(partner) != StairDown || partner.Z != z+1 {
						t.Fatalf("stair up at %v not paired correctly with %v", p, partner)
					}
					found = true
				}
			}
		}
		if !found {
			t.Fatalf("no stair pair found between layer %d and %d", z, z+1)
		}
	}
}

func TestCoinPoolCollectIdempotent(t *testing.T) {
	cp := NewCoinPool([]Pos{{X: 1, Y: 1, Z: 0}, {X: 2, Y: 2, Z: 0}})
	if !cp.Collect(0) {
		t.Fatalf("expected first collect to succeed")
	}
	if cp.Collect(0) {
		t.Fatalf("expected second collect of same coin to fail")
	}
	if cp.Remaining() != 1 {
		t.Fatalf("expected 1 remaining coin, got %d", cp.Remaining())
	}
	if cp.Collect(99) {
		t.Fatalf("expected out-of-range collect to fail")
	}
}
