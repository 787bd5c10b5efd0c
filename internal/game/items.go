package game

// ItemKind is one of the closed set of purchasable/usable item kinds.
type ItemKind string

const (
	SpeedPotion ItemKind = "SPEED_POTION"
	Compass     ItemKind = "COMPASS"
	Hammer      ItemKind = "HAMMER"
	KillSword   ItemKind = "KILL_SWORD"
	SlowTrap    ItemKind = "SLOW_TRAP"
	SwapItem    ItemKind = "SWAP_ITEM"
	// CoinItem is a pseudo-kind usable only through the operator's Give path.
	CoinItem ItemKind = "COIN"
)

// itemPrices holds the this-match coin cost of every purchasable item.
// CoinItem has no price: it is never purchased, only granted.
var itemPrices = map[ItemKind]int{
	SpeedPotion: 20,
	Compass:     25,
	Hammer:      50,
	KillSword:   50,
	SlowTrap:    30,
	SwapItem:    60,
}

// Price returns the this-match coin cost of kind and whether kind is
// purchasable at all.
func Price(kind ItemKind) (int, bool) {
	p, ok := itemPrices[kind]
	return p, ok
}

// ValidItemKind reports whether kind is one of the closed set, including
// the operator-only CoinItem pseudo-kind.
func ValidItemKind(kind ItemKind) bool {
	switch kind {
	case SpeedPotion, Compass, Hammer, KillSword, SlowTrap, SwapItem, CoinItem:
		return true
	default:
		return false
	}
}
