// internal/game/tiles.go
//
// Tile pouch construction.
// The pouch is the standard 100-tile English letter distribution,
// blanks included as "_". A fresh pouch is shuffled with the rng the
// registry was constructed with, so tests can seed it deterministically.

package game

import "math/rand"

// letterCounts is the standard 100-tile distribution.
var letterCounts = []struct {
	letter string
	count  int
}{
	{"A", 9}, {"B", 2}, {"C", 2}, {"D", 4}, {"E", 12}, {"F", 2},
	{"G", 3}, {"H", 2}, {"I", 9}, {"J", 1}, {"K", 1}, {"L", 4},
	{"M", 2}, {"N", 6}, {"O", 8}, {"P", 2}, {"Q", 1}, {"R", 6},
	{"S", 4}, {"T", 6}, {"U", 4}, {"V", 2}, {"W", 2}, {"X", 1},
	{"Y", 2}, {"Z", 1}, {"_", 2},
}

// PouchSize is the initial tile count of every game.
const PouchSize = 100

// newPouch builds a full shuffled pouch.
func newPouch(rng *rand.Rand) []string {
	pouch := make([]string, 0, PouchSize)
	for _, lc := range letterCounts {
		for i := 0; i < lc.count; i++ {
			pouch = append(pouch, lc.letter)
		}
	}
	rng.Shuffle(len(pouch), func(i, j int) {
		pouch[i], pouch[j] = pouch[j], pouch[i]
	})
	return pouch
}
