package synth

import "math/rand"

// insertAtRandomIndex places item at a uniformly random position in
// [0, len(list)], returning the grown slice. Insertion rather than
// append-then-swap keeps every final position equally likely.
func insertAtRandomIndex(rnd *rand.Rand, list []string, item string) []string {
	i := rnd.Intn(len(list) + 1)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = item
	return list
}
