package session

import "math/rand"

// NewPresentationOrder returns a uniform random permutation of [0,n).
// order[slot] is the canonical question index shown at that slot. Each
// call draws an independent permutation, so two students taking the
// same quiz see the questions in different order.
func NewPresentationOrder(n int, rnd *rand.Rand) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// Fisher-Yates
	for i := n - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}
