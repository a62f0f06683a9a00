package player

import (
	"math/rand/v2"
)

// shuffleSession holds the traversal state for one shuffle cycle: a randomly
// ordered queue of not-yet-visited playlist indices excluding the current
// one, and a stack of visited indices.
//
// A nil upcoming queue means no session has been built yet; an empty one
// means the current cycle is exhausted. The distinction matters: a playlist
// sync must not restart an exhausted cycle, only next does that.
type shuffleSession struct {
	upcoming []int
	history  []int
}

func (sh *shuffleSession) active() bool {
	return sh.upcoming != nil
}

func (sh *shuffleSession) reset() {
	sh.upcoming = nil
	sh.history = nil
}

// build starts a fresh cycle over all valid indices except the current one.
func (sh *shuffleSession) build(current, length int) {
	sh.upcoming = make([]int, 0, length)
	for i := 0; i < length; i++ {
		if i != current {
			sh.upcoming = append(sh.upcoming, i)
		}
	}
	rand.Shuffle(len(sh.upcoming), func(i, j int) {
		sh.upcoming[i], sh.upcoming[j] = sh.upcoming[j], sh.upcoming[i]
	})
}

// next pops the next index of the cycle, pushing the departed current index
// onto the history. An exhausted cycle restarts with a fresh shuffle over
// all indices except the current one. Returns false only for playlists that
// leave nothing to pick.
func (sh *shuffleSession) next(current, length int) (int, bool) {
	if length == 0 {
		return -1, false
	}
	if !sh.active() {
		sh.build(current, length)
	}
	if len(sh.upcoming) == 0 {
		sh.build(current, length)
		if len(sh.upcoming) == 0 {
			return -1, false
		}
	}

	index := sh.upcoming[0]
	sh.upcoming = sh.upcoming[1:]
	if current >= 0 {
		sh.history = append(sh.history, current)
	}
	return index, true
}

// prev pops the most recently visited index. The departed current index is
// re-inserted at the head of the upcoming queue so a following next replays
// it without breaking the no-repeat cycle. A no-op when there is no history.
func (sh *shuffleSession) prev(current int) (int, bool) {
	if len(sh.history) == 0 {
		return -1, false
	}
	if current >= 0 {
		sh.upcoming = append([]int{current}, sh.upcoming...)
	}
	index := sh.history[len(sh.history)-1]
	sh.history = sh.history[:len(sh.history)-1]
	return index, true
}

// jumpTo records explicit external navigation to the specified index: the
// current index joins the history and the target is stripped from the
// upcoming queue so it does not replay within this cycle.
func (sh *shuffleSession) jumpTo(current, target, length int) {
	if !sh.active() {
		sh.build(current, length)
	}
	if current >= 0 && current != target {
		sh.history = append(sh.history, current)
	}
	sh.upcoming = removeIndex(sh.upcoming, target)
}

// sync rebuilds the bookkeeping after a playlist mutation: indices that no
// longer exist are pruned, the new current index is withdrawn from the
// upcoming queue, and out-of-range history entries are dropped.
func (sh *shuffleSession) sync(current, length int) {
	if !sh.active() {
		sh.build(current, length)
		return
	}

	upcoming := sh.upcoming[:0]
	for _, i := range sh.upcoming {
		if i < length && i != current {
			upcoming = append(upcoming, i)
		}
	}
	sh.upcoming = upcoming

	history := sh.history[:0]
	for _, i := range sh.history {
		if i < length {
			history = append(history, i)
		}
	}
	sh.history = history
}

// remap translates every stored index through the supplied mapping after a
// playlist rewrite that moved tracks around, such as an insert after the
// cursor. Indices the mapping cannot place are dropped.
func (sh *shuffleSession) remap(mapping func(int) (int, bool)) {
	if !sh.active() {
		return
	}

	upcoming := sh.upcoming[:0]
	for _, i := range sh.upcoming {
		if n, ok := mapping(i); ok {
			upcoming = append(upcoming, n)
		}
	}
	sh.upcoming = upcoming

	history := sh.history[:0]
	for _, i := range sh.history {
		if n, ok := mapping(i); ok {
			history = append(history, n)
		}
	}
	sh.history = history
}

// handleAdd makes freshly appended indices eligible within the running
// cycle by inserting each at a random position of the upcoming queue.
func (sh *shuffleSession) handleAdd(indices []int) {
	if !sh.active() {
		return
	}
	for _, index := range indices {
		at := rand.IntN(len(sh.upcoming) + 1)
		sh.upcoming = append(sh.upcoming, 0)
		copy(sh.upcoming[at+1:], sh.upcoming[at:])
		sh.upcoming[at] = index
	}
}

// handleRemove strips a removed playlist index from the session and shifts
// every index past it down by one to stay consistent with the mutated
// playlist.
func (sh *shuffleSession) handleRemove(index int) {
	if !sh.active() {
		return
	}
	sh.upcoming = shiftAfterRemove(removeIndex(sh.upcoming, index), index)
	sh.history = shiftAfterRemove(removeIndex(sh.history, index), index)
}

func removeIndex(indices []int, index int) []int {
	out := indices[:0]
	for _, i := range indices {
		if i != index {
			out = append(out, i)
		}
	}
	return out
}

func shiftAfterRemove(indices []int, removed int) []int {
	for i, v := range indices {
		if v > removed {
			indices[i] = v - 1
		}
	}
	return indices
}
