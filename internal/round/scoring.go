package round

import (
	"time"

	"github.com/LuckyMachines/hivemind/internal/question"
)

// Tally counts revealed crowd choices per response slot.
type Tally [question.Choices]uint64

func (t Tally) Total() uint64 {
	var total uint64
	for _, count := range t {
		total += count
	}
	return total
}

// WinningIndex returns the argmax slots in majority mode or the argmin
// non-zero slots in minority mode. An empty tally has no winners.
func WinningIndex(t Tally, minority bool) []int {
	var target uint64
	found := false
	for _, count := range t {
		if count == 0 {
			continue
		}
		switch {
		case !found:
			target = count
			found = true
		case minority && count < target:
			target = count
		case !minority && count > target:
			target = count
		}
	}
	if !found {
		return []int{}
	}
	winners := make([]int, 0, len(t))
	for slot, count := range t {
		if count == target {
			winners = append(winners, slot)
		}
	}
	return winners
}

func contains(set []int, value int) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

// FastRevealBonus decays linearly from max at the window opening to zero at
// its end. A zero window pays the full bonus.
func FastRevealBonus(max uint64, window, elapsed time.Duration) uint64 {
	if window <= 0 {
		return max
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= window {
		return 0
	}
	return max * uint64(window-elapsed) / uint64(window)
}
