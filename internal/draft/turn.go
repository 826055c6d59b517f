package draft

import "github.com/google/uuid"

// nextTurn scans order starting after current, wrapping once, and returns the
// index of the next member still owed a turn. eligible reports whether the
// member at a position may still pick. Returns (-1, true) when nobody is
// eligible, meaning the session is complete.
//
// Pure function over its inputs; the orchestrator calls it under the session
// lock.
func nextTurn(order []uuid.UUID, current int, eligible func(uuid.UUID) bool) (int, bool) {
	n := len(order)
	for i := 1; i <= n; i++ {
		idx := (current + i) % n
		if eligible(order[idx]) {
			return idx, false
		}
	}
	return -1, true
}

// BuildSnakeOrder expands a base member order into a snake turn sequence of
// laps rounds: the base order repeated, reversed on every other lap, so
// early-turn advantage balances out across rounds.
func BuildSnakeOrder(base []uuid.UUID, laps int) []uuid.UUID {
	if laps < 1 || len(base) == 0 {
		return nil
	}

	out := make([]uuid.UUID, 0, len(base)*laps)
	for lap := 0; lap < laps; lap++ {
		if lap%2 == 0 {
			out = append(out, base...)
			continue
		}
		for i := len(base) - 1; i >= 0; i-- {
			out = append(out, base[i])
		}
	}
	return out
}
