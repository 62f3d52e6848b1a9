package market

import "strings"

// Filter returns the rows of snap that pass the filter state, preserving the
// snapshot's order. It is pure: the input slice is never modified.
//
// Rules, applied per row in order:
//  1. direction "up" excludes rows whose 24h change is negative (a missing
//     change counts as zero, so it survives an "up" filter);
//  2. direction "down" excludes rows whose 24h change is positive;
//  3. a non-empty search term (trimmed, case-insensitive) must be a substring
//     of the row's name, symbol, or pair label.
func Filter(snap Snapshot, state FilterState) Snapshot {
	term := strings.ToLower(strings.TrimSpace(state.Term))

	out := make(Snapshot, 0, len(snap))
	for _, row := range snap {
		change := 0.0
		if row.Change24Pct != nil {
			change = *row.Change24Pct
		}
		if state.Direction == ChangeUp && change < 0 {
			continue
		}
		if state.Direction == ChangeDown && change > 0 {
			continue
		}
		if term != "" && !matchesTerm(row, term) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func matchesTerm(row Row, term string) bool {
	return strings.Contains(strings.ToLower(row.Name), term) ||
		strings.Contains(strings.ToLower(row.Symbol), term) ||
		strings.Contains(strings.ToLower(row.Pair), term)
}
