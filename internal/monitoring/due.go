// internal/monitoring/due.go
package monitoring

import (
	"sort"

	"ravenwatch/internal/database"
)

// DefaultBatchSize is the number of monitors probed per cycle.
const DefaultBatchSize = 5

// SelectDue picks up to n monitors to probe next: those with a URL, never
// checked first, then least recently checked. Ties go to the lower ID so
// the result is deterministic for a given input.
func SelectDue(monitors []database.Monitor, n int) []database.Monitor {
	if n <= 0 {
		n = DefaultBatchSize
	}

	seen := make(map[string]struct{}, len(monitors))
	eligible := make([]database.Monitor, 0, len(monitors))
	for _, m := range monitors {
		if m.URL == "" {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		eligible = append(eligible, m)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i].LastCheckedAt, eligible[j].LastCheckedAt
		switch {
		case a == nil && b == nil:
			return eligible[i].ID < eligible[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return eligible[i].ID < eligible[j].ID
		}
	})

	if len(eligible) > n {
		eligible = eligible[:n]
	}
	return eligible
}
