package domain

import "time"

// LatestByKey reduces a versioned history to the latest item per key.
// For equal timestamps the earlier item in input order wins, so that
// repeated reductions over the same input are stable.
func LatestByKey[K comparable, T any](items []T, key func(T) K, at func(T) time.Time) map[K]T {
	latest := make(map[K]T)
	seen := make(map[K]time.Time)

	for _, item := range items {
		k := key(item)
		t := at(item)
		if prev, ok := seen[k]; ok && !t.After(prev) {
			continue
		}
		latest[k] = item
		seen[k] = t
	}

	return latest
}
