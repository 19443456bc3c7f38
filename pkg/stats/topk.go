package stats

import "sort"

// DefaultTopK is the number of histogram entries reported when not configured.
const DefaultTopK = 10

// Entry is one ranked histogram key.
type Entry struct {
	Key   string `json:"key"`
	Count uint64 `json:"count"`
}

// TopK ranks the keys of table by count, highest first, and returns at most k
// entries. Ties are broken by key so the result does not depend on map
// iteration order. table is not modified.
func TopK(table map[string]uint64, k int) []Entry {
	if k <= 0 || len(table) == 0 {
		return nil
	}

	entries := make([]Entry, 0, len(table))
	for key, count := range table {
		entries = append(entries, Entry{Key: key, Count: count})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count == entries[j].Count {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].Count > entries[j].Count
	})

	if k > len(entries) {
		k = len(entries)
	}
	return entries[:k]
}
