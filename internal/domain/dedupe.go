package domain

// Dedupe collapses detections sharing a natural key to a single
// representative. The first occurrence in input order wins, and output order
// follows input order, so the result is deterministic for a fixed input.
// Runs in linear time.
func Dedupe(records []Detection) []Detection {
	seen := make(map[string]struct{}, len(records))
	out := make([]Detection, 0, len(records))
	for _, r := range records {
		key := r.NaturalKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
