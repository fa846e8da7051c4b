package common

// Chunk splits s into consecutive batches of at most size elements. The
// batches share s's backing array. A non-positive size yields one batch.
func Chunk[S ~[]E, E any](s S, size int) []S {
	if len(s) == 0 {
		return nil
	}

	if size <= 0 || len(s) <= size {
		return []S{s}
	}

	out := make([]S, 0, (len(s)+size-1)/size)
	for start := 0; start < len(s); start += size {
		out = append(out, s[start:min(start+size, len(s))])
	}

	return out
}

// Unique returns s without repeated elements, keeping first occurrences.
func Unique[S ~[]E, E comparable](s S) S {
	seen := make(map[E]bool, len(s))
	out := make(S, 0, len(s))

	for _, e := range s {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}

	return out
}
