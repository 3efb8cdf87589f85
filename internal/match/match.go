// Package match implements the path matching used to infer the
// entities a scene relates to. Everything in this package is pure: the
// same path and candidates will always produce the same result.
package match

import (
	"bytes"
	"strings"

	"github.com/google/uuid"
)

// Candidate is an indexed entity that a path may be matched against. Seq
// is the order in which the candidate was indexed, and is used to
// make results deterministic.
type Candidate struct {
	ID    uuid.UUID
	Names []string
	Seq   uint64
}

// All returns the IDs of every candidate which has at least one name
// occurring intact within the path provided. Results are in candidate
// order and contain no duplicates.
//
// A name occurs intact when its normalised form appears in the
// normalised path as a whole run of tokens; "ann" will not match a
// path containing "annabelle".
func All(path string, candidates []Candidate) []uuid.UUID {
	haystack := pad(Normalize(path))
	seen := make(map[uuid.UUID]struct{}, len(candidates))
	results := make([]uuid.UUID, 0)
	for _, c := range candidates {
		if _, ok := seen[c.ID]; ok {
			continue
		}

		if longestMatch(haystack, c) > 0 {
			seen[c.ID] = struct{}{}
			results = append(results, c.ID)
		}
	}

	return results
}

// Best returns a single winning candidate for the path, for use with
// entity kinds which are single-valued on a scene (studios). If multiple
// candidates match, the candidate whose matching name is longest (after
// normalisation) wins. Ties are broken by the lowest Seq, and then by
// the lowest ID. The boolean is false when nothing matched.
func Best(path string, candidates []Candidate) (uuid.UUID, bool) {
	haystack := pad(Normalize(path))

	var (
		best    *Candidate
		bestLen int
	)
	for i := range candidates {
		c := &candidates[i]
		l := longestMatch(haystack, *c)
		if l == 0 {
			continue
		}

		if best == nil || beats(c, l, best, bestLen) {
			best = c
			bestLen = l
		}
	}

	if best == nil {
		return uuid.Nil, false
	}

	return best.ID, true
}

func beats(c *Candidate, cLen int, best *Candidate, bestLen int) bool {
	if cLen != bestLen {
		return cLen > bestLen
	}
	if c.Seq != best.Seq {
		return c.Seq < best.Seq
	}

	return bytes.Compare(c.ID[:], best.ID[:]) < 0
}

// longestMatch returns the length of the longest normalised name of the
// candidate found in the (padded, normalised) haystack, or 0 if none
// of the names are present.
func longestMatch(haystack string, c Candidate) int {
	longest := 0
	for _, name := range c.Names {
		needle := Normalize(name)
		if needle == "" {
			continue
		}

		if len(needle) > longest && strings.Contains(haystack, pad(needle)) {
			longest = len(needle)
		}
	}

	return longest
}

func pad(s string) string { return " " + s + " " }
