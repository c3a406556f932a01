package strategy

import (
	"sort"
	"strings"
)

const (
	suggestThreshold = 0.8
	maxSuggestions   = 3
)

// suggest returns up to three candidates close to value, best first.
func suggest(value string, candidates []string) []string {
	type scored struct {
		candidate string
		score     float64
	}
	target := strings.ToLower(strings.TrimSpace(value))
	var hits []scored
	for _, c := range candidates {
		if score := jaroWinkler(target, strings.ToLower(c)); score >= suggestThreshold {
			hits = append(hits, scored{c, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > maxSuggestions {
		hits = hits[:maxSuggestions]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.candidate
	}
	return out
}

func jaroWinkler(a, b string) float64 {
	s1, s2 := []rune(a), []rune(b)
	if a == b {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}

	window := max(len(s1), len(s2))/2 - 1
	if window < 0 {
		window = 0
	}
	m1 := make([]bool, len(s1))
	m2 := make([]bool, len(s2))

	matches := 0
	for i := range s1 {
		lo := max(0, i-window)
		hi := min(i+window+1, len(s2))
		for j := lo; j < hi; j++ {
			if m2[j] || s1[i] != s2[j] {
				continue
			}
			m1[i], m2[j] = true, true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions, k := 0, 0
	for i := range s1 {
		if !m1[i] {
			continue
		}
		for !m2[k] {
			k++
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}
	transpositions /= 2

	m := float64(matches)
	jaro := (m/float64(len(s1)) + m/float64(len(s2)) + (m-float64(transpositions))/m) / 3

	prefix := 0
	for i := 0; i < min(4, min(len(s1), len(s2))); i++ {
		if s1[i] != s2[i] {
			break
		}
		prefix++
	}
	return jaro + float64(prefix)*0.1*(1-jaro)
}
