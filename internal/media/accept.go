package media

import (
	"sort"
	"strconv"
	"strings"
)

// ParseAccept turns an Accept header value into an ordered list of media
// ranges, most preferred first. Ordering follows q-values (descending) with
// the original header order preserved among equal weights. Elements that do
// not parse as a media range are skipped. An empty header yields nil; it is
// the transport's call whether that means */* or a 406.
func ParseAccept(header string) []Range {
	if strings.TrimSpace(header) == "" {
		return nil
	}

	type weighted struct {
		r   Range
		q   float64
		pos int
	}
	var out []weighted

	for pos, elem := range strings.Split(header, ",") {
		parts := strings.Split(elem, ";")
		r, err := ParseRange(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		q := 1.0
		for _, p := range parts[1:] {
			p = strings.TrimSpace(p)
			if v, ok := strings.CutPrefix(p, "q="); ok {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 && parsed <= 1 {
					q = parsed
				}
			}
		}
		if q == 0 {
			// q=0 means "not acceptable", drop the range entirely
			continue
		}
		out = append(out, weighted{r: r, q: q, pos: pos})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].q != out[j].q {
			return out[i].q > out[j].q
		}
		return out[i].pos < out[j].pos
	})

	ranges := make([]Range, len(out))
	for i, w := range out {
		ranges[i] = w.r
	}
	return ranges
}
