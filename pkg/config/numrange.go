package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNumRange parses a comma/range numstring ("0-3,5,7-9") into its
// expanded, deduplicated, ascending id list — the format spec.md's
// allowed-cpus/allowed-host-ports attributes use.
func ParseNumRange(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty numstring")
	}

	seen := make(map[int]struct{})
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, err := parseRangePart(part)
		if err != nil {
			return nil, fmt.Errorf("numstring %q: %w", s, err)
		}
		for id := lo; id <= hi; id++ {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func parseRangePart(part string) (lo, hi int, err error) {
	if i := strings.IndexByte(part, '-'); i > 0 {
		lo, err = strconv.Atoi(part[:i])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range start %q: %w", part, err)
		}
		hi, err = strconv.Atoi(part[i+1:])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range end %q: %w", part, err)
		}
		if hi < lo {
			return 0, 0, fmt.Errorf("range %q has end before start", part)
		}
		return lo, hi, nil
	}
	n, err := strconv.Atoi(part)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid id %q: %w", part, err)
	}
	return n, n, nil
}
