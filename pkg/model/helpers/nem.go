package helpers

import (
	"fmt"
	"sort"

	"github.com/adjacentlink/emexd/pkg/model"
)

// Nem assigns a globally-unique nem.nemid to every radio component
// across all platforms that declares the param but leaves it
// unconfigured, and checks afterward that no two components ended up
// sharing one.
type Nem struct{}

var _ ConfigHelper = Nem{}

// Configure collects every already-assigned nemid across all
// platforms' components, then walks positive integers starting at 1,
// skipping any already assigned, assigning the next free one to each
// unconfigured nem.nemid param in (platform, component) order. Each
// newly-assigned id is immediately excluded from future candidates
// within the same call, matching the original's single running
// "assigned" list semantics.
func (Nem) Configure(platforms []*model.Platform) error {
	assigned := make(map[int64]struct{})
	var unconfigured []ComponentRef

	for _, plt := range platforms {
		for _, c := range plt.Components {
			p, ok := c.Param("emane", "nemid")
			if !ok {
				continue
			}
			if p.Configured() {
				assigned[p.First().Int] = struct{}{}
				continue
			}
			unconfigured = append(unconfigured, ComponentRef{PlatformName: plt.Name, Component: c})
		}
	}

	next := int64(1)
	nextFree := func() int64 {
		for {
			if _, used := assigned[next]; !used {
				id := next
				assigned[id] = struct{}{}
				next++
				return id
			}
			next++
		}
	}

	for _, ref := range unconfigured {
		id := nextFree()
		if err := setIntParam(ref.Component, "emane", "nemid", id); err != nil {
			return err
		}
	}
	return nil
}

// Check groups every configured nemid by value and, if any value is
// shared, reports an error naming the lowest duplicated nemid and the
// components sharing it; other duplicate groups are not listed.
func (Nem) Check(platforms []*model.Platform) error {
	byID := make(map[int64][]string)
	for _, plt := range platforms {
		for _, c := range plt.Components {
			p, ok := c.Param("emane", "nemid")
			if !ok || !p.Configured() {
				continue
			}
			id := p.First().Int
			byID[id] = append(byID[id], fmt.Sprintf("%s.%s", plt.Name, c.Name))
		}
	}
	var dupIDs []int64
	for id, names := range byID {
		if len(names) > 1 {
			dupIDs = append(dupIDs, id)
			sort.Strings(names)
		}
	}
	if len(dupIDs) == 0 {
		return nil
	}
	sort.Slice(dupIDs, func(i, j int) bool { return dupIDs[i] < dupIDs[j] })
	id := dupIDs[0]
	return fmt.Errorf("duplicate nemid %d assigned to %v", id, byID[id])
}
