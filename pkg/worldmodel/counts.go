package worldmodel

// countsAggregate is the single "counts" row: polymer/region tallies plus
// the set of distinct hyperedge keys already counted, so re-writing the
// same hyperedge (a version bump, not a new fact) never double-counts —
// spec requires counts be based on distinct keys, not write events.
type countsAggregate struct {
	ByPolymer map[string]int      `json:"by_polymer"`
	ByRegion  map[string]int      `json:"by_region"`
	SeenKeys  map[string]struct{} `json:"seen_keys"`
}

func emptyCounts() countsAggregate {
	return countsAggregate{
		ByPolymer: map[string]int{},
		ByRegion:  map[string]int{},
		SeenKeys:  map[string]struct{}{},
	}
}

// observe folds a hyperedge's (edge_type, key, polymer, region) identity
// into the running tallies, incrementing only the first time this exact
// key is seen.
func (c countsAggregate) observe(key, polymer, region string) countsAggregate {
	if c.ByPolymer == nil {
		c = emptyCounts()
	}
	if _, seen := c.SeenKeys[key]; seen {
		return c
	}
	c.SeenKeys[key] = struct{}{}
	if polymer != "" {
		c.ByPolymer[polymer]++
	}
	if region != "" {
		c.ByRegion[region]++
	}
	return c
}
