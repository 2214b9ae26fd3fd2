package inventory

// ComputeStaleSet returns the components of previous that are absent from
// current, in previous order. Identity comparison uses IdentityEqual.
//
// Returns an empty slice when previous is empty.
func ComputeStaleSet(previous, current []Component) []Component {
	stale := []Component{}
	for _, prev := range previous {
		found := false
		for _, cur := range current {
			if IdentityEqual(prev, cur) {
				found = true
				break
			}
		}
		if !found {
			stale = append(stale, prev)
		}
	}
	return stale
}
