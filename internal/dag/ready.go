package dag

// CollectReady scans every tracked node in source order and returns the
// eligible ones that are not already represented in tracked. The order of
// the result is the discovery order used by the assignment engine.
//
// Call it once at workflow start and again after every completion; a
// completion is the only event that can make another node eligible.
func CollectReady(t *Tracker, tracked map[string]bool) []string {
	var ready []string
	for _, id := range t.order {
		if tracked[id] {
			continue
		}
		// Ids come from the tracker itself, so the lookup cannot fail.
		ok, _ := t.IsEligible(id)
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}
