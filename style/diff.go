package style

// Diff returns properties changed between baseline (authored CSS suppressed)
// and styled (authored CSS applied) passes. Only properties present in styled
// record are considered; property missing from baseline counts as changed.
// Values are compared byte for byte. Elements without changes are omitted.
func Diff(baseline, styled Snapshot) ChangedSet {
	changed := make(ChangedSet)
	for id, rec := range styled {
		base, known := baseline[id]
		var props []string
		for _, prop := range sortedProperties(rec) {
			if !known {
				props = append(props, prop)
				continue
			}
			if old, ok := base[prop]; !ok || old != rec[prop] {
				props = append(props, prop)
			}
		}
		if len(props) > 0 {
			changed[id] = props
		}
	}
	return changed
}

// Vanished returns properties present in baseline but absent from styled
// record. Diff never reports them, they are only useful for diagnostics.
func Vanished(baseline, styled Snapshot) ChangedSet {
	vanished := make(ChangedSet)
	for id, rec := range styled {
		base, known := baseline[id]
		if !known {
			continue
		}
		var props []string
		for _, prop := range sortedProperties(base) {
			if _, ok := rec[prop]; !ok {
				props = append(props, prop)
			}
		}
		if len(props) > 0 {
			vanished[id] = props
		}
	}
	return vanished
}
