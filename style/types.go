// Package style holds per element style data collected from render passes and
// the two engines working on it: Diff finds properties changed by authored CSS
// and Attribute maps them back to the authored declarations responsible.
package style

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Identity is an ordinal assigned to every element of the document. It is the
// only key used to correlate elements between independent render passes.
type Identity int

func (id Identity) String() string {
	return strconv.Itoa(int(id))
}

// Valid reports whether identity could have been assigned.
func (id Identity) Valid() bool {
	return id > 0
}

// ParseIdentity parses identity attribute value.
func ParseIdentity(s string) (Identity, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad identity %q: %w", s, err)
	}
	if id := Identity(n); id.Valid() {
		return id, nil
	}
	return 0, fmt.Errorf("bad identity %q: must be positive", s)
}

// Record maps canonical property names to computed values for single element.
type Record map[string]string

// Snapshot is computed style of every element captured in a single render
// pass. It is never modified after capture.
type Snapshot map[Identity]Record

// Identities returns snapshot keys in ascending order.
func (s Snapshot) Identities() []Identity {
	return slices.Sorted(maps.Keys(s))
}

// ChangedSet maps element to the names of properties whose computed value
// differs between passes. Names are sorted.
type ChangedSet map[Identity][]string

// Identities returns elements with changes in ascending order.
func (c ChangedSet) Identities() []Identity {
	return slices.Sorted(maps.Keys(c))
}

// Contains reports whether property changed for the element.
func (c ChangedSet) Contains(id Identity, property string) bool {
	_, found := slices.BinarySearch(c[id], property)
	return found
}

// Declaration is authored declaration matching an element. Rank is the
// position of its rule in cascade order reported by the render engine, higher
// rank means later (stronger) rule.
type Declaration struct {
	Property  string `json:"property"`
	Value     string `json:"value"`
	Rank      int    `json:"rank"`
	Important bool   `json:"important,omitempty"`
	Source    string `json:"source,omitempty"` // selector or "style" attribute
}

// Outranks reports whether declaration d wins over other for the same
// property: important beats normal, otherwise higher rank wins. Ties go to d,
// so when list is walked in order the later entry wins.
func (d Declaration) Outranks(other Declaration) bool {
	if d.Important != other.Important {
		return d.Important
	}
	return d.Rank >= other.Rank
}

// Attributed is the winning authored value for a changed property.
type Attributed struct {
	Property string `json:"property"`
	Value    string `json:"value"`
	Rank     int    `json:"rank"`
}

// Attribution maps element to its attributed properties ordered by first
// appearance of property in cascade order list.
type Attribution map[Identity][]Attributed

// Identities returns attributed elements in ascending order.
func (a Attribution) Identities() []Identity {
	return slices.Sorted(maps.Keys(a))
}

// Value returns attributed value of property for the element.
func (a Attribution) Value(id Identity, property string) (string, bool) {
	i := slices.IndexFunc(a[id], func(at Attributed) bool { return at.Property == property })
	if i < 0 {
		return "", false
	}
	return a[id][i].Value, true
}

// sortedProperties returns record keys in ascending order.
func sortedProperties(r Record) []string {
	return slices.Sorted(maps.Keys(r))
}
