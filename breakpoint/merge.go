package breakpoint

import (
	"cmp"
	"slices"
	"strings"

	"twc/style"
)

// Qualified is attributed declaration tagged with breakpoint it came from.
type Qualified struct {
	Breakpoint string `json:"breakpoint"`
	Qualifier  string `json:"qualifier,omitempty"`
	Property   string `json:"property"`
	Value      string `json:"value"`
}

// Merged is per element result of all breakpoints.
type Merged struct {
	Declarations map[style.Identity][]Qualified `json:"declarations"`
	Classes      map[style.Identity]string      `json:"classes"`
}

// Collapse drops declarations whose value is already in effect for the
// element because lower breakpoints set the property to the same value.
// Lower results must be in merge order.
func Collapse(lower []*Result, attr style.Attribution) style.Attribution {
	res := make(style.Attribution, len(attr))
	for id, decls := range attr {
		var kept []style.Attributed
		for _, d := range decls {
			if v, ok := inEffect(lower, id, d.Property); ok && v == d.Value {
				continue
			}
			kept = append(kept, d)
		}
		if len(kept) > 0 {
			res[id] = kept
		}
	}
	return res
}

func inEffect(lower []*Result, id style.Identity, property string) (value string, found bool) {
	for _, r := range lower {
		if v, ok := r.Attribution.Value(id, property); ok {
			value, found = v, true
		}
	}
	return value, found
}

// Merge concatenates contributions of all results per element. Results are
// ordered by ascending min width first, so declarations and classes of wider
// breakpoints always follow narrower ones.
func Merge(results []*Result) *Merged {
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b *Result) int {
		return cmp.Compare(a.Breakpoint.MinWidth, b.Breakpoint.MinWidth)
	})

	m := &Merged{
		Declarations: make(map[style.Identity][]Qualified),
		Classes:      make(map[style.Identity]string),
	}
	classes := make(map[style.Identity][]string)
	for _, r := range ordered {
		contributed := r.Contributed
		if contributed == nil {
			contributed = r.Attribution
		}
		for _, id := range contributed.Identities() {
			for _, d := range contributed[id] {
				m.Declarations[id] = append(m.Declarations[id], Qualified{
					Breakpoint: r.Breakpoint.Name,
					Qualifier:  r.Breakpoint.Qualifier,
					Property:   d.Property,
					Value:      d.Value,
				})
			}
		}
		for id, cls := range r.Classes {
			if cls != "" {
				classes[id] = append(classes[id], cls)
			}
		}
	}
	for id, list := range classes {
		m.Classes[id] = strings.Join(list, " ")
	}
	return m
}
