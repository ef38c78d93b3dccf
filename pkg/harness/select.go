package harness

import (
	"github.com/samber/lo"

	"github.com/brevdev/hfi-regress/pkg/catalog"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

const (
	// NoSMTag marks tests that need to own the fabric manager.
	NoSMTag = "nosm"
	// RemoteSM means the fabric manager runs outside the hosts under test.
	RemoteSM = "remote"
)

// Selection is what the user asked to run and the environment it runs in.
type Selection struct {
	Types         []string
	TypesExplicit bool
	TestList      []string
	SM            string
	Simulated     bool
}

func SelectionFrom(ti *testinfo.TestInfo) Selection {
	return Selection{
		Types:         ti.TestTypes(),
		TypesExplicit: ti.TypesExplicit(),
		TestList:      ti.TestList(),
		SM:            ti.SM(),
		Simulated:     ti.Simulated(),
	}
}

// Selected is a catalog entry picked for this run. MatchedType is the type
// token it was picked under. Skipped entries are never run.
type Selected struct {
	Entry       catalog.Entry
	MatchedType string
	Skipped     bool
}

// Select walks the catalog in order and picks each entry at most once.
//
// With a test list the catalog is first narrowed to those names and, unless
// types were given explicitly, every type in the catalog is swept so each
// named entry still runs. An entry tagged nosm is skipped when the fabric
// manager is remote, and a SkipSimulated entry is skipped in the simulated
// environment; both warn "<name> : SKIPPED!".
func Select(c *catalog.Catalog, sel Selection, warn func(string)) []Selected {
	entries := c.Entries()
	types := sel.Types
	if len(sel.TestList) > 0 {
		for _, name := range sel.TestList {
			if _, ok := c.Lookup(name); !ok {
				warn("Did not find a test named " + name)
			}
		}
		entries = lo.Filter(entries, func(e catalog.Entry, _ int) bool {
			return lo.Contains(sel.TestList, e.Name)
		})
		if !sel.TypesExplicit {
			// untagged entries still match on the trailing "all"
			types = append(c.Types(), catalog.AllTypes)
		}
	}

	var out []Selected
	for _, e := range entries {
		matched, ok := lo.Find(types, func(t string) bool {
			return t == catalog.AllTypes || e.HasType(t)
		})
		if !ok {
			continue
		}
		s := Selected{Entry: e, MatchedType: matched}
		if excluded(e, sel) {
			s.Skipped = true
			warn(e.Name + " : SKIPPED!")
		}
		out = append(out, s)
	}
	return out
}

func excluded(e catalog.Entry, sel Selection) bool {
	if sel.SM == RemoteSM && e.HasType(NoSMTag) {
		return true
	}
	return sel.Simulated && e.SkipSimulated
}

// Runnable drops skipped entries.
func Runnable(selected []Selected) []Selected {
	return lo.Reject(selected, func(s Selected, _ int) bool { return s.Skipped })
}
