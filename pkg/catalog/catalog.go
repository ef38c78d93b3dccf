// Package catalog holds the table of known tests: what to run, the argument
// template to run it with and the type tags used to select it.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// AllTypes selects every entry.
const AllTypes = "all"

// Tags is a set of type tags. In YAML it is either a list or a comma
// separated string.
type Tags []string

func ParseTags(s string) Tags {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(t string, _ int) string {
		return strings.TrimSpace(t)
	}))
}

func (t Tags) String() string {
	return strings.Join(t, ",")
}

func (t *Tags) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*t = ParseTags(node.Value)
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err //nolint:wrapcheck // yaml decode error carries the position
	}
	*t = list
	return nil
}

// Entry is one test. Exe is a built-in test name or a script under the
// tests directory. ExpectExit is the exit status that counts as a pass.
// SkipSimulated entries never run in the simulated environment.
type Entry struct {
	Name          string `yaml:"name"`
	Exe           string `yaml:"exe"`
	Args          string `yaml:"args"`
	Types         Tags   `yaml:"types"`
	Desc          string `yaml:"desc"`
	ExpectExit    int    `yaml:"expect_exit"`
	SkipSimulated bool   `yaml:"skip_simulated"`
}

func (e Entry) HasType(t string) bool {
	return lo.Contains(e.Types, t)
}

type Catalog struct {
	entries []Entry
	index   map[string]int
}

// New builds a catalog. Names must be unique.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("catalog entry with exe %q has no name", e.Exe)
		}
		if _, dup := c.index[e.Name]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %s", e.Name)
		}
		if e.Exe == "" {
			return nil, fmt.Errorf("catalog entry %s has no exe", e.Name)
		}
		c.index[e.Name] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

func (c *Catalog) Lookup(name string) (Entry, bool) {
	i, ok := c.index[name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Types is the sorted set of every tag in the catalog.
func (c *Catalog) Types() []string {
	types := lo.Uniq(lo.FlatMap(c.entries, func(e Entry, _ int) []string { return e.Types }))
	sort.Strings(types)
	return types
}

// Overlay replaces entries with the same name in place and appends new
// ones in order.
func (c *Catalog) Overlay(entries []Entry) (*Catalog, error) {
	merged := c.Entries()
	added := []Entry{}
	for _, e := range entries {
		if i, ok := c.index[e.Name]; ok {
			merged[i] = e
			continue
		}
		added = append(added, e)
	}
	return New(append(merged, added...))
}
