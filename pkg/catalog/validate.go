package catalog

import "fmt"

// Problem is a placeholder that will not resolve. Reason is empty for an
// unknown name.
type Problem struct {
	Entry  string
	Token  string
	Reason string
}

func (p Problem) String() string {
	if p.Reason == "" {
		return fmt.Sprintf("%s: Did not find a mapping for %s", p.Entry, p.Token)
	}
	return fmt.Sprintf("%s: %s %s", p.Entry, p.Token, p.Reason)
}

// Validate finds every placeholder that cannot resolve, so a bad template
// is reported when the catalog is loaded rather than when the test runs.
func Validate(c *Catalog) []Problem {
	var problems []Problem
	for _, e := range c.entries {
		for _, p := range Placeholders(e.Args) {
			token := "%" + p.Name + "%"
			if p.Indexed {
				token = fmt.Sprintf("%%%s[%d]%%", p.Name, p.Count)
			}
			switch {
			case p.Kind == Unknown:
				problems = append(problems, Problem{Entry: e.Name, Token: p.Name})
			case p.Indexed && p.Count == 0:
				problems = append(problems, Problem{Entry: e.Name, Token: token, Reason: "asks for zero values"})
			case p.Kind.Indexed() && !p.Indexed:
				problems = append(problems, Problem{Entry: e.Name, Token: token, Reason: "needs a count"})
			case !p.Kind.Indexed() && p.Indexed:
				problems = append(problems, Problem{Entry: e.Name, Token: token, Reason: "does not take a count"})
			}
		}
	}
	return problems
}
