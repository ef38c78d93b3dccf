package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/brevdev/hfi-regress/pkg/catalog"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

// Binder resolves placeholder kinds. Scalar kinds resolve to one value,
// indexed kinds to one value per host index.
type Binder struct {
	Scalars   map[catalog.Kind]func() string
	Indexed   map[catalog.Kind]func(i int) string
	HostCount int
	Simulated bool
	ModParams string
}

func Bindings(ti *testinfo.TestInfo) Binder {
	return Binder{
		Scalars: map[catalog.Kind]func() string{
			catalog.KbuildDir:  ti.KbuildDir,
			catalog.HfiSrc:     ti.HfiSrc,
			catalog.LinuxSrc:   ti.LinuxSrc,
			catalog.PsmLib:     ti.PsmLib,
			catalog.TestPktDir: ti.TestPktDir,
			catalog.DiagLib:    ti.DiagLib,
			catalog.PsmOpts:    ti.PsmOpts,
			catalog.NP:         func() string { return strconv.Itoa(ti.NP()) },
			catalog.SM:         ti.SM,
		},
		Indexed: map[catalog.Kind]func(i int) string{
			catalog.Host: ti.HostName,
		},
		HostCount: ti.HostCount(),
		Simulated: ti.Simulated(),
		ModParams: ti.RawModuleParams(),
	}
}

// Resolve is the unquoted value of p. Problems are reported through warn
// and resolve to the best value available, never to an error.
func (b Binder) Resolve(p catalog.Placeholder, warn func(string)) string {
	if fn, ok := b.Indexed[p.Kind]; ok {
		count := p.Count
		switch {
		case !p.Indexed:
			warn(fmt.Sprintf("%s needs a host count, using all %d hosts", p.Name, b.HostCount))
			count = b.HostCount
		case count == 0:
			warn("Test FAILURE unable to parse " + p.Name + "[0]")
		case count > b.HostCount:
			warn(fmt.Sprintf("%s[%d] asks for more hosts than the %d configured", p.Name, count, b.HostCount))
			count = b.HostCount
		}
		values := make([]string, 0, count)
		for i := 0; i < count; i++ {
			values = append(values, fn(i))
		}
		return strings.Join(values, ",")
	}
	if fn, ok := b.Scalars[p.Kind]; ok {
		if p.Indexed {
			warn(fmt.Sprintf("%s does not take a count, ignoring [%d]", p.Name, p.Count))
		}
		return fn()
	}
	warn("Did not find a mapping for " + p.Name)
	return p.Name
}

// Expand substitutes one template token. Tokens that are not placeholders
// pass through untouched; resolved values are shell quoted.
func (b Binder) Expand(tok string, warn func(string)) string {
	p, ok := catalog.ParseToken(tok)
	if !ok {
		return tok
	}
	if p.Kind == catalog.Unknown {
		warn("Did not find a mapping for " + p.Name)
		return p.Name
	}
	return shellescape.Quote(b.Resolve(p, warn))
}

// Materialize is the argument string for e selected under matchedType.
func Materialize(e catalog.Entry, matchedType string, b Binder, warn func(string)) string {
	tokens := strings.Fields(e.Args)
	out := make([]string, 0, len(tokens)+3)
	for _, tok := range tokens {
		out = append(out, b.Expand(tok, warn))
	}
	if b.Simulated {
		out = append(out, "--"+testinfo.FlagSimics)
	}
	if matchedType == "qib" {
		out = append(out, "--"+testinfo.FlagQib)
	}
	if b.ModParams != "" {
		params := b.ModParams
		if n := b.hostSpan(e.Args); n > 0 {
			params = testinfo.NarrowModuleParams(params, n)
		}
		out = append(out, "--"+testinfo.FlagModParm, shellescape.Quote(params))
	}
	return strings.Join(out, " ")
}

// hostSpan is how many hosts the widest indexed placeholder in args hands
// the child, or 0 when args names none.
func (b Binder) hostSpan(args string) int {
	span := 0
	for _, p := range catalog.Placeholders(args) {
		if _, ok := b.Indexed[p.Kind]; !ok {
			continue
		}
		n := b.HostCount
		if p.Indexed {
			n = min(p.Count, b.HostCount)
		}
		span = max(span, n)
	}
	return span
}
