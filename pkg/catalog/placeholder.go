package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind names a value of the test configuration an argument template can
// refer to.
type Kind int

const (
	Unknown Kind = iota
	KbuildDir
	HfiSrc
	LinuxSrc
	Host
	PsmLib
	TestPktDir
	DiagLib
	PsmOpts
	NP
	SM
)

var kindNames = map[string]Kind{
	"KBUILD_DIR":   KbuildDir,
	"HFI_SRC":      HfiSrc,
	"LINUX_SRC":    LinuxSrc,
	"HOST":         Host,
	"PSM_LIB":      PsmLib,
	"TEST_PKT_DIR": TestPktDir,
	"DIAG_LIB":     DiagLib,
	"PSM_OPTS":     PsmOpts,
	"NP":           NP,
	"SM":           SM,
}

func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "UNKNOWN"
}

// Indexed kinds resolve per host and are written NAME[n].
func (k Kind) Indexed() bool {
	return k == Host
}

func KindOf(name string) Kind {
	return kindNames[name]
}

var (
	placeholderToken = regexp.MustCompile(`^%(.*)%$`)
	rangeToken       = regexp.MustCompile(`^(.+)\[(\d+)\]$`)
)

// Placeholder is one parsed %NAME% or %NAME[n]% token.
type Placeholder struct {
	Kind    Kind
	Name    string
	Count   int
	Indexed bool
}

// ParseToken reports whether tok is a placeholder and parses it. An
// unrecognised name parses with Kind Unknown.
func ParseToken(tok string) (Placeholder, bool) {
	m := placeholderToken.FindStringSubmatch(tok)
	if m == nil {
		return Placeholder{}, false
	}
	p := Placeholder{Name: m[1]}
	if r := rangeToken.FindStringSubmatch(p.Name); r != nil {
		count, err := strconv.Atoi(r[2])
		if err == nil {
			p.Name = r[1]
			p.Count = count
			p.Indexed = true
		}
	}
	p.Kind = KindOf(p.Name)
	return p, true
}

// Placeholders lists every placeholder in an argument template.
func Placeholders(args string) []Placeholder {
	var out []Placeholder
	for _, tok := range strings.Fields(args) {
		if p, ok := ParseToken(tok); ok {
			out = append(out, p)
		}
	}
	return out
}
