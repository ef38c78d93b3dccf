package testinfo

import (
	"regexp"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
)

var spacedAssign = regexp.MustCompile(`\s*=\s*`)

// ParseModuleParams splits raw into one parameter dictionary per host. A
// single segment applies to every host; otherwise there must be exactly one
// colon separated segment per host.
func ParseModuleParams(raw string, hosts int) ([]*orderedmap.OrderedMap[string, string], error) {
	segments := []string{""}
	if strings.TrimSpace(raw) != "" {
		segments = strings.Split(raw, ":")
	}
	if len(segments) != 1 && len(segments) != hosts {
		return nil, breverrors.NewConfigError("module parameters have %d host segments for %d hosts", len(segments), hosts)
	}

	out := make([]*orderedmap.OrderedMap[string, string], hosts)
	for i := range out {
		seg := segments[0]
		if len(segments) > 1 {
			seg = segments[i]
		}
		out[i] = parseSegment(seg)
	}
	return out, nil
}

// NarrowModuleParams keeps the segments of raw for the first n hosts, so a
// run against fewer hosts than raw names still parses. A single segment
// applies to any host count and is returned whole.
func NarrowModuleParams(raw string, n int) string {
	segments := strings.Split(raw, ":")
	if len(segments) <= 1 || n <= 0 || n >= len(segments) {
		return raw
	}
	return strings.Join(segments[:n], ":")
}

func parseSegment(seg string) *orderedmap.OrderedMap[string, string] {
	m := orderedmap.New[string, string]()
	// "p1 = X" is accepted as well as "p1=X"
	for _, tok := range strings.Fields(spacedAssign.ReplaceAllString(seg, "=")) {
		key, value, _ := strings.Cut(tok, "=")
		if key == "" {
			continue
		}
		m.Set(key, value)
	}
	return m
}

// FormatModuleParams renders params as insmod arguments.
func FormatModuleParams(params *orderedmap.OrderedMap[string, string]) string {
	if params == nil {
		return ""
	}
	parts := make([]string, 0, params.Len())
	for pair := params.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == "" {
			parts = append(parts, pair.Key)
			continue
		}
		parts = append(parts, pair.Key+"="+pair.Value)
	}
	return strings.Join(parts, " ")
}
