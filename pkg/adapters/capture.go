package adapters

import (
	"regexp"
	"strconv"
)

type Packet struct {
	Size int
	SLID int
	DLID int
}

var (
	captureLine = regexp.MustCompile(`PacketBytes: (\d+) .+ SLID: (\d+) DLID: (\d+)`)
	snoopLine   = regexp.MustCompile(`logged (\d+) byte pkt .+ dlid (\d+) slid (\d+)`)
)

// ParseCapture reads the capture listener's per-packet lines.
func ParseCapture(lines []string) []Packet {
	var pkts []Packet
	for _, line := range lines {
		m := captureLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		pkts = append(pkts, Packet{Size: atoi(m[1]), SLID: atoi(m[2]), DLID: atoi(m[3])})
	}
	return pkts
}

// ParseSnoop reads the snoop listener's lines, which print dlid before slid.
func ParseSnoop(lines []string) []Packet {
	var pkts []Packet
	for _, line := range lines {
		m := snoopLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		pkts = append(pkts, Packet{Size: atoi(m[1]), DLID: atoi(m[2]), SLID: atoi(m[3])})
	}
	return pkts
}

type PingPong struct {
	Ping    int
	Pong    int
	Foreign int
}

// Tally counts size-byte packets between two LIDs: a ping goes from b to
// a, a pong from a to b, and anything else sent by a is foreign.
func Tally(pkts []Packet, size int, a int, b int) PingPong {
	var pp PingPong
	for _, p := range pkts {
		if p.Size != size {
			continue
		}
		switch {
		case p.SLID == b && p.DLID == a:
			pp.Ping++
		case p.SLID == a && p.DLID == b:
			pp.Pong++
		case p.SLID == a:
			pp.Foreign++
		}
	}
	return pp
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
