package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAndTallyCapture(t *testing.T) {
	lines := []string{
		"PacketBytes: 36 Flags: 0x0 SLID: 2 DLID: 1",
		"PacketBytes: 36 Flags: 0x0 SLID: 1 DLID: 2",
		"PacketBytes: 36 Flags: 0x0 SLID: 1 DLID: 7",
		"PacketBytes: 256 Flags: 0x0 SLID: 2 DLID: 1",
		"garbage",
	}
	pkts := ParseCapture(lines)
	assert.Len(t, pkts, 4)
	assert.Equal(t, PingPong{Ping: 1, Pong: 1, Foreign: 1}, Tally(pkts, 36, 1, 2))
}

func TestParseSnoopOrder(t *testing.T) {
	pkts := ParseSnoop([]string{"logged 36 byte pkt from port 1 dlid 1 slid 2"})
	assert.Equal(t, []Packet{{Size: 36, DLID: 1, SLID: 2}}, pkts)
	assert.Equal(t, PingPong{Ping: 1}, Tally(pkts, 36, 1, 2))
}
