package adapters

import (
	"strconv"
	"strings"
)

// SocketQuery lists TCP sockets numerically on the remote host.
const SocketQuery = "ss -tan"

// PortsInState reports whether every port in [port, port+count) has a
// socket in state. It understands `ss -tan` rows (state first) and
// `netstat -tan` rows (protocol first, state last).
func PortsInState(lines []string, state string, port int, count int) bool {
	if count < 1 {
		count = 1
	}
	seen := map[int]bool{}
	for _, line := range lines {
		st, local, ok := socketRow(line)
		if !ok || !strings.EqualFold(st, state) {
			continue
		}
		p, ok := localPort(local)
		if ok {
			seen[p] = true
		}
	}
	for p := port; p < port+count; p++ {
		if !seen[p] {
			return false
		}
	}
	return true
}

func socketRow(line string) (state string, local string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return "", "", false
	}
	if strings.HasPrefix(fields[0], "tcp") {
		if len(fields) < 6 {
			return "", "", false
		}
		return fields[len(fields)-1], fields[3], true
	}
	return fields[0], fields[3], true
}

func localPort(addr string) (int, bool) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return 0, false
	}
	p, err := strconv.Atoi(addr[i+1:])
	if err != nil {
		return 0, false
	}
	return p, true
}
