package snoop

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/brevdev/hfi-regress/pkg/snoopdev"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

// ListenerArgs is the --args tuple of a listener:
// filter_by,filter_value,corrupt,drop,flip[,drop_send].
type ListenerArgs struct {
	FilterBy    int
	FilterValue int
	Corrupt     bool
	Drop        bool
	Flip        bool
	DropSend    bool
}

func ParseListenerArgs(args []string) (ListenerArgs, error) {
	var a ListenerArgs
	if len(args) == 0 {
		return a, nil
	}
	if len(args) != 5 && len(args) != 6 {
		return a, fmt.Errorf("want filter_by,filter_value,corrupt,drop,flip[,drop_send], got %q", strings.Join(args, ","))
	}
	var err error
	if a.FilterBy, err = parseNum(args[0]); err != nil {
		return a, err
	}
	if a.FilterValue, err = parseNum(args[1]); err != nil {
		return a, err
	}
	flags := []*bool{&a.Corrupt, &a.Drop, &a.Flip, &a.DropSend}
	for i, s := range args[2:] {
		switch strings.TrimSpace(s) {
		case "1":
			*flags[i] = true
		case "0":
		default:
			return a, fmt.Errorf("flag %d must be 0 or 1, got %q", i+3, s)
		}
	}
	return a, nil
}

func parseNum(s string) (int, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return int(v), nil
}

func (a ListenerArgs) String() string {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	return fmt.Sprintf("0x%x,0x%x,%d,%d,%d,%d", a.FilterBy, a.FilterValue, b(a.Corrupt), b(a.Drop), b(a.Flip), b(a.DropSend))
}

// Listener collects packets from a diagpkt device until its context ends.
// In snoop mode every packet not dropped is written back, rewritten as the
// args ask.
type Listener struct {
	Dev  *snoopdev.Device
	Args ListenerArgs
	Mode int
	Out  io.Writer
	Log  *testlog.Logger

	mu   sync.Mutex
	pkts [][]byte
}

func (l *Listener) snooping() bool {
	return l.Mode == snoopdev.ModeSnoop
}

// Setup clears whatever filter and queued packets a previous user left.
func (l *Listener) Setup() error {
	l.Log.Log(0, "Clearing existing filters")
	if err := l.Dev.ClearFilter(); err != nil {
		return err
	}
	l.Log.Log(0, "Clearing ring buffer")
	if err := l.Dev.ClearQueue(); err != nil {
		return err
	}
	if l.Args.FilterValue != 0 {
		l.Log.Logf(0, "Filtering by %d on 0x%x", l.Args.FilterBy, l.Args.FilterValue)
		if err := l.Dev.SetFilter(l.Args.FilterBy, l.Args.FilterValue); err != nil {
			return err
		}
	}
	if !l.snooping() {
		return nil
	}
	l.Log.Logf(0, "Setting the drop flag to %t", l.Args.DropSend)
	return l.Dev.SetOptions(l.Args.DropSend)
}

// Run reads until ctx ends and returns the packets seen. A device error
// before that ends the run early.
func (l *Listener) Run(ctx context.Context) ([][]byte, error) {
	errc := make(chan error, 1)
	go func() {
		for {
			p, err := l.Dev.ReadPacket()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				errc <- err
				return
			}
			if err := l.handle(p); err != nil {
				errc <- err
				return
			}
		}
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.pkts...), err
}

func (l *Listener) handle(p []byte) error {
	h, err := snoopdev.ParseHeader(p)
	if err != nil {
		l.Log.Warnf("skipping packet: %v", err)
		return nil
	}
	l.mu.Lock()
	l.pkts = append(l.pkts, p)
	l.mu.Unlock()
	fmt.Fprintf(l.Out, "Found a %d byte pkt vl %d pktlen %d Dwords dlid %d slid %d\n", len(p), h.VL, h.PktLen, h.DLID, h.SLID)

	if !l.snooping() || l.Args.Drop {
		return nil
	}
	var out []byte
	switch {
	case l.Args.Corrupt:
		out, err = snoopdev.CorruptDLID(p)
	case l.Args.Flip:
		if h.DLID != l.Args.FilterValue {
			l.Log.Warnf("filter let through dlid %d, not reinjecting", h.DLID)
			return nil
		}
		out, err = snoopdev.FlipLIDs(p)
	default:
		out = snoopdev.StripICRC(p)
	}
	if err != nil {
		l.Log.Warnf("not reinjecting: %v", err)
		return nil
	}
	n, err := l.Dev.WritePacket(out)
	if err != nil {
		return fmt.Errorf("reinject: %w", err)
	}
	l.Log.Logf(5, "Wrote %d bytes of packet back", n)
	return nil
}

// Report prints one summary line per packet in the format the driver side
// parses.
func (l *Listener) Report(pkts [][]byte) {
	for _, p := range pkts {
		h, err := snoopdev.ParseHeader(p)
		if err != nil {
			continue
		}
		if l.snooping() {
			fmt.Fprintln(l.Out, h.Logged(len(p)))
		} else {
			fmt.Fprintln(l.Out, h.Captured(len(p)))
		}
	}
}
